package matchmaking_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/duelarena/internal/domain/clock"
	"github.com/okian/duelarena/internal/domain/matchmaking"
	"github.com/okian/duelarena/pkg/logger"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func wallets(players []matchmaking.WaitingPlayer) []string {
	out := make([]string, len(players))
	for i, p := range players {
		out[i] = p.WalletAddress
	}
	return out
}

func TestQueueFIFO(t *testing.T) {
	Convey("Given a queue with a fake clock", t, func() {
		ctx := context.Background()
		c := clock.NewFake(start)
		q := matchmaking.New(matchmaking.WithClock(c))

		Convey("When fewer than two players wait", func() {
			_, ok := q.AttemptMatch(ctx)
			q.Enqueue(ctx, "c1", "0xA", decimal.NewFromInt(10))
			_, ok2 := q.AttemptMatch(ctx)

			Convey("Then no pair is produced and the queue is untouched", func() {
				So(ok, ShouldBeFalse)
				So(ok2, ShouldBeFalse)
				So(q.Len(), ShouldEqual, 1)
			})
		})

		Convey("When players arrive at distinct times", func() {
			for i, w := range []string{"0xA", "0xB", "0xC", "0xD", "0xE"} {
				q.Enqueue(ctx, fmt.Sprintf("c%d", i), w, decimal.NewFromInt(int64(100-i)))
				c.Advance(time.Second)
			}
			pair, ok := q.AttemptMatch(ctx)

			Convey("Then the two earliest are paired and the rest keep their order", func() {
				So(ok, ShouldBeTrue)
				So(pair.A.WalletAddress, ShouldEqual, "0xA")
				So(pair.B.WalletAddress, ShouldEqual, "0xB")
				So(wallets(q.Snapshot()), ShouldResemble, []string{"0xC", "0xD", "0xE"})
				So(q.Position("0xA"), ShouldEqual, 0)
				So(q.Position("0xE"), ShouldEqual, 3)
			})
		})

		Convey("When players share the same timestamp", func() {
			q.Enqueue(ctx, "c1", "0xZ", decimal.NewFromInt(1))
			q.Enqueue(ctx, "c2", "0xY", decimal.NewFromInt(1000))
			q.Enqueue(ctx, "c3", "0xX", decimal.NewFromInt(5))
			pair, _ := q.AttemptMatch(ctx)

			Convey("Then insertion order breaks the tie, never wager size", func() {
				So(pair.A.WalletAddress, ShouldEqual, "0xZ")
				So(pair.B.WalletAddress, ShouldEqual, "0xY")
				So(wallets(q.Snapshot()), ShouldResemble, []string{"0xX"})
			})
		})
	})
}

func TestQueueIdempotentEnqueue(t *testing.T) {
	Convey("Given a wallet already waiting", t, func() {
		ctx := context.Background()
		c := clock.NewFake(start)
		q := matchmaking.New(matchmaking.WithClock(c))

		q.Enqueue(ctx, "conn-1", "0xA", decimal.NewFromInt(10))
		c.Advance(time.Second)
		q.Enqueue(ctx, "conn-2", "0xB", decimal.NewFromInt(20))
		c.Advance(time.Second)

		Convey("When the same wallet joins again with a new connection and wager", func() {
			pos := q.Enqueue(ctx, "conn-9", "0xA", decimal.NewFromInt(99))

			Convey("Then one entry remains with the original JoinedAt and the latest details", func() {
				So(pos, ShouldEqual, 1)
				So(q.Len(), ShouldEqual, 2)
				head := q.Snapshot()[0]
				So(head.WalletAddress, ShouldEqual, "0xA")
				So(head.JoinedAt, ShouldEqual, start)
				So(head.ConnectionID, ShouldEqual, "conn-9")
				So(head.WageredAmount.Equal(decimal.NewFromInt(99)), ShouldBeTrue)
			})
		})
	})
}

func TestQueueOneEntryPerConnection(t *testing.T) {
	Convey("Given a connection waiting with one wallet", t, func() {
		ctx := context.Background()
		c := clock.NewFake(start)
		q := matchmaking.New(matchmaking.WithClock(c))

		q.Enqueue(ctx, "c1", "0xA", decimal.NewFromInt(10))
		c.Advance(time.Second)

		Convey("When the same connection joins with a second wallet", func() {
			pos := q.Enqueue(ctx, "c1", "0xB", decimal.NewFromInt(20))

			Convey("Then only the second wallet waits and nothing can be paired", func() {
				So(pos, ShouldEqual, 1)
				So(wallets(q.Snapshot()), ShouldResemble, []string{"0xB"})
				_, ok := q.AttemptMatch(ctx)
				So(ok, ShouldBeFalse)
			})
		})
	})
}

func TestQueueRequeueAndRemove(t *testing.T) {
	Convey("Given a pair taken off the queue", t, func() {
		ctx := context.Background()
		c := clock.NewFake(start)
		q := matchmaking.New(matchmaking.WithClock(c))
		for i, w := range []string{"0xA", "0xB", "0xC"} {
			q.Enqueue(ctx, fmt.Sprintf("c%d", i), w, decimal.NewFromInt(1))
			c.Advance(time.Second)
		}
		pair, ok := q.AttemptMatch(ctx)
		So(ok, ShouldBeTrue)

		Convey("When a newcomer joins and the pair is requeued", func() {
			q.Enqueue(ctx, "c9", "0xD", decimal.NewFromInt(1))
			q.Requeue(ctx, pair.A, pair.B)

			Convey("Then the pair is back at the head with the original JoinedAt", func() {
				So(wallets(q.Snapshot()), ShouldResemble, []string{"0xA", "0xB", "0xC", "0xD"})
				So(q.Snapshot()[0].JoinedAt, ShouldEqual, start)
			})
		})

		Convey("When a paired wallet re-joined before the requeue", func() {
			q.Enqueue(ctx, "c-new", "0xA", decimal.NewFromInt(7))
			q.Requeue(ctx, pair.A, pair.B)

			Convey("Then it regains its old place but keeps the new connection", func() {
				snap := q.Snapshot()
				So(wallets(snap), ShouldResemble, []string{"0xA", "0xB", "0xC"})
				So(snap[0].ConnectionID, ShouldEqual, "c-new")
				So(snap[0].JoinedAt, ShouldEqual, start)
			})
		})

		Convey("When a connection disconnects", func() {
			removed := q.RemoveConnection(ctx, "c2")

			Convey("Then its waiting entry is dropped", func() {
				So(wallets(removed), ShouldResemble, []string{"0xC"})
				So(q.Len(), ShouldEqual, 0)
				So(q.RemoveConnection(ctx, "c2"), ShouldBeEmpty)
			})
		})
	})
}

func TestQueueConcurrentPairing(t *testing.T) {
	Convey("Given many connections enqueueing and pairing concurrently", t, func() {
		ctx := context.Background()
		q := matchmaking.New()
		const players = 200

		var (
			mu    sync.Mutex
			seen  = map[string]int{}
			pairs int
			wg    sync.WaitGroup
		)
		for i := 0; i < players; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				q.Enqueue(ctx, fmt.Sprintf("conn-%d", i), fmt.Sprintf("0x%04d", i), decimal.NewFromInt(1))
				if pair, ok := q.AttemptMatch(ctx); ok {
					mu.Lock()
					seen[pair.A.WalletAddress]++
					seen[pair.B.WalletAddress]++
					pairs++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()
		for {
			pair, ok := q.AttemptMatch(ctx)
			if !ok {
				break
			}
			seen[pair.A.WalletAddress]++
			seen[pair.B.WalletAddress]++
			pairs++
		}

		Convey("Then every player is paired exactly once", func() {
			So(pairs, ShouldEqual, players/2)
			So(len(seen), ShouldEqual, players)
			for _, n := range seen {
				So(n, ShouldEqual, 1)
			}
			So(q.Len(), ShouldEqual, 0)
		})
	})
}
