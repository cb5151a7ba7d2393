package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/duelarena/internal/adapters/mq/queue"
	"github.com/okian/duelarena/internal/adapters/mq/worker"
	"github.com/okian/duelarena/internal/domain/match"
	"github.com/okian/duelarena/internal/domain/matchmaking"
	"github.com/okian/duelarena/internal/domain/model"
	"github.com/okian/duelarena/internal/domain/scenario"
	"github.com/okian/duelarena/internal/session"
	. "github.com/smartystreets/goconvey/convey"
)

type wireMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// readUntil reads frames until one of type typ arrives.
func readUntil(conn *websocket.Conn, typ string) (wireMessage, error) {
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg wireMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return wireMessage{}, err
		}
		if msg.Type == typ {
			return msg, nil
		}
	}
}

func startServer(hubOpts ...session.HubOption) (*httptest.Server, *session.Hub, func()) {
	ctx, cancel := context.WithCancel(context.Background())

	hub := session.NewHub(hubOpts...)
	pool := worker.NewPool(2, queue.NewInMemoryQueue(queue.WithCapacity(256)), hub)
	pool.Start(ctx)

	m := match.NewManager(fixedBank{set: twoQuestions}, match.WithNotifier(pool))
	r := session.NewRouter(matchmaking.New(), m, scenario.NewEngine(), pool)

	srv := httptest.NewServer(hub.Handler(r))
	return srv, hub, func() {
		srv.Close()
		_ = hub.Close(context.Background())
		m.Close()
		cancel()
	}
}

func dial(srv *httptest.Server) (*websocket.Conn, error) {
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	return conn, err
}

func TestHubRoundTrip(t *testing.T) {
	Convey("Given a websocket server", t, func() {
		srv, hub, stop := startServer()
		defer stop()

		Convey("When two clients connect and join the queue", func() {
			a, err := dial(srv)
			So(err, ShouldBeNil)
			defer func() { _ = a.Close() }()
			b, err := dial(srv)
			So(err, ShouldBeNil)
			defer func() { _ = b.Close() }()

			for _, c := range []*websocket.Conn{a, b} {
				_, err := readUntil(c, model.TypeConnected)
				So(err, ShouldBeNil)
			}
			So(hub.Len(), ShouldEqual, 2)

			So(a.WriteMessage(websocket.TextMessage, []byte(`{"type":"join_queue","payload":{"walletAddress":"0xa","wageredAmount":"3"}}`)), ShouldBeNil)
			_, err = readUntil(a, model.TypeQueued)
			So(err, ShouldBeNil)
			So(b.WriteMessage(websocket.TextMessage, []byte(`{"type":"join_queue","payload":{"walletAddress":"0xb","wageredAmount":"3"}}`)), ShouldBeNil)

			Convey("Then both receive match_found with the same match", func() {
				fa, err := readUntil(a, model.TypeMatchFound)
				So(err, ShouldBeNil)
				fb, err := readUntil(b, model.TypeMatchFound)
				So(err, ShouldBeNil)

				var pa, pb struct {
					MatchID     string            `json:"matchId"`
					Slot        string            `json:"slot"`
					QuestionSet []json.RawMessage `json:"questionSet"`
				}
				So(json.Unmarshal(fa.Payload, &pa), ShouldBeNil)
				So(json.Unmarshal(fb.Payload, &pb), ShouldBeNil)
				So(pa.MatchID, ShouldNotBeEmpty)
				So(pa.MatchID, ShouldEqual, pb.MatchID)
				So(pa.Slot, ShouldEqual, "A")
				So(pb.Slot, ShouldEqual, "B")
				So(pa.QuestionSet, ShouldHaveLength, 2)
				So(string(fa.Payload), ShouldNotContainSubstring, "vETH")
			})
		})

		Convey("When a client sends a bad frame", func() {
			c, err := dial(srv)
			So(err, ShouldBeNil)
			defer func() { _ = c.Close() }()
			_, err = readUntil(c, model.TypeConnected)
			So(err, ShouldBeNil)

			So(c.WriteMessage(websocket.TextMessage, []byte(`{"payload":{}}`)), ShouldBeNil)

			Convey("Then an error message comes back", func() {
				msg, err := readUntil(c, model.TypeError)
				So(err, ShouldBeNil)
				So(string(msg.Payload), ShouldContainSubstring, "malformed_message")
			})
		})
	})
}

func TestHubLimits(t *testing.T) {
	Convey("Given a hub with a small frame limit", t, func() {
		srv, hub, stop := startServer(session.WithMaxMessageBytes(64))
		defer stop()

		Convey("When a notification targets an unknown connection", func() {
			err := hub.Deliver(context.Background(), model.Notification{ConnectionID: "ghost", Type: model.TypeQueued})

			Convey("Then it is refused", func() {
				So(errors.Is(err, session.ErrUnknownConnection), ShouldBeTrue)
			})
		})

		Convey("When a client sends an oversized frame", func() {
			c, err := dial(srv)
			So(err, ShouldBeNil)
			defer func() { _ = c.Close() }()
			_, err = readUntil(c, model.TypeConnected)
			So(err, ShouldBeNil)

			big := `{"type":"join_queue","payload":{"walletAddress":"` + strings.Repeat("x", 128) + `"}}`
			So(c.WriteMessage(websocket.TextMessage, []byte(big)), ShouldBeNil)

			Convey("Then the connection is closed", func() {
				_, err := readUntil(c, model.TypeQueued)
				So(err, ShouldNotBeNil)
			})
		})
	})
}
