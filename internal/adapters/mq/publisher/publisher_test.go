package publisher_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/okian/duelarena/internal/adapters/mq/publisher"
	"github.com/okian/duelarena/internal/domain/types"
	"github.com/okian/duelarena/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type fakeConn struct {
	subjects []string
	payloads [][]byte
	err      error
	drained  bool
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.subjects = append(c.subjects, subject)
	c.payloads = append(c.payloads, data)
	return nil
}

func (c *fakeConn) Drain() error {
	c.drained = true
	return nil
}

func TestNATSPublisher(t *testing.T) {
	ctx := context.Background()
	result := types.MatchResult{
		MatchID: "m-1",
		PlayerA: "0xA",
		PlayerB: "0xB",
		Status:  "completed",
		Outcome: types.Outcome{Winner: "0xA", Reason: "score"},
	}

	Convey("Given a publisher over a connection", t, func() {
		conn := &fakeConn{}
		p := publisher.New(conn, publisher.WithSubject("results"))

		Convey("When a result is published", func() {
			err := p.Publish(ctx, result)

			Convey("Then it is sent as JSON on the subject", func() {
				So(err, ShouldBeNil)
				So(conn.subjects, ShouldResemble, []string{"results"})
				var got types.MatchResult
				So(json.Unmarshal(conn.payloads[0], &got), ShouldBeNil)
				So(got.MatchID, ShouldEqual, "m-1")
				So(got.Outcome.Winner, ShouldEqual, "0xA")
			})
		})

		Convey("When the broker rejects the message", func() {
			conn.err = errors.New("connection closed")
			err := p.Publish(ctx, result)

			Convey("Then the error is returned", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, conn.err), ShouldBeTrue)
			})
		})

		Convey("When it is closed", func() {
			So(p.Close(), ShouldBeNil)

			Convey("Then the connection is drained", func() {
				So(conn.drained, ShouldBeTrue)
			})
		})
	})

	Convey("Given no subject option", t, func() {
		conn := &fakeConn{}
		p := publisher.New(conn)

		Convey("Then the default subject is used", func() {
			So(p.Publish(ctx, result), ShouldBeNil)
			So(conn.subjects[0], ShouldEqual, publisher.DefaultSubject)
		})
	})

	Convey("Given the no-op publisher", t, func() {
		var p publisher.Publisher = publisher.Noop{}

		Convey("Then publishing succeeds silently", func() {
			So(p.Publish(ctx, result), ShouldBeNil)
			So(p.Close(), ShouldBeNil)
		})
	})
}
