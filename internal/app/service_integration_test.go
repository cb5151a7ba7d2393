package service_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/duelarena/internal/adapters/http/api"
	service "github.com/okian/duelarena/internal/app"
	"github.com/okian/duelarena/internal/domain/question"
	"github.com/okian/duelarena/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func next(conn *websocket.Conn, typ string) (frame, error) {
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return frame{}, err
		}
		if f.Type == typ {
			return f, nil
		}
	}
}

func send(conn *websocket.Conn, typ string, payload any) error {
	return conn.WriteJSON(map[string]any{"type": typ, "payload": payload})
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a running service behind an HTTP server", t, func() {
		svc := service.New(
			service.WithDispatchWorkers(2),
			service.WithSeed(9),
			service.WithQuestionPool([]question.Question{
				{ID: "only", Topic: "intro", Prompt: "Stable asset ticker?", Kind: question.KindExact, Answer: "vUSDC"},
			}),
		)
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		mux := http.NewServeMux()
		api.NewServer(svc, svc, api.WithWebsocket("/ws", svc.Handler())).Register(context.Background(), mux)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
		a, _, err := websocket.DefaultDialer.Dial(url, nil)
		So(err, ShouldBeNil)
		defer func() { _ = a.Close() }()
		b, _, err := websocket.DefaultDialer.Dial(url, nil)
		So(err, ShouldBeNil)
		defer func() { _ = b.Close() }()

		_, err = next(a, "connected")
		So(err, ShouldBeNil)
		_, err = next(b, "connected")
		So(err, ShouldBeNil)

		Convey("When two players play a one-question duel", func() {
			So(send(a, "join_queue", map[string]any{"walletAddress": "0xa", "wageredAmount": "2"}), ShouldBeNil)
			_, err := next(a, "queued")
			So(err, ShouldBeNil)
			So(send(b, "join_queue", map[string]any{"walletAddress": "0xb", "wageredAmount": "2"}), ShouldBeNil)

			found, err := next(a, "match_found")
			So(err, ShouldBeNil)
			var mf types.MatchFound
			So(json.Unmarshal(found.Payload, &mf), ShouldBeNil)
			_, err = next(b, "match_found")
			So(err, ShouldBeNil)

			So(send(a, "submit_answer", map[string]any{"matchId": mf.MatchID, "answer": "vusdc"}), ShouldBeNil)
			_, err = next(a, "match_update")
			So(err, ShouldBeNil)
			So(send(b, "submit_answer", map[string]any{"matchId": mf.MatchID, "answer": "vETH"}), ShouldBeNil)

			var final types.MatchUpdate
			for final.Status != "completed" {
				f, err := next(b, "match_update")
				So(err, ShouldBeNil)
				So(json.Unmarshal(f.Payload, &final), ShouldBeNil)
			}

			Convey("Then the winner is reported over the socket", func() {
				So(final.ScoreA, ShouldEqual, 1)
				So(final.ScoreB, ShouldEqual, 0)
				So(final.Outcome, ShouldNotBeNil)
				So(final.Outcome.Winner, ShouldEqual, "0xa")
			})

			Convey("Then the archived result is served over HTTP", func() {
				resp, err := http.Get(srv.URL + "/matches/" + mf.MatchID)
				So(err, ShouldBeNil)
				defer func() { _ = resp.Body.Close() }()
				So(resp.StatusCode, ShouldEqual, http.StatusOK)

				var res types.MatchResult
				So(json.NewDecoder(resp.Body).Decode(&res), ShouldBeNil)
				So(res.Status, ShouldEqual, "completed")
				So(res.Outcome.Winner, ShouldEqual, "0xa")
			})
		})

		Convey("When a learner runs a scenario", func() {
			So(send(a, "start_scenario", map[string]any{"topicId": "staking"}), ShouldBeNil)
			f, err := next(a, "scenario_update")
			So(err, ShouldBeNil)

			Convey("Then the staking payload is returned", func() {
				var u struct {
					TopicID string `json:"topicId"`
					Payload struct {
						TotalStaked float64 `json:"totalStaked"`
					} `json:"payload"`
				}
				So(json.Unmarshal(f.Payload, &u), ShouldBeNil)
				So(u.TopicID, ShouldEqual, "staking")
				So(u.Payload.TotalStaked, ShouldBeGreaterThanOrEqualTo, 1_000_000.0)
				So(u.Payload.TotalStaked, ShouldBeLessThanOrEqualTo, 1_500_000.0)
			})
		})
	})
}
