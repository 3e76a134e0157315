package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/gambit/internal/adapters/http/api"
	"github.com/okian/gambit/internal/adapters/lichess"
	app "github.com/okian/gambit/internal/app"
	"github.com/okian/gambit/internal/dispatch"
	. "github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing.
type mockOrchestrator struct {
	forwardBot    string
	forwardUser   string
	forwardParams lichess.ChallengeParams
	forwardStatus int
	forwardBody   string
	forwardErr    error

	reinvoked   []string
	reinvokeErr error

	ended []string
}

func (m *mockOrchestrator) ForwardChallenge(ctx context.Context, botID, user string, params lichess.ChallengeParams) (int, string, error) {
	m.forwardBot = botID
	m.forwardUser = user
	m.forwardParams = params
	if m.forwardErr != nil {
		return 0, "", m.forwardErr
	}
	return m.forwardStatus, m.forwardBody, nil
}

func (m *mockOrchestrator) Reinvoke(ctx context.Context, gameID string) error {
	m.reinvoked = append(m.reinvoked, gameID)
	return m.reinvokeErr
}

func (m *mockOrchestrator) EndGame(ctx context.Context, gameID string) {
	m.ended = append(m.ended, gameID)
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newTestMux(orch *mockOrchestrator, stats *mockStatsProvider) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(orch, stats).Register(mux)
	return mux
}

func TestHandleStats(t *testing.T) {
	Convey("Given a registered admin API", t, func() {
		orch := &mockOrchestrator{}
		stats := &mockStatsProvider{stats: map[string]interface{}{
			"started": true,
			"bots":    2,
		}}
		mux := newTestMux(orch, stats)

		Convey("When GET /stats is requested", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

			Convey("Then the service statistics are returned as JSON", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var got map[string]interface{}
				So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
				So(got["started"], ShouldEqual, true)
				So(got["bots"], ShouldEqual, 2.0)
			})
		})

		Convey("When /stats is requested with POST", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stats", nil))

			Convey("Then the route is not found", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestHandleHealth(t *testing.T) {
	Convey("Given a registered admin API", t, func() {
		mux := newTestMux(&mockOrchestrator{}, &mockStatsProvider{})

		Convey("When GET /healthz is requested", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			Convey("Then a metrics exposition is served", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
			})
		})
	})
}

func TestHandlePostChallenge(t *testing.T) {
	Convey("Given a registered admin API", t, func() {
		orch := &mockOrchestrator{forwardStatus: 200, forwardBody: `{"ok":true}`}
		mux := newTestMux(orch, &mockStatsProvider{})

		post := func(path, body string) *httptest.ResponseRecorder {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			mux.ServeHTTP(rec, req)
			return rec
		}

		Convey("When a valid challenge is posted", func() {
			rec := post("/v1/challenge/somegrandmaster", `{
				"bot": "Gambit",
				"rated": true,
				"clock_limit_secs": 300,
				"clock_increment_secs": 2,
				"color": "white"
			}`)

			Convey("Then the challenge is forwarded and the remote status relayed", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(orch.forwardBot, ShouldEqual, "gambit")
				So(orch.forwardUser, ShouldEqual, "somegrandmaster")
				So(orch.forwardParams.Rated, ShouldBeTrue)
				So(orch.forwardParams.ClockLimitSecs, ShouldEqual, 300)
				So(orch.forwardParams.ClockIncSecs, ShouldEqual, 2)
				So(orch.forwardParams.Color, ShouldEqual, "white")

				var got map[string]interface{}
				So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
				So(got["remote_status"], ShouldEqual, 200.0)
			})
		})

		Convey("When the user segment is missing", func() {
			rec := post("/v1/challenge/", `{"bot":"gambit","clock_limit_secs":300}`)

			Convey("Then the request is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the body is not valid JSON", func() {
			rec := post("/v1/challenge/opponent", `{`)

			Convey("Then the request is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the clock limit is missing", func() {
			rec := post("/v1/challenge/opponent", `{"bot":"gambit"}`)

			Convey("Then the request is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the bot is not configured", func() {
			orch.forwardErr = fmt.Errorf("%w: nosuchbot", app.ErrUnknownBot)
			rec := post("/v1/challenge/opponent", `{"bot":"nosuchbot","clock_limit_secs":60}`)

			Convey("Then a not found error is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the remote call fails", func() {
			orch.forwardErr = fmt.Errorf("connection refused")
			rec := post("/v1/challenge/opponent", `{"bot":"gambit","clock_limit_secs":60}`)

			Convey("Then a bad gateway error is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusBadGateway)
			})
		})
	})
}

func TestHandleGame(t *testing.T) {
	Convey("Given a registered admin API", t, func() {
		orch := &mockOrchestrator{}
		mux := newTestMux(orch, &mockStatsProvider{})

		post := func(path string) *httptest.ResponseRecorder {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
			return rec
		}

		Convey("When a reinvoke callback arrives for a known game", func() {
			rec := post("/v1/games/game123/reinvoke")

			Convey("Then another engine pass is scheduled", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)
				So(orch.reinvoked, ShouldResemble, []string{"game123"})
			})
		})

		Convey("When the game is unknown", func() {
			orch.reinvokeErr = fmt.Errorf("%w: game123", dispatch.ErrUnknownGame)
			rec := post("/v1/games/game123/reinvoke")

			Convey("Then a not found error is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the recursion bound was reached", func() {
			orch.reinvokeErr = fmt.Errorf("%w: game123", dispatch.ErrDepthExceeded)
			rec := post("/v1/games/game123/reinvoke")

			Convey("Then the game is reported aborted", func() {
				So(rec.Code, ShouldEqual, http.StatusConflict)
				var got map[string]interface{}
				So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
				So(got["status"], ShouldEqual, "aborted")
			})
		})

		Convey("When an end callback arrives", func() {
			rec := post("/v1/games/game123/end")

			Convey("Then the session is dropped", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(orch.ended, ShouldResemble, []string{"game123"})
			})
		})

		Convey("When the action is unknown", func() {
			rec := post("/v1/games/game123/promote")

			Convey("Then the route is not found", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the game id is missing", func() {
			rec := post("/v1/games/")

			Convey("Then the request is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}
