package service_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/gambit/internal/adapters/ledger"
	service "github.com/okian/gambit/internal/app"
	"github.com/okian/gambit/internal/config"
	"github.com/okian/gambit/pkg/logger"
)

// fakeLichess serves the event stream plus the decision endpoints.
type fakeLichess struct {
	mu    sync.Mutex
	lines []string
	calls []string
}

func (f *fakeLichess) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/stream/event" {
			flusher, ok := w.(http.Flusher)
			if !ok {
				t.Error("response writer is not a flusher")
				return
			}
			f.mu.Lock()
			lines := append([]string{}, f.lines...)
			f.mu.Unlock()
			for _, line := range lines {
				fmt.Fprintf(w, "%s\n", line)
				flusher.Flush()
			}
			// Keep the stream open until the client goes away.
			<-r.Context().Done()
			return
		}
		f.mu.Lock()
		f.calls = append(f.calls, r.Method+" "+r.URL.Path)
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("{}"))
	})
}

func (f *fakeLichess) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.calls...)
}

func waitForCall(t *testing.T, f *fakeLichess, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, c := range f.recorded() {
			if c == want {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("never saw call %q, got %v", want, f.recorded())
}

func testConfig(t *testing.T, moveServiceURL string) *config.Config {
	t.Helper()
	cfg := config.New()
	cfg.LedgerPath = filepath.Join(t.TempDir(), "ledger.db")
	cfg.Bots = []config.BotConfig{{
		BotID:               "gambit",
		AuthToken:           "tok",
		StreamRetryWaitSecs: 1,
		MoveServiceURL:      moveServiceURL,
		UserMatchers:        []config.UserMatcher{{Include: true, Pattern: ".*"}},
		VariantKeys:         []string{"standard"},
		MinInitialTimeSecs:  60,
		MaxInitialTimeSecs:  600,
		MaxIncrementSecs:    5,

		MaxDailyChallenges:     10,
		MaxDailyUserChallenges: 5,
	}}
	return cfg
}

func openStore(t *testing.T, cfg *config.Config) *ledger.SQLiteStore {
	t.Helper()
	store, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	return store
}

func TestServiceChallengeFlow(t *testing.T) {
	Convey("Given a running orchestrator and an inbound challenge", t, func() {
		if err := logger.Init(); err != nil {
			t.Fatalf("init logger: %v", err)
		}

		engineSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		}))
		defer engineSrv.Close()

		fake := &fakeLichess{lines: []string{
			`{"type":"challenge","challenge":{"id":"ch1","status":"created","challenger":{"id":"alice"},"variant":{"key":"standard"},"timeControl":{"type":"clock","limit":300,"increment":3}}}`,
		}}
		srv := httptest.NewServer(fake.handler(t))
		defer srv.Close()

		cfg := testConfig(t, engineSrv.URL)
		svc := service.New(cfg,
			service.WithStore(openStore(t, cfg)),
			service.WithLichessBaseURL(srv.URL),
		)

		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		Convey("Then the challenge is accepted via the remote API", func() {
			waitForCall(t, fake, "POST /api/challenge/ch1/accept")
		})
	})
}

func TestServiceGameStartFlow(t *testing.T) {
	Convey("Given a running orchestrator and a game start", t, func() {
		if err := logger.Init(); err != nil {
			t.Fatalf("init logger: %v", err)
		}

		var invoked sync.WaitGroup
		invoked.Add(1)
		var once sync.Once
		engineSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			once.Do(invoked.Done)
			w.WriteHeader(http.StatusAccepted)
		}))
		defer engineSrv.Close()

		fake := &fakeLichess{lines: []string{
			`{"type":"gameStart","game":{"id":"game42"}}`,
		}}
		srv := httptest.NewServer(fake.handler(t))
		defer srv.Close()

		cfg := testConfig(t, engineSrv.URL)
		svc := service.New(cfg,
			service.WithStore(openStore(t, cfg)),
			service.WithLichessBaseURL(srv.URL),
		)

		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		done := make(chan struct{})
		go func() {
			invoked.Wait()
			close(done)
		}()

		Convey("Then the move service is invoked for the game", func() {
			select {
			case <-done:
			case <-time.After(5 * time.Second):
				t.Fatal("move service was never invoked")
			}

			Convey("And the session survives a successful invocation", func() {
				stats := svc.GetStats()
				perBot := stats["perBot"].(map[string]interface{})
				bot := perBot["gambit"].(map[string]interface{})
				So(bot["activeSessions"], ShouldEqual, 1)
			})
		})
	})
}

func TestServiceReinvokeUnknownGame(t *testing.T) {
	Convey("Given a running orchestrator", t, func() {
		if err := logger.Init(); err != nil {
			t.Fatalf("init logger: %v", err)
		}

		fake := &fakeLichess{}
		srv := httptest.NewServer(fake.handler(t))
		defer srv.Close()

		cfg := testConfig(t, "http://127.0.0.1:1")
		svc := service.New(cfg,
			service.WithStore(openStore(t, cfg)),
			service.WithLichessBaseURL(srv.URL),
		)
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		Convey("When reinvoking a game nobody is playing", func() {
			err := svc.Reinvoke(context.Background(), "ghost")

			Convey("Then an unknown-game error is returned", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestServiceStartStop(t *testing.T) {
	Convey("Given an orchestrator with a bad matcher pattern", t, func() {
		if err := logger.Init(); err != nil {
			t.Fatalf("init logger: %v", err)
		}

		cfg := testConfig(t, "http://127.0.0.1:1")
		cfg.Bots[0].UserMatchers = []config.UserMatcher{{Include: true, Pattern: "["}}
		store := openStore(t, cfg)
		defer func() { _ = store.Close() }()
		svc := service.New(cfg, service.WithStore(store))

		Convey("Then startup fails fatally", func() {
			err := svc.Start(context.Background())
			So(err, ShouldNotBeNil)
		})
	})
}
