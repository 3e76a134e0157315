// Command simulator runs a fake remote chess service for local testing. It
// serves an NDJSON event stream that emits synthetic challenges, turns
// accepted challenges into game starts, and doubles as a stub move service
// that fires reinvoke callbacks at the orchestrator.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	defaultAddr              = ":9081"
	defaultChallengeInterval = 5 * time.Second
	defaultKeepAliveInterval = 7 * time.Second
	defaultMoveDelay         = 500 * time.Millisecond
)

func main() {
	var (
		addr              = flag.String("addr", defaultAddr, "Listen address for the simulated remote service")
		challengeInterval = flag.Duration("challenge-interval", defaultChallengeInterval, "Delay between synthetic challenges")
		keepAliveInterval = flag.Duration("keepalive-interval", defaultKeepAliveInterval, "Delay between stream keep-alive lines")
		moveDelay         = flag.Duration("move-delay", defaultMoveDelay, "Simulated engine think time before a callback")
		callbackURL       = flag.String("callback", "", "Orchestrator base URL for reinvoke callbacks (empty disables callbacks)")
		challenger        = flag.String("challenger", "localplayer", "User id issuing the synthetic challenges")
	)
	flag.Parse()

	sim := &simulator{
		challengeInterval: *challengeInterval,
		keepAliveInterval: *keepAliveInterval,
		moveDelay:         *moveDelay,
		callbackURL:       strings.TrimSuffix(*callbackURL, "/"),
		challenger:        *challenger,
		streams:           make(map[chan string]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/stream/event", sim.handleStream)
	mux.HandleFunc("/api/challenge/", sim.handleChallengeDecision)
	mux.HandleFunc("/api/bot/game/", sim.handleAbort)
	mux.HandleFunc("/api/users/status", sim.handleUserStatus)
	mux.HandleFunc("/v1/games", sim.handleMove)

	fmt.Fprintf(os.Stdout, "simulator listening on %s\n", *addr)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		os.Stderr.WriteString("simulator failed: " + err.Error() + "\n")
	}
}

type simulator struct {
	challengeInterval time.Duration
	keepAliveInterval time.Duration
	moveDelay         time.Duration
	callbackURL       string
	challenger        string

	mu      sync.Mutex
	streams map[chan string]struct{}
	seq     int
}

// broadcast pushes a line to every connected stream client.
func (s *simulator) broadcast(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.streams {
		select {
		case ch <- line:
		default:
		}
	}
}

func (s *simulator) nextID(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return fmt.Sprintf("%s-%04d", prefix, s.seq)
}

func (s *simulator) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	lines := make(chan string, 16)
	s.mu.Lock()
	s.streams[lines] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.streams, lines)
		s.mu.Unlock()
	}()

	challengeTicker := time.NewTicker(s.challengeInterval)
	defer challengeTicker.Stop()
	keepAliveTicker := time.NewTicker(s.keepAliveInterval)
	defer keepAliveTicker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case line := <-lines:
			fmt.Fprintln(w, line)
			flusher.Flush()
		case <-keepAliveTicker.C:
			fmt.Fprintln(w)
			flusher.Flush()
		case <-challengeTicker.C:
			line := s.challengeLine()
			fmt.Fprintln(w, line)
			flusher.Flush()
		}
	}
}

func (s *simulator) challengeLine() string {
	id := s.nextID("ch")
	payload := map[string]any{
		"type": "challenge",
		"challenge": map[string]any{
			"id":     id,
			"status": "created",
			"challenger": map[string]any{
				"id":   s.challenger,
				"name": s.challenger,
			},
			"variant": map[string]any{"key": "standard"},
			"timeControl": map[string]any{
				"type":      "clock",
				"limit":     60 + rand.Intn(540),
				"increment": rand.Intn(5),
			},
		},
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

// handleChallengeDecision accepts POST /api/challenge/{id}/{accept|decline}.
// An accepted challenge is followed by a gameStart line on the stream.
func (s *simulator) handleChallengeDecision(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/challenge/")
	id, decision, ok := strings.Cut(rest, "/")
	if !ok {
		http.Error(w, "missing decision", http.StatusBadRequest)
		return
	}
	fmt.Fprintf(os.Stdout, "challenge %s: %s\n", id, decision)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, `{"ok":true}`)

	if decision == "accept" {
		gameID := s.nextID("game")
		payload := map[string]any{
			"type": "gameStart",
			"game": map[string]any{"id": gameID},
		}
		b, _ := json.Marshal(payload)
		s.broadcast(string(b))
	}
}

func (s *simulator) handleAbort(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	fmt.Fprintf(os.Stdout, "abort %s\n", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, `{"ok":true}`)
}

func (s *simulator) handleUserStatus(w http.ResponseWriter, r *http.Request) {
	ids := r.URL.Query().Get("ids")
	var statuses []map[string]any
	for _, id := range strings.Split(ids, ",") {
		if id == "" {
			continue
		}
		statuses = append(statuses, map[string]any{
			"id":     strings.ToLower(id),
			"name":   id,
			"online": true,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statuses)
}

// handleMove plays the stub move service. It acknowledges the invocation and,
// when a callback URL is configured, schedules a reinvoke after the simulated
// think time.
func (s *simulator) handleMove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req struct {
		GameID         string `json:"gameId"`
		RecursionDepth int    `json:"recursionDepth"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}
	fmt.Fprintf(os.Stdout, "move requested for %s depth %d\n", req.GameID, req.RecursionDepth)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, `{"ok":true}`)

	if s.callbackURL != "" {
		go func() {
			time.Sleep(s.moveDelay)
			url := fmt.Sprintf("%s/v1/games/%s/reinvoke", s.callbackURL, req.GameID)
			resp, err := http.Post(url, "application/json", nil)
			if err != nil {
				fmt.Fprintf(os.Stderr, "callback failed for %s: %v\n", req.GameID, err)
				return
			}
			resp.Body.Close()
		}()
	}
}
