// Package api declares HTTP contracts and route registration helpers for the
// admin server.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/gambit/internal/adapters/lichess"
)

// Orchestrator bundles the service operations the admin API drives. Using an
// interface keeps the handler layer loosely coupled to the app package.
type Orchestrator interface {
	// ForwardChallenge sends an outbound challenge on behalf of botID and
	// returns the remote status code and body.
	ForwardChallenge(ctx context.Context, botID, user string, params lichess.ChallengeParams) (int, string, error)

	// Reinvoke schedules another engine pass for a running game.
	Reinvoke(ctx context.Context, gameID string) error

	// EndGame drops any session held for the game.
	EndGame(ctx context.Context, gameID string)
}

// StatsProvider defines the interface for reading service statistics.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// Server wires HTTP routes for the admin API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	challengeHandler *ChallengeHandler
	gamesHandler     *GamesHandler
}

// NewServer creates a new admin API server with all handlers.
func NewServer(orch Orchestrator, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		challengeHandler: NewChallengeHandler(orch),
		gamesHandler:     NewGamesHandler(orch),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/v1/challenge/", MetricsMiddleware(s.challengeHandler.HandlePostChallenge, "challenge"))
	mux.HandleFunc("/v1/games/", MetricsMiddleware(s.gamesHandler.HandleGame, "games"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
