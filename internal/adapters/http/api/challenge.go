// Package api declares HTTP contracts and route registration helpers for the
// admin server.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/gambit/internal/adapters/lichess"
	app "github.com/okian/gambit/internal/app"
)

// challengeRequest is the JSON body of POST /v1/challenge/{user}.
type challengeRequest struct {
	Bot                string `json:"bot"`
	Rated              bool   `json:"rated"`
	ClockLimitSecs     int    `json:"clock_limit_secs"`
	ClockIncrementSecs int    `json:"clock_increment_secs"`
	Color              string `json:"color"`
}

func (c challengeRequest) validate() error {
	switch {
	case strings.TrimSpace(c.Bot) == "":
		return errors.New("missing bot")
	case c.ClockLimitSecs <= 0:
		return errors.New("clock_limit_secs must be positive")
	case c.ClockIncrementSecs < 0:
		return errors.New("clock_increment_secs must not be negative")
	}
	switch c.Color {
	case "", "white", "black", "random":
	default:
		return errors.New("color must be white, black or random")
	}
	return nil
}

type challengeResponse struct {
	RemoteStatus int    `json:"remote_status"`
	RemoteBody   string `json:"remote_body,omitempty"`
}

// ChallengeHandler forwards outbound challenges to the remote service.
type ChallengeHandler struct {
	orch Orchestrator
}

// NewChallengeHandler creates a new challenge handler.
func NewChallengeHandler(orch Orchestrator) *ChallengeHandler {
	return &ChallengeHandler{orch: orch}
}

// HandlePostChallenge handles POST /v1/challenge/{user} requests.
func (h *ChallengeHandler) HandlePostChallenge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	user := strings.TrimPrefix(r.URL.Path, "/v1/challenge/")
	if user == "" || strings.Contains(user, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: missing user", ErrBadRequest))
		return
	}

	var req challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}

	params := lichess.ChallengeParams{
		Rated:          req.Rated,
		ClockLimitSecs: req.ClockLimitSecs,
		ClockIncSecs:   req.ClockIncrementSecs,
		Color:          req.Color,
	}
	status, body, err := h.orch.ForwardChallenge(r.Context(), strings.ToLower(req.Bot), user, params)
	switch {
	case errors.Is(err, app.ErrUnknownBot):
		writeError(w, http.StatusNotFound, "unknown_bot", err)
		return
	case err != nil:
		writeError(w, http.StatusBadGateway, "forward_failed", fmt.Errorf("%w: %w", ErrForwardFailed, err))
		return
	}
	writeJSON(w, http.StatusOK, challengeResponse{RemoteStatus: status, RemoteBody: body})
}
