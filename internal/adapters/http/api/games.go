// Package api declares HTTP contracts and route registration helpers for the
// admin server.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/gambit/internal/dispatch"
)

type gameResponse struct {
	Status string `json:"status"`
	GameID string `json:"game_id"`
}

// GamesHandler handles move-service callbacks for running games.
type GamesHandler struct {
	orch Orchestrator
}

// NewGamesHandler creates a new games handler.
func NewGamesHandler(orch Orchestrator) *GamesHandler {
	return &GamesHandler{orch: orch}
}

// HandleGame handles POST /v1/games/{gameId}/reinvoke and
// POST /v1/games/{gameId}/end requests.
func (h *GamesHandler) HandleGame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/games/")
	gameID, action, ok := strings.Cut(rest, "/")
	if !ok || gameID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: missing game id or action", ErrBadRequest))
		return
	}

	switch action {
	case "reinvoke":
		err := h.orch.Reinvoke(r.Context(), gameID)
		switch {
		case errors.Is(err, dispatch.ErrUnknownGame):
			writeError(w, http.StatusNotFound, "unknown_game", err)
		case errors.Is(err, dispatch.ErrDepthExceeded):
			writeJSON(w, http.StatusConflict, gameResponse{Status: "aborted", GameID: gameID})
		case err != nil:
			writeError(w, http.StatusInternalServerError, "reinvoke_failed", err)
		default:
			writeJSON(w, http.StatusAccepted, gameResponse{Status: "scheduled", GameID: gameID})
		}
	case "end":
		h.orch.EndGame(r.Context(), gameID)
		writeJSON(w, http.StatusOK, gameResponse{Status: "ended", GameID: gameID})
	default:
		http.NotFound(w, r)
	}
}
