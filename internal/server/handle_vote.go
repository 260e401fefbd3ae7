package server

import (
	"net/http"

	"github.com/ggstudio/mapveto/internal/engine"
)

// VoteRequest is the request body for POST /api/session/vote.
type VoteRequest struct {
	MapID string `json:"mapId"`
}

func handleVote(eng *engine.Engine, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := playerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing session token")
			return
		}

		var req VoteRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		res, err := eng.VoteByToken(r.Context(), token, req.MapID)
		if err != nil {
			writePlayerError(w, err)
			return
		}

		publishVoteEvents(broker, res.Session.ID, res)
		writeJSON(w, http.StatusOK, res)
	}
}
