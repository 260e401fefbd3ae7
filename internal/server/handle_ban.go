package server

import (
	"net/http"

	"github.com/ggstudio/mapveto/internal/engine"
)

// BanRequest is the request body for POST /api/session/ban.
type BanRequest struct {
	MapID string `json:"mapId"`
}

func handleBan(eng *engine.Engine, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := playerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing session token")
			return
		}

		var req BanRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		res, err := eng.BanMap(r.Context(), token, req.MapID)
		if err != nil {
			writePlayerError(w, err)
			return
		}

		broker.Publish(res.Session.ID, Event{
			Type:    "map_banned",
			MapID:   res.Banned.ID,
			MapName: res.Banned.Name,
		})
		if res.Completed && res.Winner != nil {
			broker.Publish(res.Session.ID, Event{
				Type:    "session_completed",
				MapID:   res.Winner.ID,
				MapName: res.Winner.Name,
			})
		}
		writeJSON(w, http.StatusOK, res)
	}
}
