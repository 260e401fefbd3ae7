package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ggstudio/mapveto/internal/engine"
	"github.com/ggstudio/mapveto/internal/veto"
)

// AdminSessionRequest is the request body for POST /api/admin/sessions.
type AdminSessionRequest struct {
	MatchName        string `json:"matchName"`
	Format           string `json:"format"`
	PlayerCount      int    `json:"playerCount"`
	TurnTimerSeconds int    `json:"turnTimerSeconds"`
	MapPoolSize      int    `json:"mapPoolSize"`
}

// AdminSessionUpdateRequest is the request body for PUT /api/admin/sessions/{sessionID}.
type AdminSessionUpdateRequest struct {
	MatchName        *string `json:"matchName"`
	TurnTimerSeconds *int    `json:"turnTimerSeconds"`
}

// AdminAssignPlayerRequest is the request body for POST /api/admin/sessions/{sessionID}/players.
type AdminAssignPlayerRequest struct {
	Role     string `json:"role"`
	TeamName string `json:"teamName"`
}

// AdminSetMapsRequest is the request body for PUT /api/admin/sessions/{sessionID}/maps.
type AdminSetMapsRequest struct {
	MapIDs []string `json:"mapIds"`
}

// AdminVoteRequest is the request body for POST /api/admin/sessions/{sessionID}/votes.
type AdminVoteRequest struct {
	PlayerID string `json:"playerId"`
	MapID    string `json:"mapId"`
}

func handleAdminListSessions(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := eng.ListSessions(r.Context())
		if err != nil {
			writeEngineError(w, err)
			return
		}
		if sessions == nil {
			sessions = []engine.SessionSummary{}
		}
		writeJSON(w, http.StatusOK, sessions)
	}
}

func handleAdminCreateSession(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AdminSessionRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		s, err := eng.CreateSession(r.Context(), engine.CreateSessionRequest{
			MatchName:        req.MatchName,
			Format:           veto.Format(req.Format),
			PlayerCount:      req.PlayerCount,
			TurnTimerSeconds: req.TurnTimerSeconds,
			MapPoolSize:      req.MapPoolSize,
			CreatedBy:        adminFrom(r).AdminID,
		})
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, s)
	}
}

func handleAdminGetSession(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		detail, err := eng.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

func handleAdminUpdateSession(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AdminSessionUpdateRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		s, err := eng.UpdateSession(r.Context(), chi.URLParam(r, "sessionID"), engine.UpdateSessionRequest{
			MatchName:        req.MatchName,
			TurnTimerSeconds: req.TurnTimerSeconds,
		}, adminFrom(r).AdminID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func handleAdminDeleteSession(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := eng.DeleteSession(r.Context(), chi.URLParam(r, "sessionID"), adminFrom(r).AdminID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, counts)
	}
}

// handleAdminPurgeSession removes a session in any state, audit trail
// included. Maintenance endpoint, not part of the normal lifecycle.
func handleAdminPurgeSession(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := eng.DeleteSessionWithCascade(r.Context(), chi.URLParam(r, "sessionID"), false)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, counts)
	}
}

func handleAdminAssignPlayer(eng *engine.Engine, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AdminAssignPlayerRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		sessionID := chi.URLParam(r, "sessionID")
		player, err := eng.AssignPlayer(r.Context(), sessionID, req.Role, req.TeamName, adminFrom(r).AdminID)
		if err != nil {
			writeEngineError(w, err)
			return
		}

		broker.Publish(sessionID, Event{Type: "player_assigned", Role: player.Role})
		writeJSON(w, http.StatusCreated, player)
	}
}

func handleAdminSetMaps(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AdminSetMapsRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		maps, err := eng.SetSessionMaps(r.Context(), chi.URLParam(r, "sessionID"), req.MapIDs, adminFrom(r).AdminID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, maps)
	}
}

// handleAdminTransition serves the open/start/pause/resume endpoints, which
// differ only in the engine operation they invoke.
func handleAdminTransition(op func(*http.Request, string) (veto.Session, error), broker *Broker, event string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")
		s, err := op(r, sessionID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		broker.Publish(sessionID, Event{Type: event, Status: string(s.Status)})
		writeJSON(w, http.StatusOK, s)
	}
}

func handleAdminSubmitVote(eng *engine.Engine, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AdminVoteRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		sessionID := chi.URLParam(r, "sessionID")
		res, err := eng.SubmitVote(r.Context(), sessionID, req.PlayerID, req.MapID, true)
		if err != nil {
			writeEngineError(w, err)
			return
		}

		publishVoteEvents(broker, sessionID, res)
		writeJSON(w, http.StatusOK, res)
	}
}

func handleAdminAudit(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := eng.AuditLog(r.Context(), chi.URLParam(r, "sessionID"))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		if entries == nil {
			entries = []veto.AuditEntry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

// publishVoteEvents fans out the events a vote can produce.
func publishVoteEvents(broker *Broker, sessionID string, res engine.VoteResult) {
	broker.Publish(sessionID, Event{Type: "vote_submitted", Round: res.Vote.Round})
	if res.RoundResolved && res.Banned != nil {
		broker.Publish(sessionID, Event{
			Type:    "round_resolved",
			MapID:   res.Banned.ID,
			MapName: res.Banned.Name,
			Round:   res.Vote.Round,
		})
	}
	if res.Completed && res.Winner != nil {
		broker.Publish(sessionID, Event{
			Type:    "session_completed",
			MapID:   res.Winner.ID,
			MapName: res.Winner.Name,
		})
	}
}
