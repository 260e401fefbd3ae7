package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ggstudio/mapveto/internal/engine"
	"github.com/ggstudio/mapveto/internal/veto"
)

// AdminTeamRequest is the request body for POST /api/admin/teams.
type AdminTeamRequest struct {
	Name string `json:"name"`
}

func handleAdminListTeams(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teams, err := eng.ListTeams(r.Context())
		if err != nil {
			writeEngineError(w, err)
			return
		}
		if teams == nil {
			teams = []veto.Team{}
		}
		writeJSON(w, http.StatusOK, teams)
	}
}

func handleAdminCreateTeam(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AdminTeamRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		team, err := eng.CreateTeam(r.Context(), req.Name)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, team)
	}
}

func handleAdminUpdateTeam(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AdminTeamRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		team, err := eng.UpdateTeam(r.Context(), chi.URLParam(r, "teamID"), req.Name)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, team)
	}
}

func handleAdminDeleteTeam(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := eng.DeleteTeam(r.Context(), chi.URLParam(r, "teamID")); err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
