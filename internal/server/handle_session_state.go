package server

import (
	"net/http"

	"github.com/ggstudio/mapveto/internal/engine"
)

// handleSessionState returns the full player view for a bearer token: the
// session, the roster, the map pool and whether it is the caller's turn.
func handleSessionState(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := playerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing session token")
			return
		}

		state, err := eng.StateByToken(r.Context(), token)
		if err != nil {
			writePlayerError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}
