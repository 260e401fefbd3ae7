package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ggstudio/mapveto/internal/engine"
	"github.com/ggstudio/mapveto/internal/veto"
)

// ResultsResponse is the public results view of a completed session.
type ResultsResponse struct {
	SessionID string       `json:"sessionId"`
	MatchName string       `json:"matchName"`
	Format    veto.Format  `json:"format"`
	Results   veto.Results `json:"results"`
}

// handleResults serves the read-only results projection. Only COMPLETE
// sessions have results; everything else is a conflict.
func handleResults(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, results, err := eng.Results(r.Context(), chi.URLParam(r, "sessionID"))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		if s.Status != veto.StatusComplete {
			writeError(w, http.StatusConflict, "session is not complete")
			return
		}
		writeJSON(w, http.StatusOK, ResultsResponse{
			SessionID: s.ID,
			MatchName: s.MatchName,
			Format:    s.Format,
			Results:   results,
		})
	}
}
