package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ggstudio/mapveto/internal/veto"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps the engine's typed errors to HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	var (
		notFound     *veto.NotFoundError
		validation   *veto.ValidationError
		invalidState *veto.InvalidStateError
		capacity     *veto.CapacityError
		duplicate    *veto.DuplicateError
		collision    *veto.CollisionError
	)
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &invalidState), errors.As(err, &capacity), errors.As(err, &duplicate):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &collision):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// writePlayerError is writeEngineError for the token-authenticated surface:
// bad tokens become 401 rather than leaking whether the token ever existed.
func writePlayerError(w http.ResponseWriter, err error) {
	var notFound *veto.NotFoundError
	if errors.As(err, &notFound) && notFound.Kind == "token" {
		writeError(w, http.StatusUnauthorized, "invalid or expired session token")
		return
	}
	var validation *veto.ValidationError
	if errors.As(err, &validation) && validation.Field == "token" {
		writeError(w, http.StatusUnauthorized, "invalid or expired session token")
		return
	}
	writeEngineError(w, err)
}
