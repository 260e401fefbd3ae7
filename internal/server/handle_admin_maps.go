package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ggstudio/mapveto/internal/engine"
	"github.com/ggstudio/mapveto/internal/veto"
)

// AdminMapRequest is the request body for creating and updating master maps.
type AdminMapRequest struct {
	Name            string `json:"name"`
	ImageURL        string `json:"imageUrl"`
	ImageStorageRef string `json:"imageStorageRef"`
	IsActive        *bool  `json:"isActive"`
}

func handleAdminListMaps(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		maps, err := eng.ListMaps(r.Context())
		if err != nil {
			writeEngineError(w, err)
			return
		}
		if maps == nil {
			maps = []veto.MasterMap{}
		}
		writeJSON(w, http.StatusOK, maps)
	}
}

func handleAdminCreateMap(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AdminMapRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		m, err := eng.CreateMap(r.Context(), engine.MapRequest{
			Name:            req.Name,
			ImageURL:        req.ImageURL,
			ImageStorageRef: req.ImageStorageRef,
			IsActive:        req.IsActive,
		})
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, m)
	}
}

func handleAdminUpdateMap(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AdminMapRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		m, err := eng.UpdateMap(r.Context(), chi.URLParam(r, "mapID"), engine.MapRequest{
			Name:            req.Name,
			ImageURL:        req.ImageURL,
			ImageStorageRef: req.ImageStorageRef,
			IsActive:        req.IsActive,
		})
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

func handleAdminDeleteMap(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := eng.DeleteMap(r.Context(), chi.URLParam(r, "mapID")); err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
