package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/ggstudio/mapveto/internal/engine"
	"github.com/ggstudio/mapveto/internal/veto"
)

func addRoutes(r chi.Router, logger *slog.Logger, db *sql.DB, eng *engine.Engine, spaDir string) {
	broker := NewBroker()

	r.Get("/openapi.json", handleOpenAPI())
	r.Get("/docs", handleSwaggerUI())
	r.Get("/healthz", handleHealth(logger, db))

	// Player routes — bearer token issued at assignment time.
	r.Route("/api/session", func(r chi.Router) {
		r.Get("/", handleSessionState(eng))
		r.Post("/ban", handleBan(eng, broker))
		r.Post("/vote", handleVote(eng, broker))
		r.Get("/events", handleEvents(eng, broker))
	})

	// Public results — no auth, completed sessions only.
	r.Get("/api/sessions/{sessionID}/results", handleResults(eng))

	// Admin auth.
	r.Post("/api/admin/login", handleAdminLogin(db))
	r.Post("/api/admin/logout", handleAdminLogout(db))
	r.Get("/api/admin/me", handleAdminMe(db))

	// Admin sessions.
	r.Route("/api/admin/sessions", func(r chi.Router) {
		r.Use(adminAuthMiddleware(db))
		r.Get("/", handleAdminListSessions(eng))
		r.Post("/", handleAdminCreateSession(eng))
		r.Get("/{sessionID}", handleAdminGetSession(eng))
		r.Put("/{sessionID}", handleAdminUpdateSession(eng))
		r.Delete("/{sessionID}", handleAdminDeleteSession(eng))
		r.Delete("/{sessionID}/purge", handleAdminPurgeSession(eng))
		r.Post("/{sessionID}/players", handleAdminAssignPlayer(eng, broker))
		r.Put("/{sessionID}/maps", handleAdminSetMaps(eng))
		r.Post("/{sessionID}/open", handleAdminTransition(func(req *http.Request, id string) (veto.Session, error) {
			return eng.OpenSession(req.Context(), id, adminFrom(req).AdminID)
		}, broker, "session_opened"))
		r.Post("/{sessionID}/start", handleAdminTransition(func(req *http.Request, id string) (veto.Session, error) {
			return eng.StartSession(req.Context(), id, adminFrom(req).AdminID)
		}, broker, "session_started"))
		r.Post("/{sessionID}/pause", handleAdminTransition(func(req *http.Request, id string) (veto.Session, error) {
			return eng.PauseSession(req.Context(), id, adminFrom(req).AdminID)
		}, broker, "session_paused"))
		r.Post("/{sessionID}/resume", handleAdminTransition(func(req *http.Request, id string) (veto.Session, error) {
			return eng.ResumeSession(req.Context(), id, adminFrom(req).AdminID)
		}, broker, "session_resumed"))
		r.Post("/{sessionID}/votes", handleAdminSubmitVote(eng, broker))
		r.Get("/{sessionID}/audit", handleAdminAudit(eng))
	})

	// Admin registry.
	r.Route("/api/admin/teams", func(r chi.Router) {
		r.Use(adminAuthMiddleware(db))
		r.Get("/", handleAdminListTeams(eng))
		r.Post("/", handleAdminCreateTeam(eng))
		r.Put("/{teamID}", handleAdminUpdateTeam(eng))
		r.Delete("/{teamID}", handleAdminDeleteTeam(eng))
	})
	r.Route("/api/admin/maps", func(r chi.Router) {
		r.Use(adminAuthMiddleware(db))
		r.Get("/", handleAdminListMaps(eng))
		r.Post("/", handleAdminCreateMap(eng))
		r.Put("/{mapID}", handleAdminUpdateMap(eng))
		r.Delete("/{mapID}", handleAdminDeleteMap(eng))
	})

	if spaDir != "" {
		if info, err := os.Stat(spaDir); err == nil && info.IsDir() {
			logger.Info("serving SPA", "dir", spaDir)
			r.NotFound(handleSPA(spaDir))
		}
	}
}
