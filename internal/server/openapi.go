package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"
	"github.com/swaggest/swgui/v5emb"

	"github.com/ggstudio/mapveto/internal/engine"
	"github.com/ggstudio/mapveto/internal/veto"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "MapVeto API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the map veto tool.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /api/session
	getState, _ := r.NewOperationContext(http.MethodGet, "/api/session")
	getState.SetSummary("Get session state")
	getState.SetDescription("Returns the session, roster, map pool and turn flag for the caller's seat. Requires Bearer token.")
	getState.AddRespStructure(engine.PlayerState{}, openapi.WithHTTPStatus(http.StatusOK))
	getState.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getState)

	// POST /api/session/ban
	postBan, _ := r.NewOperationContext(http.MethodPost, "/api/session/ban")
	postBan.SetSummary("Ban a map")
	postBan.SetDescription("Executes one alternating-veto step for the caller's seat. Requires Bearer token.")
	postBan.AddReqStructure(BanRequest{})
	postBan.AddRespStructure(engine.BanResult{}, openapi.WithHTTPStatus(http.StatusOK))
	postBan.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postBan.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	postBan.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postBan)

	// POST /api/session/vote
	postVote, _ := r.NewOperationContext(http.MethodPost, "/api/session/vote")
	postVote.SetSummary("Submit a vote")
	postVote.SetDescription("Records a round vote for the caller's seat; the round resolves when every seat has voted. Requires Bearer token.")
	postVote.AddReqStructure(VoteRequest{})
	postVote.AddRespStructure(engine.VoteResult{}, openapi.WithHTTPStatus(http.StatusOK))
	postVote.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postVote.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	postVote.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postVote)

	// GET /api/session/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/session/events")
	getEvents.SetSummary("SSE event stream")
	getEvents.SetDescription("Server-Sent Events stream for real-time session updates. Pass token as query parameter.")
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// GET /api/sessions/{sessionID}/results
	getResults, _ := r.NewOperationContext(http.MethodGet, "/api/sessions/{sessionID}/results")
	getResults.SetSummary("Session results")
	getResults.SetDescription("Public results projection of a completed session: teams, winner map and ban history.")
	getResults.AddRespStructure(ResultsResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getResults.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	getResults.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(getResults)

	// POST /api/admin/login
	postLogin, _ := r.NewOperationContext(http.MethodPost, "/api/admin/login")
	postLogin.SetSummary("Admin login")
	postLogin.SetDescription("Authenticate with email and password. Sets admin_session cookie.")
	postLogin.AddReqStructure(AdminLoginRequest{})
	postLogin.AddRespStructure(AdminMeResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postLogin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postLogin)

	// POST /api/admin/logout
	postLogout, _ := r.NewOperationContext(http.MethodPost, "/api/admin/logout")
	postLogout.SetSummary("Admin logout")
	postLogout.SetDescription("Clears admin session and cookie.")
	postLogout.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(postLogout)

	// GET /api/admin/me
	getMe, _ := r.NewOperationContext(http.MethodGet, "/api/admin/me")
	getMe.SetSummary("Current admin")
	getMe.SetDescription("Returns the currently authenticated admin. Requires admin_session cookie.")
	getMe.AddRespStructure(AdminMeResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getMe.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getMe)

	// GET /api/admin/sessions
	listSessions, _ := r.NewOperationContext(http.MethodGet, "/api/admin/sessions")
	listSessions.SetSummary("List sessions")
	listSessions.SetDescription("Returns all sessions, newest first. Requires admin_session cookie.")
	listSessions.AddRespStructure([]engine.SessionSummary{}, openapi.WithHTTPStatus(http.StatusOK))
	listSessions.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(listSessions)

	// POST /api/admin/sessions
	createSession, _ := r.NewOperationContext(http.MethodPost, "/api/admin/sessions")
	createSession.SetSummary("Create session")
	createSession.SetDescription("Creates a DRAFT veto session. Requires admin_session cookie.")
	createSession.AddReqStructure(AdminSessionRequest{})
	createSession.AddRespStructure(veto.Session{}, openapi.WithHTTPStatus(http.StatusCreated))
	createSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	createSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(createSession)

	// GET /api/admin/sessions/{sessionID}
	getSession, _ := r.NewOperationContext(http.MethodGet, "/api/admin/sessions/{sessionID}")
	getSession.SetSummary("Get session")
	getSession.SetDescription("Returns a session with its players and map snapshot. Requires admin_session cookie.")
	getSession.AddRespStructure(engine.SessionDetail{}, openapi.WithHTTPStatus(http.StatusOK))
	getSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	getSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getSession)

	// PUT /api/admin/sessions/{sessionID}
	updateSession, _ := r.NewOperationContext(http.MethodPut, "/api/admin/sessions/{sessionID}")
	updateSession.SetSummary("Update session")
	updateSession.SetDescription("Updates match name and turn timer of a DRAFT or WAITING session. Requires admin_session cookie.")
	updateSession.AddReqStructure(AdminSessionUpdateRequest{})
	updateSession.AddRespStructure(veto.Session{}, openapi.WithHTTPStatus(http.StatusOK))
	updateSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	updateSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	updateSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(updateSession)

	// DELETE /api/admin/sessions/{sessionID}
	deleteSession, _ := r.NewOperationContext(http.MethodDelete, "/api/admin/sessions/{sessionID}")
	deleteSession.SetSummary("Delete session")
	deleteSession.SetDescription("Cascade-deletes a DRAFT session. Audit entries are preserved. Requires admin_session cookie.")
	deleteSession.AddRespStructure(engine.CascadeCounts{}, openapi.WithHTTPStatus(http.StatusOK))
	deleteSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	deleteSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(deleteSession)

	// DELETE /api/admin/sessions/{sessionID}/purge
	purgeSession, _ := r.NewOperationContext(http.MethodDelete, "/api/admin/sessions/{sessionID}/purge")
	purgeSession.SetSummary("Purge session")
	purgeSession.SetDescription("Cascade-deletes a session in any state, audit entries included. Requires admin_session cookie.")
	purgeSession.AddRespStructure(engine.CascadeCounts{}, openapi.WithHTTPStatus(http.StatusOK))
	purgeSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(purgeSession)

	// POST /api/admin/sessions/{sessionID}/players
	assignPlayer, _ := r.NewOperationContext(http.MethodPost, "/api/admin/sessions/{sessionID}/players")
	assignPlayer.SetSummary("Assign player")
	assignPlayer.SetDescription("Fills one seat and issues its bearer token. Requires admin_session cookie.")
	assignPlayer.AddReqStructure(AdminAssignPlayerRequest{})
	assignPlayer.AddRespStructure(veto.SessionPlayer{}, openapi.WithHTTPStatus(http.StatusCreated))
	assignPlayer.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	assignPlayer.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(assignPlayer)

	// PUT /api/admin/sessions/{sessionID}/maps
	setMaps, _ := r.NewOperationContext(http.MethodPut, "/api/admin/sessions/{sessionID}/maps")
	setMaps.SetSummary("Assign map pool")
	setMaps.SetDescription("Snapshots master maps into a DRAFT session, replacing any earlier snapshot. Requires admin_session cookie.")
	setMaps.AddReqStructure(AdminSetMapsRequest{})
	setMaps.AddRespStructure([]veto.SessionMap{}, openapi.WithHTTPStatus(http.StatusOK))
	setMaps.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	setMaps.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(setMaps)

	// Lifecycle transitions.
	for _, t := range []struct{ path, summary, desc string }{
		{"/api/admin/sessions/{sessionID}/open", "Open session", "Moves a DRAFT session with an assigned map pool to WAITING."},
		{"/api/admin/sessions/{sessionID}/start", "Start session", "Moves a fully seated WAITING session to IN_PROGRESS."},
		{"/api/admin/sessions/{sessionID}/pause", "Pause session", "Suspends an IN_PROGRESS session."},
		{"/api/admin/sessions/{sessionID}/resume", "Resume session", "Puts a PAUSED session back IN_PROGRESS."},
	} {
		op, _ := r.NewOperationContext(http.MethodPost, t.path)
		op.SetSummary(t.summary)
		op.SetDescription(t.desc + " Requires admin_session cookie.")
		op.AddRespStructure(veto.Session{}, openapi.WithHTTPStatus(http.StatusOK))
		op.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
		op.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
		_ = r.AddOperation(op)
	}

	// POST /api/admin/sessions/{sessionID}/votes
	adminVote, _ := r.NewOperationContext(http.MethodPost, "/api/admin/sessions/{sessionID}/votes")
	adminVote.SetSummary("Submit vote for player")
	adminVote.SetDescription("Records a round vote on a player's behalf, stamped as admin-submitted. Requires admin_session cookie.")
	adminVote.AddReqStructure(AdminVoteRequest{})
	adminVote.AddRespStructure(engine.VoteResult{}, openapi.WithHTTPStatus(http.StatusOK))
	adminVote.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(adminVote)

	// GET /api/admin/sessions/{sessionID}/audit
	getAudit, _ := r.NewOperationContext(http.MethodGet, "/api/admin/sessions/{sessionID}/audit")
	getAudit.SetSummary("Audit log")
	getAudit.SetDescription("Returns the audit trail of a session, oldest first. Works for deleted session ids too. Requires admin_session cookie.")
	getAudit.AddRespStructure([]veto.AuditEntry{}, openapi.WithHTTPStatus(http.StatusOK))
	getAudit.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getAudit)

	// GET /api/admin/teams
	listTeams, _ := r.NewOperationContext(http.MethodGet, "/api/admin/teams")
	listTeams.SetSummary("List teams")
	listTeams.SetDescription("Returns all registered teams. Requires admin_session cookie.")
	listTeams.AddRespStructure([]veto.Team{}, openapi.WithHTTPStatus(http.StatusOK))
	listTeams.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(listTeams)

	// POST /api/admin/teams
	createTeam, _ := r.NewOperationContext(http.MethodPost, "/api/admin/teams")
	createTeam.SetSummary("Create team")
	createTeam.SetDescription("Registers a team name players can be assigned under. Requires admin_session cookie.")
	createTeam.AddReqStructure(AdminTeamRequest{})
	createTeam.AddRespStructure(veto.Team{}, openapi.WithHTTPStatus(http.StatusCreated))
	createTeam.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	createTeam.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(createTeam)

	// PUT /api/admin/teams/{teamID}
	updateTeam, _ := r.NewOperationContext(http.MethodPut, "/api/admin/teams/{teamID}")
	updateTeam.SetSummary("Rename team")
	updateTeam.SetDescription("Renames a master team. Seats keep their frozen copies. Requires admin_session cookie.")
	updateTeam.AddReqStructure(AdminTeamRequest{})
	updateTeam.AddRespStructure(veto.Team{}, openapi.WithHTTPStatus(http.StatusOK))
	updateTeam.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	updateTeam.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(updateTeam)

	// DELETE /api/admin/teams/{teamID}
	deleteTeam, _ := r.NewOperationContext(http.MethodDelete, "/api/admin/teams/{teamID}")
	deleteTeam.SetSummary("Delete team")
	deleteTeam.SetDescription("Removes a master team. Existing sessions keep their frozen copies. Requires admin_session cookie.")
	deleteTeam.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	deleteTeam.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(deleteTeam)

	// GET /api/admin/maps
	listMaps, _ := r.NewOperationContext(http.MethodGet, "/api/admin/maps")
	listMaps.SetSummary("List maps")
	listMaps.SetDescription("Returns all master maps. Requires admin_session cookie.")
	listMaps.AddRespStructure([]veto.MasterMap{}, openapi.WithHTTPStatus(http.StatusOK))
	listMaps.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(listMaps)

	// POST /api/admin/maps
	createMap, _ := r.NewOperationContext(http.MethodPost, "/api/admin/maps")
	createMap.SetSummary("Create map")
	createMap.SetDescription("Registers a master map, active by default. Requires admin_session cookie.")
	createMap.AddReqStructure(AdminMapRequest{})
	createMap.AddRespStructure(veto.MasterMap{}, openapi.WithHTTPStatus(http.StatusCreated))
	createMap.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(createMap)

	// PUT /api/admin/maps/{mapID}
	updateMap, _ := r.NewOperationContext(http.MethodPut, "/api/admin/maps/{mapID}")
	updateMap.SetSummary("Update map")
	updateMap.SetDescription("Rewrites a master map's fields. Session snapshots are untouched. Requires admin_session cookie.")
	updateMap.AddReqStructure(AdminMapRequest{})
	updateMap.AddRespStructure(veto.MasterMap{}, openapi.WithHTTPStatus(http.StatusOK))
	updateMap.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	updateMap.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(updateMap)

	// DELETE /api/admin/maps/{mapID}
	deleteMap, _ := r.NewOperationContext(http.MethodDelete, "/api/admin/maps/{mapID}")
	deleteMap.SetSummary("Delete map")
	deleteMap.SetDescription("Removes a master map. Session snapshots keep their copies. Requires admin_session cookie.")
	deleteMap.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	deleteMap.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(deleteMap)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

func handleSwaggerUI() http.HandlerFunc {
	h := v5emb.New("MapVeto API", "/openapi.json", "/docs")
	return h.ServeHTTP
}
