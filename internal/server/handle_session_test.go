package server

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ggstudio/mapveto/internal/engine"
	"github.com/ggstudio/mapveto/internal/veto"
)

func decode[T any](t *testing.T, body *json.Decoder) T {
	t.Helper()
	var v T
	if err := body.Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func masterMapIDs(t *testing.T, r *chi.Mux, cookies []*http.Cookie) []string {
	t.Helper()
	w := doJSON(t, r, http.MethodGet, "/api/admin/maps", nil, cookies, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list maps: expected 200, got %d", w.Code)
	}
	maps := decode[[]veto.MasterMap](t, json.NewDecoder(w.Body))
	ids := make([]string, 0, len(maps))
	for _, m := range maps {
		ids = append(ids, m.ID)
	}
	return ids
}

// prepareSession creates a session, snapshots three maps and opens it.
// Returns the session and its snapshot.
func prepareSession(t *testing.T, r *chi.Mux, cookies []*http.Cookie, format string, playerCount int) (veto.Session, []veto.SessionMap) {
	t.Helper()

	w := doJSON(t, r, http.MethodPost, "/api/admin/sessions", AdminSessionRequest{
		MatchName:   "Grand Final",
		Format:      format,
		PlayerCount: playerCount,
		MapPoolSize: 3,
	}, cookies, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("create session: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	s := decode[veto.Session](t, json.NewDecoder(w.Body))

	ids := masterMapIDs(t, r, cookies)
	w = doJSON(t, r, http.MethodPut, "/api/admin/sessions/"+s.ID+"/maps", AdminSetMapsRequest{MapIDs: ids[:3]}, cookies, "")
	if w.Code != http.StatusOK {
		t.Fatalf("set maps: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	snapshot := decode[[]veto.SessionMap](t, json.NewDecoder(w.Body))

	w = doJSON(t, r, http.MethodPost, "/api/admin/sessions/"+s.ID+"/open", nil, cookies, "")
	if w.Code != http.StatusOK {
		t.Fatalf("open: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	return s, snapshot
}

func assignPlayer(t *testing.T, r *chi.Mux, cookies []*http.Cookie, sessionID, role, team string) veto.SessionPlayer {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/admin/sessions/"+sessionID+"/players",
		AdminAssignPlayerRequest{Role: role, TeamName: team}, cookies, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("assign %s: expected 201, got %d: %s", role, w.Code, w.Body.String())
	}
	return decode[veto.SessionPlayer](t, json.NewDecoder(w.Body))
}

func TestSessionLifecycleHTTP(t *testing.T) {
	r, login := setupRouter(t)
	cookies := login()

	s, snapshot := prepareSession(t, r, cookies, "ABBA", 2)

	p1 := assignPlayer(t, r, cookies, s.ID, "captain-a", "Team Alpha")
	p2 := assignPlayer(t, r, cookies, s.ID, "captain-b", "Team Bravo")

	w := doJSON(t, r, http.MethodPost, "/api/admin/sessions/"+s.ID+"/start", nil, cookies, "")
	if w.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Player one sees the turn flag set.
	w = doJSON(t, r, http.MethodGet, "/api/session", nil, nil, p1.Token)
	if w.Code != http.StatusOK {
		t.Fatalf("state: expected 200, got %d", w.Code)
	}
	state := decode[engine.PlayerState](t, json.NewDecoder(w.Body))
	if !state.YourTurn {
		t.Error("seat 0 yourTurn = false at turn 0")
	}
	if len(state.Maps) != 3 {
		t.Errorf("state maps = %d, want 3", len(state.Maps))
	}

	// Results are a conflict until completion.
	w = doJSON(t, r, http.MethodGet, "/api/sessions/"+s.ID+"/results", nil, nil, "")
	if w.Code != http.StatusConflict {
		t.Fatalf("early results: expected 409, got %d", w.Code)
	}

	// Out-of-turn ban is rejected.
	w = doJSON(t, r, http.MethodPost, "/api/session/ban", BanRequest{MapID: snapshot[0].ID}, nil, p2.Token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("out-of-turn ban: expected 400, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/session/ban", BanRequest{MapID: snapshot[0].ID}, nil, p1.Token)
	if w.Code != http.StatusOK {
		t.Fatalf("ban 1: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/api/session/ban", BanRequest{MapID: snapshot[1].ID}, nil, p2.Token)
	if w.Code != http.StatusOK {
		t.Fatalf("ban 2: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	res := decode[engine.BanResult](t, json.NewDecoder(w.Body))
	if !res.Completed || res.Winner == nil {
		t.Fatalf("ban 2 result = %+v, want completion", res)
	}

	// Public results are now available.
	w = doJSON(t, r, http.MethodGet, "/api/sessions/"+s.ID+"/results", nil, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("results: expected 200, got %d", w.Code)
	}
	results := decode[ResultsResponse](t, json.NewDecoder(w.Body))
	if results.Results.WinnerMap == nil || results.Results.WinnerMap.Name != snapshot[2].Name {
		t.Errorf("winner = %+v, want %s", results.Results.WinnerMap, snapshot[2].Name)
	}
	if len(results.Results.BanHistory) != 2 {
		t.Errorf("ban history = %d, want 2", len(results.Results.BanHistory))
	}

	// The audit trail recorded the whole lifecycle.
	w = doJSON(t, r, http.MethodGet, "/api/admin/sessions/"+s.ID+"/audit", nil, cookies, "")
	if w.Code != http.StatusOK {
		t.Fatalf("audit: expected 200, got %d", w.Code)
	}
	entries := decode[[]veto.AuditEntry](t, json.NewDecoder(w.Body))
	if len(entries) == 0 || entries[len(entries)-1].Action != veto.ActionSessionCompleted {
		t.Errorf("audit trail = %d entries, want SESSION_COMPLETED last", len(entries))
	}
}

func TestMultiplayerVoteHTTP(t *testing.T) {
	r, login := setupRouter(t)
	cookies := login()

	s, snapshot := prepareSession(t, r, cookies, "MULTIPLAYER", 2)
	p1 := assignPlayer(t, r, cookies, s.ID, "p1", "Team Alpha")
	p2 := assignPlayer(t, r, cookies, s.ID, "p2", "Team Bravo")

	w := doJSON(t, r, http.MethodPost, "/api/admin/sessions/"+s.ID+"/start", nil, cookies, "")
	if w.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d", w.Code)
	}

	// Admin submits on p1's behalf.
	w = doJSON(t, r, http.MethodPost, "/api/admin/sessions/"+s.ID+"/votes",
		AdminVoteRequest{PlayerID: p1.ID, MapID: snapshot[0].ID}, cookies, "")
	if w.Code != http.StatusOK {
		t.Fatalf("admin vote: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	first := decode[engine.VoteResult](t, json.NewDecoder(w.Body))
	if !first.Vote.SubmittedByAdmin {
		t.Error("admin vote not stamped as admin-submitted")
	}
	if first.RoundResolved {
		t.Error("round resolved after a single vote")
	}

	// p2's own vote closes the round.
	w = doJSON(t, r, http.MethodPost, "/api/session/vote", VoteRequest{MapID: snapshot[0].ID}, nil, p2.Token)
	if w.Code != http.StatusOK {
		t.Fatalf("player vote: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	second := decode[engine.VoteResult](t, json.NewDecoder(w.Body))
	if !second.RoundResolved || second.Banned == nil {
		t.Fatalf("result = %+v, want round resolution", second)
	}
	if second.Banned.ID != snapshot[0].ID {
		t.Errorf("banned = %s, want %s", second.Banned.ID, snapshot[0].ID)
	}

	// Voting again in the new round before others is fine; duplicate within
	// the round conflicts.
	w = doJSON(t, r, http.MethodPost, "/api/session/vote", VoteRequest{MapID: snapshot[1].ID}, nil, p2.Token)
	if w.Code != http.StatusOK {
		t.Fatalf("round 2 vote: expected 200, got %d", w.Code)
	}
	w = doJSON(t, r, http.MethodPost, "/api/session/vote", VoteRequest{MapID: snapshot[1].ID}, nil, p2.Token)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate vote: expected 409, got %d", w.Code)
	}
}

func TestPlayerRoutesRequireToken(t *testing.T) {
	r, _ := setupRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/session", nil, nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/session/ban", BanRequest{MapID: "x"}, nil, "deadbeefdeadbeefdeadbeefdeadbeef")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unknown token: expected 401, got %d", w.Code)
	}
}

func TestDeleteSessionHTTP(t *testing.T) {
	r, login := setupRouter(t)
	cookies := login()

	// DRAFT session deletes with counts; audit survives.
	w := doJSON(t, r, http.MethodPost, "/api/admin/sessions", AdminSessionRequest{
		MatchName:   "Scrim",
		Format:      "ABBA",
		PlayerCount: 2,
		MapPoolSize: 3,
	}, cookies, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", w.Code)
	}
	s := decode[veto.Session](t, json.NewDecoder(w.Body))

	w = doJSON(t, r, http.MethodDelete, "/api/admin/sessions/"+s.ID, nil, cookies, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	counts := decode[engine.CascadeCounts](t, json.NewDecoder(w.Body))
	if counts.Session != 1 {
		t.Errorf("counts = %+v, want session 1", counts)
	}

	w = doJSON(t, r, http.MethodGet, "/api/admin/sessions/"+s.ID, nil, cookies, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("get deleted: expected 404, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/admin/sessions/"+s.ID+"/audit", nil, cookies, "")
	if w.Code != http.StatusOK {
		t.Fatalf("audit: expected 200, got %d", w.Code)
	}
	entries := decode[[]veto.AuditEntry](t, json.NewDecoder(w.Body))
	if len(entries) != 2 || entries[1].Action != veto.ActionSessionDeleted {
		t.Errorf("audit = %d entries, want created+deleted", len(entries))
	}

	// Non-DRAFT sessions refuse the normal delete but purge.
	s2, _ := prepareSession(t, r, cookies, "ABBA", 2)
	w = doJSON(t, r, http.MethodDelete, "/api/admin/sessions/"+s2.ID, nil, cookies, "")
	if w.Code != http.StatusConflict {
		t.Fatalf("delete WAITING: expected 409, got %d", w.Code)
	}
	w = doJSON(t, r, http.MethodDelete, "/api/admin/sessions/"+s2.ID+"/purge", nil, cookies, "")
	if w.Code != http.StatusOK {
		t.Fatalf("purge: expected 200, got %d", w.Code)
	}
	w = doJSON(t, r, http.MethodGet, "/api/admin/sessions/"+s2.ID+"/audit", nil, cookies, "")
	entries = decode[[]veto.AuditEntry](t, json.NewDecoder(w.Body))
	if len(entries) != 0 {
		t.Errorf("purged audit = %d entries, want 0", len(entries))
	}
}
