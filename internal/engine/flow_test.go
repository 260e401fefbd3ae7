package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/ggstudio/mapveto/internal/veto"
)

func TestBanFlowToCompletion(t *testing.T) {
	eng, adminID, mapIDs, _ := setupEngine(t)
	ctx := context.Background()
	s := createSession(t, eng, adminID, veto.FormatABBA, 2, 3)
	tokens := startSession(t, eng, s.ID, adminID, mapIDs[:3])

	detail, err := eng.GetSession(ctx, s.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	maps := detail.Maps

	// Turn 0: seat 0 bans. Banning out of turn is rejected first.
	if _, err := eng.BanMap(ctx, tokens[1], maps[0].ID); err == nil {
		t.Fatal("seat 1 banned out of turn")
	}
	res, err := eng.BanMap(ctx, tokens[0], maps[0].ID)
	if err != nil {
		t.Fatalf("ban 1: %v", err)
	}
	if res.Completed {
		t.Fatal("completed after first ban")
	}
	if res.Session.CurrentTurn != 1 {
		t.Errorf("currentTurn = %d, want 1", res.Session.CurrentTurn)
	}
	if res.Banned.BannedBy == nil {
		t.Fatal("ban missing player stamp")
	}
	if res.Banned.BannedAtTurn == nil || *res.Banned.BannedAtTurn != 0 {
		t.Errorf("bannedAtTurn = %v, want 0", res.Banned.BannedAtTurn)
	}

	// Seat 0 immediately again: pattern says turn 1 belongs to seat 1.
	_, err = eng.BanMap(ctx, tokens[0], maps[1].ID)
	var ve *veto.ValidationError
	if !errors.As(err, &ve) || ve.Field != "turn" {
		t.Fatalf("err = %v, want turn ValidationError", err)
	}

	// Banning an already banned map is rejected.
	if _, err := eng.BanMap(ctx, tokens[1], maps[0].ID); err == nil {
		t.Fatal("re-banned a banned map")
	}

	// Turn 1: seat 1 bans, leaving one map. Session completes.
	res, err = eng.BanMap(ctx, tokens[1], maps[1].ID)
	if err != nil {
		t.Fatalf("ban 2: %v", err)
	}
	if !res.Completed || res.Winner == nil {
		t.Fatalf("res = %+v, want completion with winner", res)
	}
	if res.Winner.ID != maps[2].ID {
		t.Errorf("winner = %s, want %s", res.Winner.ID, maps[2].ID)
	}
	if res.Session.Status != veto.StatusComplete {
		t.Errorf("status = %s, want COMPLETE", res.Session.Status)
	}
	if res.Session.WinnerMapID == nil || *res.Session.WinnerMapID != maps[2].ID {
		t.Errorf("winnerMapId = %v, want %s", res.Session.WinnerMapID, maps[2].ID)
	}

	// No further bans once complete.
	if _, err := eng.BanMap(ctx, tokens[0], maps[2].ID); err == nil {
		t.Fatal("banned in a COMPLETE session")
	}
}

func TestBanRejectedInMultiplayer(t *testing.T) {
	eng, adminID, mapIDs, _ := setupEngine(t)
	ctx := context.Background()
	s := createSession(t, eng, adminID, veto.FormatMultiplayer, 2, 3)

	if _, err := eng.SetSessionMaps(ctx, s.ID, mapIDs[:3], adminID); err != nil {
		t.Fatalf("set maps: %v", err)
	}
	if _, err := eng.OpenSession(ctx, s.ID, adminID); err != nil {
		t.Fatalf("open: %v", err)
	}
	p1, err := eng.AssignPlayer(ctx, s.ID, "p1", "Alpha Squad", adminID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := eng.AssignPlayer(ctx, s.ID, "p2", "Bravo Squad", adminID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := eng.StartSession(ctx, s.ID, adminID); err != nil {
		t.Fatalf("start: %v", err)
	}

	detail, _ := eng.GetSession(ctx, s.ID)
	_, err = eng.BanMap(ctx, p1.Token, detail.Maps[0].ID)
	var ve *veto.ValidationError
	if !errors.As(err, &ve) || ve.Field != "format" {
		t.Fatalf("err = %v, want format ValidationError", err)
	}
}

// startMultiplayer drives a 3-player MULTIPLAYER session to IN_PROGRESS and
// returns the players in seat order.
func startMultiplayer(t *testing.T, eng *Engine, adminID string, mapIDs []string) (veto.Session, []veto.SessionPlayer) {
	t.Helper()
	ctx := context.Background()
	s := createSession(t, eng, adminID, veto.FormatMultiplayer, 3, 3)

	if _, err := eng.SetSessionMaps(ctx, s.ID, mapIDs, adminID); err != nil {
		t.Fatalf("set maps: %v", err)
	}
	if _, err := eng.OpenSession(ctx, s.ID, adminID); err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, role := range []string{"p1", "p2", "p3"} {
		if _, err := eng.AssignPlayer(ctx, s.ID, role, "Alpha Squad", adminID); err != nil {
			t.Fatalf("assign %s: %v", role, err)
		}
	}
	if _, err := eng.StartSession(ctx, s.ID, adminID); err != nil {
		t.Fatalf("start: %v", err)
	}

	detail, err := eng.GetSession(ctx, s.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	return detail.Session, detail.Players
}

func TestVoteRoundResolution(t *testing.T) {
	eng, adminID, mapIDs, _ := setupEngine(t)
	ctx := context.Background()
	s, players := startMultiplayer(t, eng, adminID, mapIDs[:3])

	detail, _ := eng.GetSession(ctx, s.ID)
	maps := detail.Maps

	// Two votes for maps[1], one for maps[0]: maps[1] must be banned.
	if _, err := eng.SubmitVote(ctx, s.ID, players[0].ID, maps[1].ID, false); err != nil {
		t.Fatalf("vote 1: %v", err)
	}

	// Voting twice in the same round is rejected.
	_, err := eng.SubmitVote(ctx, s.ID, players[0].ID, maps[0].ID, false)
	var de *veto.DuplicateError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want DuplicateError", err)
	}

	if _, err := eng.SubmitVote(ctx, s.ID, players[1].ID, maps[1].ID, false); err != nil {
		t.Fatalf("vote 2: %v", err)
	}
	res, err := eng.SubmitVote(ctx, s.ID, players[2].ID, maps[0].ID, true)
	if err != nil {
		t.Fatalf("vote 3: %v", err)
	}

	if !res.RoundResolved || res.Banned == nil {
		t.Fatalf("res = %+v, want round resolution", res)
	}
	if res.Banned.ID != maps[1].ID {
		t.Errorf("banned = %s, want most-voted %s", res.Banned.ID, maps[1].ID)
	}
	if res.Banned.BannedBy != nil {
		t.Error("round ban carries a banning player, want none")
	}
	if res.Banned.VoteCount == nil || *res.Banned.VoteCount != 2 {
		t.Errorf("voteCount = %v, want 2", res.Banned.VoteCount)
	}
	if !res.Vote.SubmittedByAdmin {
		t.Error("third vote not stamped as admin-submitted")
	}
	if res.Session.CurrentRound != 2 || res.Session.CurrentTurn != 1 {
		t.Errorf("round/turn = %d/%d, want 2/1", res.Session.CurrentRound, res.Session.CurrentTurn)
	}

	// Flags reset: everyone can vote again in round 2.
	detail, _ = eng.GetSession(ctx, s.ID)
	for _, p := range detail.Players {
		if p.HasVotedThisRound {
			t.Errorf("player %s still flagged as voted after resolution", p.Role)
		}
	}

	// Round 2 resolves down to one map and completes the session.
	if _, err := eng.SubmitVote(ctx, s.ID, players[0].ID, maps[0].ID, false); err != nil {
		t.Fatalf("round 2 vote 1: %v", err)
	}
	if _, err := eng.SubmitVote(ctx, s.ID, players[1].ID, maps[0].ID, false); err != nil {
		t.Fatalf("round 2 vote 2: %v", err)
	}
	res, err = eng.SubmitVote(ctx, s.ID, players[2].ID, maps[2].ID, false)
	if err != nil {
		t.Fatalf("round 2 vote 3: %v", err)
	}
	if !res.Completed || res.Winner == nil {
		t.Fatalf("res = %+v, want completion", res)
	}
	if res.Winner.ID != maps[2].ID {
		t.Errorf("winner = %s, want %s", res.Winner.ID, maps[2].ID)
	}
}

func TestVoteTieBreaksOnSnapshotOrder(t *testing.T) {
	eng, adminID, mapIDs, _ := setupEngine(t)
	ctx := context.Background()
	s, players := startMultiplayer(t, eng, adminID, mapIDs[:3])

	detail, _ := eng.GetSession(ctx, s.ID)
	maps := detail.Maps

	// One vote each for three different maps: earliest snapshot entry loses.
	for i, p := range players {
		if _, err := eng.SubmitVote(ctx, s.ID, p.ID, maps[i].ID, false); err != nil {
			t.Fatalf("vote %d: %v", i, err)
		}
	}

	detail, _ = eng.GetSession(ctx, s.ID)
	if detail.Maps[0].State != veto.MapBanned {
		t.Errorf("maps[0] state = %s, want BANNED on tie", detail.Maps[0].State)
	}
}

func TestResultsProjection(t *testing.T) {
	eng, adminID, mapIDs, _ := setupEngine(t)
	ctx := context.Background()
	s := createSession(t, eng, adminID, veto.FormatABBA, 2, 3)
	tokens := startSession(t, eng, s.ID, adminID, mapIDs[:3])

	detail, _ := eng.GetSession(ctx, s.ID)
	maps := detail.Maps

	if _, err := eng.BanMap(ctx, tokens[0], maps[0].ID); err != nil {
		t.Fatalf("ban: %v", err)
	}
	if _, err := eng.BanMap(ctx, tokens[1], maps[1].ID); err != nil {
		t.Fatalf("ban: %v", err)
	}

	session, results, err := eng.Results(ctx, s.ID)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if session.Status != veto.StatusComplete {
		t.Fatalf("status = %s, want COMPLETE", session.Status)
	}
	if results.WinnerMap == nil || results.WinnerMap.Name != maps[2].Name {
		t.Errorf("winner = %+v, want %s", results.WinnerMap, maps[2].Name)
	}
	if len(results.BanHistory) != 2 {
		t.Fatalf("ban history = %d entries, want 2", len(results.BanHistory))
	}
	if results.BanHistory[0].MapName != maps[0].Name || results.BanHistory[1].MapName != maps[1].Name {
		t.Errorf("ban history order = %s, %s", results.BanHistory[0].MapName, results.BanHistory[1].MapName)
	}
	if len(results.Teams) != 2 {
		t.Errorf("teams = %d, want 2", len(results.Teams))
	}
}

func TestCascadeDeleteCounts(t *testing.T) {
	eng, adminID, mapIDs, _ := setupEngine(t)
	ctx := context.Background()
	s, players := startMultiplayer(t, eng, adminID, mapIDs[:3])

	detail, _ := eng.GetSession(ctx, s.ID)
	if _, err := eng.SubmitVote(ctx, s.ID, players[0].ID, detail.Maps[0].ID, false); err != nil {
		t.Fatalf("vote: %v", err)
	}

	counts, err := eng.DeleteSessionWithCascade(ctx, s.ID, false)
	if err != nil {
		t.Fatalf("cascade: %v", err)
	}
	if counts.Votes != 1 || counts.Players != 3 || counts.Maps != 3 || counts.Session != 1 {
		t.Errorf("counts = %+v, want 1 vote, 3 players, 3 maps, 1 session", counts)
	}
	if counts.AuditLogs == 0 {
		t.Error("auditLogs = 0, want purged entries counted")
	}

	// Everything referencing the session is gone.
	if _, err := eng.GetSession(ctx, s.ID); err == nil {
		t.Fatal("session still present after cascade")
	}
	entries, err := eng.AuditLog(ctx, s.ID)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("audit entries = %d, want 0 after purge", len(entries))
	}

	// Cascading a missing session is NotFound.
	_, err = eng.DeleteSessionWithCascade(ctx, s.ID, false)
	var nf *veto.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
}

func TestDeleteSessionPreservesAudit(t *testing.T) {
	eng, adminID, _, _ := setupEngine(t)
	ctx := context.Background()
	s := createSession(t, eng, adminID, veto.FormatABBA, 2, 3)

	if _, err := eng.AssignPlayer(ctx, s.ID, "captain", "Alpha Squad", adminID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	counts, err := eng.DeleteSession(ctx, s.ID, adminID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if counts.Players != 1 || counts.Session != 1 || counts.AuditLogs != 0 {
		t.Errorf("counts = %+v, want 1 player, 1 session, 0 audit", counts)
	}

	// The trail survives as intentional orphans, SESSION_DELETED included.
	entries, err := eng.AuditLog(ctx, s.ID)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("audit entries = %d, want created+assigned+deleted", len(entries))
	}
	last := entries[len(entries)-1]
	if last.Action != veto.ActionSessionDeleted {
		t.Errorf("last action = %s, want SESSION_DELETED", last.Action)
	}
}

func TestDeleteSessionOnlyInDraft(t *testing.T) {
	eng, adminID, mapIDs, _ := setupEngine(t)
	ctx := context.Background()
	s := createSession(t, eng, adminID, veto.FormatABBA, 2, 3)
	startSession(t, eng, s.ID, adminID, mapIDs[:3])

	_, err := eng.DeleteSession(ctx, s.ID, adminID)
	var ise *veto.InvalidStateError
	if !errors.As(err, &ise) {
		t.Fatalf("err = %v, want InvalidStateError", err)
	}
}

func TestAuditTrailOrder(t *testing.T) {
	eng, adminID, mapIDs, _ := setupEngine(t)
	ctx := context.Background()
	s := createSession(t, eng, adminID, veto.FormatABBA, 2, 3)
	tokens := startSession(t, eng, s.ID, adminID, mapIDs[:3])

	detail, _ := eng.GetSession(ctx, s.ID)
	if _, err := eng.BanMap(ctx, tokens[0], detail.Maps[0].ID); err != nil {
		t.Fatalf("ban: %v", err)
	}

	entries, err := eng.AuditLog(ctx, s.ID)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}

	want := []string{
		veto.ActionSessionCreated,
		veto.ActionMapsAssigned,
		veto.ActionSessionOpened,
		veto.ActionPlayerAssigned,
		veto.ActionPlayerAssigned,
		veto.ActionSessionStarted,
		veto.ActionMapBanned,
	}
	if len(entries) != len(want) {
		t.Fatalf("entries = %d, want %d", len(entries), len(want))
	}
	for i, action := range want {
		if entries[i].Action != action {
			t.Errorf("entry %d = %s, want %s", i, entries[i].Action, action)
		}
	}
	if entries[6].ActorType != veto.ActorPlayer {
		t.Errorf("ban actor = %s, want PLAYER", entries[6].ActorType)
	}
}
