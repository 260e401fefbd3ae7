package veto

import (
	"testing"
	"time"
)

func abbaSession(status Status, turn int) Session {
	return Session{
		ID:          "s1",
		Format:      FormatABBA,
		Status:      status,
		CurrentTurn: turn,
		PlayerCount: 2,
	}
}

func twoPlayers() []SessionPlayer {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []SessionPlayer{
		{ID: "p0", SessionID: "s1", Seat: 0, TeamName: "Alpha", AssignedAt: base},
		{ID: "p1", SessionID: "s1", Seat: 1, TeamName: "Bravo", AssignedAt: base.Add(time.Second)},
	}
}

func TestABBAAlternation(t *testing.T) {
	players := twoPlayers()
	want := []int{0, 1, 1, 0, 0, 1, 1, 0}

	for turn, wantSeat := range want {
		s := abbaSession(StatusInProgress, turn)
		for i, p := range players {
			got := IsYourTurn(s, p, players)
			if got != (i == wantSeat) {
				t.Errorf("turn %d seat %d: IsYourTurn = %v, want %v", turn, i, got, i == wantSeat)
			}
		}
	}
}

func TestABBASeatOrderNotSliceOrder(t *testing.T) {
	players := twoPlayers()
	// Reverse the slice: seat order must still decide.
	reversed := []SessionPlayer{players[1], players[0]}

	s := abbaSession(StatusInProgress, 0)
	if !IsYourTurn(s, players[0], reversed) {
		t.Error("turn 0: expected seat 0 to have the turn regardless of slice order")
	}
	if IsYourTurn(s, players[1], reversed) {
		t.Error("turn 0: seat 1 should not have the turn")
	}
}

func TestNoTurnOutsideInProgress(t *testing.T) {
	players := twoPlayers()
	for _, status := range []Status{StatusDraft, StatusWaiting, StatusPaused, StatusComplete, StatusExpired} {
		s := abbaSession(status, 0)
		if IsYourTurn(s, players[0], players) {
			t.Errorf("status %s: expected no turn", status)
		}

		m := s
		m.Format = FormatMultiplayer
		if IsYourTurn(m, players[0], players) {
			t.Errorf("status %s (multiplayer): expected no turn", status)
		}
	}
}

func TestMultiplayerTurnIsVoteFlag(t *testing.T) {
	s := Session{ID: "s1", Format: FormatMultiplayer, Status: StatusInProgress, PlayerCount: 4}

	players := []SessionPlayer{
		{ID: "a", Seat: 0, HasVotedThisRound: false},
		{ID: "b", Seat: 1, HasVotedThisRound: true},
		{ID: "c", Seat: 2, HasVotedThisRound: false},
		{ID: "d", Seat: 3, HasVotedThisRound: true},
	}

	for _, p := range players {
		if got := IsYourTurn(s, p, players); got != !p.HasVotedThisRound {
			t.Errorf("player %s: IsYourTurn = %v, want %v", p.ID, got, !p.HasVotedThisRound)
		}
	}
}

func TestUnknownFormatGrantsNoTurn(t *testing.T) {
	players := twoPlayers()
	s := abbaSession(StatusInProgress, 0)
	s.Format = Format("BO5")
	if IsYourTurn(s, players[0], players) {
		t.Error("unknown format: expected no turn")
	}
}

func TestUnknownPlayerGrantsNoTurn(t *testing.T) {
	players := twoPlayers()
	s := abbaSession(StatusInProgress, 0)
	stranger := SessionPlayer{ID: "zz", Seat: 0}
	if IsYourTurn(s, stranger, players) {
		t.Error("player outside the session: expected no turn")
	}
}
