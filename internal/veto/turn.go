package veto

import (
	"slices"
	"strings"
)

// abbaPattern is the fixed ban rhythm indexed by currentTurn mod 4:
// first pick, then alternating pairs (turn 0 -> seat 0, turns 1-2 -> seat 1,
// turn 3 -> seat 0, then the cycle restarts).
var abbaPattern = [4]int{0, 1, 1, 0}

// SortPlayersByCreation orders players by seat (creation order within the
// session), falling back to assignment time and ID so the order is total.
// It returns a new slice and leaves the input untouched.
func SortPlayersByCreation(players []SessionPlayer) []SessionPlayer {
	sorted := slices.Clone(players)
	slices.SortStableFunc(sorted, func(a, b SessionPlayer) int {
		if a.Seat != b.Seat {
			return a.Seat - b.Seat
		}
		if !a.AssignedAt.Equal(b.AssignedAt) {
			return a.AssignedAt.Compare(b.AssignedAt)
		}
		return strings.Compare(a.ID, b.ID)
	})
	return sorted
}

// IsYourTurn reports whether player may act right now. It is recomputed on
// every read and never persisted, so clients cannot drift from the server.
//
// Outside IN_PROGRESS nobody has a turn. In MULTIPLAYER every player with an
// unsubmitted vote this round may act simultaneously. In ABBA the player
// whose creation-order index matches the alternation pattern at
// session.CurrentTurn has the turn. Unknown formats grant no turns.
func IsYourTurn(session Session, player SessionPlayer, players []SessionPlayer) bool {
	if session.Status != StatusInProgress {
		return false
	}

	switch session.Format {
	case FormatMultiplayer:
		return !player.HasVotedThisRound
	case FormatABBA:
		idx := -1
		for i, p := range SortPlayersByCreation(players) {
			if p.ID == player.ID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return false
		}
		return idx == abbaPattern[session.CurrentTurn%len(abbaPattern)]
	}
	return false
}
