package veto

import (
	"slices"
	"strings"
)

// BanRecord is one entry in the ordered ban history of a completed session.
type BanRecord struct {
	Order         int    `json:"order"`
	MapName       string `json:"mapName"`
	ImageURL      string `json:"imageUrl"`
	TeamName      string `json:"teamName"`
	BannedAtTurn  int    `json:"bannedAtTurn"`
	BannedAtRound int    `json:"bannedAtRound"`
}

// Results is the read-only projection of a completed session.
type Results struct {
	Teams      []string    `json:"teams"`
	WinnerMap  *SessionMap `json:"winnerMap,omitempty"`
	BanHistory []BanRecord `json:"banHistory"`
}

// BuildResults derives the results view from a session's snapshot tables.
// Callers are responsible for checking that the session is COMPLETE first.
//
// Teams is the de-duplicated set of team names, in seat order. WinnerMap is
// the single WINNER map if any; its absence is valid (an aborted flow).
// BanHistory contains BANNED maps that carry both a banning player and a
// turn stamp, ascending by bannedAtTurn with map ID as the tie-break so the
// order is deterministic. Rows missing either stamp are skipped rather than
// trusted.
func BuildResults(players []SessionPlayer, maps []SessionMap) Results {
	var res Results

	seen := make(map[string]bool)
	for _, p := range SortPlayersByCreation(players) {
		if !seen[p.TeamName] {
			seen[p.TeamName] = true
			res.Teams = append(res.Teams, p.TeamName)
		}
	}

	byPlayer := make(map[string]SessionPlayer, len(players))
	for _, p := range players {
		byPlayer[p.ID] = p
	}

	var banned []SessionMap
	for _, m := range maps {
		switch {
		case m.State == MapWinner && res.WinnerMap == nil:
			winner := m
			res.WinnerMap = &winner
		case m.State == MapBanned && m.BannedBy != nil && m.BannedAtTurn != nil:
			banned = append(banned, m)
		}
	}

	slices.SortStableFunc(banned, func(a, b SessionMap) int {
		if *a.BannedAtTurn != *b.BannedAtTurn {
			return *a.BannedAtTurn - *b.BannedAtTurn
		}
		return strings.Compare(a.ID, b.ID)
	})

	for i, m := range banned {
		rec := BanRecord{
			Order:        i + 1,
			MapName:      m.Name,
			ImageURL:     m.ImageURL,
			BannedAtTurn: *m.BannedAtTurn,
		}
		if m.BannedAtRound != nil {
			rec.BannedAtRound = *m.BannedAtRound
		}
		if p, ok := byPlayer[*m.BannedBy]; ok {
			rec.TeamName = p.TeamName
		}
		res.BanHistory = append(res.BanHistory, rec)
	}

	return res
}
