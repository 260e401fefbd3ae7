package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ggstudio/mapveto/internal/veto"
)

// SetSessionMaps snapshots the given master maps into a DRAFT session,
// replacing any earlier snapshot wholesale. Name and image URL are copied
// at this instant; later edits or deactivation of the master records never
// reach the session. Reassignment is allowed and emits a second audit entry.
func (e *Engine) SetSessionMaps(ctx context.Context, sessionID string, mapIDs []string, adminID string) ([]veto.SessionMap, error) {
	var snapshot []veto.SessionMap
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		s, err := getSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if err := requireStatus(s, "setSessionMaps", veto.StatusDraft); err != nil {
			return err
		}

		if len(mapIDs) != s.MapPoolSize {
			return &veto.ValidationError{
				Field:  "mapIds",
				Reason: fmt.Sprintf("Expected %d maps, received %d", s.MapPoolSize, len(mapIDs)),
			}
		}
		seen := make(map[string]bool, len(mapIDs))
		for _, id := range mapIDs {
			if seen[id] {
				return &veto.ValidationError{Field: "mapIds", Reason: fmt.Sprintf("duplicate map id %q", id)}
			}
			seen[id] = true
		}

		// Resolve and freeze before touching the old snapshot, so a bad id
		// cannot leave the session without a pool.
		now := e.Now().UTC()
		snapshot = make([]veto.SessionMap, 0, len(mapIDs))
		for i, id := range mapIDs {
			m, err := resolveMap(ctx, tx, id)
			if err != nil {
				return err
			}
			if !m.IsActive {
				return &veto.ValidationError{Field: "mapIds", Reason: fmt.Sprintf("map %q is not active", m.Name)}
			}
			snapshot = append(snapshot, veto.SessionMap{
				ID:        newID(),
				SessionID: sessionID,
				MapID:     m.ID,
				Pos:       i,
				Name:      m.Name,
				ImageURL:  e.resolveImageURL(ctx, m),
				State:     veto.MapAvailable,
			})
		}

		if err := deleteBySession(ctx, tx, "session_maps", sessionID); err != nil {
			return err
		}
		for _, sm := range snapshot {
			if err := putSessionMap(ctx, tx, sm); err != nil {
				return err
			}
		}

		s.UpdatedAt = now
		if err := putSession(ctx, tx, s); err != nil {
			return err
		}
		return recordAudit(ctx, tx, now, sessionID, veto.ActionMapsAssigned, veto.ActorAdmin, adminID, map[string]any{
			"count":  len(mapIDs),
			"mapIds": mapIDs,
		})
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("maps assigned", "session_id", sessionID, "count", len(snapshot))
	return snapshot, nil
}

// BanResult reports the outcome of a ban, including winner resolution when
// the ban left a single available map.
type BanResult struct {
	Session   veto.Session     `json:"session"`
	Banned    veto.SessionMap  `json:"banned"`
	Completed bool             `json:"completed"`
	Winner    *veto.SessionMap `json:"winner,omitempty"`
}

// BanMap executes one ABBA veto step for the token's seat: the map goes
// BANNED stamped with the player, turn and round, and currentTurn advances
// in the same transaction. When exactly one available map remains it is
// promoted to WINNER and the session completes.
func (e *Engine) BanMap(ctx context.Context, token, mapID string) (BanResult, error) {
	player, err := e.PlayerByToken(ctx, token)
	if err != nil {
		return BanResult{}, err
	}

	var res BanResult
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		s, err := getSession(ctx, tx, player.SessionID)
		if err != nil {
			return err
		}
		if err := requireStatus(s, "banMap", veto.StatusInProgress); err != nil {
			return err
		}
		if s.Format != veto.FormatABBA {
			return &veto.ValidationError{Field: "format", Reason: "bans are only valid in ABBA format"}
		}

		players, err := listPlayers(ctx, tx, s.ID)
		if err != nil {
			return err
		}
		if !veto.IsYourTurn(s, player, players) {
			return &veto.ValidationError{Field: "turn", Reason: "it is not your turn"}
		}

		maps, err := listSessionMaps(ctx, tx, s.ID)
		if err != nil {
			return err
		}
		target := -1
		for i, m := range maps {
			if m.ID == mapID {
				target = i
				break
			}
		}
		if target < 0 {
			return &veto.NotFoundError{Kind: "session map", ID: mapID}
		}
		if maps[target].State != veto.MapAvailable {
			return &veto.ValidationError{Field: "mapId", Reason: fmt.Sprintf("map %q is not available", maps[target].Name)}
		}

		now := e.Now().UTC()
		turn, round := s.CurrentTurn, s.CurrentRound
		maps[target].State = veto.MapBanned
		maps[target].BannedBy = &player.ID
		maps[target].BannedAtTurn = &turn
		maps[target].BannedAtRound = &round
		if err := putSessionMap(ctx, tx, maps[target]); err != nil {
			return err
		}

		s.CurrentTurn++
		s.UpdatedAt = now

		if err := recordAudit(ctx, tx, now, s.ID, veto.ActionMapBanned, veto.ActorPlayer, player.ID, map[string]any{
			"mapId":   maps[target].ID,
			"mapName": maps[target].Name,
			"turn":    turn,
		}); err != nil {
			return err
		}

		winner, completed, err := e.resolveWinner(ctx, tx, &s, maps, now)
		if err != nil {
			return err
		}

		if err := putSession(ctx, tx, s); err != nil {
			return err
		}
		res = BanResult{Session: s, Banned: maps[target], Completed: completed, Winner: winner}
		return nil
	})
	if err != nil {
		return BanResult{}, err
	}

	e.logger.Info("map banned", "session_id", res.Session.ID, "map", res.Banned.Name, "completed", res.Completed)
	return res, nil
}

// resolveWinner promotes the last available map to WINNER and completes the
// session. Called inside the banning/voting transaction with the session's
// current map rows (already reflecting the new ban).
func (e *Engine) resolveWinner(ctx context.Context, tx *sql.Tx, s *veto.Session, maps []veto.SessionMap, now time.Time) (*veto.SessionMap, bool, error) {
	var available []veto.SessionMap
	for _, m := range maps {
		if m.State == veto.MapAvailable {
			available = append(available, m)
		}
	}
	if len(available) != 1 {
		return nil, false, nil
	}

	winner := available[0]
	winner.State = veto.MapWinner
	if err := putSessionMap(ctx, tx, winner); err != nil {
		return nil, false, err
	}

	s.Status = veto.StatusComplete
	s.WinnerMapID = &winner.ID
	s.UpdatedAt = now

	if err := recordAudit(ctx, tx, now, s.ID, veto.ActionSessionCompleted, veto.ActorSystem, "", map[string]any{
		"winnerMapId": winner.ID,
		"winnerName":  winner.Name,
	}); err != nil {
		return nil, false, err
	}
	return &winner, true, nil
}
