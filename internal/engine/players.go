package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ggstudio/mapveto/internal/veto"
)

// tokenAttempts bounds the generate-and-check loop for player tokens. A
// collision is astronomically rare; one retry is the contract.
const tokenAttempts = 2

// AssignPlayer fills one seat in a DRAFT or WAITING session. The role must
// be unique within the session and the team must exist in the registry; its
// name is frozen onto the seat. The returned player carries a fresh
// 32-hex bearer token valid for 24 hours.
func (e *Engine) AssignPlayer(ctx context.Context, sessionID, role, teamName, adminID string) (veto.SessionPlayer, error) {
	role = strings.TrimSpace(role)
	if role == "" || utf8.RuneCountInString(role) > veto.MaxNameLength {
		return veto.SessionPlayer{}, &veto.ValidationError{Field: "role", Reason: fmt.Sprintf("must be 1-%d characters", veto.MaxNameLength)}
	}
	teamName = strings.TrimSpace(teamName)

	var player veto.SessionPlayer
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		s, err := getSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if err := requireStatus(s, "assignPlayer", veto.StatusDraft, veto.StatusWaiting); err != nil {
			return err
		}

		team, err := resolveTeamByName(ctx, tx, teamName)
		if err != nil {
			return err
		}

		players, err := listPlayers(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if len(players) >= s.PlayerCount {
			return &veto.CapacityError{Limit: s.PlayerCount}
		}
		for _, p := range players {
			if p.Role == role {
				return &veto.DuplicateError{Field: "role", Value: role}
			}
		}

		token, err := e.uniqueToken(ctx, tx)
		if err != nil {
			return err
		}

		now := e.Now().UTC()
		player = veto.SessionPlayer{
			ID:             newID(),
			SessionID:      sessionID,
			Seat:           len(players),
			Role:           role,
			TeamName:       team.Name,
			Token:          token,
			TokenExpiresAt: now.Add(veto.TokenTTL),
			AssignedAt:     now,
		}
		if err := putPlayer(ctx, tx, player); err != nil {
			return err
		}

		s.UpdatedAt = now
		if err := putSession(ctx, tx, s); err != nil {
			return err
		}
		return recordAudit(ctx, tx, now, sessionID, veto.ActionPlayerAssigned, veto.ActorAdmin, adminID, map[string]any{
			"role":     role,
			"teamName": team.Name,
		})
	})
	if err != nil {
		return veto.SessionPlayer{}, err
	}

	e.logger.Info("player assigned", "session_id", sessionID, "role", role, "seat", player.Seat)
	return player, nil
}

// uniqueToken generates a bearer token that is not already issued. The
// session_players.token UNIQUE constraint backs this check up.
func (e *Engine) uniqueToken(ctx context.Context, q querier) (string, error) {
	for range tokenAttempts {
		token := e.Token()
		var one int
		err := q.QueryRowContext(ctx,
			`SELECT 1 FROM session_players WHERE token = ?`, token,
		).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return token, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", &veto.CollisionError{Field: "token"}
}

// PlayerByToken resolves a bearer token to its seat. Unknown tokens fail
// with NotFoundError; expired tokens with a ValidationError. The check is
// pure and side-effect free, so it is safe on every request.
func (e *Engine) PlayerByToken(ctx context.Context, token string) (veto.SessionPlayer, error) {
	var data string
	err := e.db.QueryRowContext(ctx,
		`SELECT json(data) FROM session_players WHERE token = ?`, token,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return veto.SessionPlayer{}, &veto.NotFoundError{Kind: "token", ID: token}
	}
	if err != nil {
		return veto.SessionPlayer{}, err
	}
	var p veto.SessionPlayer
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return veto.SessionPlayer{}, err
	}
	if e.Now().After(p.TokenExpiresAt) {
		return veto.SessionPlayer{}, &veto.ValidationError{Field: "token", Reason: "token expired"}
	}
	return p, nil
}

// PlayerState is the get-by-token view: the session, the caller's seat, the
// roster, the map pool and the server-computed turn flag.
type PlayerState struct {
	Session  veto.Session         `json:"session"`
	Player   veto.SessionPlayer   `json:"player"`
	Players  []veto.SessionPlayer `json:"players"`
	Maps     []veto.SessionMap    `json:"maps"`
	YourTurn bool                 `json:"yourTurn"`
}

// StateByToken builds the player-facing state for a bearer token. The turn
// flag is recomputed here on every call and never persisted.
func (e *Engine) StateByToken(ctx context.Context, token string) (PlayerState, error) {
	p, err := e.PlayerByToken(ctx, token)
	if err != nil {
		return PlayerState{}, err
	}
	s, err := getSession(ctx, e.db, p.SessionID)
	if err != nil {
		return PlayerState{}, err
	}
	players, err := listPlayers(ctx, e.db, p.SessionID)
	if err != nil {
		return PlayerState{}, err
	}
	maps, err := listSessionMaps(ctx, e.db, p.SessionID)
	if err != nil {
		return PlayerState{}, err
	}
	return PlayerState{
		Session:  s,
		Player:   p,
		Players:  players,
		Maps:     maps,
		YourTurn: veto.IsYourTurn(s, p, players),
	}, nil
}

// MarkConnected flips the seat's connected flag (SSE attach/detach).
func (e *Engine) MarkConnected(ctx context.Context, playerID string, connected bool) error {
	return e.withTx(ctx, func(tx *sql.Tx) error {
		var p veto.SessionPlayer
		if err := getDoc(ctx, tx, "session_players", "player", playerID, &p); err != nil {
			return err
		}
		p.IsConnected = connected
		return putPlayer(ctx, tx, p)
	})
}
