package engine

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/ggstudio/mapveto/internal/veto"
)

// querier is the subset of *sql.DB / *sql.Tx the doc helpers need, so the
// same code runs inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// getDoc loads one JSONB document by primary key. kind names the entity in
// the NotFoundError when the row is absent.
func getDoc(ctx context.Context, q querier, table, kind, id string, dest any) error {
	var data string
	err := q.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT json(data) FROM %s WHERE id = ?`, table), id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return &veto.NotFoundError{Kind: kind, ID: id}
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

func putSession(ctx context.Context, q querier, s veto.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO sessions (id, status, data) VALUES (?, ?, jsonb(?))
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status, data = excluded.data`,
		s.ID, string(s.Status), string(data),
	)
	return err
}

func putPlayer(ctx context.Context, q querier, p veto.SessionPlayer) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO session_players (id, session_id, token, data) VALUES (?, ?, ?, jsonb(?))
		 ON CONFLICT(id) DO UPDATE SET token = excluded.token, data = excluded.data`,
		p.ID, p.SessionID, p.Token, string(data),
	)
	return err
}

func putSessionMap(ctx context.Context, q querier, m veto.SessionMap) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO session_maps (id, session_id, data) VALUES (?, ?, jsonb(?))
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
		m.ID, m.SessionID, string(data),
	)
	return err
}

func putVote(ctx context.Context, q querier, v veto.Vote) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO votes (id, session_id, data) VALUES (?, ?, jsonb(?))`,
		v.ID, v.SessionID, string(data),
	)
	return err
}

// listDocs materializes every document for one session from table.
// SQLite cannot hold concurrent cursors, so rows are drained before any
// further queries run.
func listDocs[T any](ctx context.Context, q querier, table, sessionID string) ([]T, error) {
	rows, err := q.QueryContext(ctx,
		fmt.Sprintf(`SELECT json(data) FROM %s WHERE session_id = ? ORDER BY id`, table), sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var doc T
		if err := json.Unmarshal([]byte(data), &doc); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func listPlayers(ctx context.Context, q querier, sessionID string) ([]veto.SessionPlayer, error) {
	players, err := listDocs[veto.SessionPlayer](ctx, q, "session_players", sessionID)
	if err != nil {
		return nil, err
	}
	return veto.SortPlayersByCreation(players), nil
}

func listSessionMaps(ctx context.Context, q querier, sessionID string) ([]veto.SessionMap, error) {
	maps, err := listDocs[veto.SessionMap](ctx, q, "session_maps", sessionID)
	if err != nil {
		return nil, err
	}
	// Snapshot insertion order.
	slices.SortStableFunc(maps, func(a, b veto.SessionMap) int { return a.Pos - b.Pos })
	return maps, nil
}

func listVotes(ctx context.Context, q querier, sessionID string) ([]veto.Vote, error) {
	return listDocs[veto.Vote](ctx, q, "votes", sessionID)
}

func countBySession(ctx context.Context, q querier, table, sessionID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE session_id = ?`, table), sessionID,
	).Scan(&n)
	return n, err
}

func deleteBySession(ctx context.Context, q querier, table, sessionID string) error {
	_, err := q.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE session_id = ?`, table), sessionID,
	)
	return err
}

// newID returns an opaque 32-hex-char unique identifier.
func newID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// NewToken returns a 32-lowercase-hex bearer token. Exported so callers can
// substitute a deterministic source in tests.
func NewToken() string {
	return newID()
}
