package engine

import (
	"context"
	"database/sql"

	"github.com/ggstudio/mapveto/internal/veto"
)

// CascadeCounts reports how many rows of each kind a cascade removed.
type CascadeCounts struct {
	Votes     int `json:"votes"`
	Players   int `json:"players"`
	Maps      int `json:"maps"`
	AuditLogs int `json:"auditLogs"`
	Session   int `json:"session"`
}

// DeleteSessionWithCascade atomically removes a session and everything
// that exists only in relation to it. Deletion order matters: votes go
// before the players and maps they reference, and the session row goes
// last among the primary entities so a crash mid-cascade leaves it visible
// as "not yet deleted" rather than leaving orphaned children. With
// preserveAuditLogs the log rows stay put and report as 0.
func (e *Engine) DeleteSessionWithCascade(ctx context.Context, sessionID string, preserveAuditLogs bool) (CascadeCounts, error) {
	var counts CascadeCounts
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		counts, err = e.cascadeTx(ctx, tx, sessionID, preserveAuditLogs)
		return err
	})
	if err != nil {
		return CascadeCounts{}, err
	}
	e.logger.Info("session cascade-deleted", "session_id", sessionID,
		"votes", counts.Votes, "players", counts.Players, "maps", counts.Maps, "audit_logs", counts.AuditLogs)
	return counts, nil
}

// cascadeTx runs the ordered cascade on an existing transaction.
func (e *Engine) cascadeTx(ctx context.Context, tx *sql.Tx, sessionID string, preserveAuditLogs bool) (CascadeCounts, error) {
	var counts CascadeCounts

	if _, err := getSession(ctx, tx, sessionID); err != nil {
		return counts, err
	}

	for _, step := range []struct {
		table string
		dest  *int
	}{
		{"votes", &counts.Votes},
		{"session_players", &counts.Players},
		{"session_maps", &counts.Maps},
	} {
		n, err := countBySession(ctx, tx, step.table, sessionID)
		if err != nil {
			return counts, err
		}
		if err := deleteBySession(ctx, tx, step.table, sessionID); err != nil {
			return counts, err
		}
		*step.dest = n
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return counts, err
	}
	counts.Session = 1

	if !preserveAuditLogs {
		n, err := countBySession(ctx, tx, "audit_log", sessionID)
		if err != nil {
			return counts, err
		}
		if err := deleteBySession(ctx, tx, "audit_log", sessionID); err != nil {
			return counts, err
		}
		counts.AuditLogs = n
	}

	return counts, nil
}

// DeleteSession is the public teardown: DRAFT sessions only, audit trail
// preserved. The SESSION_DELETED entry is written against the now-deleted
// id in the same transaction — an intentionally orphaned reference, since
// history must outlive the entity it describes.
func (e *Engine) DeleteSession(ctx context.Context, sessionID, adminID string) (CascadeCounts, error) {
	var counts CascadeCounts
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		s, err := getSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if err := requireStatus(s, "deleteSession", veto.StatusDraft); err != nil {
			return err
		}

		counts, err = e.cascadeTx(ctx, tx, sessionID, true)
		if err != nil {
			return err
		}
		return recordAudit(ctx, tx, e.Now().UTC(), sessionID, veto.ActionSessionDeleted, veto.ActorAdmin, adminID, map[string]any{
			"matchName": s.MatchName,
		})
	})
	if err != nil {
		return CascadeCounts{}, err
	}
	e.logger.Info("session deleted", "session_id", sessionID)
	return counts, nil
}
