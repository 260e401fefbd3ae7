package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ggstudio/mapveto/internal/veto"
)

// recordAudit appends one immutable entry to the audit log. It runs on the
// caller's transaction so the entry commits or rolls back with the mutation
// it describes. The session id is a soft reference: entries survive
// deletion of the session on purpose.
func recordAudit(ctx context.Context, q querier, now time.Time, sessionID, action string, actor veto.ActorType, actorID string, details map[string]any) error {
	entry := veto.AuditEntry{
		ID:        newID(),
		SessionID: sessionID,
		Action:    action,
		ActorType: actor,
		ActorID:   actorID,
		Details:   details,
		Timestamp: now,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO audit_log (id, session_id, data) VALUES (?, ?, jsonb(?))`,
		entry.ID, entry.SessionID, string(data),
	)
	return err
}

// AuditLog returns every entry recorded against sessionID, oldest first.
// Ordering follows insertion (rowid), which also breaks ties between entries
// written in the same transaction. Deleted sessions keep their history, so
// this works for orphaned ids too.
func (e *Engine) AuditLog(ctx context.Context, sessionID string) ([]veto.AuditEntry, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT json(data) FROM audit_log WHERE session_id = ? ORDER BY rowid`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []veto.AuditEntry
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var entry veto.AuditEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
