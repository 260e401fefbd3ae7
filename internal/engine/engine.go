// Package engine owns the session lifecycle: state-gated mutations, player
// assignment and tokens, map-pool snapshotting, vote/ban processing and the
// cascading delete. Every mutation runs in a single transaction against the
// document store, so no operation can observe a partially applied sibling.
package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ggstudio/mapveto/internal/veto"
)

// Engine exposes the typed operations of the veto tool.
type Engine struct {
	db     *sql.DB
	logger *slog.Logger

	// Now and Token are swappable clock and token sources for tests.
	Now   func() time.Time
	Token func() string

	// Storage resolves master-map image storage refs to display URLs.
	// Nil means refs stay unresolved and the raw URL field is used.
	Storage StorageResolver
}

func New(db *sql.DB, logger *slog.Logger) *Engine {
	return &Engine{
		db:     db,
		logger: logger,
		Now:    time.Now,
		Token:  NewToken,
	}
}

// withTx runs fn inside one transaction, rolling back on any error.
func (e *Engine) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func getSession(ctx context.Context, q querier, id string) (veto.Session, error) {
	var s veto.Session
	err := getDoc(ctx, q, "sessions", "session", id, &s)
	return s, err
}

// requireStatus enforces a state gate for op.
func requireStatus(s veto.Session, op string, allowed ...veto.Status) error {
	for _, st := range allowed {
		if s.Status == st {
			return nil
		}
	}
	return &veto.InvalidStateError{Operation: op, CurrentStatus: s.Status, Allowed: allowed}
}

// CreateSessionRequest carries the createSession arguments. Zero values for
// TurnTimerSeconds and MapPoolSize select the defaults.
type CreateSessionRequest struct {
	MatchName        string
	Format           veto.Format
	PlayerCount      int
	TurnTimerSeconds int
	MapPoolSize      int
	CreatedBy        string
}

func (r *CreateSessionRequest) validate() error {
	r.MatchName = strings.TrimSpace(r.MatchName)
	if r.MatchName == "" || utf8.RuneCountInString(r.MatchName) > veto.MaxNameLength {
		return &veto.ValidationError{Field: "matchName", Reason: fmt.Sprintf("must be 1-%d characters", veto.MaxNameLength)}
	}
	if r.Format != veto.FormatABBA && r.Format != veto.FormatMultiplayer {
		return &veto.ValidationError{Field: "format", Reason: "must be ABBA or MULTIPLAYER"}
	}
	if r.PlayerCount < veto.MinPlayerCount || r.PlayerCount > veto.MaxPlayerCount {
		return &veto.ValidationError{Field: "playerCount", Reason: fmt.Sprintf("must be between %d and %d", veto.MinPlayerCount, veto.MaxPlayerCount)}
	}
	if r.Format == veto.FormatABBA && r.PlayerCount != 2 {
		return &veto.ValidationError{Field: "playerCount", Reason: "ABBA format requires exactly 2 players"}
	}
	if r.TurnTimerSeconds == 0 {
		r.TurnTimerSeconds = veto.DefaultTurnTimerSeconds
	}
	if r.TurnTimerSeconds < veto.MinTurnTimerSeconds || r.TurnTimerSeconds > veto.MaxTurnTimerSeconds {
		return &veto.ValidationError{Field: "turnTimerSeconds", Reason: fmt.Sprintf("must be between %d and %d", veto.MinTurnTimerSeconds, veto.MaxTurnTimerSeconds)}
	}
	if r.MapPoolSize == 0 {
		r.MapPoolSize = veto.DefaultMapPoolSize
	}
	if r.MapPoolSize < veto.MinMapPoolSize || r.MapPoolSize > veto.MaxMapPoolSize {
		return &veto.ValidationError{Field: "mapPoolSize", Reason: fmt.Sprintf("must be between %d and %d", veto.MinMapPoolSize, veto.MaxMapPoolSize)}
	}
	return nil
}

// CreateSession produces a DRAFT session owned by an existing admin.
func (e *Engine) CreateSession(ctx context.Context, req CreateSessionRequest) (veto.Session, error) {
	if err := req.validate(); err != nil {
		return veto.Session{}, err
	}

	now := e.Now().UTC()
	s := veto.Session{
		ID:               newID(),
		MatchName:        req.MatchName,
		Format:           req.Format,
		Status:           veto.StatusDraft,
		TurnTimerSeconds: req.TurnTimerSeconds,
		MapPoolSize:      req.MapPoolSize,
		PlayerCount:      req.PlayerCount,
		CurrentTurn:      0,
		CurrentRound:     1,
		CreatedBy:        req.CreatedBy,
		CreatedAt:        now,
		UpdatedAt:        now,
		ExpiresAt:        now.Add(veto.SessionTTL),
	}

	err := e.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := resolveAdmin(ctx, tx, req.CreatedBy); err != nil {
			return err
		}
		if err := putSession(ctx, tx, s); err != nil {
			return err
		}
		return recordAudit(ctx, tx, now, s.ID, veto.ActionSessionCreated, veto.ActorAdmin, req.CreatedBy, map[string]any{
			"matchName": s.MatchName,
			"format":    string(s.Format),
		})
	})
	if err != nil {
		return veto.Session{}, err
	}

	e.logger.Info("session created", "session_id", s.ID, "format", s.Format)
	return s, nil
}

// UpdateSessionRequest carries the optional updateSession fields. Nil means
// leave the field untouched.
type UpdateSessionRequest struct {
	MatchName        *string
	TurnTimerSeconds *int
}

// UpdateSession revalidates and applies the supplied fields. Only DRAFT and
// WAITING sessions are reconfigurable.
func (e *Engine) UpdateSession(ctx context.Context, id string, req UpdateSessionRequest, adminID string) (veto.Session, error) {
	var s veto.Session
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		s, err = getSession(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := requireStatus(s, "updateSession", veto.StatusDraft, veto.StatusWaiting); err != nil {
			return err
		}

		var changed []string
		if req.MatchName != nil {
			name := strings.TrimSpace(*req.MatchName)
			if name == "" || utf8.RuneCountInString(name) > veto.MaxNameLength {
				return &veto.ValidationError{Field: "matchName", Reason: fmt.Sprintf("must be 1-%d characters", veto.MaxNameLength)}
			}
			s.MatchName = name
			changed = append(changed, "matchName")
		}
		if req.TurnTimerSeconds != nil {
			if *req.TurnTimerSeconds < veto.MinTurnTimerSeconds || *req.TurnTimerSeconds > veto.MaxTurnTimerSeconds {
				return &veto.ValidationError{Field: "turnTimerSeconds", Reason: fmt.Sprintf("must be between %d and %d", veto.MinTurnTimerSeconds, veto.MaxTurnTimerSeconds)}
			}
			s.TurnTimerSeconds = *req.TurnTimerSeconds
			changed = append(changed, "turnTimerSeconds")
		}

		now := e.Now().UTC()
		s.UpdatedAt = now
		if err := putSession(ctx, tx, s); err != nil {
			return err
		}
		return recordAudit(ctx, tx, now, s.ID, veto.ActionSessionUpdated, veto.ActorAdmin, adminID, map[string]any{
			"changed": changed,
		})
	})
	if err != nil {
		return veto.Session{}, err
	}
	return s, nil
}

// OpenSession moves a DRAFT session to WAITING once its map pool is
// assigned, making it joinable.
func (e *Engine) OpenSession(ctx context.Context, id, adminID string) (veto.Session, error) {
	return e.transition(ctx, id, "openSession", func(tx *sql.Tx, s *veto.Session, now time.Time) (string, error) {
		if err := requireStatus(*s, "openSession", veto.StatusDraft); err != nil {
			return "", err
		}
		n, err := countBySession(ctx, tx, "session_maps", s.ID)
		if err != nil {
			return "", err
		}
		if n != s.MapPoolSize {
			return "", &veto.ValidationError{Field: "maps", Reason: "map pool must be assigned before opening"}
		}
		s.Status = veto.StatusWaiting
		return veto.ActionSessionOpened, nil
	}, adminID)
}

// StartSession moves a WAITING session to IN_PROGRESS once every player
// slot is filled, and starts the turn timer.
func (e *Engine) StartSession(ctx context.Context, id, adminID string) (veto.Session, error) {
	return e.transition(ctx, id, "startSession", func(tx *sql.Tx, s *veto.Session, now time.Time) (string, error) {
		if err := requireStatus(*s, "startSession", veto.StatusWaiting); err != nil {
			return "", err
		}
		n, err := countBySession(ctx, tx, "session_players", s.ID)
		if err != nil {
			return "", err
		}
		if n != s.PlayerCount {
			return "", &veto.ValidationError{Field: "players", Reason: fmt.Sprintf("%d of %d player slots filled", n, s.PlayerCount)}
		}
		s.Status = veto.StatusInProgress
		s.TimerStartedAt = &now
		return veto.ActionSessionStarted, nil
	}, adminID)
}

// PauseSession suspends an IN_PROGRESS session.
func (e *Engine) PauseSession(ctx context.Context, id, adminID string) (veto.Session, error) {
	return e.transition(ctx, id, "pauseSession", func(tx *sql.Tx, s *veto.Session, now time.Time) (string, error) {
		if err := requireStatus(*s, "pauseSession", veto.StatusInProgress); err != nil {
			return "", err
		}
		s.Status = veto.StatusPaused
		s.TimerPausedAt = &now
		return veto.ActionSessionPaused, nil
	}, adminID)
}

// ResumeSession puts a PAUSED session back IN_PROGRESS and restamps the
// timer.
func (e *Engine) ResumeSession(ctx context.Context, id, adminID string) (veto.Session, error) {
	return e.transition(ctx, id, "resumeSession", func(tx *sql.Tx, s *veto.Session, now time.Time) (string, error) {
		if err := requireStatus(*s, "resumeSession", veto.StatusPaused); err != nil {
			return "", err
		}
		s.Status = veto.StatusInProgress
		s.TimerPausedAt = nil
		s.TimerStartedAt = &now
		return veto.ActionSessionResumed, nil
	}, adminID)
}

// transition loads a session, applies fn, stamps UpdatedAt, persists and
// records the audit action fn returns — all in one transaction.
func (e *Engine) transition(ctx context.Context, id, op string, fn func(tx *sql.Tx, s *veto.Session, now time.Time) (string, error), adminID string) (veto.Session, error) {
	var s veto.Session
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		s, err = getSession(ctx, tx, id)
		if err != nil {
			return err
		}
		now := e.Now().UTC()
		action, err := fn(tx, &s, now)
		if err != nil {
			return err
		}
		s.UpdatedAt = now
		if err := putSession(ctx, tx, s); err != nil {
			return err
		}
		return recordAudit(ctx, tx, now, s.ID, action, veto.ActorAdmin, adminID, nil)
	})
	if err != nil {
		return veto.Session{}, err
	}
	e.logger.Info("session transition", "session_id", id, "op", op, "status", s.Status)
	return s, nil
}

// ExpireDueSessions marks every non-terminal session whose expiresAt has
// elapsed as EXPIRED. The engine never schedules this itself; an external
// collaborator calls it with the current time. A previously resolved winner
// is left in place. Returns the number of sessions expired.
func (e *Engine) ExpireDueSessions(ctx context.Context, now time.Time) (int, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT id FROM sessions WHERE status IN (?, ?, ?, ?)`,
		string(veto.StatusDraft), string(veto.StatusWaiting), string(veto.StatusInProgress), string(veto.StatusPaused),
	)
	if err != nil {
		return 0, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		err := e.withTx(ctx, func(tx *sql.Tx) error {
			s, err := getSession(ctx, tx, id)
			if err != nil {
				return err
			}
			switch s.Status {
			case veto.StatusComplete, veto.StatusExpired:
				return nil
			}
			if !s.ExpiresAt.Before(now) {
				return nil
			}
			s.Status = veto.StatusExpired
			s.UpdatedAt = now.UTC()
			if err := putSession(ctx, tx, s); err != nil {
				return err
			}
			expired++
			return recordAudit(ctx, tx, now.UTC(), s.ID, veto.ActionSessionExpired, veto.ActorSystem, "", nil)
		})
		if err != nil {
			return expired, err
		}
	}
	if expired > 0 {
		e.logger.Info("sessions expired", "count", expired)
	}
	return expired, nil
}

// SessionSummary is the admin list row.
type SessionSummary struct {
	ID          string      `json:"id"`
	MatchName   string      `json:"matchName"`
	Format      veto.Format `json:"format"`
	Status      veto.Status `json:"status"`
	PlayerCount int         `json:"playerCount"`
	Assigned    int         `json:"assignedPlayers"`
	MapPoolSize int         `json:"mapPoolSize"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// ListSessions returns summaries of all sessions, newest first.
func (e *Engine) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT json(s.data),
			(SELECT COUNT(*) FROM session_players p WHERE p.session_id = s.id)
		 FROM sessions s`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var data string
		var assigned int
		if err := rows.Scan(&data, &assigned); err != nil {
			return nil, err
		}
		var s veto.Session
		if err := json.Unmarshal([]byte(data), &s); err != nil {
			return nil, err
		}
		out = append(out, SessionSummary{
			ID:          s.ID,
			MatchName:   s.MatchName,
			Format:      s.Format,
			Status:      s.Status,
			PlayerCount: s.PlayerCount,
			Assigned:    assigned,
			MapPoolSize: s.MapPoolSize,
			CreatedAt:   s.CreatedAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, func(a, b SessionSummary) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

// SessionDetail is the full admin view of one session.
type SessionDetail struct {
	Session veto.Session         `json:"session"`
	Players []veto.SessionPlayer `json:"players"`
	Maps    []veto.SessionMap    `json:"maps"`
}

// GetSession returns the session with its players and map snapshot.
func (e *Engine) GetSession(ctx context.Context, id string) (SessionDetail, error) {
	s, err := getSession(ctx, e.db, id)
	if err != nil {
		return SessionDetail{}, err
	}
	players, err := listPlayers(ctx, e.db, id)
	if err != nil {
		return SessionDetail{}, err
	}
	maps, err := listSessionMaps(ctx, e.db, id)
	if err != nil {
		return SessionDetail{}, err
	}
	return SessionDetail{Session: s, Players: players, Maps: maps}, nil
}

// Results loads a session's snapshot tables and projects the results view.
// Callers must verify the session is COMPLETE; this only fails on absence.
func (e *Engine) Results(ctx context.Context, id string) (veto.Session, veto.Results, error) {
	d, err := e.GetSession(ctx, id)
	if err != nil {
		return veto.Session{}, veto.Results{}, err
	}
	return d.Session, veto.BuildResults(d.Players, d.Maps), nil
}
