// Package veto defines the core domain types for the map veto tool and the
// pure computations over them (turn determination, results projection).
// It has zero external dependencies — everything here is pure Go.
package veto

import "time"

// Format selects the veto procedure for a session.
type Format string

const (
	// FormatABBA is the two-player alternating veto: first pick, then
	// alternating pairs.
	FormatABBA Format = "ABBA"
	// FormatMultiplayer is simultaneous per-round voting among 2+ players.
	FormatMultiplayer Format = "MULTIPLAYER"
)

// Status is the session lifecycle state. Transitions are monotonic except
// IN_PROGRESS <-> PAUSED.
type Status string

const (
	StatusDraft      Status = "DRAFT"
	StatusWaiting    Status = "WAITING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusPaused     Status = "PAUSED"
	StatusComplete   Status = "COMPLETE"
	StatusExpired    Status = "EXPIRED"
)

// MapState is the per-session state of a pool entry.
type MapState string

const (
	MapAvailable MapState = "AVAILABLE"
	MapBanned    MapState = "BANNED"
	MapWinner    MapState = "WINNER"
)

// Configuration bounds and defaults for sessions.
const (
	MinPlayerCount = 2
	MaxPlayerCount = 8

	MinTurnTimerSeconds     = 10
	MaxTurnTimerSeconds     = 300
	DefaultTurnTimerSeconds = 30

	MinMapPoolSize     = 3
	MaxMapPoolSize     = 15
	DefaultMapPoolSize = 5

	MaxNameLength = 100

	// TokenTTL is how long a player bearer token stays valid.
	TokenTTL = 24 * time.Hour
	// SessionTTL is how long a session lives before it may be expired.
	SessionTTL = 14 * 24 * time.Hour
)

// Session is one configured instance of the veto procedure for a match.
type Session struct {
	ID               string     `json:"id"`
	MatchName        string     `json:"matchName"`
	Format           Format     `json:"format"`
	Status           Status     `json:"status"`
	TurnTimerSeconds int        `json:"turnTimerSeconds"`
	MapPoolSize      int        `json:"mapPoolSize"`
	PlayerCount      int        `json:"playerCount"`
	CurrentTurn      int        `json:"currentTurn"`
	CurrentRound     int        `json:"currentRound"`
	TimerStartedAt   *time.Time `json:"timerStartedAt,omitempty"`
	TimerPausedAt    *time.Time `json:"timerPausedAt,omitempty"`
	WinnerMapID      *string    `json:"winnerMapId,omitempty"`
	CreatedBy        string     `json:"createdBy"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	ExpiresAt        time.Time  `json:"expiresAt"`
}

// SessionPlayer is one assigned seat in a session. Seat reflects creation
// order (0..N-1) and drives the ABBA alternation pattern. TeamName is a
// frozen copy of the team's name at assignment time, not a live reference.
type SessionPlayer struct {
	ID                string    `json:"id"`
	SessionID         string    `json:"sessionId"`
	Seat              int       `json:"seat"`
	Role              string    `json:"role"`
	TeamName          string    `json:"teamName"`
	Token             string    `json:"token"`
	TokenExpiresAt    time.Time `json:"tokenExpiresAt"`
	IsConnected       bool      `json:"isConnected"`
	HasVotedThisRound bool      `json:"hasVotedThisRound"`
	AssignedAt        time.Time `json:"assignedAt"`
}

// SessionMap is a per-session snapshot of a master map. Name and ImageURL
// are copied at snapshot time; later edits to the master record never
// change them. Pos is the insertion order within the snapshot and breaks
// ties deterministically.
type SessionMap struct {
	ID            string   `json:"id"`
	SessionID     string   `json:"sessionId"`
	MapID         string   `json:"mapId"`
	Pos           int      `json:"pos"`
	Name          string   `json:"name"`
	ImageURL      string   `json:"imageUrl"`
	State         MapState `json:"state"`
	BannedBy      *string  `json:"bannedByPlayerId,omitempty"`
	BannedAtTurn  *int     `json:"bannedAtTurn,omitempty"`
	BannedAtRound *int     `json:"bannedAtRound,omitempty"`
	VoteCount     *int     `json:"voteCount,omitempty"`
}

// Vote is one (round, player) submission in MULTIPLAYER format.
type Vote struct {
	ID               string    `json:"id"`
	SessionID        string    `json:"sessionId"`
	Round            int       `json:"round"`
	PlayerID         string    `json:"playerId"`
	MapID            string    `json:"mapId"`
	SubmittedAt      time.Time `json:"submittedAt"`
	SubmittedByAdmin bool      `json:"submittedByAdmin"`
}

// ActorType identifies who triggered an audited action.
type ActorType string

const (
	ActorAdmin  ActorType = "ADMIN"
	ActorPlayer ActorType = "PLAYER"
	ActorSystem ActorType = "SYSTEM"
)

// Audit action vocabulary.
const (
	ActionSessionCreated   = "SESSION_CREATED"
	ActionSessionUpdated   = "SESSION_UPDATED"
	ActionSessionOpened    = "SESSION_OPENED"
	ActionSessionStarted   = "SESSION_STARTED"
	ActionSessionPaused    = "SESSION_PAUSED"
	ActionSessionResumed   = "SESSION_RESUMED"
	ActionSessionCompleted = "SESSION_COMPLETED"
	ActionSessionExpired   = "SESSION_EXPIRED"
	ActionSessionDeleted   = "SESSION_DELETED"
	ActionPlayerAssigned   = "PLAYER_ASSIGNED"
	ActionMapsAssigned     = "MAPS_ASSIGNED"
	ActionMapBanned        = "MAP_BANNED"
	ActionVoteSubmitted    = "VOTE_SUBMITTED"
	ActionRoundResolved    = "ROUND_RESOLVED"
)

// AuditEntry is an append-only record of an engine action. SessionID is a
// soft reference: it intentionally survives deletion of the session.
type AuditEntry struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionId"`
	Action    string         `json:"action"`
	ActorType ActorType      `json:"actorType"`
	ActorID   string         `json:"actorId,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Admin is a registered administrator (registry record). PasswordHash is a
// bcrypt digest and never leaves the server.
type Admin struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash,omitempty"`
}

// Team is a master team record. Sessions copy its name, never reference it.
type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// MasterMap is a master map record. ImageStorageRef, when set, takes
// precedence over ImageURL and resolves through blob storage.
type MasterMap struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	ImageURL        string    `json:"imageUrl,omitempty"`
	ImageStorageRef string    `json:"imageStorageRef,omitempty"`
	IsActive        bool      `json:"isActive"`
	CreatedAt       time.Time `json:"createdAt"`
}
