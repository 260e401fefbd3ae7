package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/ggstudio/mapveto/internal/veto"
)

// Registry lookups. Sessions only ever read these records at assignment
// time — the engine copies what it needs and never holds live references.

func resolveAdmin(ctx context.Context, q querier, id string) (veto.Admin, error) {
	var a veto.Admin
	err := getDoc(ctx, q, "admins", "admin", id, &a)
	return a, err
}

// resolveTeamByName finds a team by exact, case-sensitive name match. The
// caller trims the name first.
func resolveTeamByName(ctx context.Context, q querier, name string) (veto.Team, error) {
	var data string
	err := q.QueryRowContext(ctx,
		`SELECT json(data) FROM teams WHERE name = ?`, name,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return veto.Team{}, &veto.NotFoundError{Kind: "team", ID: name}
	}
	if err != nil {
		return veto.Team{}, err
	}
	var t veto.Team
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return veto.Team{}, err
	}
	return t, nil
}

func resolveMap(ctx context.Context, q querier, id string) (veto.MasterMap, error) {
	var m veto.MasterMap
	err := getDoc(ctx, q, "maps", "map", id, &m)
	return m, err
}

// StorageResolver turns a blob-storage ref into a display URL.
type StorageResolver interface {
	ResolveStorageURL(ctx context.Context, ref string) (string, error)
}

// BlobBaseResolver resolves refs against a public bucket base URL.
type BlobBaseResolver struct {
	BaseURL string
}

func (r BlobBaseResolver) ResolveStorageURL(_ context.Context, ref string) (string, error) {
	u, err := url.JoinPath(r.BaseURL, ref)
	if err != nil {
		return "", fmt.Errorf("resolving storage ref %q: %w", ref, err)
	}
	return u, nil
}

// resolveImageURL picks the display URL frozen into a map snapshot. A
// storage ref takes precedence over the raw URL field; an unresolvable ref
// falls back to the raw URL rather than failing the snapshot.
func (e *Engine) resolveImageURL(ctx context.Context, m veto.MasterMap) string {
	if m.ImageStorageRef != "" && e.Storage != nil {
		if u, err := e.Storage.ResolveStorageURL(ctx, m.ImageStorageRef); err == nil && u != "" {
			return u
		}
		e.logger.Warn("storage ref unresolved, using raw url", "map_id", m.ID, "ref", m.ImageStorageRef)
	}
	return m.ImageURL
}

// Registry CRUD — the thin admin surface behind assignPlayer/setSessionMaps.

// CreateTeam registers a team name players can be assigned under.
func (e *Engine) CreateTeam(ctx context.Context, name string) (veto.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > veto.MaxNameLength {
		return veto.Team{}, &veto.ValidationError{Field: "name", Reason: fmt.Sprintf("must be 1-%d characters", veto.MaxNameLength)}
	}

	t := veto.Team{ID: newID(), Name: name, CreatedAt: e.Now().UTC()}
	data, err := json.Marshal(t)
	if err != nil {
		return veto.Team{}, err
	}
	_, err = e.db.ExecContext(ctx,
		`INSERT INTO teams (id, name, data) VALUES (?, ?, jsonb(?))`,
		t.ID, t.Name, string(data),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return veto.Team{}, &veto.DuplicateError{Field: "name", Value: name}
		}
		return veto.Team{}, err
	}
	return t, nil
}

// ListTeams returns all registered teams.
func (e *Engine) ListTeams(ctx context.Context) ([]veto.Team, error) {
	rows, err := e.db.QueryContext(ctx, `SELECT json(data) FROM teams ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []veto.Team
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var t veto.Team
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// UpdateTeam renames a team. Seats assigned under the old name keep their
// frozen copy.
func (e *Engine) UpdateTeam(ctx context.Context, id, name string) (veto.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > veto.MaxNameLength {
		return veto.Team{}, &veto.ValidationError{Field: "name", Reason: fmt.Sprintf("must be 1-%d characters", veto.MaxNameLength)}
	}

	var t veto.Team
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		if err := getDoc(ctx, tx, "teams", "team", id, &t); err != nil {
			return err
		}
		t.Name = name
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE teams SET name = ?, data = jsonb(?) WHERE id = ?`,
			t.Name, string(data), t.ID,
		)
		if err != nil && strings.Contains(err.Error(), "UNIQUE") {
			return &veto.DuplicateError{Field: "name", Value: name}
		}
		return err
	})
	if err != nil {
		return veto.Team{}, err
	}
	return t, nil
}

// DeleteTeam removes a master team. Session seats keep their frozen copy
// of the name, so existing sessions are unaffected.
func (e *Engine) DeleteTeam(ctx context.Context, id string) error {
	result, err := e.db.ExecContext(ctx, `DELETE FROM teams WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return &veto.NotFoundError{Kind: "team", ID: id}
	}
	return nil
}

// MapRequest carries the create/update fields of a master map.
type MapRequest struct {
	Name            string `json:"name"`
	ImageURL        string `json:"imageUrl"`
	ImageStorageRef string `json:"imageStorageRef"`
	IsActive        *bool  `json:"isActive"`
}

func (r *MapRequest) validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" || utf8.RuneCountInString(r.Name) > veto.MaxNameLength {
		return &veto.ValidationError{Field: "name", Reason: fmt.Sprintf("must be 1-%d characters", veto.MaxNameLength)}
	}
	return nil
}

// CreateMap registers a master map, active by default.
func (e *Engine) CreateMap(ctx context.Context, req MapRequest) (veto.MasterMap, error) {
	if err := req.validate(); err != nil {
		return veto.MasterMap{}, err
	}

	m := veto.MasterMap{
		ID:              newID(),
		Name:            req.Name,
		ImageURL:        req.ImageURL,
		ImageStorageRef: req.ImageStorageRef,
		IsActive:        true,
		CreatedAt:       e.Now().UTC(),
	}
	if req.IsActive != nil {
		m.IsActive = *req.IsActive
	}
	if err := putMasterMap(ctx, e.db, m); err != nil {
		return veto.MasterMap{}, err
	}
	return m, nil
}

// UpdateMap rewrites a master map's fields. Existing session snapshots are
// deliberately untouched.
func (e *Engine) UpdateMap(ctx context.Context, id string, req MapRequest) (veto.MasterMap, error) {
	if err := req.validate(); err != nil {
		return veto.MasterMap{}, err
	}

	var m veto.MasterMap
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		m, err = resolveMap(ctx, tx, id)
		if err != nil {
			return err
		}
		m.Name = req.Name
		m.ImageURL = req.ImageURL
		m.ImageStorageRef = req.ImageStorageRef
		if req.IsActive != nil {
			m.IsActive = *req.IsActive
		}
		return putMasterMap(ctx, tx, m)
	})
	if err != nil {
		return veto.MasterMap{}, err
	}
	return m, nil
}

// ListMaps returns all master maps.
func (e *Engine) ListMaps(ctx context.Context) ([]veto.MasterMap, error) {
	rows, err := e.db.QueryContext(ctx, `SELECT json(data) FROM maps ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var maps []veto.MasterMap
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var m veto.MasterMap
		if err := json.Unmarshal([]byte(data), &m); err != nil {
			return nil, err
		}
		maps = append(maps, m)
	}
	return maps, rows.Err()
}

// DeleteMap removes a master map. Session snapshots keep their copies.
func (e *Engine) DeleteMap(ctx context.Context, id string) error {
	result, err := e.db.ExecContext(ctx, `DELETE FROM maps WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return &veto.NotFoundError{Kind: "map", ID: id}
	}
	return nil
}

func putMasterMap(ctx context.Context, q querier, m veto.MasterMap) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO maps (id, data) VALUES (?, jsonb(?))
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
		m.ID, string(data),
	)
	return err
}
