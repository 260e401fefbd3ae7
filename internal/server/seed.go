package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/ggstudio/mapveto/internal/engine"
	"github.com/ggstudio/mapveto/internal/veto"
)

const (
	seedAdminEmail    = "admin@mapveto.gg"
	seedAdminPassword = "changeme"
)

// Seed creates the default admin account and a starter map registry on an
// empty database. Idempotent: does nothing when admins already exist.
func Seed(ctx context.Context, logger *slog.Logger, db *sql.DB, eng *engine.Engine) error {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seedAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := veto.Admin{
		ID:           engine.NewToken(),
		Email:        seedAdminEmail,
		PasswordHash: string(hash),
	}
	data, err := json.Marshal(admin)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO admins (id, email, data) VALUES (?, ?, jsonb(?))`,
		admin.ID, admin.Email, string(data),
	); err != nil {
		return err
	}

	for _, name := range []string{"Ascent", "Bind", "Haven", "Icebox", "Split"} {
		if _, err := eng.CreateMap(ctx, engine.MapRequest{Name: name}); err != nil {
			return err
		}
	}
	for _, name := range []string{"Team Alpha", "Team Bravo"} {
		if _, err := eng.CreateTeam(ctx, name); err != nil {
			return err
		}
	}

	logger.Info("seeded default admin and starter registry", "email", admin.Email)
	return nil
}
