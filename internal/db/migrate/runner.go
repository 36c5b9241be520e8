// Package migrate applies the embedded users table migrations with golang-migrate.
package migrate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"identity-gateway/internal/db"
)

// ErrNoChange is returned when Up/Down has nothing to do (already at target version).
var ErrNoChange = migrate.ErrNoChange

// Directions accepted by Run.
const (
	Up      = "up"
	Down    = "down"
	Version = "version"
)

// Run applies migrations in the given direction ("up", "down") or reports the current version ("version").
// It returns a short human-readable result. ErrNoChange is swallowed.
func Run(dsn string, direction string) (string, error) {
	if strings.TrimSpace(dsn) == "" {
		return "", errors.New("DATABASE_URL is not set; set it to the hosted Postgres connection string")
	}
	if direction != Up && direction != Down && direction != Version {
		return "", fmt.Errorf("direction must be up, down or version, got %q", direction)
	}

	sourceDriver, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return "", fmt.Errorf("migrate source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, dsn)
	if err != nil {
		return "", fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	switch direction {
	case Up:
		err = m.Up()
	case Down:
		err = m.Down()
	case Version:
		v, dirty, verr := m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			return "no migrations applied", nil
		}
		if verr != nil {
			return "", verr
		}
		return fmt.Sprintf("version %d (dirty=%t)", v, dirty), nil
	}
	if errors.Is(err, migrate.ErrNoChange) {
		return "no change", nil
	}
	if err != nil {
		return "", err
	}
	return direction + " complete", nil
}
