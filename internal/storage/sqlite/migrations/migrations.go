// Package migrations keeps the schema of the pitchside SQLite database.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/grakai/pitchside/internal/log"
)

//go:embed sql/*.sql
var schema embed.FS

// ErrDirtySchema is returned when a previous migration failed halfway and the schema
// needs a manual fix.
var ErrDirtySchema = errors.New("dirty schema")

// Apply migrates the database to the latest embedded schema version and returns it.
func Apply(ctx context.Context, db *sql.DB, logger log.Logger) (uint, error) {
	if db == nil {
		return 0, fmt.Errorf("db is required")
	}
	if logger == nil {
		logger = log.Noop
	}
	logger = logger.WithValues(log.Kv{"svc": "storage.SQLiteMigrations"})

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	src, err := iofs.New(schema, "sql")
	if err != nil {
		return 0, fmt.Errorf("could not read embedded schema: %w", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Warningf("Could not close embedded schema: %s", err)
		}
	}()

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return 0, fmt.Errorf("could not create driver: %w", err)
	}

	// The instance is not closed, closing it would close the shared db.
	inst, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return 0, fmt.Errorf("could not create migration instance: %w", err)
	}

	from, err := version(inst)
	if err != nil {
		return 0, err
	}

	if err := inst.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("could not migrate schema from version %d: %w", from, err)
	}

	to, err := version(inst)
	if err != nil {
		return 0, err
	}

	if to != from {
		logger.Infof("Schema migrated from version %d to %d", from, to)
	} else {
		logger.Debugf("Schema up to date at version %d", to)
	}

	return to, nil
}

// version returns the current schema version, 0 on an empty database.
func version(inst *migrate.Migrate) (uint, error) {
	v, dirty, err := inst.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("could not get schema version: %w", err)
	}
	if dirty {
		return v, fmt.Errorf("schema version %d: %w", v, ErrDirtySchema)
	}
	return v, nil
}
