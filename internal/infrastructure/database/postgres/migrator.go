// Package postgres stores material catalogs in PostgreSQL. Schema migrations
// ship inside the binary and are applied with golang-migrate. A file:// URL
// may point at a directory instead during development.
package postgres

import (
	"embed"
	stderrors "errors"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// ErrNothingToRollback is returned when the schema is already at version 0.
var ErrNothingToRollback = errors.New(errors.ErrCodeConflict, "no migrations to roll back")

// withMigrate opens a migrator, runs fn and closes it. An empty source
// selects the embedded migrations.
func withMigrate(dbURL, source string, fn func(m *migrate.Migrate) error) error {
	var (
		m   *migrate.Migrate
		err error
	)
	if source == "" {
		src, serr := iofs.New(migrationFS, "migrations")
		if serr != nil {
			return errors.Wrap(serr, errors.ErrCodeInternal, "embedded migrations unreadable")
		}
		m, err = migrate.NewWithSourceInstance("iofs", src, dbURL)
	} else {
		m, err = migrate.New(source, dbURL)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "cannot open schema migrator").WithDetail(source)
	}
	defer m.Close()
	return fn(m)
}

// RunMigrations brings the schema up to date. An up-to-date schema is fine.
func RunMigrations(dbURL, source string) error {
	return withMigrate(dbURL, source, func(m *migrate.Migrate) error {
		err := m.Up()
		if err == nil || stderrors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "schema migration failed")
	})
}

// RollbackMigration undoes the last steps migrations.
func RollbackMigration(dbURL, source string, steps int) error {
	if steps < 1 {
		return errors.New(errors.ErrCodeBadRequest, "rollback steps must be positive").WithDetailf("got %d", steps)
	}
	return withMigrate(dbURL, source, func(m *migrate.Migrate) error {
		err := m.Steps(-steps)
		switch {
		case err == nil:
			return nil
		case stderrors.Is(err, migrate.ErrNoChange):
			return ErrNothingToRollback
		}
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "schema rollback failed").WithDetailf("%d step(s)", steps)
	})
}

// MigrationStatus reports the applied version, 0 for an empty schema, and
// whether the last migration stopped half-way.
func MigrationStatus(dbURL, source string) (version uint, dirty bool, err error) {
	err = withMigrate(dbURL, source, func(m *migrate.Migrate) error {
		var verr error
		version, dirty, verr = m.Version()
		if stderrors.Is(verr, migrate.ErrNilVersion) {
			version, dirty = 0, false
			return nil
		}
		if verr != nil {
			return errors.Wrap(verr, errors.ErrCodeDatabaseError, "cannot read schema version")
		}
		return nil
	})
	return version, dirty, err
}

// ForceMigrationVersion records version as applied and clears the dirty
// flag without running anything.
func ForceMigrationVersion(dbURL, source string, version int) error {
	if version < -1 {
		return errors.New(errors.ErrCodeBadRequest, "schema version must be -1 or greater").WithDetailf("got %d", version)
	}
	return withMigrate(dbURL, source, func(m *migrate.Migrate) error {
		if err := m.Force(version); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "cannot force schema version").WithDetailf("%d", version)
		}
		return nil
	})
}
