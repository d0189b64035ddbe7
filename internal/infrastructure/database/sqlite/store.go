// Package sqlite keeps a material catalog in an embedded SQLite file. It is
// the default repository for single-node deployments and the CLI.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Arisex96/bio-mat-new/internal/domain/material"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/logging"
	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS materials (
	position        INTEGER PRIMARY KEY,
	id              TEXT NOT NULL,
	std             TEXT NOT NULL DEFAULT '',
	name            TEXT NOT NULL,
	heat_treatment  TEXT NOT NULL DEFAULT '',
	description     TEXT NOT NULL DEFAULT '',
	su REAL, sy REAL, e REAL, g REAL, mu REAL, ro REAL,
	a5 REAL, bhn REAL, ph REAL, hv REAL,
	imported_at     TEXT NOT NULL
);
`

const columns = `position, id, std, name, heat_treatment, description,
	su, sy, e, g, mu, ro, a5, bhn, ph, hv`

// Store is a material.CatalogRepository on SQLite.
type Store struct {
	db  *sql.DB
	log logging.Logger
}

// Open opens or creates the database at path and applies the schema. Use
// ":memory:" for a throwaway store.
func Open(path string, log logging.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "open sqlite")
	}
	// A single connection keeps ":memory:" databases alive and serializes
	// writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "sqlite pragma")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "sqlite migrate")
	}
	log.Debug("opened sqlite catalog store", logging.String("path", path))
	return &Store{db: db, log: log}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ReplaceAll implements material.CatalogRepository.
func (s *Store) ReplaceAll(ctx context.Context, records []material.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "begin tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM materials`); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "clear materials")
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO materials (`+columns+`, imported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "prepare insert")
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for i, rec := range records {
		args := make([]interface{}, 0, 17)
		args = append(args, i, rec.ID, rec.Std, rec.Name, rec.HeatTreatment, rec.Description)
		for _, v := range rec.Values {
			args = append(args, nullable(v))
		}
		for _, v := range rec.Auxiliary {
			args = append(args, nullable(v))
		}
		args = append(args, now)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "insert material").WithDetailf("id=%s", rec.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "commit")
	}
	s.log.Info("stored material catalog", logging.Int("records", len(records)))
	return nil
}

// LoadAll implements material.CatalogRepository.
func (s *Store) LoadAll(ctx context.Context) ([]material.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM materials ORDER BY position`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "query materials")
	}
	defer rows.Close()

	var out []material.Record
	for rows.Next() {
		var (
			rec      material.Record
			position int
			vals     [material.NumProperties]sql.NullFloat64
			aux      [material.NumAuxiliary]sql.NullFloat64
		)
		dest := []interface{}{&position, &rec.ID, &rec.Std, &rec.Name, &rec.HeatTreatment, &rec.Description}
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		for i := range aux {
			dest = append(dest, &aux[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scan material")
		}
		for i, v := range vals {
			rec.Values[i] = material.NullFloat{Float64: v.Float64, Valid: v.Valid}
		}
		for i, v := range aux {
			rec.Auxiliary[i] = material.NullFloat{Float64: v.Float64, Valid: v.Valid}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "iterate materials")
	}
	return out, nil
}

// Count implements material.CatalogRepository.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM materials`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "count materials")
	}
	return n, nil
}

func nullable(v material.NullFloat) interface{} {
	if !v.Valid {
		return nil
	}
	return v.Float64
}
