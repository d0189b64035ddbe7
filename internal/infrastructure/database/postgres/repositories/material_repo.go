package repositories

import (
	"context"
	"database/sql"

	"github.com/Arisex96/bio-mat-new/internal/domain/material"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/database/postgres"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/logging"
	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

const materialColumns = `position, id, std, name, heat_treatment, description,
	su, sy, e, g, mu, ro, a5, bhn, ph, hv`

type postgresMaterialRepo struct {
	conn *postgres.Connection
	log  logging.Logger
}

// NewPostgresMaterialRepo returns a material.CatalogRepository backed by the
// materials table.
func NewPostgresMaterialRepo(conn *postgres.Connection, log logging.Logger) material.CatalogRepository {
	return &postgresMaterialRepo{conn: conn, log: log}
}

func (r *postgresMaterialRepo) executor() dbtx {
	return r.conn.DB()
}

// ReplaceAll deletes the stored catalog and inserts records in one transaction.
func (r *postgresMaterialRepo) ReplaceAll(ctx context.Context, records []material.Record) error {
	tx, err := r.conn.DB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				r.log.Error("failed to rollback catalog replace", logging.Err(rbErr))
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM materials`); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to clear materials")
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO materials (`+materialColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to prepare material insert")
	}
	defer stmt.Close()

	for i, rec := range records {
		args := make([]interface{}, 0, 16)
		args = append(args, i, rec.ID, rec.Std, rec.Name, rec.HeatTreatment, rec.Description)
		for _, v := range rec.Values {
			args = append(args, toNull(v))
		}
		for _, v := range rec.Auxiliary {
			args = append(args, toNull(v))
		}
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert material").
				WithDetailf("id=%s", rec.ID)
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to commit catalog replace")
	}
	r.log.Info("replaced material catalog", logging.Int("records", len(records)))
	return nil
}

// LoadAll returns the stored catalog in insertion order.
func (r *postgresMaterialRepo) LoadAll(ctx context.Context) ([]material.Record, error) {
	rows, err := r.executor().QueryContext(ctx, `SELECT `+materialColumns+` FROM materials ORDER BY position`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query materials")
	}
	defer rows.Close()

	var out []material.Record
	for rows.Next() {
		rec, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate materials")
	}
	return out, nil
}

// Count returns the number of stored records.
func (r *postgresMaterialRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.executor().QueryRowContext(ctx, `SELECT COUNT(*) FROM materials`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to count materials")
	}
	return n, nil
}

func scanMaterial(s rowScanner) (material.Record, error) {
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
	if err := s.Scan(dest...); err != nil {
		return material.Record{}, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan material")
	}
	for i, v := range vals {
		rec.Values[i] = fromNull(v)
	}
	for i, v := range aux {
		rec.Auxiliary[i] = fromNull(v)
	}
	return rec, nil
}
