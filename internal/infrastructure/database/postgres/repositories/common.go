package repositories

import (
	"context"
	"database/sql"

	"github.com/Arisex96/bio-mat-new/internal/domain/material"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx, so statements run the same
// way inside and outside a catalog replacement.
type dbtx interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type rowScanner interface{ Scan(...interface{}) error }

func toNull(v material.NullFloat) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v.Float64, Valid: v.Valid}
}

func fromNull(v sql.NullFloat64) material.NullFloat {
	return material.NullFloat{Float64: v.Float64, Valid: v.Valid}
}
