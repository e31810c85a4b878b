// Package db contains the low-level query layer over PostgreSQL.
// It speaks pgx types and raw SQL; domain mapping lives in the
// shortener repository.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX abstracts the pgx execution surface so Queries can run against
// a pool, a single connection, or a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// New returns a Queries instance bound to the given connection source.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries executes the link table SQL.
type Queries struct {
	db DBTX
}

// WithTx returns Queries bound to the given transaction.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}
