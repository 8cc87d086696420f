// Package repository provides typed PostgreSQL access for the billing core.
// The query surface follows the sqlc conventions: one method per named
// query, parameter structs, and a Querier interface services depend on.
package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx alike. Because pgx.Tx.Begin
// opens a savepoint, RunInTx nests: a batch can wrap per-item work in its
// own inner transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

// RunInTx executes fn inside a transaction scoped to this Queries value.
// The transaction is rolled back if fn returns an error or panics.
func (q *Queries) RunInTx(ctx context.Context, fn func(s Store) error) error {
	tx, err := q.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(q.WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
