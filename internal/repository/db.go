package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx so repositories can run inside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxRepositories are the repositories bound to one open transaction.
type TxRepositories struct {
	Deals   DealRepository
	History StatusHistoryRepository
}

// Transactor runs a unit of work atomically.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos TxRepositories) error) error
}

type pgxTransactor struct {
	pool *pgxpool.Pool
}

// NewTransactor returns a pgx-backed Transactor.
func NewTransactor(pool *pgxpool.Pool) Transactor {
	return &pgxTransactor{pool: pool}
}

func (t *pgxTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, repos TxRepositories) error) error {
	if t.pool == nil {
		return errors.New("repository: postgres pool not configured")
	}
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	repos := TxRepositories{
		Deals:   NewDealRepository(tx),
		History: NewStatusHistoryRepository(tx),
	}
	if err := fn(ctx, repos); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository: commit tx: %w", err)
	}
	return nil
}
