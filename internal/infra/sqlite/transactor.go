package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/aliskhannn/lingua-streak-bot/internal/service"
)

// Transactor runs service operations inside SQLite transactions.
type Transactor struct {
	db *sqlx.DB
}

func NewTransactor(db *sqlx.DB) *Transactor {
	return &Transactor{db: db}
}

// WithinTx begins a transaction and hands fn repositories bound to it.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, r service.Repos) error) error {
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, NewRepos(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// NewRepos binds every repository to db, which may be a *sqlx.DB or a *sqlx.Tx.
func NewRepos(db sqlx.ExtContext) service.Repos {
	return service.Repos{
		Users:   NewUserRepository(db),
		Streaks: NewStreakRepository(db),
		Stacks:  NewStackRepository(db),
		Audit:   NewAuditRepository(db),
	}
}
