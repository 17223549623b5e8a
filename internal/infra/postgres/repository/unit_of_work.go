package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/aliskhannn/lingua-streak-bot/internal/infra/postgres"
	"github.com/aliskhannn/lingua-streak-bot/internal/service"
)

// UnitOfWork hands the service repositories bound to one PostgreSQL transaction.
type UnitOfWork struct {
	tr *postgres.Transactor
}

func NewUnitOfWork(tr *postgres.Transactor) *UnitOfWork {
	return &UnitOfWork{tr: tr}
}

func (u *UnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, r service.Repos) error) error {
	return u.tr.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, NewRepos(tx))
	})
}

// NewRepos binds every repository to db.
func NewRepos(db postgres.DBTX) service.Repos {
	return service.Repos{
		Users:   NewUserRepository(db),
		Streaks: NewStreakRepository(db),
		Stacks:  NewStackRepository(db),
		Audit:   NewAuditRepository(db),
	}
}
