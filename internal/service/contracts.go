package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aliskhannn/lingua-streak-bot/internal/domain/entities"
)

// UserRepository manages bot users.
type UserRepository interface {
	SaveUser(ctx context.Context, user *entities.User) error
	ListSweepTargets(ctx context.Context, afterID int64, limit int) ([]entities.SweepTarget, error)
}

// StreakRepository persists the per-user progression aggregate.
// Update is a compare-and-swap on Version and bumps it on success.
type StreakRepository interface {
	Ensure(ctx context.Context, u *entities.UserStreak) error
	Get(ctx context.Context, userID int64) (*entities.UserStreak, error)
	GetForUpdate(ctx context.Context, userID int64) (*entities.UserStreak, error)
	Update(ctx context.Context, u *entities.UserStreak) error
}

// StackRepository persists stacks and their cards.
// Update and Delete are compare-and-swap on Version.
type StackRepository interface {
	Create(ctx context.Context, s *entities.Stack) (int64, error)
	Get(ctx context.Context, userID, stackID int64) (*entities.Stack, error)
	GetForUpdate(ctx context.Context, userID, stackID int64) (*entities.Stack, error)
	ListByUser(ctx context.Context, userID int64) ([]*entities.Stack, error)
	Update(ctx context.Context, s *entities.Stack) error
	Delete(ctx context.Context, s *entities.Stack) error
	SaveTestResult(ctx context.Context, r *entities.TestResult) error
}

// AuditRepository stores before/after records of streak changes.
type AuditRepository interface {
	Record(ctx context.Context, e *entities.StreakAuditEntry) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]*entities.StreakAuditEntry, error)
}

// Repos are the repositories bound to one transaction.
type Repos struct {
	Users   UserRepository
	Streaks StreakRepository
	Stacks  StackRepository
	Audit   AuditRepository
}

// Transactor runs fn inside a single database transaction. Returning an
// error from fn rolls the transaction back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
}

// PendingStore holds pending guarded actions between check and confirm.
type PendingStore interface {
	Store(p *entities.PendingAction)
	Take(id uuid.UUID) (*entities.PendingAction, bool)
	Purge(now time.Time) int
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// StreakNotifier sends streak notifications to users.
type StreakNotifier interface {
	NotifyFrozen(ctx context.Context, chatID int64, stackIDs []int64) error
	NotifyLastChance(ctx context.Context, userID, chatID int64, view ProgressView) error
}
