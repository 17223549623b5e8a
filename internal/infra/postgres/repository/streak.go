package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/aliskhannn/lingua-streak-bot/internal/domain/entities"
	"github.com/aliskhannn/lingua-streak-bot/internal/infra/postgres"
)

// StreakRepository provides access to the per-user progression aggregate.
type StreakRepository struct {
	db postgres.DBTX
}

// NewStreakRepository creates a new StreakRepository with the provided database handle.
func NewStreakRepository(db postgres.DBTX) *StreakRepository {
	return &StreakRepository{db: db}
}

const streakColumns = `
	user_id, timezone, cards_mastered_today, last_mastery_date, streak_awarded_today,
	current_streak, longest_streak, frozen_stack_ids, reset_pending, streak_at_miss,
	version, created_at, updated_at
`

// Ensure creates an empty record for the user if none exists.
func (r *StreakRepository) Ensure(ctx context.Context, u *entities.UserStreak) error {
	query := `
		INSERT INTO user_streaks (user_id, timezone)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`

	if _, err := r.db.Exec(ctx, query, u.UserID, u.Timezone); err != nil {
		return fmt.Errorf("ensure user streak: %w", err)
	}

	return nil
}

// Get retrieves the user's record.
func (r *StreakRepository) Get(ctx context.Context, userID int64) (*entities.UserStreak, error) {
	return r.get(ctx, `SELECT `+streakColumns+` FROM user_streaks WHERE user_id = $1`, userID)
}

// GetForUpdate retrieves the user's record and locks it until the transaction ends.
func (r *StreakRepository) GetForUpdate(ctx context.Context, userID int64) (*entities.UserStreak, error) {
	return r.get(ctx, `SELECT `+streakColumns+` FROM user_streaks WHERE user_id = $1 FOR UPDATE`, userID)
}

func (r *StreakRepository) get(ctx context.Context, query string, userID int64) (*entities.UserStreak, error) {
	var u entities.UserStreak
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&u.UserID,
		&u.Timezone,
		&u.CardsMasteredToday,
		&u.LastMasteryDate,
		&u.StreakAwardedToday,
		&u.CurrentStreak,
		&u.LongestStreak,
		&u.FrozenStackIDs,
		&u.ResetPending,
		&u.StreakAtMiss,
		&u.Version,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entities.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user streak: %w", err)
	}

	if len(u.FrozenStackIDs) == 0 {
		u.FrozenStackIDs = nil
	}
	return &u, nil
}

// Update writes the record if its version is still u.Version and bumps the version.
func (r *StreakRepository) Update(ctx context.Context, u *entities.UserStreak) error {
	frozen := u.FrozenStackIDs
	if frozen == nil {
		frozen = []int64{}
	}

	query := `
		UPDATE user_streaks SET
			timezone = $3,
			cards_mastered_today = $4,
			last_mastery_date = $5,
			streak_awarded_today = $6,
			current_streak = $7,
			longest_streak = $8,
			frozen_stack_ids = $9,
			reset_pending = $10,
			streak_at_miss = $11,
			updated_at = $12,
			version = version + 1
		WHERE user_id = $1 AND version = $2
	`

	tag, err := r.db.Exec(ctx, query,
		u.UserID,
		u.Version,
		u.Timezone,
		u.CardsMasteredToday,
		u.LastMasteryDate,
		u.StreakAwardedToday,
		u.CurrentStreak,
		u.LongestStreak,
		frozen,
		u.ResetPending,
		u.StreakAtMiss,
		u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update user streak: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entities.ErrVersionConflict
	}

	u.Version++
	return nil
}
