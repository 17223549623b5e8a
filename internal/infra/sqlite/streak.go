package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/aliskhannn/lingua-streak-bot/internal/domain/entities"
)

// StreakRepository stores the per-user progression aggregate.
type StreakRepository struct {
	db sqlx.ExtContext
}

func NewStreakRepository(db sqlx.ExtContext) *StreakRepository {
	return &StreakRepository{db: db}
}

type streakRow struct {
	UserID             int64      `db:"user_id"`
	Timezone           string     `db:"timezone"`
	CardsMasteredToday int        `db:"cards_mastered_today"`
	LastMasteryDate    *time.Time `db:"last_mastery_date"`
	StreakAwardedToday bool       `db:"streak_awarded_today"`
	CurrentStreak      int        `db:"current_streak"`
	LongestStreak      int        `db:"longest_streak"`
	ResetPending       bool       `db:"reset_pending"`
	StreakAtMiss       int        `db:"streak_at_miss"`
	Version            int64      `db:"version"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

func (row streakRow) toEntity() *entities.UserStreak {
	return &entities.UserStreak{
		UserID:             row.UserID,
		Timezone:           row.Timezone,
		CardsMasteredToday: row.CardsMasteredToday,
		LastMasteryDate:    row.LastMasteryDate,
		StreakAwardedToday: row.StreakAwardedToday,
		CurrentStreak:      row.CurrentStreak,
		LongestStreak:      row.LongestStreak,
		ResetPending:       row.ResetPending,
		StreakAtMiss:       row.StreakAtMiss,
		Version:            row.Version,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}
}

// Ensure creates the record if the user has none. Existing records are not touched.
func (r *StreakRepository) Ensure(ctx context.Context, u *entities.UserStreak) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO user_streaks (user_id, timezone, version, created_at, updated_at)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT (user_id) DO NOTHING
	`

	if _, err := r.db.ExecContext(ctx, query, u.UserID, u.Timezone, now, now); err != nil {
		return fmt.Errorf("ensure user streak: %w", err)
	}
	return nil
}

// Get returns the user's record with its frozen set.
func (r *StreakRepository) Get(ctx context.Context, userID int64) (*entities.UserStreak, error) {
	query := `
		SELECT user_id, timezone, cards_mastered_today, last_mastery_date,
		       streak_awarded_today, current_streak, longest_streak,
		       reset_pending, streak_at_miss, version, created_at, updated_at
		FROM user_streaks
		WHERE user_id = ?
	`

	var row streakRow
	if err := sqlx.GetContext(ctx, r.db, &row, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user streak: %w", err)
	}

	u := row.toEntity()
	frozen, err := r.frozenStackIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.FrozenStackIDs = frozen

	return u, nil
}

// GetForUpdate is Get: the single-connection pool already serializes transactions.
func (r *StreakRepository) GetForUpdate(ctx context.Context, userID int64) (*entities.UserStreak, error) {
	return r.Get(ctx, userID)
}

// Update writes the record if its version is still u.Version and bumps the version.
func (r *StreakRepository) Update(ctx context.Context, u *entities.UserStreak) error {
	query := `
		UPDATE user_streaks SET
			timezone = ?,
			cards_mastered_today = ?,
			last_mastery_date = ?,
			streak_awarded_today = ?,
			current_streak = ?,
			longest_streak = ?,
			reset_pending = ?,
			streak_at_miss = ?,
			updated_at = ?,
			version = version + 1
		WHERE user_id = ? AND version = ?
	`

	res, err := r.db.ExecContext(ctx, query,
		u.Timezone,
		u.CardsMasteredToday,
		utcPtr(u.LastMasteryDate),
		u.StreakAwardedToday,
		u.CurrentStreak,
		u.LongestStreak,
		u.ResetPending,
		u.StreakAtMiss,
		utc(u.UpdatedAt),
		u.UserID,
		u.Version,
	)
	if err != nil {
		return fmt.Errorf("update user streak: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return entities.ErrVersionConflict
	}

	if err := r.replaceFrozen(ctx, u.UserID, u.FrozenStackIDs); err != nil {
		return err
	}

	u.Version++
	return nil
}

func (r *StreakRepository) frozenStackIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	query := `SELECT stack_id FROM frozen_stacks WHERE user_id = ? ORDER BY stack_id`
	if err := sqlx.SelectContext(ctx, r.db, &ids, query, userID); err != nil {
		return nil, fmt.Errorf("get frozen stacks: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return ids, nil
}

func (r *StreakRepository) replaceFrozen(ctx context.Context, userID int64, ids []int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM frozen_stacks WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear frozen stacks: %w", err)
	}
	for _, id := range ids {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO frozen_stacks (user_id, stack_id) VALUES (?, ?)`, userID, id); err != nil {
			return fmt.Errorf("insert frozen stack: %w", err)
		}
	}
	return nil
}
