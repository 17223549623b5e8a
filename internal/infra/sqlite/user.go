package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/aliskhannn/lingua-streak-bot/internal/domain/entities"
)

// UserRepository stores bot users.
type UserRepository struct {
	db sqlx.ExtContext
}

func NewUserRepository(db sqlx.ExtContext) *UserRepository {
	return &UserRepository{db: db}
}

// SaveUser inserts a user or refreshes the chat and username of an existing one.
func (r *UserRepository) SaveUser(ctx context.Context, user *entities.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO users (id, chat_id, username, is_active, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			chat_id = excluded.chat_id,
			username = excluded.username,
			is_active = excluded.is_active
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.ChatID, user.Username, user.IsActive, utc(user.CreatedAt))
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}

	return nil
}

// ListSweepTargets returns active users with something the freeze sweep can
// change: a streak to lose, a deferred reset, a frozen streak or a pending
// test deadline. Users are ordered by id and start after afterID.
func (r *UserRepository) ListSweepTargets(ctx context.Context, afterID int64, limit int) ([]entities.SweepTarget, error) {
	query := `
		SELECT u.id AS user_id, u.chat_id
		FROM users u
		JOIN user_streaks s ON s.user_id = u.id
		WHERE u.is_active = 1
		  AND u.id > ?
		  AND (
			s.current_streak > 0
			OR s.reset_pending = 1
			OR EXISTS (SELECT 1 FROM frozen_stacks f WHERE f.user_id = u.id)
			OR EXISTS (SELECT 1 FROM stacks st WHERE st.user_id = u.id AND st.test_deadline IS NOT NULL)
		  )
		ORDER BY u.id
		LIMIT ?
	`

	var rows []struct {
		UserID int64 `db:"user_id"`
		ChatID int64 `db:"chat_id"`
	}
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, afterID, limit); err != nil {
		return nil, fmt.Errorf("list sweep targets: %w", err)
	}

	targets := make([]entities.SweepTarget, 0, len(rows))
	for _, row := range rows {
		targets = append(targets, entities.SweepTarget{UserID: row.UserID, ChatID: row.ChatID})
	}
	return targets, nil
}
