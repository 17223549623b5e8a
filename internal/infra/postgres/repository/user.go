package repository

import (
	"context"
	"fmt"

	"github.com/aliskhannn/lingua-streak-bot/internal/domain/entities"
	"github.com/aliskhannn/lingua-streak-bot/internal/infra/postgres"
)

// UserRepository provides access to user data in the database.
type UserRepository struct {
	db postgres.DBTX
}

// NewUserRepository creates a new UserRepository with the provided database handle.
func NewUserRepository(db postgres.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// SaveUser inserts a new user or updates an existing one.
func (r *UserRepository) SaveUser(ctx context.Context, user *entities.User) error {
	query := `
		INSERT INTO users (id, chat_id, username, is_active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			chat_id = EXCLUDED.chat_id,
			username = EXCLUDED.username,
			is_active = EXCLUDED.is_active
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query, user.ID, user.ChatID, user.Username, user.IsActive).Scan(&user.CreatedAt)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}

	return nil
}

// ListSweepTargets returns active users the freeze sweep has to visit,
// ordered by id and starting after afterID.
func (r *UserRepository) ListSweepTargets(ctx context.Context, afterID int64, limit int) ([]entities.SweepTarget, error) {
	query := `
		SELECT u.id, u.chat_id
		FROM users u
		JOIN user_streaks s ON s.user_id = u.id
		WHERE u.is_active
		  AND u.id > $1
		  AND (
			s.current_streak > 0
			OR s.reset_pending
			OR cardinality(s.frozen_stack_ids) > 0
			OR EXISTS (
				SELECT 1 FROM stacks st
				WHERE st.user_id = u.id AND st.test_deadline IS NOT NULL
			)
		  )
		ORDER BY u.id
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sweep targets: %w", err)
	}
	defer rows.Close()

	var targets []entities.SweepTarget
	for rows.Next() {
		var t entities.SweepTarget
		if err := rows.Scan(&t.UserID, &t.ChatID); err != nil {
			return nil, fmt.Errorf("scan sweep target: %w", err)
		}
		targets = append(targets, t)
	}

	return targets, rows.Err()
}
