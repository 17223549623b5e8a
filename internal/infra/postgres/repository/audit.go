package repository

import (
	"context"
	"fmt"

	"github.com/aliskhannn/lingua-streak-bot/internal/domain/entities"
	"github.com/aliskhannn/lingua-streak-bot/internal/infra/postgres"
)

// AuditRepository provides access to the streak audit log.
// Snapshots are stored as JSONB.
type AuditRepository struct {
	db postgres.DBTX
}

// NewAuditRepository creates a new AuditRepository with the provided database handle.
func NewAuditRepository(db postgres.DBTX) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record appends an entry and sets its id.
func (r *AuditRepository) Record(ctx context.Context, e *entities.StreakAuditEntry) error {
	query := `
		INSERT INTO streak_audit (user_id, reason, snapshot_before, snapshot_after, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query, e.UserID, string(e.Reason), e.Before, e.After, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("record streak audit: %w", err)
	}

	return nil
}

// ListByUser returns the user's most recent entries, newest first.
func (r *AuditRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*entities.StreakAuditEntry, error) {
	query := `
		SELECT id, user_id, reason, snapshot_before, snapshot_after, created_at
		FROM streak_audit
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list streak audit: %w", err)
	}
	defer rows.Close()

	var entries []*entities.StreakAuditEntry
	for rows.Next() {
		e := new(entities.StreakAuditEntry)
		var reason string
		if err := rows.Scan(&e.ID, &e.UserID, &reason, &e.Before, &e.After, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan streak audit: %w", err)
		}
		e.Reason = entities.AuditReason(reason)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
