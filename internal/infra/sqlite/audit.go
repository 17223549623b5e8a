package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/aliskhannn/lingua-streak-bot/internal/domain/entities"
)

// AuditRepository stores the streak audit log. Snapshots are kept as JSON.
type AuditRepository struct {
	db sqlx.ExtContext
}

func NewAuditRepository(db sqlx.ExtContext) *AuditRepository {
	return &AuditRepository{db: db}
}

type auditRow struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Reason    string    `db:"reason"`
	Before    string    `db:"snapshot_before"`
	After     string    `db:"snapshot_after"`
	CreatedAt time.Time `db:"created_at"`
}

// Record appends an entry and sets its id.
func (r *AuditRepository) Record(ctx context.Context, e *entities.StreakAuditEntry) error {
	before, err := json.Marshal(e.Before)
	if err != nil {
		return fmt.Errorf("marshal before: %w", err)
	}
	after, err := json.Marshal(e.After)
	if err != nil {
		return fmt.Errorf("marshal after: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO streak_audit (user_id, reason, snapshot_before, snapshot_after, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.UserID, string(e.Reason), string(before), string(after), utc(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert streak audit: %w", err)
	}

	if e.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	return nil
}

// ListByUser returns the user's most recent entries, newest first.
func (r *AuditRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*entities.StreakAuditEntry, error) {
	query := `
		SELECT id, user_id, reason, snapshot_before, snapshot_after, created_at
		FROM streak_audit
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?
	`

	var rows []auditRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list streak audit: %w", err)
	}

	entries := make([]*entities.StreakAuditEntry, 0, len(rows))
	for _, row := range rows {
		e := &entities.StreakAuditEntry{
			ID:        row.ID,
			UserID:    row.UserID,
			Reason:    entities.AuditReason(row.Reason),
			CreatedAt: row.CreatedAt,
		}
		if err := json.Unmarshal([]byte(row.Before), &e.Before); err != nil {
			return nil, fmt.Errorf("unmarshal before: %w", err)
		}
		if err := json.Unmarshal([]byte(row.After), &e.After); err != nil {
			return nil, fmt.Errorf("unmarshal after: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
