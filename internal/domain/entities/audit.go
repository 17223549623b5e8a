package entities

import (
	"slices"
	"time"
)

// AuditReason names the operation that changed a user's streak state.
type AuditReason string

const (
	AuditRollover  AuditReason = "day_rollover"
	AuditThreshold AuditReason = "threshold_crossed"
	AuditDowngrade AuditReason = "downgrade"
	AuditFreeze    AuditReason = "freeze"
	AuditDeletion  AuditReason = "stack_deletion"
	AuditTest      AuditReason = "test_submission"
)

// StreakSnapshot is the part of UserStreak recorded in the audit log.
type StreakSnapshot struct {
	CurrentStreak  int     `json:"current_streak"`
	LongestStreak  int     `json:"longest_streak"`
	FrozenStackIDs []int64 `json:"frozen_stack_ids"`
	ResetPending   bool    `json:"reset_pending"`
}

// Equal reports whether two snapshots hold the same values.
func (s StreakSnapshot) Equal(o StreakSnapshot) bool {
	return s.CurrentStreak == o.CurrentStreak &&
		s.LongestStreak == o.LongestStreak &&
		s.ResetPending == o.ResetPending &&
		slices.Equal(s.FrozenStackIDs, o.FrozenStackIDs)
}

// StreakAuditEntry is a before/after record of a streak change.
type StreakAuditEntry struct {
	ID        int64
	UserID    int64
	Reason    AuditReason
	Before    StreakSnapshot
	After     StreakSnapshot
	CreatedAt time.Time
}
