package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActionKind identifies a guarded mutation.
type ActionKind string

const (
	ActionDowngradeCard ActionKind = "downgrade_card"
	ActionDeleteStack   ActionKind = "delete_stack"
)

// Action describes a mutation that must pass the guard before it is applied.
type Action struct {
	Kind    ActionKind
	UserID  int64
	StackID int64
	CardID  int64  // downgrade_card only
	Rating  Rating // downgrade_card only
}

// Fingerprint pins the row versions an impact report was computed from.
type Fingerprint struct {
	UserVersion  int64
	StackVersion int64
}

// ImpactReport is what the user is shown before confirming a guarded action.
// It is comparable so a confirmation can verify nothing changed since the check.
type ImpactReport struct {
	Action                ActionKind
	StackID               int64
	CardID                int64
	CardsTodayBefore      int
	CardsTodayAfter       int
	StreakBefore          int
	StreakAfter           int
	DropsBelowRequirement bool // today's counter falls under the daily requirement
	StreakImpact          bool // today's streak credit is taken back
	MasteryLost           bool // the stack leaves pending_test or completed
	DiscardsPendingTest   bool
	UnfreezesStreak       bool // the action empties the frozen set
	ResetOnUnfreeze       bool // unfreezing applies a deferred reset
}

// RequiresConfirmation reports whether the action may not be applied silently.
func (r ImpactReport) RequiresConfirmation() bool {
	if r.Action == ActionDeleteStack {
		return true
	}
	return r.DropsBelowRequirement || r.StreakImpact || r.ResetOnUnfreeze
}

// Warned reports whether the report announces a loss of streak days.
func (r ImpactReport) Warned() bool {
	return r.StreakAfter < r.StreakBefore
}

// GuardState is the state of a pending action.
type GuardState string

const (
	GuardChecking   GuardState = "checking"
	GuardCommitting GuardState = "committing"
	GuardCommitted  GuardState = "committed"
	GuardCancelled  GuardState = "cancelled"
)

// PendingAction carries a checked action and its precomputed report from
// check to confirm. The report is never re-derived for display at confirm time.
type PendingAction struct {
	ID        uuid.UUID
	Action    Action
	Report    ImpactReport
	Basis     Fingerprint
	State     GuardState
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewPendingAction creates a pending action in the checking state.
func NewPendingAction(action Action, report ImpactReport, basis Fingerprint, now time.Time, ttl time.Duration) *PendingAction {
	return &PendingAction{
		ID:        uuid.New(),
		Action:    action,
		Report:    report,
		Basis:     basis,
		State:     GuardChecking,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Expired reports whether the pending action can no longer be confirmed.
func (p *PendingAction) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// Transition moves the pending action to the next state.
func (p *PendingAction) Transition(to GuardState) error {
	ok := false
	switch p.State {
	case GuardChecking:
		ok = to == GuardCommitting || to == GuardCancelled
	case GuardCommitting:
		// A commit that failed validation returns to checking.
		ok = to == GuardCommitted || to == GuardChecking
	}
	if !ok {
		return fmt.Errorf("pending action %s: %s -> %s: %w", p.ID, p.State, to, ErrGuardViolation)
	}
	p.State = to
	return nil
}
