package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aliskhannn/lingua-streak-bot/internal/domain/entities"
	"github.com/aliskhannn/lingua-streak-bot/internal/metrics"
)

// ConfirmResult is returned when a pending action was applied.
type ConfirmResult struct {
	Action   entities.Action
	Report   entities.ImpactReport
	Progress ProgressView
}

// CheckStackDeletion is the first phase of a stack deletion. It computes the
// impact, stores a pending action and writes nothing to the database.
func (s *StreakService) CheckStackDeletion(ctx context.Context, userID, stackID int64) (*entities.PendingAction, error) {
	action := entities.Action{
		Kind:    entities.ActionDeleteStack,
		UserID:  userID,
		StackID: stackID,
	}

	var p *entities.PendingAction
	_, err := s.simulate(ctx, userID, func(ctx context.Context, r Repos, st *userState) error {
		stack, err := r.Stacks.Get(ctx, userID, stackID)
		if err != nil {
			return fmt.Errorf("get stack: %w", err)
		}
		report := s.applyDeletion(st.user.Clone(), stack.Clone(), st.stacks, st.now)
		p = entities.NewPendingAction(action, report, entities.Fingerprint{
			UserVersion:  st.loadedVersion,
			StackVersion: stack.Version,
		}, st.now, s.opts.PendingTTL)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.pending.Store(p)
	metrics.GuardDecision(string(action.Kind), "checked")
	s.logger.Info("stack deletion checked",
		zap.Int64("user_id", userID),
		zap.Int64("stack_id", stackID),
		zap.String("action_id", p.ID.String()),
		zap.Bool("warned", p.Report.Warned()),
	)

	return p, nil
}

// ExecuteStackDeletion is the second phase of a stack deletion. A deletion
// whose report warned about losing streak days is rejected unless
// resetStreakIfWarned acknowledges it; the pending action stays valid.
func (s *StreakService) ExecuteStackDeletion(
	ctx context.Context,
	userID int64,
	actionID uuid.UUID,
	resetStreakIfWarned bool,
) (ConfirmResult, error) {
	return s.commitPending(ctx, userID, actionID, entities.ActionDeleteStack, resetStreakIfWarned)
}

// Confirm applies any pending action. Confirming is an explicit
// acknowledgement of everything the report showed.
func (s *StreakService) Confirm(ctx context.Context, userID int64, actionID uuid.UUID) (ConfirmResult, error) {
	return s.commitPending(ctx, userID, actionID, "", true)
}

// Cancel abandons a pending action without side effects.
func (s *StreakService) Cancel(_ context.Context, userID int64, actionID uuid.UUID) error {
	p, err := s.takePending(userID, actionID, "")
	if err != nil {
		return err
	}
	if err := p.Transition(entities.GuardCancelled); err != nil {
		return err
	}

	metrics.GuardDecision(string(p.Action.Kind), "cancelled")
	s.logger.Info("pending action cancelled",
		zap.Int64("user_id", userID),
		zap.String("action_id", actionID.String()),
	)
	return nil
}

// PurgeExpired drops pending actions that can no longer be confirmed.
func (s *StreakService) PurgeExpired() int {
	return s.pending.Purge(s.clock.Now())
}

// takePending removes the pending action so no other confirmation can use it.
func (s *StreakService) takePending(userID int64, id uuid.UUID, kind entities.ActionKind) (*entities.PendingAction, error) {
	p, ok := s.pending.Take(id)
	if !ok {
		return nil, entities.ErrPendingActionNotFound
	}
	if p.Action.UserID != userID || (kind != "" && p.Action.Kind != kind) {
		s.pending.Store(p)
		return nil, entities.ErrPendingActionNotFound
	}
	if p.Expired(s.clock.Now()) {
		return nil, entities.ErrPendingActionNotFound
	}
	return p, nil
}

func (s *StreakService) commitPending(
	ctx context.Context,
	userID int64,
	id uuid.UUID,
	kind entities.ActionKind,
	acknowledged bool,
) (ConfirmResult, error) {
	p, err := s.takePending(userID, id, kind)
	if err != nil {
		return ConfirmResult{}, err
	}

	if p.Report.Warned() && !acknowledged {
		s.pending.Store(p)
		metrics.GuardDecision(string(p.Action.Kind), "rejected")
		return ConfirmResult{}, entities.ErrGuardViolation
	}

	if err := p.Transition(entities.GuardCommitting); err != nil {
		return ConfirmResult{}, err
	}

	var res ConfirmResult
	err = s.withRetry(ctx, "confirm", func() error {
		st, err := s.run(ctx, userID, func(ctx context.Context, r Repos, st *userState) error {
			return s.applyPending(ctx, r, st, p)
		})
		if err != nil {
			return err
		}
		res = ConfirmResult{
			Action:   p.Action,
			Report:   p.Report,
			Progress: s.progressView(st.user, st.now),
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, entities.ErrStaleImpact) {
			metrics.GuardDecision(string(p.Action.Kind), "stale")
			s.logger.Info("pending action is stale",
				zap.Int64("user_id", userID),
				zap.String("action_id", id.String()),
			)
			return ConfirmResult{}, err
		}
		// Nothing was applied; the user may confirm again.
		_ = p.Transition(entities.GuardChecking)
		s.pending.Store(p)
		return ConfirmResult{}, err
	}

	_ = p.Transition(entities.GuardCommitted)
	metrics.GuardDecision(string(p.Action.Kind), "confirmed")
	s.logger.Info("pending action confirmed",
		zap.Int64("user_id", userID),
		zap.String("action_id", id.String()),
		zap.String("action", string(p.Action.Kind)),
		zap.Int("streak_before", p.Report.StreakBefore),
		zap.Int("streak_after", p.Report.StreakAfter),
	)

	return res, nil
}

// applyPending re-verifies a pending action against current state and applies it.
// It fails with ErrStaleImpact when anything the report was based on changed.
func (s *StreakService) applyPending(ctx context.Context, r Repos, st *userState, p *entities.PendingAction) error {
	if st.loadedVersion != p.Basis.UserVersion {
		return entities.ErrStaleImpact
	}

	stack, err := r.Stacks.GetForUpdate(ctx, p.Action.UserID, p.Action.StackID)
	if err != nil {
		if errors.Is(err, entities.ErrStackNotFound) {
			return entities.ErrStaleImpact
		}
		return fmt.Errorf("get stack for update: %w", err)
	}
	if stack.Version != p.Basis.StackVersion {
		return entities.ErrStaleImpact
	}

	user := st.user.Clone()
	updated := stack.Clone()

	switch p.Action.Kind {
	case entities.ActionDowngradeCard:
		eff, err := s.applyRating(user, updated, st.stacks, p.Action, st.now)
		if err != nil {
			return err
		}
		if eff.report != p.Report {
			return entities.ErrStaleImpact
		}
		return s.commitRating(ctx, r, st, user, updated, eff)

	case entities.ActionDeleteStack:
		report := s.applyDeletion(user, updated, st.stacks, st.now)
		if report != p.Report {
			return entities.ErrStaleImpact
		}
		if err := r.Stacks.Delete(ctx, stack); err != nil {
			return fmt.Errorf("delete stack: %w", err)
		}
		st.user = user
		st.stacks = withStack(st.stacks, stack.ID, nil)
		st.dirty = true
		st.checkpoint(entities.AuditDeletion)
		if report.StreakImpact {
			st.onCommit(func() { metrics.StreakReset("downgrade") })
		}
		if report.ResetOnUnfreeze {
			st.onCommit(func() { metrics.StreakReset("deferred") })
		}
		return nil
	}

	return fmt.Errorf("unknown action %q: %w", p.Action.Kind, entities.ErrGuardViolation)
}

// applyDeletion removes the stack's contribution from today's counter and
// from the freeze set, mutating user.
func (s *StreakService) applyDeletion(
	user *entities.UserStreak,
	stack *entities.Stack,
	stacks []*entities.Stack,
	now time.Time,
) entities.ImpactReport {
	p := s.opts.Policy
	before := user.Clone()

	plan := user.ApplyDowngrade(stack.MasteredOnDay(user.Today(now)), p.DailyRequirement)
	fr := user.RefreshFreeze(withStack(stacks, stack.ID, nil), now)

	return entities.ImpactReport{
		Action:                entities.ActionDeleteStack,
		StackID:               stack.ID,
		CardsTodayBefore:      before.CardsMasteredToday,
		CardsTodayAfter:       user.CardsMasteredToday,
		StreakBefore:          before.CurrentStreak,
		StreakAfter:           user.CurrentStreak,
		DropsBelowRequirement: plan.DropsBelowRequirement,
		StreakImpact:          plan.StreakImpact,
		DiscardsPendingTest:   stack.Status == entities.StackPendingTest,
		UnfreezesStreak:       fr.Unfrozen,
		ResetOnUnfreeze:       fr.ResetApplied,
	}
}
