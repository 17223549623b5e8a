package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aliskhannn/lingua-streak-bot/internal/domain/entities"
	"github.com/aliskhannn/lingua-streak-bot/internal/metrics"
)

// RatingOutcome is the tagged result of a rating submission. When Pending
// is set nothing was applied: the downgrade needs an explicit confirmation.
type RatingOutcome struct {
	Applied  bool
	Change   entities.RatingChange
	Crossed  bool // today's requirement was reached by this rating
	Pending  *entities.PendingAction
	Progress ProgressView
	Stack    StackView
}

// ratingEffect is everything a rating does to the user's state.
type ratingEffect struct {
	change    entities.RatingChange
	mastery   entities.MasteryResult
	downgrade entities.DowngradePlan
	freeze    entities.FreezeResult
	report    entities.ImpactReport
}

// SubmitRating records a self-assessment of a card. Streak-impacting
// downgrades are not applied; they come back as a pending action.
func (s *StreakService) SubmitRating(
	ctx context.Context,
	userID, stackID, cardID int64,
	rating entities.Rating,
) (RatingOutcome, error) {
	if !rating.Valid() {
		return RatingOutcome{}, entities.ErrInvalidRating
	}
	action := entities.Action{
		Kind:    entities.ActionDowngradeCard,
		UserID:  userID,
		StackID: stackID,
		CardID:  cardID,
		Rating:  rating,
	}

	var out RatingOutcome
	err := s.withRetry(ctx, "submit_rating", func() error {
		out = RatingOutcome{}
		st, err := s.run(ctx, userID, func(ctx context.Context, r Repos, st *userState) error {
			stack, err := r.Stacks.GetForUpdate(ctx, userID, stackID)
			if err != nil {
				return fmt.Errorf("get stack for update: %w", err)
			}

			// 1. Simulate on copies; the report is what a confirmation would show.
			user := st.user.Clone()
			updated := stack.Clone()
			eff, err := s.applyRating(user, updated, st.stacks, action, st.now)
			if err != nil {
				return err
			}

			// 2. Impacting downgrades stop here. Only the time-driven
			// maintenance done by access is persisted.
			if eff.report.RequiresConfirmation() {
				out.Pending = entities.NewPendingAction(action, eff.report, entities.Fingerprint{
					StackVersion: stack.Version,
				}, st.now, s.opts.PendingTTL)
				out.Stack = s.stackView(stack, st.now)
				return nil
			}

			// 3. Safe: commit the simulated state.
			if err := s.commitRating(ctx, r, st, user, updated, eff); err != nil {
				return err
			}
			out.Applied = true
			out.Change = eff.change
			out.Crossed = eff.mastery.Crossed
			out.Stack = s.stackView(updated, st.now)
			return nil
		})
		if err != nil {
			return err
		}

		if out.Pending != nil {
			// The basis is the user row as it stands after this commit.
			out.Pending.Basis.UserVersion = st.user.Version
			s.pending.Store(out.Pending)
			metrics.GuardDecision(string(action.Kind), "confirmation_required")
			s.logger.Info("rating downgrade needs confirmation",
				zap.Int64("user_id", userID),
				zap.Int64("stack_id", stackID),
				zap.Int64("card_id", cardID),
				zap.String("action_id", out.Pending.ID.String()),
				zap.Bool("streak_impact", out.Pending.Report.StreakImpact),
			)
		}
		out.Progress = s.progressView(st.user, st.now)
		return nil
	})

	return out, err
}

// CheckRating computes the impact of a rating without applying anything.
func (s *StreakService) CheckRating(
	ctx context.Context,
	userID, stackID, cardID int64,
	rating entities.Rating,
) (entities.ImpactReport, error) {
	if !rating.Valid() {
		return entities.ImpactReport{}, entities.ErrInvalidRating
	}
	action := entities.Action{
		Kind:    entities.ActionDowngradeCard,
		UserID:  userID,
		StackID: stackID,
		CardID:  cardID,
		Rating:  rating,
	}

	var report entities.ImpactReport
	_, err := s.simulate(ctx, userID, func(ctx context.Context, r Repos, st *userState) error {
		stack, err := r.Stacks.Get(ctx, userID, stackID)
		if err != nil {
			return fmt.Errorf("get stack: %w", err)
		}
		eff, err := s.applyRating(st.user.Clone(), stack.Clone(), st.stacks, action, st.now)
		if err != nil {
			return err
		}
		report = eff.report
		return nil
	})

	return report, err
}

// applyRating runs a rating through the scheduler, the daily counter, the
// streak ledger and the freeze manager, mutating user and stack.
func (s *StreakService) applyRating(
	user *entities.UserStreak,
	stack *entities.Stack,
	stacks []*entities.Stack,
	action entities.Action,
	now time.Time,
) (ratingEffect, error) {
	p := s.opts.Policy
	today := user.Today(now)
	before := user.Clone()

	ch, err := stack.ApplyRating(action.CardID, action.Rating, today, now, p)
	if err != nil {
		return ratingEffect{}, err
	}

	eff := ratingEffect{change: ch}
	if ch.Mastered {
		eff.mastery = user.RecordMastery(p.DailyRequirement)
		if eff.mastery.Crossed {
			user.OnThresholdCrossed()
		}
	}
	if ch.Unmastered && ch.CountedToday {
		eff.downgrade = user.ApplyDowngrade(1, p.DailyRequirement)
	}

	eff.freeze = user.RefreshFreeze(withStack(stacks, stack.ID, stack), now)

	eff.report = entities.ImpactReport{
		Action:                action.Kind,
		StackID:               stack.ID,
		CardID:                action.CardID,
		CardsTodayBefore:      before.CardsMasteredToday,
		CardsTodayAfter:       user.CardsMasteredToday,
		StreakBefore:          before.CurrentStreak,
		StreakAfter:           user.CurrentStreak,
		DropsBelowRequirement: eff.downgrade.DropsBelowRequirement,
		StreakImpact:          eff.downgrade.StreakImpact,
		MasteryLost:           ch.MasteryLost,
		DiscardsPendingTest:   ch.DiscardedTest,
		UnfreezesStreak:       eff.freeze.Unfrozen,
		ResetOnUnfreeze:       eff.freeze.ResetApplied,
	}

	return eff, nil
}

// commitRating persists a rating that was simulated on user and stack.
func (s *StreakService) commitRating(
	ctx context.Context,
	r Repos,
	st *userState,
	user *entities.UserStreak,
	stack *entities.Stack,
	eff ratingEffect,
) error {
	if err := r.Stacks.Update(ctx, stack); err != nil {
		return fmt.Errorf("update stack: %w", err)
	}

	st.user = user
	st.stacks = withStack(st.stacks, stack.ID, stack)
	st.dirty = true

	switch {
	case eff.mastery.Crossed:
		st.checkpoint(entities.AuditThreshold)
		st.onCommit(metrics.ThresholdCrossed)
	case eff.downgrade.StreakImpact:
		st.checkpoint(entities.AuditDowngrade)
		st.onCommit(func() { metrics.StreakReset("downgrade") })
	default:
		st.checkpoint(entities.AuditFreeze)
	}
	if eff.freeze.ResetApplied {
		st.onCommit(func() { metrics.StreakReset("deferred") })
	}

	if eff.change.MasteryReached {
		st.onCommit(func() {
			s.logger.Info("stack reached mastery",
				zap.Int64("user_id", stack.UserID),
				zap.Int64("stack_id", stack.ID),
				zap.Timep("test_deadline", stack.TestDeadline),
			)
		})
	}

	return nil
}
