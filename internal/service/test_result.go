package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aliskhannn/lingua-streak-bot/internal/domain/entities"
	"github.com/aliskhannn/lingua-streak-bot/internal/metrics"
)

// TestSubmission is the result of submitting a mastery test.
type TestSubmission struct {
	Outcome  entities.TestOutcome
	Unfrozen bool // the submission lifted the streak freeze
	Stack    StackView
	Progress ProgressView
}

// SubmitTestResult records a mastery test score for a stack.
func (s *StreakService) SubmitTestResult(ctx context.Context, userID, stackID int64, score int) (TestSubmission, error) {
	if score < 0 || score > entities.PerfectScore {
		return TestSubmission{}, entities.ErrInvalidScore
	}

	var out TestSubmission
	err := s.withRetry(ctx, "submit_test_result", func() error {
		out = TestSubmission{}
		st, err := s.run(ctx, userID, func(ctx context.Context, r Repos, st *userState) error {
			stack, err := r.Stacks.GetForUpdate(ctx, userID, stackID)
			if err != nil {
				return fmt.Errorf("get stack for update: %w", err)
			}

			// 1. Scheduler: clear the deadline, complete on a perfect score.
			outcome, err := stack.SubmitTest(score, st.now)
			if err != nil {
				return err
			}

			if err := r.Stacks.SaveTestResult(ctx, &entities.TestResult{
				StackID:     stack.ID,
				UserID:      userID,
				Score:       score,
				SubmittedAt: st.now,
			}); err != nil {
				return fmt.Errorf("save test result: %w", err)
			}
			if err := r.Stacks.Update(ctx, stack); err != nil {
				return fmt.Errorf("update stack: %w", err)
			}

			// 2. Freeze manager: the stack no longer has a deadline.
			st.stacks = withStack(st.stacks, stack.ID, stack)
			fr := st.user.RefreshFreeze(st.stacks, st.now)
			if fr.ResetApplied {
				st.onCommit(func() { metrics.StreakReset("deferred") })
			}
			st.checkpoint(entities.AuditTest)

			out.Outcome = outcome
			out.Unfrozen = fr.Unfrozen
			out.Stack = s.stackView(stack, st.now)
			return nil
		})
		if err != nil {
			return err
		}
		out.Progress = s.progressView(st.user, st.now)
		return nil
	})
	if err != nil {
		return TestSubmission{}, err
	}

	s.logger.Info("test submitted",
		zap.Int64("user_id", userID),
		zap.Int64("stack_id", stackID),
		zap.Int("score", score),
		zap.Bool("completed", out.Outcome.Completed),
		zap.Bool("was_overdue", out.Outcome.WasOverdue),
	)

	return out, nil
}
