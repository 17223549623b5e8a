package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/aliskhannn/lingua-streak-bot/internal/app"
	"github.com/aliskhannn/lingua-streak-bot/internal/domain/entities"
	"github.com/aliskhannn/lingua-streak-bot/internal/service"
	"github.com/aliskhannn/lingua-streak-bot/internal/storage"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	History int
}

type showResult struct {
	UserID             int64         `json:"user_id"`
	Timezone           string        `json:"timezone"`
	CurrentStreak      int           `json:"current_streak"`
	LongestStreak      int           `json:"longest_streak"`
	CardsMasteredToday int           `json:"cards_mastered_today"`
	DailyRequirement   int           `json:"daily_requirement"`
	StreakAwardedToday bool          `json:"streak_awarded_today"`
	StreakFrozen       bool          `json:"streak_frozen"`
	FrozenStackIDs     []int64       `json:"frozen_stack_ids"`
	ResetPending       bool          `json:"reset_pending"`
	DisplayDeadline    time.Time     `json:"display_deadline"`
	Cutoff             time.Time     `json:"cutoff"`
	TimeRemaining      string        `json:"time_remaining"`
	Stacks             []stackResult `json:"stacks"`
	History            []auditResult `json:"history,omitempty"`
}

type stackResult struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Status        string     `json:"status"`
	Mastered      int        `json:"mastered"`
	Cards         int        `json:"cards"`
	TestDeadline  *time.Time `json:"test_deadline,omitempty"`
	Overdue       bool       `json:"overdue"`
	LastTestScore *int       `json:"last_test_score,omitempty"`
}

type auditResult struct {
	At     time.Time `json:"at"`
	Reason string    `json:"reason"`
	Before int       `json:"streak_before"`
	After  int       `json:"streak_after"`
	Frozen []int64   `json:"frozen_after,omitempty"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <user-id>",
		Short: "Show a learner's streak, stacks and recent streak changes",
		Long: `Show the progress view of one learner as the bot would compute it now.

Reading brings the learner's state up to date, exactly like opening the bot.

Examples:
  streakctl show 123456789
  streakctl show 123456789 --history 20 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid user id", err)
			}
			return runShow(cmd, opts, userID)
		},
	}

	cmd.Flags().IntVar(&opts.History, "history", 10, "number of streak changes to show")

	return cmd
}

func runShow(cmd *cobra.Command, opts *ShowOptions, userID int64) error {
	ctx := cmd.Context()
	e, err := opts.open(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	streaks := app.NewStreakService(e.cfg.Streak, e.storage.Transactor, storage.NewPendingStorage(), e.logger)

	view, err := streaks.GetProgress(ctx, userID)
	if err != nil {
		if errors.Is(err, entities.ErrUserNotFound) {
			return WrapExitError(ExitCommandError, fmt.Sprintf("user %d", userID), err)
		}
		return WrapExitError(ExitCommandError, "failed to get progress", err)
	}
	stacks, err := streaks.ListStacks(ctx, userID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list stacks", err)
	}

	var history []*entities.StreakAuditEntry
	if opts.History > 0 {
		if history, err = streaks.History(ctx, userID, opts.History); err != nil {
			return WrapExitError(ExitCommandError, "failed to get history", err)
		}
	}

	res := buildShowResult(view, stacks, history)
	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	writeShowText(cmd.OutOrStdout(), res)
	return nil
}

func buildShowResult(v service.ProgressView, stacks []service.StackView, history []*entities.StreakAuditEntry) showResult {
	res := showResult{
		UserID:             v.UserID,
		Timezone:           v.Timezone,
		CurrentStreak:      v.CurrentStreak,
		LongestStreak:      v.LongestStreak,
		CardsMasteredToday: v.CardsMasteredToday,
		DailyRequirement:   v.DailyRequirement,
		StreakAwardedToday: v.StreakAwardedToday,
		StreakFrozen:       v.StreakFrozen,
		FrozenStackIDs:     v.FrozenStackIDs,
		ResetPending:       v.ResetPending,
		DisplayDeadline:    v.Deadlines.Display,
		Cutoff:             v.Deadlines.Cutoff,
		TimeRemaining:      entities.FormatRemaining(v.TimeRemaining),
		Stacks:             make([]stackResult, 0, len(stacks)),
	}
	for _, s := range stacks {
		res.Stacks = append(res.Stacks, stackResult{
			ID:            s.ID,
			Title:         s.Title,
			Status:        string(s.Status),
			Mastered:      s.MasteredCount,
			Cards:         s.CardCount,
			TestDeadline:  s.TestDeadline,
			Overdue:       s.Overdue,
			LastTestScore: s.LastTestScore,
		})
	}
	for _, h := range history {
		res.History = append(res.History, auditResult{
			At:     h.CreatedAt,
			Reason: string(h.Reason),
			Before: h.Before.CurrentStreak,
			After:  h.After.CurrentStreak,
			Frozen: h.After.FrozenStackIDs,
		})
	}
	return res
}

func writeShowText(w io.Writer, r showResult) {
	fmt.Fprintf(w, "user %d (%s)\n", r.UserID, r.Timezone)
	fmt.Fprintf(w, "  streak:  %d (longest %d)\n", r.CurrentStreak, r.LongestStreak)
	fmt.Fprintf(w, "  today:   %d/%d mastered, awarded=%t\n", r.CardsMasteredToday, r.DailyRequirement, r.StreakAwardedToday)
	fmt.Fprintf(w, "  cutoff:  %s (shown as %s), safe for %s\n",
		r.Cutoff.Format(time.RFC3339), r.DisplayDeadline.Format(time.RFC3339), r.TimeRemaining)
	if r.StreakFrozen {
		fmt.Fprintf(w, "  frozen:  stacks %v, reset pending=%t\n", r.FrozenStackIDs, r.ResetPending)
	}

	fmt.Fprintf(w, "stacks (%d)\n", len(r.Stacks))
	for _, s := range r.Stacks {
		fmt.Fprintf(w, "  #%d %-20s %-12s %d/%d", s.ID, s.Title, s.Status, s.Mastered, s.Cards)
		if s.TestDeadline != nil {
			fmt.Fprintf(w, " test by %s", s.TestDeadline.Format(time.RFC3339))
		}
		if s.Overdue {
			fmt.Fprint(w, " OVERDUE")
		}
		fmt.Fprintln(w)
	}

	if len(r.History) > 0 {
		fmt.Fprintln(w, "history")
		for _, h := range r.History {
			fmt.Fprintf(w, "  %s %-18s %d -> %d\n", h.At.Format(time.RFC3339), h.Reason, h.Before, h.After)
		}
	}
}
