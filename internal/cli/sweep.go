package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aliskhannn/lingua-streak-bot/internal/app"
	"github.com/aliskhannn/lingua-streak-bot/internal/service"
	"github.com/aliskhannn/lingua-streak-bot/internal/storage"
)

type sweepResult struct {
	Visited  int `json:"visited"`
	Frozen   int `json:"frozen"`
	Newly    int `json:"newly_frozen"`
	Unfrozen int `json:"unfrozen"`
	Failed   int `json:"failed"`
}

// NewSweepCommand creates the sweep command.
func NewSweepCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one freeze sweep",
		Long: `Bring every user with a streak, a frozen streak or a test deadline
up to date: roll over missed days and freeze streaks whose tests are overdue.

No notifications are sent; the bot's scheduler does that.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			streaks := app.NewStreakService(e.cfg.Streak, e.storage.Transactor, storage.NewPendingStorage(), e.logger)
			scheduler := service.NewFreezeScheduler(streaks, e.storage.Transactor, storage.NewNoticeStorage(),
				e.cfg.Streak.FreezeSweepCron, e.logger)

			report, err := scheduler.Sweep(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "sweep failed", err)
			}

			res := sweepResult{
				Visited:  report.Visited,
				Frozen:   report.Frozen,
				Newly:    report.Newly,
				Unfrozen: report.Unfrozen,
				Failed:   report.Failed,
			}
			if opts.Format == "json" {
				if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "visited %d users: %d frozen (%d newly), %d unfrozen, %d failed\n",
					res.Visited, res.Frozen, res.Newly, res.Unfrozen, res.Failed)
			}

			if res.Failed > 0 {
				return NewExitError(ExitFailure, fmt.Sprintf("%d users could not be refreshed", res.Failed))
			}
			return nil
		},
	}
}
