package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/aliskhannn/lingua-streak-bot/internal/domain/entities"
	"github.com/aliskhannn/lingua-streak-bot/internal/metrics"
)

// NoticeLog remembers which "last chance" notices went out.
type NoticeLog interface {
	SentOn(userID int64, day time.Time) bool
}

// SweepReport summarizes one freeze sweep.
type SweepReport struct {
	Visited  int
	Frozen   int // users whose streak is frozen after the sweep
	Newly    int // users frozen by this sweep
	Unfrozen int
	Warned   int // "last chance" notices sent
	Failed   int
}

// FreezeScheduler runs the Freeze Manager pass for every user on a cron
// schedule, so overdue tests freeze streaks even for users who do not open
// the bot, and warns users whose day is in its grace period.
type FreezeScheduler struct {
	svc      *StreakService
	tr       Transactor
	notifier StreakNotifier
	notices  NoticeLog
	schedule string
	logger   *zap.Logger
}

// NewFreezeScheduler creates a new freeze scheduler. schedule is a cron expression.
func NewFreezeScheduler(svc *StreakService, tr Transactor, notices NoticeLog, schedule string, logger *zap.Logger) *FreezeScheduler {
	return &FreezeScheduler{
		svc:      svc,
		tr:       tr,
		notices:  notices,
		schedule: schedule,
		logger:   logger,
	}
}

// SetNotifier sets the notifier (called after handler is created).
func (f *FreezeScheduler) SetNotifier(notifier StreakNotifier) {
	f.notifier = notifier
}

// Start runs the sweep on schedule until ctx is cancelled.
func (f *FreezeScheduler) Start(ctx context.Context) error {
	c := cron.New(cron.WithLocation(time.UTC))

	_, err := c.AddFunc(f.schedule, func() {
		if _, err := f.Sweep(ctx); err != nil {
			f.logger.Error("freeze sweep failed", zap.Error(err))
		}
		if n := f.svc.PurgeExpired(); n > 0 {
			f.logger.Debug("expired pending actions purged", zap.Int("count", n))
		}
	})
	if err != nil {
		return fmt.Errorf("add freeze sweep job: %w", err)
	}

	c.Start()
	f.logger.Info("freeze scheduler started", zap.String("schedule", f.schedule))

	<-ctx.Done()

	<-c.Stop().Done()
	f.logger.Info("freeze scheduler stopped")
	return nil
}

// Sweep visits every user that has deadlines, a frozen streak or a streak to lose.
func (f *FreezeScheduler) Sweep(ctx context.Context) (SweepReport, error) {
	const batchSize = 100
	started := time.Now()
	var report SweepReport

	// Keyset paging: a refresh can drop a user from the candidate set.
	var afterID int64
	for {
		var targets []entities.SweepTarget
		err := f.tr.WithinTx(ctx, func(ctx context.Context, r Repos) error {
			var err error
			targets, err = r.Users.ListSweepTargets(ctx, afterID, batchSize)
			return err
		})
		if err != nil {
			return report, fmt.Errorf("list sweep targets: %w", err)
		}

		if len(targets) == 0 {
			break
		}

		f.processBatch(ctx, targets, &report)
		afterID = targets[len(targets)-1].UserID

		if len(targets) < batchSize {
			break
		}
	}

	metrics.ObserveSweep(started, report.Frozen)
	f.logger.Info("freeze sweep finished",
		zap.Int("visited", report.Visited),
		zap.Int("frozen", report.Frozen),
		zap.Int("newly_frozen", report.Newly),
		zap.Int("unfrozen", report.Unfrozen),
		zap.Int("warned", report.Warned),
		zap.Int("failed", report.Failed),
	)

	return report, nil
}

// processBatch refreshes a batch of users concurrently.
func (f *FreezeScheduler) processBatch(ctx context.Context, targets []entities.SweepTarget, report *SweepReport) {
	const maxConcurrent = 10
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, target := range targets {
		wg.Add(1)
		sem <- struct{}{} // Acquire

		go func() {
			defer wg.Done()
			defer func() { <-sem }() // Release

			res, err := f.processUser(ctx, target)

			mu.Lock()
			defer mu.Unlock()
			report.Visited++
			if err != nil {
				report.Failed++
				f.logger.Error("failed to refresh user",
					zap.Int64("user_id", target.UserID),
					zap.Error(err))
				return
			}
			if res.frozen {
				report.Frozen++
			}
			if res.fr.Frozen {
				report.Newly++
			}
			if res.fr.Unfrozen {
				report.Unfrozen++
			}
			if res.warned {
				report.Warned++
			}
		}()
	}

	wg.Wait()
}

type userSweep struct {
	fr     entities.FreezeResult
	frozen bool
	warned bool
}

func (f *FreezeScheduler) processUser(ctx context.Context, target entities.SweepTarget) (userSweep, error) {
	view, fr, err := f.svc.RefreshUser(ctx, target.UserID)
	if err != nil {
		return userSweep{}, err
	}

	res := userSweep{fr: fr, frozen: view.StreakFrozen}
	if f.notifier == nil {
		return res, nil
	}

	if fr.Frozen {
		if err := f.notifier.NotifyFrozen(ctx, target.ChatID, view.FrozenStackIDs); err != nil {
			return res, fmt.Errorf("notify frozen: %w", err)
		}
	}

	// Only users with something to lose are warned, once per local day.
	if view.InGrace && view.CurrentStreak > 0 && !f.notices.SentOn(target.UserID, view.GoalDay()) {
		if err := f.notifier.NotifyLastChance(ctx, target.UserID, target.ChatID, view); err != nil {
			return res, fmt.Errorf("notify last chance: %w", err)
		}
		res.warned = true
	}

	return res, nil
}
