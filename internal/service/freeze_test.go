package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aliskhannn/lingua-streak-bot/internal/domain/entities"
	"github.com/aliskhannn/lingua-streak-bot/internal/service"
	"github.com/aliskhannn/lingua-streak-bot/internal/storage"
)

type fakeNotifier struct {
	mu         sync.Mutex
	notices    *storage.NoticeStorage
	frozen     map[int64][]int64
	lastChance []int64
}

func newFakeNotifier(notices *storage.NoticeStorage) *fakeNotifier {
	return &fakeNotifier{notices: notices, frozen: make(map[int64][]int64)}
}

func (n *fakeNotifier) NotifyFrozen(_ context.Context, chatID int64, stackIDs []int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.frozen[chatID] = stackIDs
	return nil
}

func (n *fakeNotifier) NotifyLastChance(_ context.Context, userID, chatID int64, view service.ProgressView) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lastChance = append(n.lastChance, userID)
	n.notices.UpsertAndGetPrev(userID, storage.NoticeMessage{ChatID: chatID, Day: view.GoalDay()})
	return nil
}

func TestFreeze_OverdueTestFreezesUntilSubmitted(t *testing.T) {
	e := newTestEnv(t)
	e.user(t, 1, "UTC")
	stackID, cards := e.stack(t, 1, 1)
	e.masterAll(t, 1, stackID, cards)
	ctx := context.Background()

	// Deadline is 25 hours after mastery.
	e.clock.Advance(25 * time.Hour)
	assert.False(t, e.progress(t, 1).StreakFrozen)

	e.clock.Advance(time.Minute)
	p := e.progress(t, 1)
	assert.True(t, p.StreakFrozen)
	assert.Equal(t, []int64{stackID}, p.FrozenStackIDs)

	view, err := e.svc.GetStack(ctx, 1, stackID)
	require.NoError(t, err)
	assert.True(t, view.Overdue)

	sub, err := e.svc.SubmitTestResult(ctx, 1, stackID, 50)
	require.NoError(t, err)
	assert.True(t, sub.Outcome.WasOverdue)
	assert.True(t, sub.Unfrozen)
	assert.False(t, sub.Progress.StreakFrozen)
	assert.Equal(t, entities.StackPendingTest, sub.Stack.Status)
	assert.Nil(t, sub.Stack.TestDeadline)
}

func TestFreeze_DefersResetUntilUnfrozen(t *testing.T) {
	e := newTestEnv(t)
	e.user(t, 1, "UTC")
	ctx := context.Background()

	// Day one: a five-card stack is mastered, which also meets the requirement.
	// Its test is due 29 hours later, in the middle of day two.
	stackID, cards := e.stack(t, 1, 5)
	out := e.masterAll(t, 1, stackID, cards)
	require.Equal(t, 1, out.Progress.CurrentStreak)

	// Day two is missed while the test is overdue.
	e.clock.Advance(48 * time.Hour)
	p := e.progress(t, 1)
	assert.Equal(t, 1, p.CurrentStreak)
	assert.True(t, p.ResetPending)
	assert.True(t, p.StreakFrozen)

	// Day three is credited on top of the frozen streak.
	res := masterDay(t, e, 1)
	assert.Equal(t, 1, res.crossings)
	assert.Equal(t, 2, res.last.CurrentStreak)
	assert.Equal(t, 2, res.last.LongestStreak)

	// Unfreezing breaks the chain at the missed day.
	sub, err := e.svc.SubmitTestResult(ctx, 1, stackID, 100)
	require.NoError(t, err)
	assert.True(t, sub.Unfrozen)
	assert.True(t, sub.Outcome.Completed)
	assert.Equal(t, 1, sub.Progress.CurrentStreak)
	assert.Equal(t, 2, sub.Progress.LongestStreak)
	assert.False(t, sub.Progress.ResetPending)
}

func TestFreeze_MissedDayBeforeDeadlineResets(t *testing.T) {
	e := newTestEnv(t)
	e.user(t, 1, "UTC")

	// A long stack gets a window that outlasts the missed day.
	masterDay(t, e, 1)
	stackID, cards := e.stack(t, 1, 40)
	e.masterAll(t, 1, stackID, cards)

	e.clock.Advance(48 * time.Hour)
	p := e.progress(t, 1)
	assert.Equal(t, 0, p.CurrentStreak)
	assert.False(t, p.ResetPending)
	assert.False(t, p.StreakFrozen)
}

func TestFreezeScheduler_SweepFreezesAndNotifies(t *testing.T) {
	e := newTestEnv(t)
	e.user(t, 1, "UTC")
	e.user(t, 2, "UTC")
	stackID, cards := e.stack(t, 1, 1)
	e.masterAll(t, 1, stackID, cards)

	notices := storage.NewNoticeStorage()
	notifier := newFakeNotifier(notices)
	sched := service.NewFreezeScheduler(e.svc, e.tr, notices, "@every 1m", zap.NewNop())
	sched.SetNotifier(notifier)

	e.clock.Advance(26 * time.Hour)
	report, err := sched.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Visited)
	assert.Equal(t, 1, report.Frozen)
	assert.Equal(t, 1, report.Newly)
	assert.Zero(t, report.Failed)
	assert.Equal(t, []int64{stackID}, notifier.frozen[100])

	report, err = sched.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Frozen)
	assert.Zero(t, report.Newly)
}

func TestFreezeScheduler_LastChanceOncePerDay(t *testing.T) {
	e := newTestEnv(t)
	e.user(t, 1, "UTC")
	masterDay(t, e, 1)

	notices := storage.NewNoticeStorage()
	notifier := newFakeNotifier(notices)
	sched := service.NewFreezeScheduler(e.svc, e.tr, notices, "@every 1m", zap.NewNop())
	sched.SetNotifier(notifier)

	// Day two at 21:00 is before the displayed deadline.
	e.clock.Set(time.Date(2025, 3, 11, 21, 0, 0, 0, time.UTC))
	report, err := sched.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Warned)

	e.clock.Set(time.Date(2025, 3, 11, 23, 0, 0, 0, time.UTC))
	report, err = sched.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Warned)

	report, err = sched.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Warned)
	assert.Equal(t, []int64{1}, notifier.lastChance)
}

func TestFreezeScheduler_StartRejectsBadSchedule(t *testing.T) {
	e := newTestEnv(t)
	sched := service.NewFreezeScheduler(e.svc, e.tr, storage.NewNoticeStorage(), "not a schedule", zap.NewNop())

	err := sched.Start(context.Background())
	assert.Error(t, err)
}
