package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func never(time.Time) bool { return false }

func always(time.Time) bool { return true }

func TestRecordMastery_CreditsOnceAndKeepsLongest(t *testing.T) {
	today := date(2025, 3, 10)
	u := NewUserStreak(1, "UTC")
	u.CurrentStreak = 3
	u.LongestStreak = 5
	u.LastMasteryDate = &today

	crossings := 0
	for range 5 {
		res := u.RecordMastery(5)
		if res.Crossed {
			u.OnThresholdCrossed()
			crossings++
		}
	}

	assert.Equal(t, 5, u.CardsMasteredToday)
	assert.Equal(t, 1, crossings)
	assert.Equal(t, 4, u.CurrentStreak)
	assert.Equal(t, 5, u.LongestStreak)
	assert.True(t, u.StreakAwardedToday)
}

func TestRecordMastery_FiresOncePerDay(t *testing.T) {
	u := NewUserStreak(1, "UTC")

	crossings := 0
	for range 12 {
		if u.RecordMastery(5).Crossed {
			u.OnThresholdCrossed()
			crossings++
		}
	}

	assert.Equal(t, 1, crossings)
	assert.Equal(t, 1, u.CurrentStreak)
	assert.Equal(t, 1, u.LongestStreak)
	assert.Equal(t, 12, u.CardsMasteredToday)
}

func TestOnThresholdCrossed_RaisesLongest(t *testing.T) {
	u := NewUserStreak(1, "UTC")
	u.CurrentStreak = 7
	u.LongestStreak = 7

	u.OnThresholdCrossed()

	assert.Equal(t, 8, u.CurrentStreak)
	assert.Equal(t, 8, u.LongestStreak)
}

func TestApplyDayRollover_MissedDayResetsStreak(t *testing.T) {
	yesterday := date(2025, 3, 9)
	u := NewUserStreak(1, "UTC")
	u.LastMasteryDate = &yesterday
	u.CardsMasteredToday = 3
	u.CurrentStreak = 6
	u.LongestStreak = 9

	res := u.ApplyDayRollover(date(2025, 3, 10), 5, never)

	assert.True(t, res.Rolled)
	assert.True(t, res.Missed)
	assert.True(t, res.Reset)
	assert.Equal(t, 0, u.CurrentStreak)
	assert.Equal(t, 0, u.CardsMasteredToday)
	assert.Equal(t, 9, u.LongestStreak)
	assert.False(t, u.StreakAwardedToday)
	assert.Equal(t, date(2025, 3, 10), *u.LastMasteryDate)
}

func TestApplyDayRollover_Idempotent(t *testing.T) {
	yesterday := date(2025, 3, 9)
	u := NewUserStreak(1, "UTC")
	u.LastMasteryDate = &yesterday
	u.CardsMasteredToday = 5
	u.StreakAwardedToday = true
	u.CurrentStreak = 2
	u.LongestStreak = 2

	first := u.ApplyDayRollover(date(2025, 3, 10), 5, never)
	require.True(t, first.Rolled)
	assert.False(t, first.Missed)

	u.RecordMastery(5)
	second := u.ApplyDayRollover(date(2025, 3, 10), 5, never)

	assert.Equal(t, RolloverResult{}, second)
	assert.Equal(t, 1, u.CardsMasteredToday)
	assert.Equal(t, 2, u.CurrentStreak)
}

func TestApplyDayRollover_MetYesterdayKeepsStreak(t *testing.T) {
	yesterday := date(2025, 3, 9)
	u := NewUserStreak(1, "UTC")
	u.LastMasteryDate = &yesterday
	u.CardsMasteredToday = 8
	u.StreakAwardedToday = true
	u.CurrentStreak = 4
	u.LongestStreak = 4

	res := u.ApplyDayRollover(date(2025, 3, 10), 5, never)

	assert.False(t, res.Missed)
	assert.Equal(t, 4, u.CurrentStreak)
	assert.Equal(t, 0, u.CardsMasteredToday)
	assert.False(t, u.StreakAwardedToday)
}

func TestApplyDayRollover_GapOfSeveralDaysResets(t *testing.T) {
	last := date(2025, 3, 6)
	u := NewUserStreak(1, "UTC")
	u.LastMasteryDate = &last
	u.CardsMasteredToday = 9
	u.StreakAwardedToday = true
	u.CurrentStreak = 4
	u.LongestStreak = 4

	res := u.ApplyDayRollover(date(2025, 3, 10), 5, never)

	assert.True(t, res.Reset)
	assert.Equal(t, 0, u.CurrentStreak)
	assert.Equal(t, 4, u.LongestStreak)
}

func TestApplyDayRollover_FrozenDefersReset(t *testing.T) {
	yesterday := date(2025, 3, 9)
	u := NewUserStreak(1, "UTC")
	u.LastMasteryDate = &yesterday
	u.CardsMasteredToday = 1
	u.CurrentStreak = 5
	u.LongestStreak = 5
	u.FrozenStackIDs = []int64{42}

	res := u.ApplyDayRollover(date(2025, 3, 10), 5, always)

	assert.True(t, res.Deferred)
	assert.False(t, res.Reset)
	assert.Equal(t, 5, u.CurrentStreak)
	assert.True(t, u.ResetPending)
	assert.Equal(t, 5, u.StreakAtMiss)
}

func TestApplyDayRollover_BoundaryIsEndOfMissedDay(t *testing.T) {
	yesterday := date(2025, 3, 9)
	u := NewUserStreak(1, "Europe/Berlin")
	u.LastMasteryDate = &yesterday
	u.CurrentStreak = 2
	u.LongestStreak = 2

	var asked time.Time
	u.ApplyDayRollover(date(2025, 3, 10), 5, func(at time.Time) bool {
		asked = at
		return false
	})

	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	assert.True(t, asked.Equal(time.Date(2025, 3, 10, 0, 0, 0, 0, berlin)))
}

func TestRefreshFreeze_DeferredResetKeepsDaysEarnedAfterMiss(t *testing.T) {
	now := time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)
	overdue := now.Add(-time.Hour)
	stack := &Stack{ID: 42, TestDeadline: &overdue}

	u := NewUserStreak(1, "UTC")
	u.CurrentStreak = 7
	u.LongestStreak = 7
	u.ResetPending = true
	u.StreakAtMiss = 5

	res := u.RefreshFreeze([]*Stack{stack}, now)
	assert.True(t, res.Frozen)
	assert.False(t, res.ResetApplied)
	assert.True(t, u.StreakFrozen())

	stack.TestDeadline = nil
	res = u.RefreshFreeze([]*Stack{stack}, now)

	assert.True(t, res.Unfrozen)
	assert.True(t, res.ResetApplied)
	assert.False(t, u.StreakFrozen())
	assert.False(t, u.ResetPending)
	assert.Equal(t, 2, u.CurrentStreak)
	assert.Equal(t, 7, u.LongestStreak)
}

func TestRefreshFreeze_FlagMatchesSet(t *testing.T) {
	now := time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	stacks := []*Stack{
		{ID: 9, TestDeadline: &past},
		{ID: 3, TestDeadline: &past},
		{ID: 5, TestDeadline: &future},
		{ID: 7},
	}

	u := NewUserStreak(1, "UTC")
	res := u.RefreshFreeze(stacks, now)

	assert.True(t, res.Changed)
	assert.Equal(t, []int64{3, 9}, u.FrozenStackIDs)
	assert.Equal(t, len(u.FrozenStackIDs) > 0, u.StreakFrozen())

	again := u.RefreshFreeze(stacks, now)
	assert.False(t, again.Changed)
}

func TestDowngrade_BelowRequirementRevokesCredit(t *testing.T) {
	u := NewUserStreak(1, "UTC")
	u.CardsMasteredToday = 5
	u.StreakAwardedToday = true
	u.CurrentStreak = 4
	u.LongestStreak = 6

	plan := u.PlanDowngrade(1, 5)
	assert.True(t, plan.StreakImpact)
	assert.True(t, plan.DropsBelowRequirement)
	assert.Equal(t, 5, u.CardsMasteredToday, "planning must not mutate")

	u.ApplyDowngrade(1, 5)

	assert.Equal(t, 4, u.CardsMasteredToday)
	assert.Equal(t, 3, u.CurrentStreak)
	assert.Equal(t, 6, u.LongestStreak)
	assert.False(t, u.StreakAwardedToday)
}

func TestDowngrade_FloorsAtZero(t *testing.T) {
	u := NewUserStreak(1, "UTC")
	u.CardsMasteredToday = 1

	plan := u.ApplyDowngrade(3, 5)

	assert.Equal(t, 0, plan.CardsAfter)
	assert.Equal(t, 0, u.CardsMasteredToday)
	assert.False(t, plan.StreakImpact)
}

func TestDowngrade_RemasteryRefiresThreshold(t *testing.T) {
	u := NewUserStreak(1, "UTC")
	for range 5 {
		if u.RecordMastery(5).Crossed {
			u.OnThresholdCrossed()
		}
	}
	require.Equal(t, 1, u.CurrentStreak)

	u.ApplyDowngrade(1, 5)
	require.Equal(t, 0, u.CurrentStreak)

	res := u.RecordMastery(5)
	require.True(t, res.Crossed)
	u.OnThresholdCrossed()

	assert.Equal(t, 1, u.CurrentStreak)
	assert.Equal(t, 1, u.LongestStreak)
}

func TestInvariants_RandomSequence(t *testing.T) {
	u := NewUserStreak(1, "UTC")
	day := date(2025, 1, 1)
	u.LastMasteryDate = &day

	ops := []int{1, 1, -1, 1, 1, 1, 1, -2, 1, 1, 0, 1, -1, -1, 1, 1, 1, 1, 1, 0, -3, 1}
	for _, op := range ops {
		switch {
		case op > 0:
			if u.RecordMastery(5).Crossed {
				u.OnThresholdCrossed()
			}
		case op < 0:
			u.ApplyDowngrade(-op, 5)
		default:
			day = day.AddDate(0, 0, 1)
			u.ApplyDayRollover(day, 5, never)
		}

		require.GreaterOrEqual(t, u.CardsMasteredToday, 0)
		require.GreaterOrEqual(t, u.LongestStreak, u.CurrentStreak)
	}
}

func TestUserStreak_CloneIsIndependent(t *testing.T) {
	d := date(2025, 3, 9)
	u := NewUserStreak(1, "UTC")
	u.LastMasteryDate = &d
	u.FrozenStackIDs = []int64{1, 2}

	c := u.Clone()
	c.FrozenStackIDs[0] = 99
	*c.LastMasteryDate = date(2030, 1, 1)

	assert.Equal(t, int64(1), u.FrozenStackIDs[0])
	assert.Equal(t, date(2025, 3, 9), *u.LastMasteryDate)
}
