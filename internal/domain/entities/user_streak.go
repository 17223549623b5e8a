package entities

import (
	"slices"
	"time"
)

// UserStreak is the per-user progression aggregate: the daily counter,
// the streak ledger and the freeze state live on one row so they change together.
type UserStreak struct {
	UserID             int64
	Timezone           string     // IANA name or fixed UTC offset, empty means UTC
	CardsMasteredToday int        // cards newly mastered on LastMasteryDate
	LastMasteryDate    *time.Time // local calendar date the counter belongs to (nullable)
	StreakAwardedToday bool       // today's threshold crossing already fired
	CurrentStreak      int
	LongestStreak      int
	FrozenStackIDs     []int64 // stacks with an overdue mastery test, sorted
	ResetPending       bool    // a missed day was deferred because the streak was frozen
	StreakAtMiss       int     // CurrentStreak when the deferred reset was recorded
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewUserStreak creates an empty progression record.
func NewUserStreak(userID int64, timezone string) *UserStreak {
	return &UserStreak{
		UserID:   userID,
		Timezone: timezone,
	}
}

// StreakFrozen is derived from the frozen set and is never stored separately.
func (u *UserStreak) StreakFrozen() bool {
	return len(u.FrozenStackIDs) > 0
}

// Location resolves the user's timezone, falling back to UTC.
func (u *UserStreak) Location() *time.Location {
	loc, _ := LocationOrUTC(u.Timezone)
	return loc
}

// Today returns the user's current local calendar date.
func (u *UserStreak) Today(now time.Time) time.Time {
	return LocalDate(now, u.Location())
}

// Clone returns a deep copy used to simulate actions without touching the original.
func (u *UserStreak) Clone() *UserStreak {
	c := *u
	if u.LastMasteryDate != nil {
		d := *u.LastMasteryDate
		c.LastMasteryDate = &d
	}
	c.FrozenStackIDs = slices.Clone(u.FrozenStackIDs)
	return &c
}

// RolloverResult describes what a day rollover did.
type RolloverResult struct {
	Rolled   bool // the calendar day advanced
	Missed   bool // the previous day did not meet the requirement
	Reset    bool // the streak was zeroed
	Deferred bool // the reset was postponed because the streak was frozen
}

// ApplyDayRollover moves the counter to today. A missed day zeroes the
// streak unless the streak was frozen when the missed day ended, in which
// case the reset is deferred until the freeze lifts. frozenAt reports
// whether any stack was overdue at the given instant.
//
// Calling it again for the same day is a no-op.
func (u *UserStreak) ApplyDayRollover(today time.Time, requirement int, frozenAt func(time.Time) bool) RolloverResult {
	last := u.LastMasteryDate
	if !IsNewDay(last, today) {
		return RolloverResult{}
	}

	res := RolloverResult{Rolled: true}
	if last != nil {
		// The first day that ended without meeting the requirement.
		missedDay := *last
		if u.CardsMasteredToday >= requirement {
			missedDay = missedDay.AddDate(0, 0, 1)
		}
		res.Missed = missedDay.Before(today)

		if res.Missed && u.CurrentStreak > 0 {
			boundary := DayEnd(missedDay, u.Location())
			if frozenAt != nil && frozenAt(boundary) {
				u.ResetPending = true
				u.StreakAtMiss = u.CurrentStreak
				res.Deferred = true
			} else {
				u.CurrentStreak = 0
				u.ResetPending = false
				u.StreakAtMiss = 0
				res.Reset = true
			}
		}
	}

	d := today
	u.LastMasteryDate = &d
	u.CardsMasteredToday = 0
	u.StreakAwardedToday = false

	return res
}

// MasteryResult is the tagged outcome of counting one newly mastered card.
type MasteryResult struct {
	CardsToday int
	Crossed    bool // the daily requirement was reached for the first time today
}

// RecordMastery counts a newly mastered card. The caller must apply the
// day rollover first and call OnThresholdCrossed in the same unit of work
// when Crossed is set.
func (u *UserStreak) RecordMastery(requirement int) MasteryResult {
	u.CardsMasteredToday++
	return MasteryResult{
		CardsToday: u.CardsMasteredToday,
		Crossed:    u.CardsMasteredToday >= requirement && !u.StreakAwardedToday,
	}
}

// OnThresholdCrossed credits today toward the streak. Fires at most once per day.
func (u *UserStreak) OnThresholdCrossed() {
	u.CurrentStreak++
	u.LongestStreak = max(u.LongestStreak, u.CurrentStreak)
	u.StreakAwardedToday = true
}

// OnStreakImpactingDowngrade takes back today's credit.
// LongestStreak is never decremented.
func (u *UserStreak) OnStreakImpactingDowngrade() {
	u.CurrentStreak = max(0, u.CurrentStreak-1)
	u.StreakAwardedToday = false
}

// DowngradePlan is the effect of removing n of today's mastered cards.
type DowngradePlan struct {
	CardsBefore           int
	CardsAfter            int
	DropsBelowRequirement bool
	StreakImpact          bool // today's credit would be taken back
}

// PlanDowngrade computes the effect of removing n cards from today's counter without applying it.
func (u *UserStreak) PlanDowngrade(n, requirement int) DowngradePlan {
	after := max(u.CardsMasteredToday-n, 0)
	return DowngradePlan{
		CardsBefore:           u.CardsMasteredToday,
		CardsAfter:            after,
		DropsBelowRequirement: u.CardsMasteredToday >= requirement && after < requirement,
		StreakImpact:          u.StreakAwardedToday && after < requirement,
	}
}

// ApplyDowngrade removes n cards from today's counter. Streak-impacting
// downgrades must only be applied after an explicit confirmation.
func (u *UserStreak) ApplyDowngrade(n, requirement int) DowngradePlan {
	plan := u.PlanDowngrade(n, requirement)
	u.CardsMasteredToday = plan.CardsAfter
	if plan.StreakImpact {
		u.OnStreakImpactingDowngrade()
	}
	return plan
}

// FreezeResult describes a Freeze Manager pass.
type FreezeResult struct {
	Changed      bool // the frozen set changed
	Frozen       bool // the streak went from unfrozen to frozen
	Unfrozen     bool // the streak went from frozen to unfrozen
	ResetApplied bool // a deferred reset was applied on unfreeze
}

// RefreshFreeze recomputes the frozen set from the user's stacks at now and
// applies a deferred reset once nothing is frozen any more.
func (u *UserStreak) RefreshFreeze(stacks []*Stack, now time.Time) FreezeResult {
	wasFrozen := u.StreakFrozen()
	ids := OverdueStackIDs(stacks, now)

	res := FreezeResult{Changed: !slices.Equal(ids, u.FrozenStackIDs)}
	u.FrozenStackIDs = ids

	frozen := u.StreakFrozen()
	res.Frozen = !wasFrozen && frozen
	res.Unfrozen = wasFrozen && !frozen

	if !frozen && u.ResetPending {
		u.applyDeferredReset()
		res.ResetApplied = true
	}

	return res
}

// applyDeferredReset breaks the chain at the missed day. Days credited
// after the miss form the new streak.
func (u *UserStreak) applyDeferredReset() {
	u.CurrentStreak = max(u.CurrentStreak-u.StreakAtMiss, 0)
	u.ResetPending = false
	u.StreakAtMiss = 0
}

// OverdueStackIDs returns the sorted ids of stacks whose test deadline passed before now.
func OverdueStackIDs(stacks []*Stack, now time.Time) []int64 {
	var ids []int64
	for _, s := range stacks {
		if s.IsOverdue(now) {
			ids = append(ids, s.ID)
		}
	}
	slices.Sort(ids)
	return ids
}

// AnyOverdue returns a predicate reporting whether any of stacks was overdue at an instant.
func AnyOverdue(stacks []*Stack) func(time.Time) bool {
	return func(at time.Time) bool {
		for _, s := range stacks {
			if s.IsOverdue(at) {
				return true
			}
		}
		return false
	}
}

// Snapshot captures the audited part of the aggregate.
func (u *UserStreak) Snapshot() StreakSnapshot {
	return StreakSnapshot{
		CurrentStreak:  u.CurrentStreak,
		LongestStreak:  u.LongestStreak,
		FrozenStackIDs: slices.Clone(u.FrozenStackIDs),
		ResetPending:   u.ResetPending,
	}
}
