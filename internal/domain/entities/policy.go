package entities

import (
	"errors"
	"time"
)

// Rating is a self-assessment of a card on a 1..5 scale. Zero means unrated.
type Rating int

const (
	RatingUnrated Rating = 0
	RatingMin     Rating = 1
	RatingMax     Rating = 5

	// KnownRating is the threshold at which a card counts as mastered.
	KnownRating Rating = 4
)

// Valid reports whether r is a rating a user can submit.
func (r Rating) Valid() bool {
	return r >= RatingMin && r <= RatingMax
}

// Known reports whether r reaches the mastery threshold.
func (r Rating) Known() bool {
	return r >= KnownRating
}

// PerfectScore is the only test score that completes a stack.
const PerfectScore = 100

// Policy holds the tunable constants of the progression engine.
type Policy struct {
	DailyRequirement     int           // newly mastered cards needed per day to credit the streak
	TestBaseWindow       time.Duration // time every stack gets to schedule its mastery test
	TestPerCardAllowance time.Duration // extra time per card in the stack
	TestMaxWindow        time.Duration // upper bound on the whole window
	GraceBuffer          time.Duration // gap between the displayed and the real daily deadline
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		DailyRequirement:     5,
		TestBaseWindow:       24 * time.Hour,
		TestPerCardAllowance: time.Hour,
		TestMaxWindow:        7 * 24 * time.Hour,
		GraceBuffer:          2 * time.Hour,
	}
}

// Validate checks the policy for values the engine cannot work with.
func (p Policy) Validate() error {
	switch {
	case p.DailyRequirement <= 0:
		return errors.New("daily requirement must be positive")
	case p.TestBaseWindow < 0 || p.TestPerCardAllowance < 0:
		return errors.New("test windows must not be negative")
	case p.TestMaxWindow <= 0:
		return errors.New("test max window must be positive")
	case p.GraceBuffer < 0 || p.GraceBuffer >= 24*time.Hour:
		return errors.New("grace buffer must be within a day")
	}
	return nil
}

// TestWindow returns how long a stack of cardCount cards has to pass its test.
func (p Policy) TestWindow(cardCount int) time.Duration {
	window := p.TestBaseWindow + time.Duration(cardCount)*p.TestPerCardAllowance
	return min(window, p.TestMaxWindow)
}

// TestDeadline returns the test deadline for a stack that reached mastery at reachedAt.
func (p Policy) TestDeadline(reachedAt time.Time, cardCount int) time.Time {
	return reachedAt.Add(p.TestWindow(cardCount))
}
