package entities

import (
	"strings"
	"time"
)

// StackStatus is the mastery lifecycle state of a stack.
type StackStatus string

const (
	StackInProgress  StackStatus = "in_progress"  // not every card is known yet
	StackPendingTest StackStatus = "pending_test" // all cards known, waiting for a perfect test
	StackCompleted   StackStatus = "completed"    // passed with 100%
)

// Card is a single flashcard inside a stack.
type Card struct {
	ID         int64
	StackID    int64
	Position   int
	Front      string
	Rating     Rating
	MasteredOn *time.Time // local date the card last became known (nullable)
}

// Known reports whether the card currently counts as mastered.
func (c *Card) Known() bool {
	return c.Rating.Known()
}

// Stack is a user's deck of cards together with its mastery state.
type Stack struct {
	ID               int64
	UserID           int64
	Title            string
	Status           StackStatus
	Cards            []*Card // loaded only when the stack is about to change
	CardCount        int
	MasteredCount    int
	MasteryReachedAt *time.Time
	TestDeadline     *time.Time
	LastTestScore    *int
	CompletedAt      *time.Time
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewStack creates an unrated stack from card fronts.
func NewStack(userID int64, title string, fronts []string, now time.Time) (*Stack, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}

	s := &Stack{
		UserID:    userID,
		Title:     title,
		Status:    StackInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, f := range fronts {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		s.Cards = append(s.Cards, &Card{Position: len(s.Cards) + 1, Front: f})
	}
	if len(s.Cards) == 0 {
		return nil, ErrEmptyStack
	}
	s.CardCount = len(s.Cards)

	return s, nil
}

// Card returns the card with the given id.
func (s *Stack) Card(cardID int64) (*Card, error) {
	for _, c := range s.Cards {
		if c.ID == cardID {
			return c, nil
		}
	}
	return nil, ErrCardNotFound
}

// Clone returns a deep copy used to simulate actions.
func (s *Stack) Clone() *Stack {
	c := *s
	c.Cards = make([]*Card, len(s.Cards))
	for i, card := range s.Cards {
		cc := *card
		cc.MasteredOn = cloneTime(card.MasteredOn)
		c.Cards[i] = &cc
	}
	c.MasteryReachedAt = cloneTime(s.MasteryReachedAt)
	c.TestDeadline = cloneTime(s.TestDeadline)
	c.CompletedAt = cloneTime(s.CompletedAt)
	if s.LastTestScore != nil {
		v := *s.LastTestScore
		c.LastTestScore = &v
	}
	return &c
}

// IsOverdue reports whether the mastery test deadline has passed.
func (s *Stack) IsOverdue(now time.Time) bool {
	return s.TestDeadline != nil && now.After(*s.TestDeadline)
}

// MasteredOnDay counts known cards that became known on the given local date.
func (s *Stack) MasteredOnDay(day time.Time) int {
	n := 0
	for _, c := range s.Cards {
		if c.Known() && c.MasteredOn != nil && c.MasteredOn.Equal(day) {
			n++
		}
	}
	return n
}

// RatingChange is the tagged outcome of rating one card.
type RatingChange struct {
	CardID         int64
	Before         Rating
	After          Rating
	Mastered       bool // the card newly reached the known threshold
	Unmastered     bool // the card dropped below the known threshold
	CountedToday   bool // the dropped card had been counted in today's counter
	MasteryReached bool // every card is known for the first time since the last loss
	MasteryLost    bool // mastery was reached before and is now cleared
	DiscardedTest  bool // a pending test was dropped by the loss
}

// ApplyRating sets a card's rating and runs the mastery scheduler.
// today is the user's local date, now the wall-clock instant.
func (s *Stack) ApplyRating(cardID int64, rating Rating, today, now time.Time, p Policy) (RatingChange, error) {
	if !rating.Valid() {
		return RatingChange{}, ErrInvalidRating
	}
	card, err := s.Card(cardID)
	if err != nil {
		return RatingChange{}, err
	}

	ch := RatingChange{CardID: cardID, Before: card.Rating, After: rating}
	wasKnown := card.Known()
	card.Rating = rating

	switch {
	case !wasKnown && card.Known():
		ch.Mastered = true
		d := today
		card.MasteredOn = &d
	case wasKnown && !card.Known():
		ch.Unmastered = true
		ch.CountedToday = card.MasteredOn != nil && card.MasteredOn.Equal(today)
		card.MasteredOn = nil
	}

	s.recount()

	if ch.Unmastered && s.MasteryReachedAt != nil {
		ch.MasteryLost = true
		ch.DiscardedTest = s.Status == StackPendingTest
		s.clearMastery()
	}

	if s.MasteredCount == s.CardCount && s.MasteryReachedAt == nil {
		ch.MasteryReached = true
		s.reachMastery(now, p)
	}

	s.UpdatedAt = now
	return ch, nil
}

func (s *Stack) recount() {
	n := 0
	for _, c := range s.Cards {
		if c.Known() {
			n++
		}
	}
	s.MasteredCount = n
	s.CardCount = len(s.Cards)
}

func (s *Stack) reachMastery(now time.Time, p Policy) {
	reached := now
	deadline := p.TestDeadline(now, s.CardCount)
	s.MasteryReachedAt = &reached
	s.TestDeadline = &deadline
	s.Status = StackPendingTest
}

func (s *Stack) clearMastery() {
	s.MasteryReachedAt = nil
	s.TestDeadline = nil
	s.LastTestScore = nil
	s.CompletedAt = nil
	s.Status = StackInProgress
}

// TestOutcome is the result of a mastery test submission.
type TestOutcome struct {
	Score           int
	Completed       bool
	WasOverdue      bool
	DeadlineCleared bool
}

// SubmitTest records a test score. Only a perfect score completes the stack;
// any submission clears the deadline and it is not set again until mastery
// is lost and regained.
func (s *Stack) SubmitTest(score int, now time.Time) (TestOutcome, error) {
	if score < 0 || score > PerfectScore {
		return TestOutcome{}, ErrInvalidScore
	}
	if s.Status != StackPendingTest {
		return TestOutcome{}, ErrNoPendingTest
	}

	out := TestOutcome{
		Score:           score,
		WasOverdue:      s.IsOverdue(now),
		DeadlineCleared: s.TestDeadline != nil,
	}

	s.TestDeadline = nil
	sc := score
	s.LastTestScore = &sc

	if score == PerfectScore {
		s.Status = StackCompleted
		done := now
		s.CompletedAt = &done
		out.Completed = true
	}

	s.UpdatedAt = now
	return out, nil
}

// TestResult is a stored test submission.
type TestResult struct {
	ID          int64
	StackID     int64
	UserID      int64
	Score       int
	SubmittedAt time.Time
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
