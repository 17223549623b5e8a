package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStack(t *testing.T, n int) *Stack {
	t.Helper()

	fronts := make([]string, n)
	for i := range fronts {
		fronts[i] = "word"
	}
	s, err := NewStack(1, "Verbs", fronts, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	s.ID = 10
	for i, c := range s.Cards {
		c.ID = int64(i + 1)
		c.StackID = s.ID
	}
	return s
}

func masterAll(t *testing.T, s *Stack, today, now time.Time) []RatingChange {
	t.Helper()

	var changes []RatingChange
	for _, c := range s.Cards {
		ch, err := s.ApplyRating(c.ID, 5, today, now, DefaultPolicy())
		require.NoError(t, err)
		changes = append(changes, ch)
	}
	return changes
}

func TestNewStack_Validation(t *testing.T) {
	now := time.Now()

	_, err := NewStack(1, "  ", []string{"a"}, now)
	assert.ErrorIs(t, err, ErrEmptyTitle)

	_, err = NewStack(1, "Nouns", []string{" ", ""}, now)
	assert.ErrorIs(t, err, ErrEmptyStack)

	s, err := NewStack(1, " Nouns ", []string{"a", " ", "b"}, now)
	require.NoError(t, err)
	assert.Equal(t, "Nouns", s.Title)
	assert.Equal(t, 2, s.CardCount)
	assert.Equal(t, StackInProgress, s.Status)
	assert.Equal(t, 2, s.Cards[1].Position)
}

func TestApplyRating_Validation(t *testing.T) {
	s := newTestStack(t, 2)
	today := date(2025, 3, 10)

	_, err := s.ApplyRating(1, 0, today, today, DefaultPolicy())
	assert.ErrorIs(t, err, ErrInvalidRating)

	_, err = s.ApplyRating(1, 6, today, today, DefaultPolicy())
	assert.ErrorIs(t, err, ErrInvalidRating)

	_, err = s.ApplyRating(99, 4, today, today, DefaultPolicy())
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestApplyRating_LastMasteryStartsTestDeadline(t *testing.T) {
	s := newTestStack(t, 10)
	today := date(2025, 3, 10)
	reached := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	changes := masterAll(t, s, today, reached)

	for _, ch := range changes[:9] {
		assert.False(t, ch.MasteryReached)
	}
	assert.True(t, changes[9].MasteryReached)
	assert.Equal(t, StackPendingTest, s.Status)
	require.NotNil(t, s.MasteryReachedAt)
	require.NotNil(t, s.TestDeadline)
	assert.Equal(t, reached.Add(DefaultPolicy().TestWindow(10)), *s.TestDeadline)

	after := s.TestDeadline.Add(time.Second)
	u := NewUserStreak(1, "UTC")
	u.RefreshFreeze([]*Stack{s}, after)

	assert.True(t, u.StreakFrozen())
	assert.Equal(t, []int64{s.ID}, u.FrozenStackIDs)
}

func TestSubmitTest_PerfectScoreCompletesAndUnfreezes(t *testing.T) {
	s := newTestStack(t, 10)
	today := date(2025, 3, 10)
	reached := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	masterAll(t, s, today, reached)

	u := NewUserStreak(1, "UTC")
	u.FrozenStackIDs = []int64{s.ID}

	submitted := reached.Add(time.Hour)
	out, err := s.SubmitTest(100, submitted)
	require.NoError(t, err)

	assert.True(t, out.Completed)
	assert.Equal(t, StackCompleted, s.Status)
	assert.Nil(t, s.TestDeadline)
	require.NotNil(t, s.CompletedAt)

	u.RefreshFreeze([]*Stack{s}, submitted)
	assert.NotContains(t, u.FrozenStackIDs, s.ID)
	assert.False(t, u.StreakFrozen())
}

func TestSubmitTest_ImperfectScoreClearsDeadlineOnce(t *testing.T) {
	s := newTestStack(t, 3)
	today := date(2025, 3, 10)
	reached := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	masterAll(t, s, today, reached)

	out, err := s.SubmitTest(80, reached.Add(time.Hour))
	require.NoError(t, err)

	assert.False(t, out.Completed)
	assert.True(t, out.DeadlineCleared)
	assert.Equal(t, StackPendingTest, s.Status)
	assert.Nil(t, s.TestDeadline)
	require.NotNil(t, s.LastTestScore)
	assert.Equal(t, 80, *s.LastTestScore)

	out, err = s.SubmitTest(90, reached.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, out.DeadlineCleared)
	assert.Nil(t, s.TestDeadline)
}

func TestSubmitTest_Validation(t *testing.T) {
	s := newTestStack(t, 2)
	now := time.Now()

	_, err := s.SubmitTest(50, now)
	assert.ErrorIs(t, err, ErrNoPendingTest)

	_, err = s.SubmitTest(101, now)
	assert.ErrorIs(t, err, ErrInvalidScore)

	_, err = s.SubmitTest(-1, now)
	assert.ErrorIs(t, err, ErrInvalidScore)
}

func TestApplyRating_DowngradeClearsMastery(t *testing.T) {
	s := newTestStack(t, 3)
	today := date(2025, 3, 10)
	reached := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	masterAll(t, s, today, reached)
	_, err := s.SubmitTest(70, reached.Add(time.Hour))
	require.NoError(t, err)

	ch, err := s.ApplyRating(2, 2, today, reached.Add(2*time.Hour), DefaultPolicy())
	require.NoError(t, err)

	assert.True(t, ch.Unmastered)
	assert.True(t, ch.CountedToday)
	assert.True(t, ch.MasteryLost)
	assert.True(t, ch.DiscardedTest)
	assert.Equal(t, StackInProgress, s.Status)
	assert.Nil(t, s.MasteryReachedAt)
	assert.Nil(t, s.TestDeadline)
	assert.Nil(t, s.LastTestScore)
	assert.Equal(t, 2, s.MasteredCount)

	remastered := reached.Add(3 * time.Hour)
	ch, err = s.ApplyRating(2, 4, today, remastered, DefaultPolicy())
	require.NoError(t, err)
	assert.True(t, ch.MasteryReached)
	require.NotNil(t, s.TestDeadline)
	assert.Equal(t, remastered.Add(DefaultPolicy().TestWindow(3)), *s.TestDeadline)
}

func TestApplyRating_CountedTodayOnlyForTodaysCards(t *testing.T) {
	s := newTestStack(t, 2)
	yesterday := date(2025, 3, 9)
	today := date(2025, 3, 10)

	_, err := s.ApplyRating(1, 4, yesterday, yesterday.Add(time.Hour), DefaultPolicy())
	require.NoError(t, err)
	_, err = s.ApplyRating(2, 4, today, today.Add(time.Hour), DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, 1, s.MasteredOnDay(today))

	ch, err := s.ApplyRating(1, 1, today, today.Add(2*time.Hour), DefaultPolicy())
	require.NoError(t, err)
	assert.True(t, ch.Unmastered)
	assert.False(t, ch.CountedToday)
}

func TestApplyRating_KnownToKnownIsNotNewMastery(t *testing.T) {
	s := newTestStack(t, 2)
	today := date(2025, 3, 10)

	ch, err := s.ApplyRating(1, 4, today, today, DefaultPolicy())
	require.NoError(t, err)
	assert.True(t, ch.Mastered)

	ch, err = s.ApplyRating(1, 5, today, today, DefaultPolicy())
	require.NoError(t, err)
	assert.False(t, ch.Mastered)
	assert.False(t, ch.Unmastered)
}

func TestStackStatusInvariants(t *testing.T) {
	s := newTestStack(t, 4)
	today := date(2025, 3, 10)
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	ratings := []struct {
		card   int64
		rating Rating
	}{
		{1, 5}, {2, 4}, {3, 3}, {4, 5}, {3, 4}, {1, 1}, {1, 4}, {2, 2}, {2, 5},
	}
	for _, r := range ratings {
		_, err := s.ApplyRating(r.card, r.rating, today, now, DefaultPolicy())
		require.NoError(t, err)

		if s.Status == StackPendingTest {
			require.NotNil(t, s.MasteryReachedAt)
		}
		if s.Status == StackInProgress {
			require.Nil(t, s.TestDeadline)
		}
	}
}

func TestStack_CloneIsIndependent(t *testing.T) {
	s := newTestStack(t, 2)
	c := s.Clone()

	c.Cards[0].Rating = 5
	c.Title = "changed"

	assert.Equal(t, RatingUnrated, s.Cards[0].Rating)
	assert.Equal(t, "Verbs", s.Title)
}
