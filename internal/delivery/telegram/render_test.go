package telegram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aliskhannn/lingua-streak-bot/internal/domain/entities"
	"github.com/aliskhannn/lingua-streak-bot/internal/service"
)

func progressFixture() service.ProgressView {
	cutoff := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)
	return service.ProgressView{
		Timezone:           "UTC",
		CardsMasteredToday: 3,
		DailyRequirement:   5,
		CurrentStreak:      4,
		LongestStreak:      7,
		Deadlines:          entities.StreakDeadlines{Display: cutoff.Add(-2 * time.Hour), Cutoff: cutoff},
		TimeRemaining:      5*time.Hour + 7*time.Minute,
	}
}

func TestRenderProgress(t *testing.T) {
	v := progressFixture()

	text := renderProgress(v)
	assert.Contains(t, text, "4 дня")
	assert.Contains(t, text, "рекорд: 7")
	assert.Contains(t, text, "3 / 5")
	assert.Contains(t, text, "22:00")
	assert.Contains(t, text, "5h 07m")
	assert.NotContains(t, text, "Последний шанс")
	assert.NotContains(t, text, "заморожена")

	v.InGrace = true
	v.StreakFrozen = true
	v.FrozenStackIDs = []int64{3, 5}
	v.ResetPending = true
	text = renderProgress(v)
	assert.Contains(t, text, "Последний шанс")
	assert.Contains(t, text, "Серия заморожена")
	assert.Contains(t, text, `\#3, \#5`)
	assert.Contains(t, text, "обнулит серию")
}

func TestRenderImpact(t *testing.T) {
	report := entities.ImpactReport{
		Action:                entities.ActionDeleteStack,
		StackID:               9,
		CardsTodayBefore:      5,
		CardsTodayAfter:       2,
		StreakBefore:          3,
		StreakAfter:           2,
		DropsBelowRequirement: true,
		StreakImpact:          true,
		DiscardsPendingTest:   true,
	}

	text := renderImpact(report)
	assert.Contains(t, text, "5 → 2")
	assert.Contains(t, text, "3 → 2")
	assert.Contains(t, text, "засчитанный день отменится")
	assert.Contains(t, text, "тест по набору отменится")
	assert.Contains(t, text, "Вы потеряете 1 день серии")

	safe := renderImpact(entities.ImpactReport{Action: entities.ActionDeleteStack, StackID: 9})
	assert.NotContains(t, safe, "Вы потеряете")
}

func TestRenderStack_TestDeadline(t *testing.T) {
	deadline := time.Date(2025, 3, 11, 13, 0, 0, 0, time.UTC)
	view := service.StackView{
		ID:            4,
		Title:         "Verben",
		Status:        entities.StackPendingTest,
		CardCount:     2,
		MasteredCount: 2,
		TestDeadline:  &deadline,
	}
	cards := []service.CardView{
		{ID: 1, Position: 1, Front: "gehen", Rating: 5, Known: true},
		{ID: 2, Position: 2, Front: "kommen", Rating: 4, Known: true},
	}

	moscow := time.FixedZone("MSK", 3*60*60)
	text := renderStack(view, cards, moscow)
	assert.Contains(t, text, `11\.03 16:00`)
	assert.Contains(t, text, "gehen")
	assert.NotContains(t, text, "Срок теста истёк")

	view.Overdue = true
	assert.Contains(t, renderStack(view, cards, moscow), "Срок теста истёк")
}

func TestPluralDays(t *testing.T) {
	for n, want := range map[int]string{
		0:   "0 дней",
		1:   "1 день",
		2:   "2 дня",
		5:   "5 дней",
		11:  "11 дней",
		12:  "12 дней",
		21:  "21 день",
		22:  "22 дня",
		111: "111 дней",
	} {
		assert.Equal(t, want, pluralDays(n))
	}
}

func TestBuildProgressBar(t *testing.T) {
	assert.Equal(t, "▓▓▓▓▓▓░░░░", buildProgressBar(3, 5))
	assert.Equal(t, "▓▓▓▓▓▓▓▓▓▓", buildProgressBar(7, 5))
	assert.Empty(t, buildProgressBar(1, 0))
}
