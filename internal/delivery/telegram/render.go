package telegram

import (
	"fmt"
	"strings"
	"time"

	"github.com/aliskhannn/lingua-streak-bot/internal/domain/entities"
	"github.com/aliskhannn/lingua-streak-bot/internal/service"
)

const progressBarWidth = 10

func renderProgress(v service.ProgressView) string {
	loc, _ := entities.LocationOrUTC(v.Timezone)
	var sb strings.Builder

	sb.WriteString(bold("📊 Ваш прогресс"))
	sb.WriteString("\n\n")

	sb.WriteString(md(fmt.Sprintf("🔥 Серия: %s (рекорд: %d)", pluralDays(v.CurrentStreak), v.LongestStreak)))
	sb.WriteString("\n")

	sb.WriteString(md(fmt.Sprintf("✅ Выучено сегодня: %d / %d", v.CardsMasteredToday, v.DailyRequirement)))
	sb.WriteString("\n")
	sb.WriteString(md(buildProgressBar(v.CardsMasteredToday, v.DailyRequirement)))
	sb.WriteString("\n\n")

	if v.StreakAwardedToday {
		sb.WriteString(md("🎉 Цель на сегодня выполнена!"))
	} else {
		sb.WriteString(md(fmt.Sprintf("⏰ Выполните цель до %s", v.Deadlines.Display.In(loc).Format("15:04"))))
	}
	sb.WriteString("\n")
	sb.WriteString(md(fmt.Sprintf("⏳ Серия в безопасности ещё %s", entities.FormatRemaining(v.TimeRemaining))))

	if v.InGrace {
		sb.WriteString("\n\n")
		sb.WriteString(bold(fmt.Sprintf("⚠️ Последний шанс: день закончится в %s", v.Deadlines.Cutoff.In(loc).Format("15:04"))))
	}

	if v.StreakFrozen {
		sb.WriteString("\n\n")
		sb.WriteString(md(fmt.Sprintf("🧊 Серия заморожена: просрочен тест по наборам %s.", formatIDs(v.FrozenStackIDs))))
		sb.WriteString("\n")
		sb.WriteString(md("Пока серия заморожена, она не растёт и не сгорает."))
		if v.ResetPending {
			sb.WriteString("\n")
			sb.WriteString(md("Пропущенный день обнулит серию, когда заморозка снимется."))
		}
	}

	sb.WriteString("\n\n")
	sb.WriteString(italic("Часовой пояс: " + timezoneName(v.Timezone)))

	return sb.String()
}

func renderStacks(stacks []service.StackView) string {
	var sb strings.Builder

	sb.WriteString(bold("📚 Ваши наборы"))
	for _, s := range stacks {
		sb.WriteString("\n\n")
		sb.WriteString(md(fmt.Sprintf("%s #%d %s", statusIcon(s), s.ID, s.Title)))
		sb.WriteString("\n")
		sb.WriteString(md(fmt.Sprintf("Выучено: %d / %d", s.MasteredCount, s.CardCount)))
	}

	return sb.String()
}

func renderStack(s service.StackView, cards []service.CardView, loc *time.Location) string {
	var sb strings.Builder

	sb.WriteString(bold(fmt.Sprintf("%s #%d %s", statusIcon(s), s.ID, s.Title)))
	sb.WriteString("\n\n")
	sb.WriteString(md(fmt.Sprintf("Выучено: %d / %d", s.MasteredCount, s.CardCount)))
	sb.WriteString("\n")
	sb.WriteString(md(buildProgressBar(s.MasteredCount, s.CardCount)))
	sb.WriteString("\n")

	switch s.Status {
	case entities.StackPendingTest:
		sb.WriteString("\n")
		if s.TestDeadline != nil {
			line := fmt.Sprintf("📝 Пройдите тест до %s: /test %d <результат>", s.TestDeadline.In(loc).Format("02.01 15:04"), s.ID)
			if s.Overdue {
				line = fmt.Sprintf("🧊 Срок теста истёк %s. Сдайте его, чтобы разморозить серию: /test %d <результат>",
					s.TestDeadline.In(loc).Format("02.01 15:04"), s.ID)
			}
			sb.WriteString(md(line))
		} else {
			sb.WriteString(md(fmt.Sprintf("📝 Пройдите тест на 100%%: /test %d <результат>", s.ID)))
		}
		if s.LastTestScore != nil {
			sb.WriteString("\n")
			sb.WriteString(md(fmt.Sprintf("Последний результат: %d%%", *s.LastTestScore)))
		}
		sb.WriteString("\n")
	case entities.StackCompleted:
		sb.WriteString("\n")
		sb.WriteString(md("🏆 Набор пройден на 100%."))
		sb.WriteString("\n")
	}

	if len(cards) > 0 {
		sb.WriteString("\n")
		for _, c := range cards {
			sb.WriteString(md(fmt.Sprintf("%d. %s %s", c.Position, c.Front, ratingLabel(c.Rating, c.Known))))
			sb.WriteString("\n")
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

func renderCard(s service.StackView, c service.CardView) string {
	var sb strings.Builder

	sb.WriteString(italic(fmt.Sprintf("%s, карточка %d из %d", s.Title, c.Position, s.CardCount)))
	sb.WriteString("\n\n")
	sb.WriteString(bold(c.Front))
	sb.WriteString("\n\n")
	sb.WriteString(md("Насколько хорошо вы знаете это слово? 1 - совсем нет, 5 - отлично."))

	return sb.String()
}

// renderImpact shows what a checked action would do before it is confirmed.
func renderImpact(r entities.ImpactReport) string {
	var sb strings.Builder

	sb.WriteString(bold("⚠️ Проверьте последствия"))
	sb.WriteString("\n\n")

	switch r.Action {
	case entities.ActionDeleteStack:
		sb.WriteString(md(fmt.Sprintf("Удаление набора #%d.", r.StackID)))
	case entities.ActionDowngradeCard:
		sb.WriteString(md("Понижение оценки выученной карточки."))
	}
	sb.WriteString("\n\n")

	sb.WriteString(md(fmt.Sprintf("Выучено сегодня: %d → %d", r.CardsTodayBefore, r.CardsTodayAfter)))
	sb.WriteString("\n")
	sb.WriteString(md(fmt.Sprintf("Серия: %d → %d", r.StreakBefore, r.StreakAfter)))

	var notes []string
	if r.StreakImpact {
		notes = append(notes, "Цель на сегодня перестанет быть выполненной, засчитанный день отменится.")
	} else if r.DropsBelowRequirement {
		notes = append(notes, "Выученных за сегодня карточек станет меньше дневной цели.")
	}
	if r.MasteryLost {
		notes = append(notes, "Набор перестанет считаться выученным.")
	}
	if r.DiscardsPendingTest {
		notes = append(notes, "Назначенный тест по набору отменится.")
	}
	if r.UnfreezesStreak {
		notes = append(notes, "Заморозка серии снимется.")
	}
	if r.ResetOnUnfreeze {
		notes = append(notes, "Пропущенный во время заморозки день обнулит серию.")
	}

	if len(notes) > 0 {
		sb.WriteString("\n")
		for _, n := range notes {
			sb.WriteString("\n")
			sb.WriteString(md("• " + n))
		}
	}

	if r.Warned() {
		sb.WriteString("\n\n")
		sb.WriteString(bold(fmt.Sprintf("Вы потеряете %s серии.", pluralDays(r.StreakBefore-r.StreakAfter))))
	}

	return sb.String()
}

func renderRatingOutcome(out service.RatingOutcome) string {
	var sb strings.Builder

	sb.WriteString(md(fmt.Sprintf("Оценка сохранена: %d → %d", out.Change.Before, out.Change.After)))

	if out.Change.Mastered {
		sb.WriteString("\n")
		sb.WriteString(md(fmt.Sprintf("✅ Карточка выучена. Сегодня: %d / %d",
			out.Progress.CardsMasteredToday, out.Progress.DailyRequirement)))
	}
	if out.Crossed {
		sb.WriteString("\n\n")
		sb.WriteString(bold(fmt.Sprintf("🔥 Цель дня выполнена! Серия: %s", pluralDays(out.Progress.CurrentStreak))))
	}
	if out.Change.MasteryReached {
		sb.WriteString("\n\n")
		sb.WriteString(bold("🎓 Весь набор выучен!"))
		if out.Stack.TestDeadline != nil {
			loc, _ := entities.LocationOrUTC(out.Progress.Timezone)
			sb.WriteString("\n")
			sb.WriteString(md(fmt.Sprintf("Пройдите тест до %s, иначе серия замёрзнет: /test %d <результат>",
				out.Stack.TestDeadline.In(loc).Format("02.01 15:04"), out.Stack.ID)))
		}
	}
	if out.Change.Unmastered {
		sb.WriteString("\n")
		sb.WriteString(md("Карточка больше не считается выученной."))
	}

	return sb.String()
}

func renderTestSubmission(sub service.TestSubmission) string {
	var sb strings.Builder

	sb.WriteString(md(fmt.Sprintf("📝 Результат теста по набору «%s»: %d%%", sub.Stack.Title, sub.Outcome.Score)))
	sb.WriteString("\n\n")

	if sub.Outcome.Completed {
		sb.WriteString(bold("🏆 Набор пройден!"))
	} else {
		sb.WriteString(md("Для завершения набора нужен результат 100%. Повторите слова и попробуйте ещё раз."))
	}

	if sub.Unfrozen {
		sb.WriteString("\n\n")
		sb.WriteString(md(fmt.Sprintf("☀️ Заморозка снята. Серия: %s", pluralDays(sub.Progress.CurrentStreak))))
	}

	return sb.String()
}

func renderConfirmed(res service.ConfirmResult) string {
	var sb strings.Builder

	switch res.Action.Kind {
	case entities.ActionDeleteStack:
		sb.WriteString(md(msgStackDeleted))
	default:
		sb.WriteString(md(msgRatingConfirmed))
	}
	sb.WriteString("\n")
	sb.WriteString(md(fmt.Sprintf("Серия: %d → %d. Выучено сегодня: %d / %d",
		res.Report.StreakBefore, res.Progress.CurrentStreak,
		res.Progress.CardsMasteredToday, res.Progress.DailyRequirement)))

	return sb.String()
}

func renderHistory(entries []*entities.StreakAuditEntry, loc *time.Location) string {
	var sb strings.Builder

	sb.WriteString(bold("🗒 История серии"))
	for _, e := range entries {
		sb.WriteString("\n")
		sb.WriteString(md(fmt.Sprintf("%s %s: %d → %d",
			e.CreatedAt.In(loc).Format("02.01 15:04"),
			auditReasonLabel(e.Reason),
			e.Before.CurrentStreak,
			e.After.CurrentStreak,
		)))
		if len(e.After.FrozenStackIDs) > 0 {
			sb.WriteString(md(" 🧊"))
		}
	}

	return sb.String()
}

func renderFrozenNotice(stackIDs []int64) string {
	var sb strings.Builder

	sb.WriteString(bold("🧊 Серия заморожена"))
	sb.WriteString("\n\n")
	sb.WriteString(md(fmt.Sprintf("Истёк срок теста по наборам %s.", formatIDs(stackIDs))))
	sb.WriteString("\n")
	sb.WriteString(md("Серия не сгорит, но и не будет расти, пока вы не сдадите тест."))

	return sb.String()
}

func renderLastChanceNotice(v service.ProgressView) string {
	loc, _ := entities.LocationOrUTC(v.Timezone)
	var sb strings.Builder

	sb.WriteString(bold("⚠️ Последний шанс сохранить серию"))
	sb.WriteString("\n\n")
	sb.WriteString(md(fmt.Sprintf("Серия: %s. Выучено сегодня: %d / %d.",
		pluralDays(v.CurrentStreak), v.CardsMasteredToday, v.DailyRequirement)))
	sb.WriteString("\n")
	sb.WriteString(md(fmt.Sprintf("День закончится в %s.", v.Deadlines.Cutoff.In(loc).Format("15:04"))))

	return sb.String()
}

func buildProgressBar(done, total int) string {
	if total <= 0 {
		return ""
	}
	filled := min(done*progressBarWidth/total, progressBarWidth)
	return strings.Repeat("▓", filled) + strings.Repeat("░", progressBarWidth-filled)
}

func statusIcon(s service.StackView) string {
	switch {
	case s.Overdue:
		return "🧊"
	case s.Status == entities.StackPendingTest:
		return "📝"
	case s.Status == entities.StackCompleted:
		return "🏆"
	}
	return "📖"
}

func ratingLabel(r entities.Rating, known bool) string {
	switch {
	case r == entities.RatingUnrated:
		return "(не оценена)"
	case known:
		return fmt.Sprintf("(%d ✅)", r)
	}
	return fmt.Sprintf("(%d)", r)
}

func auditReasonLabel(r entities.AuditReason) string {
	switch r {
	case entities.AuditRollover:
		return "новый день"
	case entities.AuditThreshold:
		return "цель выполнена"
	case entities.AuditDowngrade:
		return "понижение оценки"
	case entities.AuditFreeze:
		return "заморозка"
	case entities.AuditDeletion:
		return "удаление набора"
	case entities.AuditTest:
		return "тест"
	}
	return string(r)
}

func timezoneName(tz string) string {
	if tz == "" {
		return "UTC"
	}
	return tz
}

func formatIDs(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("#%d", id))
	}
	return strings.Join(parts, ", ")
}

// pluralDays formats n with the Russian plural of "день".
func pluralDays(n int) string {
	mod10, mod100 := n%10, n%100
	switch {
	case mod10 == 1 && mod100 != 11:
		return fmt.Sprintf("%d день", n)
	case mod10 >= 2 && mod10 <= 4 && (mod100 < 12 || mod100 > 14):
		return fmt.Sprintf("%d дня", n)
	}
	return fmt.Sprintf("%d дней", n)
}
