package telegram

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/aliskhannn/lingua-streak-bot/internal/domain/entities"
	"github.com/aliskhannn/lingua-streak-bot/internal/service"
)

// popularTimezones are offered on /start; any IANA name works through /timezone.
var popularTimezones = []struct {
	Label string
	Name  string
}{
	{"Калининград", "Europe/Kaliningrad"},
	{"Москва", "Europe/Moscow"},
	{"Самара", "Europe/Samara"},
	{"Екатеринбург", "Asia/Yekaterinburg"},
	{"Новосибирск", "Asia/Novosibirsk"},
	{"Владивосток", "Asia/Vladivostok"},
	{"Берлин", "Europe/Berlin"},
	{"UTC", "UTC"},
}

func buildTimezoneKeyboard() tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i := 0; i < len(popularTimezones); i += 2 {
		var row []tgbotapi.InlineKeyboardButton
		for _, tz := range popularTimezones[i:min(i+2, len(popularTimezones))] {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(tz.Label, buildTimezoneCallback(tz.Name)))
		}
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func buildProgressKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📚 Наборы", buildStacksCallback()),
			tgbotapi.NewInlineKeyboardButtonData("🔄 Обновить", buildProgressCallback()),
		),
	)
}

func buildStacksKeyboard(stacks []service.StackView) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, s := range stacks {
		label := fmt.Sprintf("%s %s (%d/%d)", statusIcon(s), s.Title, s.MasteredCount, s.CardCount)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, buildStackCallback(s.ID)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("📊 Прогресс", buildProgressCallback()),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func buildStackKeyboard(s service.StackView) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🧠 Повторять", buildReviewCallback(s.ID)),
			tgbotapi.NewInlineKeyboardButtonData("🗑 Удалить", buildDeleteCallback(s.ID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("« К наборам", buildStacksCallback()),
		),
	)
}

func buildRatingKeyboard(stackID, cardID int64) tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for r := entities.RatingMin; r <= entities.RatingMax; r++ {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			strconv.Itoa(int(r)),
			buildRateCallback(stackID, cardID, r),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		row,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("« К набору", buildStackCallback(stackID)),
		),
	)
}

// buildGuardKeyboard offers the choices for a checked action. A warned
// deletion can only be confirmed by accepting the reset.
func buildGuardKeyboard(p *entities.PendingAction) tgbotapi.InlineKeyboardMarkup {
	var confirm tgbotapi.InlineKeyboardButton
	switch {
	case p.Action.Kind == entities.ActionDeleteStack && p.Report.Warned():
		confirm = tgbotapi.NewInlineKeyboardButtonData("💥 Удалить и сбросить серию", buildGuardCallback(guardReset, p.ID))
	case p.Action.Kind == entities.ActionDeleteStack:
		confirm = tgbotapi.NewInlineKeyboardButtonData("🗑 Удалить", buildGuardCallback(guardDelete, p.ID))
	default:
		confirm = tgbotapi.NewInlineKeyboardButtonData("✔️ Всё равно понизить", buildGuardCallback(guardConfirm, p.ID))
	}

	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(confirm),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("« Отмена", buildGuardCallback(guardCancel, p.ID)),
		),
	)
}
