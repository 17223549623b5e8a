package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	msgUnknownCommand    = "Неизвестная команда. Нажмите /help, чтобы увидеть список команд."
	msgInternalError     = "Что-то пошло не так. Попробуйте ещё раз позже."
	msgUseButtons        = "Используйте команды из меню или /help."
	msgNoStacks          = "У вас пока нет наборов. Создайте первый командой /newstack."
	msgStackNotFound     = "Набор не найден."
	msgCardNotFound      = "Карточка не найдена."
	msgInvalidRating     = "Оценка должна быть от 1 до 5."
	msgInvalidScore      = "Результат теста должен быть от 0 до 100."
	msgInvalidTimezone   = "Не знаю такой часовой пояс. Пример: /timezone Europe/Moscow"
	msgEmptyStack        = "В наборе должна быть хотя бы одна карточка."
	msgEmptyTitle        = "Укажите название набора."
	msgNoPendingTest     = "По этому набору сейчас нет назначенного теста."
	msgPendingNotFound   = "Это подтверждение устарело. Повторите действие."
	msgStaleImpact       = "С момента проверки прогресс изменился. Повторите действие, чтобы увидеть актуальные последствия."
	msgGuardViolation    = "Это действие сбросит серию. Подтвердите его кнопкой «Удалить и сбросить серию»."
	msgBusy              = "Прогресс сейчас обновляется. Попробуйте ещё раз."
	msgCancelled         = "Действие отменено. Ничего не изменилось."
	msgAllCardsKnown     = "Все карточки набора уже выучены. Можно ещё раз оценить любую командой /rate."
	msgNewStackUsage     = "Использование:\n/newstack Название\nслово 1\nслово 2\n\nили одной строкой: /newstack Название | слово 1; слово 2"
	msgRateUsage         = "Использование: /rate <набор> <номер карточки> <оценка 1-5>"
	msgTestUsage         = "Использование: /test <набор> <результат 0-100>"
	msgDeleteUsage       = "Использование: /delete <набор>"
	msgChooseTimezone    = "Выберите часовой пояс или отправьте свой: /timezone Europe/Berlin"
	msgHistoryEmpty      = "История серии пока пуста."
	msgStackDeleted      = "Набор удалён."
	msgRatingConfirmed   = "Оценка изменена."
	msgTimezoneSetPrefix = "Часовой пояс сохранён: "
)

// md escapes s for MarkdownV2.
func md(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, s)
}

func bold(s string) string {
	return "*" + md(s) + "*"
}

func italic(s string) string {
	return "_" + md(s) + "_"
}

// newMessage creates a MarkdownV2 message. text must already be escaped.
func newMessage(chatID int64, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	return msg
}

// newPlainMessage creates a message from unescaped text.
func newPlainMessage(chatID int64, text string) tgbotapi.MessageConfig {
	return newMessage(chatID, md(text))
}

func welcomeMessage() string {
	var sb strings.Builder

	sb.WriteString(bold("Добро пожаловать в Lingua Streak!"))
	sb.WriteString("\n\n")
	sb.WriteString(md("Учите слова наборами карточек и держите серию дней подряд."))
	sb.WriteString("\n\n")
	sb.WriteString(md("1. Создайте набор: /newstack"))
	sb.WriteString("\n")
	sb.WriteString(md("2. Оценивайте карточки от 1 до 5. Оценка 4 и выше значит «выучено»."))
	sb.WriteString("\n")
	sb.WriteString(md("3. Выучите за день нужное число карточек, чтобы продлить серию."))
	sb.WriteString("\n")
	sb.WriteString(md("4. Когда весь набор выучен, пройдите тест до срока, иначе серия замёрзнет."))
	sb.WriteString("\n\n")
	sb.WriteString(md("Для начала выберите часовой пояс: по нему считаются дни."))

	return sb.String()
}

func helpMessage() string {
	var sb strings.Builder

	sb.WriteString(bold("Команды"))
	sb.WriteString("\n\n")
	sb.WriteString(md("/progress - серия и прогресс за сегодня"))
	sb.WriteString("\n")
	sb.WriteString(md("/stacks - ваши наборы"))
	sb.WriteString("\n")
	sb.WriteString(md("/newstack - создать набор"))
	sb.WriteString("\n")
	sb.WriteString(md("/rate <набор> <карточка> <оценка> - оценить карточку"))
	sb.WriteString("\n")
	sb.WriteString(md("/test <набор> <результат> - сдать тест по набору"))
	sb.WriteString("\n")
	sb.WriteString(md("/delete <набор> - удалить набор"))
	sb.WriteString("\n")
	sb.WriteString(md("/timezone <пояс> - сменить часовой пояс"))
	sb.WriteString("\n")
	sb.WriteString(md("/history - последние изменения серии"))
	sb.WriteString("\n\n")
	sb.WriteString(italic("Если действие может сбросить серию, бот сначала покажет последствия и попросит подтверждение."))

	return sb.String()
}
