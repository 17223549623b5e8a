package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/aliskhannn/lingua-streak-bot/internal/service"
	"github.com/aliskhannn/lingua-streak-bot/internal/storage"
)

var _ service.StreakNotifier = (*Handler)(nil)

// NotifyFrozen tells the user that an overdue test froze the streak.
func (h *Handler) NotifyFrozen(_ context.Context, chatID int64, stackIDs []int64) error {
	msg := newMessage(chatID, renderFrozenNotice(stackIDs))
	msg.ReplyMarkup = buildProgressKeyboard()
	return h.send(msg)
}

// NotifyLastChance warns a user whose goal day is in its grace period.
// The previous notice is removed so the chat keeps only the latest one.
func (h *Handler) NotifyLastChance(_ context.Context, userID, chatID int64, view service.ProgressView) error {
	msg := newMessage(chatID, renderLastChanceNotice(view))
	msg.ReplyMarkup = buildProgressKeyboard()

	sent, err := h.bot.Send(msg)
	if err != nil {
		return fmt.Errorf("send last chance notice: %w", err)
	}

	prev, hadPrev := h.notices.UpsertAndGetPrev(userID, storage.NoticeMessage{
		ChatID:    chatID,
		MessageID: sent.MessageID,
		Day:       view.GoalDay(),
		SentAt:    time.Now(),
	})
	if hadPrev && prev.MessageID != 0 {
		if _, err := h.bot.Request(tgbotapi.NewDeleteMessage(prev.ChatID, prev.MessageID)); err != nil {
			h.logger.Debug("failed to delete previous notice",
				zap.Int64("user_id", userID),
				zap.Int("message_id", prev.MessageID),
				zap.Error(err),
			)
		}
	}

	return nil
}

// clearLastChance removes the "last chance" notice once the day's goal is met.
func (h *Handler) clearLastChance(userID int64) {
	notice, ok := h.notices.Get(userID)
	if !ok {
		return
	}
	h.notices.Delete(userID)

	if notice.MessageID == 0 {
		return
	}
	if _, err := h.bot.Request(tgbotapi.NewDeleteMessage(notice.ChatID, notice.MessageID)); err != nil {
		h.logger.Debug("failed to delete last chance notice",
			zap.Int64("user_id", userID),
			zap.Int("message_id", notice.MessageID),
			zap.Error(err),
		)
	}
}
