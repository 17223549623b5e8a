package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/aliskhannn/lingua-streak-bot/internal/service"
)

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if _, err := h.bot.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		h.logger.Warn("failed to answer callback", zap.String("callback_id", cb.ID), zap.Error(err))
	}

	if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	if !h.ensureUser(ctx, cb.From, chatID) {
		return
	}

	data := decodeCallback(cb.Data)
	userID := cb.From.ID
	messageID := cb.Message.MessageID

	var fn HandlerFunc
	switch data.Action {
	case actionProgress:
		fn = h.progressHandler(userID)
	case actionStacks:
		fn = h.stacksHandler(userID)
	case actionStack:
		fn = h.stackCallback(userID, data)
	case actionReview:
		fn = h.reviewCallback(userID, data)
	case actionRate:
		fn = h.rateCallback(userID, data)
	case actionDelete:
		fn = h.deleteCallback(userID, data)
	case actionGuard:
		fn = h.guardCallback(userID, messageID, data)
	case actionTimezone:
		fn = h.timezoneCallback(userID, data)
	default:
		h.logger.Warn("unknown callback", zap.String("data", cb.Data))
		return
	}

	_ = h.withErrorHandling(fn)(ctx, chatID)
}

func (h *Handler) stackCallback(userID int64, data callbackData) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		stackID, err := data.int64Param(0)
		if err != nil {
			return err
		}
		return h.sendStack(ctx, chatID, userID, stackID)
	}
}

func (h *Handler) reviewCallback(userID int64, data callbackData) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		stackID, err := data.int64Param(0)
		if err != nil {
			return err
		}
		return h.sendNextCard(ctx, chatID, userID, stackID)
	}
}

func (h *Handler) rateCallback(userID int64, data callbackData) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		p, err := parseRateCallback(data)
		if err != nil {
			return err
		}

		out, err := h.streaks.SubmitRating(ctx, userID, p.StackID, p.CardID, p.Rating)
		if err != nil {
			return fmt.Errorf("submit rating: %w", err)
		}
		if err := h.sendRatingOutcome(chatID, userID, out); err != nil {
			return err
		}
		if !out.Applied {
			return nil
		}
		return h.sendNextCard(ctx, chatID, userID, p.StackID)
	}
}

func (h *Handler) deleteCallback(userID int64, data callbackData) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		stackID, err := data.int64Param(0)
		if err != nil {
			return err
		}
		return h.checkDeletion(ctx, chatID, userID, stackID)
	}
}

// guardCallback applies or cancels a checked action. The report the user
// saw is the one carried by the pending action.
func (h *Handler) guardCallback(userID int64, messageID int, data callbackData) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		decision, id, err := parseGuardCallback(data)
		if err != nil {
			return err
		}

		var res service.ConfirmResult
		switch decision {
		case guardCancel:
			if err := h.streaks.Cancel(ctx, userID, id); err != nil {
				return fmt.Errorf("cancel: %w", err)
			}
			h.clearKeyboard(chatID, messageID)
			return h.send(newPlainMessage(chatID, msgCancelled))
		case guardConfirm:
			res, err = h.streaks.Confirm(ctx, userID, id)
		case guardDelete:
			res, err = h.streaks.ExecuteStackDeletion(ctx, userID, id, false)
		case guardReset:
			res, err = h.streaks.ExecuteStackDeletion(ctx, userID, id, true)
		}
		if err != nil {
			return fmt.Errorf("%s pending action: %w", decision, err)
		}

		h.clearKeyboard(chatID, messageID)
		msg := newMessage(chatID, renderConfirmed(res))
		msg.ReplyMarkup = buildProgressKeyboard()
		return h.send(msg)
	}
}

func (h *Handler) timezoneCallback(userID int64, data callbackData) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		if len(data.Params) != 1 {
			return fmt.Errorf("%s: %w", data.Raw, errBadCallback)
		}
		return h.setTimezone(ctx, chatID, userID, data.Params[0])
	}
}

func (h *Handler) clearKeyboard(chatID int64, messageID int) {
	if _, err := h.bot.Request(removeKeyboard(chatID, messageID)); err != nil {
		h.logger.Debug("failed to remove keyboard", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
