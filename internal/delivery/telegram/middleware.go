package telegram

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/aliskhannn/lingua-streak-bot/internal/domain/entities"
)

type HandlerFunc func(ctx context.Context, chatID int64) error

// withErrorHandling reports domain errors to the user and logs the rest.
func (h *Handler) withErrorHandling(fn HandlerFunc) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		err := fn(ctx, chatID)
		if err == nil {
			return nil
		}

		text, known := userMessageFor(err)
		if known {
			h.logger.Debug("request rejected", zap.Int64("chat_id", chatID), zap.Error(err))
		} else {
			h.logger.Error("handler failed", zap.Int64("chat_id", chatID), zap.Error(err))
		}

		if sendErr := h.send(newPlainMessage(chatID, text)); sendErr != nil {
			h.logger.Error("failed to send error message", zap.Int64("chat_id", chatID), zap.Error(sendErr))
		}
		return nil
	}
}

// userMessageFor maps an error to the text shown to the user. known is
// false for errors the user cannot act on.
func userMessageFor(err error) (text string, known bool) {
	switch {
	case errors.Is(err, entities.ErrStackNotFound):
		return msgStackNotFound, true
	case errors.Is(err, entities.ErrCardNotFound):
		return msgCardNotFound, true
	case errors.Is(err, entities.ErrInvalidRating):
		return msgInvalidRating, true
	case errors.Is(err, entities.ErrInvalidScore):
		return msgInvalidScore, true
	case errors.Is(err, entities.ErrInvalidTimezone):
		return msgInvalidTimezone, true
	case errors.Is(err, entities.ErrEmptyStack):
		return msgEmptyStack, true
	case errors.Is(err, entities.ErrEmptyTitle):
		return msgEmptyTitle, true
	case errors.Is(err, entities.ErrNoPendingTest):
		return msgNoPendingTest, true
	case errors.Is(err, entities.ErrPendingActionNotFound):
		return msgPendingNotFound, true
	case errors.Is(err, entities.ErrStaleImpact):
		return msgStaleImpact, true
	case errors.Is(err, entities.ErrGuardViolation):
		return msgGuardViolation, true
	case errors.Is(err, entities.ErrVersionConflict):
		return msgBusy, true
	case errors.Is(err, errBadCallback):
		return msgUseButtons, true
	}
	return msgInternalError, false
}
