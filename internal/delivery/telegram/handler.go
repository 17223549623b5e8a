package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/aliskhannn/lingua-streak-bot/internal/domain/entities"
)

// defaultTimezone is assigned on first contact until the user picks one.
const defaultTimezone = "UTC"

type Handler struct {
	bot     BotAPI
	streaks StreakService
	notices NoticeStorage
	logger  *zap.Logger
}

func NewHandler(bot BotAPI, streaks StreakService, notices NoticeStorage, logger *zap.Logger) *Handler {
	return &Handler{
		bot:     bot,
		streaks: streaks,
		notices: notices,
		logger:  logger,
	}
}

// Run processes updates until ctx is cancelled.
func (h *Handler) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := h.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			h.handleUpdate(ctx, update)
		}
	}
}

func (h *Handler) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("panic while handling update",
				zap.Int("update_id", update.UpdateID),
				zap.Any("panic", r),
			)
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		h.handleMessage(ctx, update.Message)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID

	if !h.ensureUser(ctx, msg.From, chatID) {
		return
	}

	if !msg.IsCommand() {
		_ = h.withErrorHandling(func(ctx context.Context, chatID int64) error {
			return h.send(newPlainMessage(chatID, msgUseButtons))
		})(ctx, chatID)
		return
	}

	userID := msg.From.ID
	args := msg.CommandArguments()

	var fn HandlerFunc
	switch msg.Command() {
	case "start":
		fn = h.startHandler()
	case "help":
		fn = h.helpHandler()
	case "progress":
		fn = h.progressHandler(userID)
	case "stacks":
		fn = h.stacksHandler(userID)
	case "newstack":
		fn = h.newStackHandler(userID, args)
	case "rate":
		fn = h.rateHandler(userID, args)
	case "test":
		fn = h.testHandler(userID, args)
	case "delete":
		fn = h.deleteHandler(userID, args)
	case "timezone":
		fn = h.timezoneHandler(userID, args)
	case "history":
		fn = h.historyHandler(userID)
	default:
		fn = func(ctx context.Context, chatID int64) error {
			return h.send(newPlainMessage(chatID, msgUnknownCommand))
		}
	}

	_ = h.withErrorHandling(fn)(ctx, chatID)
}

// ensureUser registers the sender on every interaction. It reports false
// when the update must not be processed.
func (h *Handler) ensureUser(ctx context.Context, from *tgbotapi.User, chatID int64) bool {
	user := entities.NewUser(from.ID, chatID, from.UserName)
	if err := h.streaks.EnsureUser(ctx, user, defaultTimezone); err != nil {
		h.logger.Error("failed to ensure user",
			zap.Int64("user_id", from.ID),
			zap.Error(err),
		)
		if sendErr := h.send(newPlainMessage(chatID, msgInternalError)); sendErr != nil {
			h.logger.Error("failed to send error message", zap.Error(sendErr))
		}
		return false
	}
	return true
}

func (h *Handler) send(c tgbotapi.Chattable) error {
	if _, err := h.bot.Send(c); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// userLocation returns the location the user's days are counted in.
func (h *Handler) userLocation(ctx context.Context, userID int64) (*time.Location, error) {
	view, err := h.streaks.GetProgress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	loc, _ := entities.LocationOrUTC(view.Timezone)
	return loc, nil
}
