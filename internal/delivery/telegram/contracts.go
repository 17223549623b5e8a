package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/aliskhannn/lingua-streak-bot/internal/domain/entities"
	"github.com/aliskhannn/lingua-streak-bot/internal/service"
	"github.com/aliskhannn/lingua-streak-bot/internal/storage"
)

// BotAPI is the part of the Telegram client the handler uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
}

type StreakService interface {
	EnsureUser(ctx context.Context, user *entities.User, timezone string) error
	SetTimezone(ctx context.Context, userID int64, timezone string) (service.ProgressView, error)
	GetProgress(ctx context.Context, userID int64) (service.ProgressView, error)
	History(ctx context.Context, userID int64, limit int) ([]*entities.StreakAuditEntry, error)

	CreateStack(ctx context.Context, userID int64, title string, fronts []string) (service.StackView, error)
	ListStacks(ctx context.Context, userID int64) ([]service.StackView, error)
	GetStack(ctx context.Context, userID, stackID int64) (service.StackView, error)
	GetCards(ctx context.Context, userID, stackID int64) ([]service.CardView, error)

	SubmitRating(ctx context.Context, userID, stackID, cardID int64, rating entities.Rating) (service.RatingOutcome, error)
	SubmitTestResult(ctx context.Context, userID, stackID int64, score int) (service.TestSubmission, error)

	CheckStackDeletion(ctx context.Context, userID, stackID int64) (*entities.PendingAction, error)
	ExecuteStackDeletion(ctx context.Context, userID int64, actionID uuid.UUID, resetStreakIfWarned bool) (service.ConfirmResult, error)
	Confirm(ctx context.Context, userID int64, actionID uuid.UUID) (service.ConfirmResult, error)
	Cancel(ctx context.Context, userID int64, actionID uuid.UUID) error
}

type NoticeStorage interface {
	Get(userID int64) (storage.NoticeMessage, bool)
	Delete(userID int64)
	UpsertAndGetPrev(userID int64, msg storage.NoticeMessage) (prev storage.NoticeMessage, hadPrev bool)
}
