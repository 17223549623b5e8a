package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/aliskhannn/lingua-streak-bot/internal/domain/entities"
	"github.com/aliskhannn/lingua-streak-bot/internal/service"
)

const historyLimit = 10

func (h *Handler) startHandler() HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		msg := newMessage(chatID, welcomeMessage())
		msg.ReplyMarkup = buildTimezoneKeyboard()
		return h.send(msg)
	}
}

func (h *Handler) helpHandler() HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		return h.send(newMessage(chatID, helpMessage()))
	}
}

func (h *Handler) progressHandler(userID int64) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		view, err := h.streaks.GetProgress(ctx, userID)
		if err != nil {
			return fmt.Errorf("get progress: %w", err)
		}

		msg := newMessage(chatID, renderProgress(view))
		msg.ReplyMarkup = buildProgressKeyboard()
		return h.send(msg)
	}
}

func (h *Handler) stacksHandler(userID int64) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		stacks, err := h.streaks.ListStacks(ctx, userID)
		if err != nil {
			return fmt.Errorf("list stacks: %w", err)
		}
		if len(stacks) == 0 {
			return h.send(newPlainMessage(chatID, msgNoStacks))
		}

		msg := newMessage(chatID, renderStacks(stacks))
		msg.ReplyMarkup = buildStacksKeyboard(stacks)
		return h.send(msg)
	}
}

func (h *Handler) newStackHandler(userID int64, args string) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		title, fronts, ok := parseNewStack(args)
		if !ok {
			return h.send(newPlainMessage(chatID, msgNewStackUsage))
		}

		view, err := h.streaks.CreateStack(ctx, userID, title, fronts)
		if err != nil {
			return fmt.Errorf("create stack: %w", err)
		}

		return h.sendStack(ctx, chatID, userID, view.ID)
	}
}

func (h *Handler) rateHandler(userID int64, args string) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		nums, ok := parseInts(args, 3)
		if !ok {
			return h.send(newPlainMessage(chatID, msgRateUsage))
		}
		stackID, position, rating := nums[0], int(nums[1]), entities.Rating(nums[2])

		cards, err := h.streaks.GetCards(ctx, userID, stackID)
		if err != nil {
			return fmt.Errorf("get cards: %w", err)
		}
		card, ok := cardAt(cards, position)
		if !ok {
			return entities.ErrCardNotFound
		}

		out, err := h.streaks.SubmitRating(ctx, userID, stackID, card.ID, rating)
		if err != nil {
			return fmt.Errorf("submit rating: %w", err)
		}
		return h.sendRatingOutcome(chatID, userID, out)
	}
}

func (h *Handler) testHandler(userID int64, args string) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		nums, ok := parseInts(args, 2)
		if !ok {
			return h.send(newPlainMessage(chatID, msgTestUsage))
		}

		sub, err := h.streaks.SubmitTestResult(ctx, userID, nums[0], int(nums[1]))
		if err != nil {
			return fmt.Errorf("submit test result: %w", err)
		}

		msg := newMessage(chatID, renderTestSubmission(sub))
		msg.ReplyMarkup = buildProgressKeyboard()
		return h.send(msg)
	}
}

func (h *Handler) deleteHandler(userID int64, args string) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		nums, ok := parseInts(args, 1)
		if !ok {
			return h.send(newPlainMessage(chatID, msgDeleteUsage))
		}
		return h.checkDeletion(ctx, chatID, userID, nums[0])
	}
}

func (h *Handler) timezoneHandler(userID int64, args string) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		tz := strings.TrimSpace(args)
		if tz == "" {
			msg := newPlainMessage(chatID, msgChooseTimezone)
			msg.ReplyMarkup = buildTimezoneKeyboard()
			return h.send(msg)
		}
		return h.setTimezone(ctx, chatID, userID, tz)
	}
}

func (h *Handler) historyHandler(userID int64) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		entries, err := h.streaks.History(ctx, userID, historyLimit)
		if err != nil {
			return fmt.Errorf("get history: %w", err)
		}
		if len(entries) == 0 {
			return h.send(newPlainMessage(chatID, msgHistoryEmpty))
		}

		loc, err := h.userLocation(ctx, userID)
		if err != nil {
			return err
		}
		return h.send(newMessage(chatID, renderHistory(entries, loc)))
	}
}

func (h *Handler) sendStack(ctx context.Context, chatID, userID, stackID int64) error {
	view, err := h.streaks.GetStack(ctx, userID, stackID)
	if err != nil {
		return fmt.Errorf("get stack: %w", err)
	}
	cards, err := h.streaks.GetCards(ctx, userID, stackID)
	if err != nil {
		return fmt.Errorf("get cards: %w", err)
	}
	loc, err := h.userLocation(ctx, userID)
	if err != nil {
		return err
	}

	msg := newMessage(chatID, renderStack(view, cards, loc))
	msg.ReplyMarkup = buildStackKeyboard(view)
	return h.send(msg)
}

// sendNextCard offers the first card that is not known yet.
func (h *Handler) sendNextCard(ctx context.Context, chatID, userID, stackID int64) error {
	view, err := h.streaks.GetStack(ctx, userID, stackID)
	if err != nil {
		return fmt.Errorf("get stack: %w", err)
	}
	cards, err := h.streaks.GetCards(ctx, userID, stackID)
	if err != nil {
		return fmt.Errorf("get cards: %w", err)
	}

	card, ok := nextCard(cards)
	if !ok {
		return h.send(newPlainMessage(chatID, msgAllCardsKnown))
	}

	msg := newMessage(chatID, renderCard(view, card))
	msg.ReplyMarkup = buildRatingKeyboard(stackID, card.ID)
	return h.send(msg)
}

// sendRatingOutcome shows an applied rating, or the impact report of a
// downgrade waiting for confirmation.
func (h *Handler) sendRatingOutcome(chatID, userID int64, out service.RatingOutcome) error {
	if out.Pending != nil {
		msg := newMessage(chatID, renderImpact(out.Pending.Report))
		msg.ReplyMarkup = buildGuardKeyboard(out.Pending)
		return h.send(msg)
	}
	if out.Crossed {
		h.clearLastChance(userID)
	}
	return h.send(newMessage(chatID, renderRatingOutcome(out)))
}

func (h *Handler) checkDeletion(ctx context.Context, chatID, userID, stackID int64) error {
	p, err := h.streaks.CheckStackDeletion(ctx, userID, stackID)
	if err != nil {
		return fmt.Errorf("check stack deletion: %w", err)
	}

	msg := newMessage(chatID, renderImpact(p.Report))
	msg.ReplyMarkup = buildGuardKeyboard(p)
	return h.send(msg)
}

func (h *Handler) setTimezone(ctx context.Context, chatID, userID int64, tz string) error {
	view, err := h.streaks.SetTimezone(ctx, userID, tz)
	if err != nil {
		return fmt.Errorf("set timezone: %w", err)
	}

	text := md(msgTimezoneSetPrefix+timezoneName(view.Timezone)) + "\n\n" + renderProgress(view)
	msg := newMessage(chatID, text)
	msg.ReplyMarkup = buildProgressKeyboard()
	return h.send(msg)
}

// parseNewStack reads "Title\nfront\nfront" or "Title | front; front".
func parseNewStack(args string) (title string, fronts []string, ok bool) {
	args = strings.TrimSpace(args)

	var rest []string
	if head, tail, found := strings.Cut(args, "\n"); found {
		title, rest = head, strings.Split(tail, "\n")
	} else if head, tail, found := strings.Cut(args, "|"); found {
		title, rest = head, strings.Split(tail, ";")
	} else {
		return "", nil, false
	}

	title = strings.TrimSpace(title)
	for _, f := range rest {
		if f = strings.TrimSpace(f); f != "" {
			fronts = append(fronts, f)
		}
	}
	if title == "" || len(fronts) == 0 {
		return "", nil, false
	}
	return title, fronts, true
}

// parseInts parses exactly n whitespace-separated integers.
func parseInts(args string, n int) ([]int64, bool) {
	fields := strings.Fields(args)
	if len(fields) != n {
		return nil, false
	}
	out := make([]int64, 0, n)
	for _, f := range fields {
		v, err := strconv.ParseInt(strings.TrimPrefix(f, "#"), 10, 64)
		if err != nil {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}

func cardAt(cards []service.CardView, position int) (service.CardView, bool) {
	for _, c := range cards {
		if c.Position == position {
			return c, true
		}
	}
	return service.CardView{}, false
}

func nextCard(cards []service.CardView) (service.CardView, bool) {
	for _, c := range cards {
		if !c.Known {
			return c, true
		}
	}
	return service.CardView{}, false
}

// removeKeyboard strips the inline keyboard from an answered message.
func removeKeyboard(chatID int64, messageID int) tgbotapi.EditMessageReplyMarkupConfig {
	return tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	})
}
