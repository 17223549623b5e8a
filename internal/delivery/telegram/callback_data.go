package telegram

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/aliskhannn/lingua-streak-bot/internal/domain/entities"
)

const callbackSeparator = ":"

// Callback actions.
const (
	actionProgress = "progress"
	actionStacks   = "stacks"
	actionStack    = "stack"
	actionReview   = "review"
	actionRate     = "rate"
	actionDelete   = "delete"
	actionGuard    = "guard"
	actionTimezone = "tz"
)

// Guard decisions carried by actionGuard callbacks.
const (
	guardConfirm = "confirm" // apply a checked downgrade
	guardDelete  = "delete"  // delete a stack without losing streak days
	guardReset   = "reset"   // delete a stack and accept the streak loss
	guardCancel  = "cancel"
)

var errBadCallback = errors.New("malformed callback data")

// callbackData is "action:param:param..." packed into Telegram's 64 bytes.
type callbackData struct {
	Action string
	Params []string
	Raw    string
}

func (cd callbackData) encode() string {
	if len(cd.Params) == 0 {
		return cd.Action
	}
	return cd.Action + callbackSeparator + strings.Join(cd.Params, callbackSeparator)
}

func decodeCallback(data string) callbackData {
	parts := strings.Split(data, callbackSeparator)
	return callbackData{
		Action: parts[0],
		Params: parts[1:],
		Raw:    data,
	}
}

func (cd callbackData) int64Param(i int) (int64, error) {
	if i >= len(cd.Params) {
		return 0, fmt.Errorf("%s: param %d missing: %w", cd.Raw, i, errBadCallback)
	}
	v, err := strconv.ParseInt(cd.Params[i], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: param %d: %w", cd.Raw, i, errBadCallback)
	}
	return v, nil
}

func buildProgressCallback() string {
	return callbackData{Action: actionProgress}.encode()
}

func buildStacksCallback() string {
	return callbackData{Action: actionStacks}.encode()
}

func buildStackCallback(stackID int64) string {
	return callbackData{Action: actionStack, Params: []string{formatID(stackID)}}.encode()
}

func buildReviewCallback(stackID int64) string {
	return callbackData{Action: actionReview, Params: []string{formatID(stackID)}}.encode()
}

func buildRateCallback(stackID, cardID int64, rating entities.Rating) string {
	return callbackData{
		Action: actionRate,
		Params: []string{formatID(stackID), formatID(cardID), strconv.Itoa(int(rating))},
	}.encode()
}

func buildDeleteCallback(stackID int64) string {
	return callbackData{Action: actionDelete, Params: []string{formatID(stackID)}}.encode()
}

func buildGuardCallback(decision string, id uuid.UUID) string {
	return callbackData{Action: actionGuard, Params: []string{decision, id.String()}}.encode()
}

func buildTimezoneCallback(tz string) string {
	return callbackData{Action: actionTimezone, Params: []string{tz}}.encode()
}

// rateParams is the payload of an actionRate callback.
type rateParams struct {
	StackID int64
	CardID  int64
	Rating  entities.Rating
}

func parseRateCallback(cd callbackData) (rateParams, error) {
	stackID, err := cd.int64Param(0)
	if err != nil {
		return rateParams{}, err
	}
	cardID, err := cd.int64Param(1)
	if err != nil {
		return rateParams{}, err
	}
	rating, err := cd.int64Param(2)
	if err != nil {
		return rateParams{}, err
	}
	return rateParams{StackID: stackID, CardID: cardID, Rating: entities.Rating(rating)}, nil
}

func parseGuardCallback(cd callbackData) (string, uuid.UUID, error) {
	if len(cd.Params) != 2 {
		return "", uuid.Nil, fmt.Errorf("%s: %w", cd.Raw, errBadCallback)
	}
	switch cd.Params[0] {
	case guardConfirm, guardDelete, guardReset, guardCancel:
	default:
		return "", uuid.Nil, fmt.Errorf("%s: unknown decision: %w", cd.Raw, errBadCallback)
	}
	id, err := uuid.Parse(cd.Params[1])
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("%s: %w", cd.Raw, errBadCallback)
	}
	return cd.Params[0], id, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
