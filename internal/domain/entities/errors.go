package entities

import "errors"

// Validation errors are returned before any state is touched.
var (
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrInvalidScore    = errors.New("test score must be between 0 and 100")
	ErrInvalidTimezone = errors.New("unsupported timezone")
	ErrEmptyStack      = errors.New("stack must contain at least one card")
	ErrEmptyTitle      = errors.New("stack title is required")
	ErrUserNotFound    = errors.New("user not found")
	ErrStackNotFound   = errors.New("stack not found")
	ErrCardNotFound    = errors.New("card not found")
	ErrNoPendingTest   = errors.New("stack has no pending test")
)

// ErrVersionConflict is returned when a row changed between read and write.
// Operations that hit it are recomputed from fresh state.
var ErrVersionConflict = errors.New("row was modified by another request")

// Guard errors.
var (
	ErrGuardViolation        = errors.New("streak-impacting action requires explicit confirmation")
	ErrPendingActionNotFound = errors.New("pending action not found or expired")
	ErrStaleImpact           = errors.New("state changed since the impact was checked")
)
