package subscription

import "errors"

// Failure classes returned by Subscribe and Confirm.
var (
	// ErrValidation marks input that failed parsing. No I/O happened.
	ErrValidation = errors.New("invalid subscriber data")
	// ErrStorage marks a failed or rolled-back transaction.
	ErrStorage = errors.New("failed to store subscriber")
	// ErrDispatch marks a failed confirmation email. The subscriber row
	// and its token are already committed.
	ErrDispatch = errors.New("failed to send confirmation email")
)

// Repository sentinels.
var (
	// ErrTokenConflict is returned by Repository.Save when the token is
	// already taken. The whole transaction was rolled back, so the caller
	// may retry with a fresh token.
	ErrTokenConflict = errors.New("subscription token already exists")
	// ErrUnknownToken is returned when no subscriber owns the token.
	ErrUnknownToken = errors.New("subscription token not found")
)
