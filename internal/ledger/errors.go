package ledger

import "errors"

// Settlement errors. All of them leave the ledger untouched, so callers can
// show the reason and let the user retry with corrected input.
var (
	ErrInvalidQuantity    = errors.New("shares must be a positive whole number")
	ErrInvalidOrder       = errors.New("invalid symbol")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrNoSuchPosition     = errors.New("no position held for symbol")
	ErrInsufficientShares = errors.New("not enough shares owned")
	ErrQuoteUnavailable   = errors.New("quote unavailable")
)

// ErrAccountNotFound is returned when an operation names an unknown username.
var ErrAccountNotFound = errors.New("account not found")

// ErrUsernameTaken is returned when registering a username that already exists.
var ErrUsernameTaken = errors.New("username taken")
