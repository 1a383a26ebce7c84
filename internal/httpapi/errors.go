package httpapi

import (
	"errors"
	"fmt"
)

// ErrPartyEnded is returned when the server reports the party is gone
// (terminal; callers navigate away rather than retry).
var ErrPartyEnded = errors.New("party has ended")

// TransientError wraps a network or server-side failure that left no state
// behind and is safe to retry.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// InsufficientFundsError carries the exact shortfall so the UI can show the
// user how far off they are.
type InsufficientFundsError struct {
	CurrentBalancePence int64 `json:"currentBalancePence"`
	RequiredAmountPence int64 `json:"requiredAmountPence"`
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance %dp, required %dp",
		e.CurrentBalancePence, e.RequiredAmountPence)
}

// ValidationError is a request the server refused outright. Prior client
// state is untouched and the request may be corrected and retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }
