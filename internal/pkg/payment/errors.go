package payment

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrSignatureInvalid    = errors.New("invalid webhook signature")
	ErrMalformedPayload    = errors.New("malformed webhook payload")
	ErrUnsupportedEvent    = errors.New("unsupported webhook event")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrSideEffectFailure   = errors.New("side effect failed")
	ErrLedger              = errors.New("ledger update failed")
)

// Malformed wraps ErrMalformedPayload with a description of what is wrong.
func Malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedPayload, fmt.Sprintf(format, args...))
}

// Unsupported wraps ErrUnsupportedEvent with the event that was skipped.
func Unsupported(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedEvent, fmt.Sprintf(format, args...))
}

// SideEffectError carries enough context to reconcile a rolled back applier
// by hand.
type SideEffectError struct {
	Step          string
	TransactionID string
	UserID        uint
	Amount        decimal.Decimal
	Err           error
}

func (e *SideEffectError) Error() string {
	return fmt.Sprintf("%s for transaction %s (user %d, amount %s): %v",
		e.Step, e.TransactionID, e.UserID, e.Amount.StringFixed(2), e.Err)
}

func (e *SideEffectError) Unwrap() []error {
	return []error{ErrSideEffectFailure, e.Err}
}
