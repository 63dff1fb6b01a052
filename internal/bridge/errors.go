package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidUserID occurs when the supplied user id is malformed.
	ErrInvalidUserID = errors.New("invalid user id")

	// ErrInvalidAmount occurs when an operation amount is zero or negative.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrLegacySpendingDisabled occurs when the legacy channel is
	// administratively disabled but the spend would need it.
	ErrLegacySpendingDisabled = errors.New("legacy wallet spending is disabled")

	// ErrSpendingDisabled occurs when the resolved strategy forbids all spending.
	ErrSpendingDisabled = errors.New("wallet spending is disabled")
)

// InsufficientFundsError reports a spend that exceeds the combined balance.
type InsufficientFundsError struct {
	AvailableCents int64
	RequiredCents  int64
	Currency       string
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: available %d, required %d %s",
		e.AvailableCents, e.RequiredCents, e.Currency)
}

// IsInsufficientFunds reports whether err is an InsufficientFundsError.
func IsInsufficientFunds(err error) bool {
	var target *InsufficientFundsError
	return errors.As(err, &target)
}
