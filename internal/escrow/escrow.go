package escrow

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNothingLocked occurs when a release or reversal targets an order
	// with no remaining locked funds.
	ErrNothingLocked = errors.New("no locked funds for order")

	// ErrExceedsLocked occurs when a reversal is larger than the order's
	// remaining locked sum. A lock can never be released for more than
	// was locked.
	ErrExceedsLocked = errors.New("amount exceeds locked funds for order")

	// ErrInsufficientAvailable occurs when a payout debit exceeds the
	// seller's available balance.
	ErrInsufficientAvailable = errors.New("insufficient available balance")
)

// Entry types. Reversals are new rows with opposite sign, never updates.
const (
	TypeLock              = "escrow_lock"
	TypeReleaseDebit      = "escrow_release_debit"
	TypeReleaseCredit     = "escrow_release_credit"
	TypeReversal          = "escrow_reversal"
	TypeSellerReversal    = "seller_reversal"
	TypePayout            = "payout"
	TypePayoutReservation = "payout_reservation"
	TypePayoutFailRevert  = "payout_fail_reversal"
)

// Lifecycle status buckets. Summing signed amounts per bucket yields the net.
const (
	StatusLocked    = "locked"
	StatusAvailable = "available"
	StatusSettled   = "settled"
)

// RoleSeller tags entries on the seller side of an order.
const RoleSeller = "seller"

// Entry is one signed money movement in the append-only seller ledger.
// Entries are never updated or deleted.
type Entry struct {
	ID          string
	UserID      string
	Role        string
	Type        string
	AmountCents int64
	Currency    string
	Status      string
	Description string
	OrderID     string
	CreatedAt   time.Time
}

// BalanceSums holds the per-currency conditional sums the aggregator needs,
// computed in one pass (SQL for Postgres, a loop in memory).
type BalanceSums struct {
	Currency              string
	AvailableCents        int64
	PendingCents          int64
	LifetimeGrossCents    int64
	LifetimeRefundedCents int64
	TotalPaidOutCents     int64
}

// Store is the append-only ledger entry store. Append writes all given
// entries atomically so a crash can never leave half an escrow transition.
type Store interface {
	Append(ctx context.Context, entries ...Entry) error
	ListByUser(ctx context.Context, userID string) ([]Entry, error)
	// OrderLockedCents sums the locked-status entries for one order.
	OrderLockedCents(ctx context.Context, userID, orderID string) (int64, error)
	// Sums aggregates the user's entries by currency.
	Sums(ctx context.Context, userID string) ([]BalanceSums, error)
}
