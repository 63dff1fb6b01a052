package escrow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service writes escrow lifecycle transitions as paired ledger rows.
// A single row is never rewritten; every transition is two or more entries
// appended atomically.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService builds an escrow service over the given entry store.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Lock holds amountCents of the seller's earnings for an order at settlement.
func (s *Service) Lock(ctx context.Context, sellerID, orderID string, amountCents int64, currency string) error {
	if amountCents <= 0 {
		return fmt.Errorf("lock amount must be positive")
	}
	return s.store.Append(ctx, Entry{
		ID:          uuid.NewString(),
		UserID:      sellerID,
		Role:        RoleSeller,
		Type:        TypeLock,
		AmountCents: amountCents,
		Currency:    currency,
		Status:      StatusLocked,
		Description: fmt.Sprintf("escrow lock for order %s", orderID),
		OrderID:     orderID,
		CreatedAt:   time.Now().UTC(),
	})
}

// Release moves the order's remaining locked funds into the available bucket.
// The debit/credit pair is appended in one atomic write so the locked bucket
// nets to zero for the order with no stuck intermediate state.
func (s *Service) Release(ctx context.Context, sellerID, orderID, currency string) (int64, error) {
	locked, err := s.store.OrderLockedCents(ctx, sellerID, orderID)
	if err != nil {
		return 0, err
	}
	if locked <= 0 {
		return 0, ErrNothingLocked
	}

	now := time.Now().UTC()
	err = s.store.Append(ctx,
		Entry{
			ID:          uuid.NewString(),
			UserID:      sellerID,
			Role:        RoleSeller,
			Type:        TypeReleaseDebit,
			AmountCents: -locked,
			Currency:    currency,
			Status:      StatusLocked,
			Description: fmt.Sprintf("escrow release debit for order %s", orderID),
			OrderID:     orderID,
			CreatedAt:   now,
		},
		Entry{
			ID:          uuid.NewString(),
			UserID:      sellerID,
			Role:        RoleSeller,
			Type:        TypeReleaseCredit,
			AmountCents: locked,
			Currency:    currency,
			Status:      StatusAvailable,
			Description: fmt.Sprintf("escrow release credit for order %s", orderID),
			OrderID:     orderID,
			CreatedAt:   now,
		},
	)
	if err != nil {
		return 0, err
	}

	s.logger.Info("escrow released", "seller_id", sellerID, "order_id", orderID, "cents", locked)
	return locked, nil
}

// Reverse refunds part or all of an order before release. The reversal lands
// in the locked bucket with opposite sign so the bucket sums correctly.
func (s *Service) Reverse(ctx context.Context, sellerID, orderID string, amountCents int64, currency string) error {
	if amountCents <= 0 {
		return fmt.Errorf("reversal amount must be positive")
	}
	locked, err := s.store.OrderLockedCents(ctx, sellerID, orderID)
	if err != nil {
		return err
	}
	if locked <= 0 {
		return ErrNothingLocked
	}
	if amountCents > locked {
		return ErrExceedsLocked
	}

	return s.store.Append(ctx, Entry{
		ID:          uuid.NewString(),
		UserID:      sellerID,
		Role:        RoleSeller,
		Type:        TypeReversal,
		AmountCents: -amountCents,
		Currency:    currency,
		Status:      StatusLocked,
		Description: fmt.Sprintf("escrow reversal for order %s", orderID),
		OrderID:     orderID,
		CreatedAt:   time.Now().UTC(),
	})
}

// Payout debits the available bucket for a completed payout.
func (s *Service) Payout(ctx context.Context, sellerID string, amountCents int64, currency, reference string) error {
	return s.debitAvailable(ctx, sellerID, amountCents, currency, TypePayout,
		fmt.Sprintf("payout %s", reference))
}

// ReservePayout debits the available bucket while a payout is in flight.
func (s *Service) ReservePayout(ctx context.Context, sellerID string, amountCents int64, currency, reference string) error {
	return s.debitAvailable(ctx, sellerID, amountCents, currency, TypePayoutReservation,
		fmt.Sprintf("payout reservation %s", reference))
}

// FailPayout returns a reserved payout amount to the available bucket after
// the payout failed downstream.
func (s *Service) FailPayout(ctx context.Context, sellerID string, amountCents int64, currency, reference string) error {
	if amountCents <= 0 {
		return fmt.Errorf("payout amount must be positive")
	}
	return s.store.Append(ctx, Entry{
		ID:          uuid.NewString(),
		UserID:      sellerID,
		Role:        RoleSeller,
		Type:        TypePayoutFailRevert,
		AmountCents: amountCents,
		Currency:    currency,
		Status:      StatusAvailable,
		Description: fmt.Sprintf("payout failure reversal %s", reference),
		CreatedAt:   time.Now().UTC(),
	})
}

func (s *Service) debitAvailable(ctx context.Context, sellerID string, amountCents int64, currency, entryType, description string) error {
	if amountCents <= 0 {
		return fmt.Errorf("payout amount must be positive")
	}

	sums, err := s.store.Sums(ctx, sellerID)
	if err != nil {
		return err
	}
	var available int64
	for _, b := range sums {
		if b.Currency == currency {
			available = b.AvailableCents
		}
	}
	if available < amountCents {
		return ErrInsufficientAvailable
	}

	return s.store.Append(ctx, Entry{
		ID:          uuid.NewString(),
		UserID:      sellerID,
		Role:        RoleSeller,
		Type:        entryType,
		AmountCents: -amountCents,
		Currency:    currency,
		Status:      StatusAvailable,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	})
}
