package escrow

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/keyhaven/keyhaven/internal/logging"
)

func newTestService() (*Service, Store) {
	store := NewInMemory()
	return NewService(store, logging.Discard()), store
}

func TestLockReleasePayoutLifecycle(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	seller := uuid.NewString()

	if err := svc.Lock(ctx, seller, "order-1", 10_000, "USD"); err != nil {
		t.Fatalf("lock order-1: %v", err)
	}
	if err := svc.Lock(ctx, seller, "order-2", 5_000, "USD"); err != nil {
		t.Fatalf("lock order-2: %v", err)
	}

	released, err := svc.Release(ctx, seller, "order-2", "USD")
	if err != nil {
		t.Fatalf("release order-2: %v", err)
	}
	if released != 5_000 {
		t.Fatalf("expected 5000 released, got %d", released)
	}

	if err := svc.Payout(ctx, seller, 4_000, "USD", "po-1"); err != nil {
		t.Fatalf("payout: %v", err)
	}

	sums, err := store.Sums(ctx, seller)
	if err != nil {
		t.Fatalf("sums: %v", err)
	}
	if len(sums) != 1 {
		t.Fatalf("expected one currency row, got %d", len(sums))
	}
	b := sums[0]
	if b.AvailableCents != 1_000 {
		t.Fatalf("expected available 1000, got %d", b.AvailableCents)
	}
	if b.PendingCents != 10_000 {
		t.Fatalf("expected pending 10000, got %d", b.PendingCents)
	}
	if b.LifetimeGrossCents != 15_000 {
		t.Fatalf("expected gross 15000, got %d", b.LifetimeGrossCents)
	}
	if b.TotalPaidOutCents != 4_000 {
		t.Fatalf("expected paid out 4000, got %d", b.TotalPaidOutCents)
	}
}

func TestReleaseNetsLockedBucketToZero(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	seller := uuid.NewString()

	if err := svc.Lock(ctx, seller, "order-1", 7_500, "USD"); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if _, err := svc.Release(ctx, seller, "order-1", "USD"); err != nil {
		t.Fatalf("release: %v", err)
	}

	locked, err := store.OrderLockedCents(ctx, seller, "order-1")
	if err != nil {
		t.Fatalf("order locked: %v", err)
	}
	if locked != 0 {
		t.Fatalf("locked bucket should net to zero, got %d", locked)
	}

	// A second release finds nothing to move.
	if _, err := svc.Release(ctx, seller, "order-1", "USD"); !errors.Is(err, ErrNothingLocked) {
		t.Fatalf("expected ErrNothingLocked, got %v", err)
	}
}

func TestReverseBeforeRelease(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	seller := uuid.NewString()

	if err := svc.Lock(ctx, seller, "order-1", 10_000, "USD"); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := svc.Reverse(ctx, seller, "order-1", 3_000, "USD"); err != nil {
		t.Fatalf("reverse: %v", err)
	}

	locked, _ := store.OrderLockedCents(ctx, seller, "order-1")
	if locked != 7_000 {
		t.Fatalf("expected 7000 locked after partial reversal, got %d", locked)
	}

	// Reversal beyond the remaining lock is rejected.
	if err := svc.Reverse(ctx, seller, "order-1", 8_000, "USD"); !errors.Is(err, ErrExceedsLocked) {
		t.Fatalf("expected ErrExceedsLocked, got %v", err)
	}

	sums, _ := store.Sums(ctx, seller)
	if sums[0].LifetimeRefundedCents != 3_000 {
		t.Fatalf("expected refunded 3000, got %d", sums[0].LifetimeRefundedCents)
	}
}

func TestPayoutRequiresAvailableBalance(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	seller := uuid.NewString()

	if err := svc.Lock(ctx, seller, "order-1", 5_000, "USD"); err != nil {
		t.Fatalf("lock: %v", err)
	}

	// Still locked, nothing available yet.
	if err := svc.Payout(ctx, seller, 1_000, "USD", "po-1"); !errors.Is(err, ErrInsufficientAvailable) {
		t.Fatalf("expected ErrInsufficientAvailable, got %v", err)
	}
}

func TestPayoutReservationAndFailure(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	seller := uuid.NewString()

	if err := svc.Lock(ctx, seller, "order-1", 5_000, "USD"); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if _, err := svc.Release(ctx, seller, "order-1", "USD"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := svc.ReservePayout(ctx, seller, 5_000, "USD", "po-1"); err != nil {
		t.Fatalf("reserve payout: %v", err)
	}

	sums, _ := store.Sums(ctx, seller)
	if sums[0].AvailableCents != 0 {
		t.Fatalf("expected 0 available while reserved, got %d", sums[0].AvailableCents)
	}

	if err := svc.FailPayout(ctx, seller, 5_000, "USD", "po-1"); err != nil {
		t.Fatalf("fail payout: %v", err)
	}

	sums, _ = store.Sums(ctx, seller)
	if sums[0].AvailableCents != 5_000 {
		t.Fatalf("expected funds back after failed payout, got %d", sums[0].AvailableCents)
	}
	// Reservation and fail-reversal offset in the paid-out total.
	if sums[0].TotalPaidOutCents != 0 {
		t.Fatalf("expected net paid out 0, got %d", sums[0].TotalPaidOutCents)
	}
}

func TestLedgerConservationIdentity(t *testing.T) {
	// available + pending == lifetimeNet - totalPaidOut, for any history.
	svc, store := newTestService()
	ctx := context.Background()
	seller := uuid.NewString()

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("ledger op: %v", err)
		}
	}
	must(svc.Lock(ctx, seller, "o1", 10_000, "USD"))
	must(svc.Lock(ctx, seller, "o2", 6_000, "USD"))
	must(svc.Reverse(ctx, seller, "o2", 2_000, "USD"))
	_, err := svc.Release(ctx, seller, "o2", "USD")
	must(err)
	must(svc.Payout(ctx, seller, 1_500, "USD", "po-1"))

	sums, _ := store.Sums(ctx, seller)
	b := sums[0]
	lifetimeNet := b.LifetimeGrossCents - b.LifetimeRefundedCents
	if b.AvailableCents+b.PendingCents != lifetimeNet-b.TotalPaidOutCents {
		t.Fatalf("conservation identity violated: %+v", b)
	}
}
