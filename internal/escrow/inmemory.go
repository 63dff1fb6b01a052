package escrow

import (
	"context"
	"sync"
)

type inMemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewInMemory creates a concurrency-safe in-memory entry store useful for unit tests.
func NewInMemory() Store {
	return &inMemoryStore{}
}

func (s *inMemoryStore) Append(_ context.Context, entries ...Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entries...)
	return nil
}

func (s *inMemoryStore) ListByUser(_ context.Context, userID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *inMemoryStore) OrderLockedCents(_ context.Context, userID, orderID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sum int64
	for _, e := range s.entries {
		if e.UserID == userID && e.OrderID == orderID && e.Status == StatusLocked {
			sum += e.AmountCents
		}
	}
	return sum, nil
}

func (s *inMemoryStore) Sums(_ context.Context, userID string) ([]BalanceSums, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byCurrency := make(map[string]*BalanceSums)
	var order []string
	for _, e := range s.entries {
		if e.UserID != userID {
			continue
		}
		sums, ok := byCurrency[e.Currency]
		if !ok {
			sums = &BalanceSums{Currency: e.Currency}
			byCurrency[e.Currency] = sums
			order = append(order, e.Currency)
		}
		switch e.Status {
		case StatusAvailable:
			sums.AvailableCents += e.AmountCents
		case StatusLocked:
			sums.PendingCents += e.AmountCents
		}
		switch e.Type {
		case TypeLock:
			sums.LifetimeGrossCents += e.AmountCents
		case TypeReversal, TypeSellerReversal:
			sums.LifetimeRefundedCents -= e.AmountCents
		case TypePayout, TypePayoutReservation, TypePayoutFailRevert:
			sums.TotalPaidOutCents -= e.AmountCents
		}
	}

	out := make([]BalanceSums, 0, len(order))
	for _, currency := range order {
		out = append(out, *byCurrency[currency])
	}
	return out, nil
}
