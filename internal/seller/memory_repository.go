package seller

import (
	"context"
	"sort"
	"sync"
)

// MemoryOrderRepository is the in-memory OrderRepository with a seed helper.
type MemoryOrderRepository struct {
	mu     sync.RWMutex
	orders []Order
}

// NewMemoryOrderRepository constructs an in-memory order projection for tests.
func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{}
}

// Add seeds an order row.
func (r *MemoryOrderRepository) Add(o Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, o)
}

func (r *MemoryOrderRepository) ListBySeller(_ context.Context, sellerID string, f OrderFilters) ([]Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Order
	for _, o := range r.orders {
		if o.SellerID != sellerID {
			continue
		}
		if f.EscrowStatus != "" && o.EscrowStatus != f.EscrowStatus {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return page(out, f.Limit, f.Offset), nil
}

// MemoryPayoutRepository is the in-memory PayoutRepository with a seed helper.
type MemoryPayoutRepository struct {
	mu      sync.RWMutex
	payouts []Payout
}

// NewMemoryPayoutRepository constructs an in-memory payout store for tests.
func NewMemoryPayoutRepository() *MemoryPayoutRepository {
	return &MemoryPayoutRepository{}
}

// Add seeds a payout row.
func (r *MemoryPayoutRepository) Add(p Payout) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payouts = append(r.payouts, p)
}

func (r *MemoryPayoutRepository) ListBySeller(_ context.Context, sellerID string, f PayoutFilters) ([]Payout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Payout
	for _, p := range r.payouts {
		if p.SellerID != sellerID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return page(out, f.Limit, f.Offset), nil
}

func (r *MemoryPayoutRepository) Get(_ context.Context, id string) (Payout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.payouts {
		if p.ID == id {
			return p, nil
		}
	}
	return Payout{}, ErrPayoutNotFound
}

func (r *MemoryPayoutRepository) MapByOrder(_ context.Context, sellerID string) (map[string]Payout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Payout)
	for _, p := range r.payouts {
		if p.SellerID != sellerID || p.OrderID == "" {
			continue
		}
		existing, ok := out[p.OrderID]
		if !ok || p.CreatedAt.After(existing.CreatedAt) {
			out[p.OrderID] = p
		}
	}
	return out, nil
}

func page[T any](in []T, limit, offset int) []T {
	if offset >= len(in) {
		return nil
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}
