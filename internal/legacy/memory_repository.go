package legacy

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Wallet // keyed by user id
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]Wallet)}
}

func (r *memoryRepository) Create(_ context.Context, w Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[w.UserID]; exists {
		return errors.New("legacy wallet exists")
	}
	r.storage[w.UserID] = w
	return nil
}

func (r *memoryRepository) GetByUserID(_ context.Context, userID string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.storage[userID]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return w, nil
}

func (r *memoryRepository) Debit(_ context.Context, userID string, cents int64) (Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.storage[userID]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	if w.Migrated {
		return Wallet{}, ErrMigrated
	}
	if w.BalanceCents < cents {
		return Wallet{}, ErrInsufficientBalance
	}
	w.BalanceCents -= cents
	w.TotalSpentCents += cents
	w.UpdatedAt = time.Now().UTC()
	r.storage[userID] = w
	return w, nil
}

func (r *memoryRepository) Credit(_ context.Context, userID string, cents int64) (Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.storage[userID]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	if w.Migrated {
		return Wallet{}, ErrMigrated
	}
	w.BalanceCents += cents
	w.TotalFundedCents += cents
	w.UpdatedAt = time.Now().UTC()
	r.storage[userID] = w
	return w, nil
}

func (r *memoryRepository) MarkMigrated(_ context.Context, userID, platformWalletID string) (Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.storage[userID]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	if w.Migrated {
		return Wallet{}, ErrMigrated
	}
	now := time.Now().UTC()
	w.Migrated = true
	w.MigratedAt = &now
	w.MigratedToWalletID = platformWalletID
	w.UpdatedAt = now
	r.storage[userID] = w
	return w, nil
}

func (r *memoryRepository) List(_ context.Context, limit, offset int) ([]Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]Wallet, 0, len(r.storage))
	for _, w := range r.storage {
		all = append(all, w)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *memoryRepository) Update(_ context.Context, w Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.storage[w.UserID]
	if !ok {
		return ErrNotFound
	}
	existing.BalanceCents = w.BalanceCents
	existing.Currency = w.Currency
	existing.UpdatedAt = time.Now().UTC()
	r.storage[w.UserID] = existing
	return nil
}

func (r *memoryRepository) SumBalances(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total int64
	for _, w := range r.storage {
		total += w.BalanceCents
	}
	return total, nil
}

func (r *memoryRepository) DeleteAll(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := int64(len(r.storage))
	r.storage = make(map[string]Wallet)
	return removed, nil
}
