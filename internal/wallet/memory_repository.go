package wallet

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Wallet
	byUser  map[string]string
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		storage: make(map[string]Wallet),
		byUser:  make(map[string]string),
	}
}

func (r *memoryRepository) Create(_ context.Context, w Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[w.ID]; exists {
		return errors.New("wallet exists")
	}
	if _, exists := r.byUser[w.UserID]; exists {
		return errors.New("user already has a wallet")
	}
	r.storage[w.ID] = w
	r.byUser[w.UserID] = w.ID
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.storage[id]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return w, nil
}

func (r *memoryRepository) GetByUserID(_ context.Context, userID string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUser[userID]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return r.storage[id], nil
}

func (r *memoryRepository) Credit(_ context.Context, id string, amount decimal.Decimal) (Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.storage[id]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	now := time.Now().UTC()
	w.Balance = w.Balance.Add(amount)
	w.TotalFunded = w.TotalFunded.Add(amount)
	w.LastFundedAt = &now
	w.UpdatedAt = now
	r.storage[id] = w
	return w, nil
}

func (r *memoryRepository) Debit(_ context.Context, id string, amount decimal.Decimal) (Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.storage[id]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	if w.Balance.LessThan(amount) {
		return Wallet{}, ErrNegativeBalance
	}
	now := time.Now().UTC()
	w.Balance = w.Balance.Sub(amount)
	w.TotalSpent = w.TotalSpent.Add(amount)
	w.LastSpentAt = &now
	w.UpdatedAt = now
	r.storage[id] = w
	return w, nil
}

func (r *memoryRepository) List(_ context.Context, minBalance decimal.Decimal, limit, offset int) ([]Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []Wallet
	for _, w := range r.storage {
		if w.Balance.GreaterThanOrEqual(minBalance) {
			all = append(all, w)
		}
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

func (r *memoryRepository) SumBalances(_ context.Context) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := decimal.Zero
	for _, w := range r.storage {
		total = total.Add(w.Balance)
	}
	return total, nil
}

type memoryTransactionLog struct {
	mu   sync.RWMutex
	rows []Transaction
}

// NewMemoryTransactionLog constructs an in-memory transaction log for tests.
func NewMemoryTransactionLog() TransactionLog {
	return &memoryTransactionLog{}
}

func (l *memoryTransactionLog) Record(_ context.Context, tx Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = append(l.rows, tx)
	return nil
}

func (l *memoryTransactionLog) ListByWallet(_ context.Context, walletID string) ([]Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Transaction
	for _, tx := range l.rows {
		if tx.WalletID == walletID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (l *memoryTransactionLog) ListByUser(_ context.Context, userID string) ([]Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Transaction
	for _, tx := range l.rows {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (l *memoryTransactionLog) DeleteByMetadataKey(_ context.Context, key string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.rows[:0]
	var removed int64
	for _, tx := range l.rows {
		if _, ok := tx.Metadata[key]; ok {
			removed++
			continue
		}
		kept = append(kept, tx)
	}
	l.rows = kept
	return removed, nil
}
