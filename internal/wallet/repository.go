package wallet

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates no platform wallet exists for the lookup key.
	ErrNotFound = errors.New("platform wallet not found")

	// ErrNegativeBalance indicates a debit would take the balance below zero.
	// Writing a negative balance is a programming error and must abort before
	// anything reaches storage.
	ErrNegativeBalance = errors.New("platform wallet balance would go negative")
)

// Repository persists platform wallets.
type Repository interface {
	Create(ctx context.Context, w Wallet) error
	Get(ctx context.Context, id string) (Wallet, error)
	GetByUserID(ctx context.Context, userID string) (Wallet, error)
	// Credit adds amount to the balance and bumps the funded counters.
	Credit(ctx context.Context, id string, amount decimal.Decimal) (Wallet, error)
	// Debit subtracts amount, failing with ErrNegativeBalance if the stored
	// balance is smaller than amount at write time.
	Debit(ctx context.Context, id string, amount decimal.Decimal) (Wallet, error)
	// List pages wallets with balance >= minBalance in stable creation order.
	List(ctx context.Context, minBalance decimal.Decimal, limit, offset int) ([]Wallet, error)
	SumBalances(ctx context.Context) (decimal.Decimal, error)
}

// TransactionLog is the append-only audit trail of platform wallet movements.
type TransactionLog interface {
	Record(ctx context.Context, tx Transaction) error
	ListByWallet(ctx context.Context, walletID string) ([]Transaction, error)
	ListByUser(ctx context.Context, userID string) ([]Transaction, error)
	// DeleteByMetadataKey removes rows carrying the given metadata key.
	// Used only by migration rollback to clear provenance-tagged copies.
	DeleteByMetadataKey(ctx context.Context, key string) (int64, error)
}
