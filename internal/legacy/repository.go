package legacy

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates no legacy wallet exists for the lookup key.
	ErrNotFound = errors.New("legacy wallet not found")

	// ErrInsufficientBalance indicates a debit exceeds the stored balance.
	// This also fires when a concurrent writer drained the balance between
	// the caller's read and the write.
	ErrInsufficientBalance = errors.New("legacy wallet balance insufficient")

	// ErrMigrated rejects any balance mutation on a wallet already flagged
	// migrated. The frozen balance records what was transferred out.
	ErrMigrated = errors.New("legacy wallet already migrated")
)

// Repository persists legacy wallets.
type Repository interface {
	Create(ctx context.Context, w Wallet) error
	GetByUserID(ctx context.Context, userID string) (Wallet, error)
	// Debit subtracts cents, failing with ErrInsufficientBalance if the
	// stored balance is smaller at write time, or ErrMigrated if frozen.
	Debit(ctx context.Context, userID string, cents int64) (Wallet, error)
	// Credit adds cents; fails with ErrMigrated on a frozen wallet.
	Credit(ctx context.Context, userID string, cents int64) (Wallet, error)
	// MarkMigrated flags the wallet exactly once with a back-reference to
	// the platform wallet that received the balance.
	MarkMigrated(ctx context.Context, userID, platformWalletID string) (Wallet, error)
	List(ctx context.Context, limit, offset int) ([]Wallet, error)
	// Update rewrites mutable fields. Used by validation auto-fixes only;
	// normal balance movement goes through Debit/Credit.
	Update(ctx context.Context, w Wallet) error
	SumBalances(ctx context.Context) (int64, error)
	// DeleteAll removes every legacy wallet. Migration rollback only.
	DeleteAll(ctx context.Context) (int64, error)
}
