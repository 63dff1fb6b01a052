package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types recorded in the audit log.
const (
	TxFunding    = "funding"
	TxPurchase   = "purchase"
	TxRefund     = "refund"
	TxWithdrawal = "withdrawal"
)

// Transaction statuses. Transitions are forward only:
// pending -> completed | failed | cancelled.
const (
	TxPending   = "pending"
	TxCompleted = "completed"
	TxFailed    = "failed"
	TxCancelled = "cancelled"
	TxRefunded  = "refunded"
)

// Metadata keys tagging rows produced by the balance migration.
const (
	MetaMigratedFrom     = "migratedFrom"
	MetaOriginalWalletID = "originalWalletId"
	MetaLegacyMigration  = "legacy_wallet_migration"
)

// Wallet is the platform wallet: one mutable balance per user, denominated
// in decimal dollars. Created lazily on first funding need; never hard-deleted.
type Wallet struct {
	ID           string
	UserID       string
	Balance      decimal.Decimal
	Currency     string
	TotalFunded  decimal.Decimal
	TotalSpent   decimal.Decimal
	LastFundedAt *time.Time
	LastSpentAt  *time.Time
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Transaction is an immutable audit row capturing one money-movement attempt
// against a platform wallet, with balance snapshots for reconciliation.
type Transaction struct {
	ID            string
	WalletID      string
	UserID        string
	Type          string
	Amount        decimal.Decimal
	Currency      string
	Status        string
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	OrderID       string
	ListingID     string
	Metadata      map[string]string
	RetryCount    int
	CreatedAt     time.Time
}
