package legacy

import "time"

// Provenance tags for how a legacy wallet row came to exist.
const (
	SourceImport        = "balance_import"
	SourceRefundCreated = "refund_created"
)

// Wallet is a balance carried over from the prior payment system,
// denominated in integer cents. It migrates into the platform wallet
// exactly once; after migration the balance is frozen.
type Wallet struct {
	ID                 string
	UserID             string
	BalanceCents       int64
	Currency           string
	Source             string
	Migrated           bool
	MigratedAt         *time.Time
	MigratedToWalletID string
	TotalFundedCents   int64
	TotalSpentCents    int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
