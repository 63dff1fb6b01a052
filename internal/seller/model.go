package seller

import "time"

// Order escrow statuses as the marketplace records them.
const (
	EscrowHeld     = "held"
	EscrowReleased = "released"
	EscrowRefunded = "refunded"
)

// Eligibility statuses for held orders.
const (
	EligibilityPendingMaturity = "PENDING_MATURITY"
	EligibilityMatureHeld      = "MATURE_HELD"
	EligibilityReleased        = "RELEASED"
)

// Hold reason codes surfaced to sellers on held orders.
const (
	HoldStandardMaturity = "STANDARD_MATURITY"
	HoldRiskReview       = "RISK_REVIEW"
	HoldNone             = "NONE"
)

// Payout statuses.
const (
	PayoutPending   = "pending"
	PayoutCompleted = "completed"
	PayoutFailed    = "failed"
)

// Order is the read-side projection of a marketplace order the aggregator
// joins against. The aggregator never mutates orders.
type Order struct {
	ID                string
	SellerID          string
	ListingTitle      string
	AmountCents       int64
	Currency          string
	EscrowStatus      string
	EligibilityStatus string
	ReleaseExpectedAt *time.Time
	CreatedAt         time.Time
}

// Payout is a payout record. AdminID never leaves this package; failure
// code/reason surface only on failed payouts.
type Payout struct {
	ID            string
	SellerID      string
	OrderID       string
	AmountCents   int64
	Currency      string
	Status        string
	FailureCode   string
	FailureReason string
	AdminID       string
	Reference     string
	CreatedAt     time.Time
}

// Balance is the canonical per-currency seller balance derived entirely from
// the ledger. There is no mutable seller wallet; the ledger is the balance.
type Balance struct {
	Currency              string `json:"currency"`
	AvailableCents        int64  `json:"available_cents"`
	PendingCents          int64  `json:"pending_cents"`
	LifetimeGrossCents    int64  `json:"lifetime_gross_cents"`
	LifetimeRefundedCents int64  `json:"lifetime_refunded_cents"`
	LifetimeNetCents      int64  `json:"lifetime_net_cents"`
	TotalPaidOutCents     int64  `json:"total_paid_out_cents"`
}

// OrderFinancial is an order enriched with its hold reason and payout state.
type OrderFinancial struct {
	Order
	HoldReasonCode string
	PayoutStatus   string
}

// PayoutView is the seller-facing shape of a payout with administrative
// fields stripped.
type PayoutView struct {
	ID            string     `json:"id"`
	OrderID       string     `json:"order_id,omitempty"`
	AmountCents   int64      `json:"amount_cents"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	FailureCode   string     `json:"failure_code,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// OrderFilters narrows and pages order financial queries.
type OrderFilters struct {
	EscrowStatus string
	Limit        int
	Offset       int
}

// PayoutFilters narrows and pages payout queries.
type PayoutFilters struct {
	Status string
	Limit  int
	Offset int
}
