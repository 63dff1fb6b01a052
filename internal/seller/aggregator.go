package seller

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/keyhaven/keyhaven/internal/escrow"
)

// ErrInvalidSellerID occurs when the supplied seller id is malformed.
var ErrInvalidSellerID = errors.New("invalid seller id")

// Aggregator derives seller balances and order financials from the
// append-only ledger. It owns no mutable balance; every number is a sum.
type Aggregator struct {
	ledger  escrow.Store
	orders  OrderRepository
	payouts PayoutRepository
}

// NewAggregator builds the read-side aggregator.
func NewAggregator(ledger escrow.Store, orders OrderRepository, payouts PayoutRepository) *Aggregator {
	return &Aggregator{ledger: ledger, orders: orders, payouts: payouts}
}

// Balances returns one row per currency the seller has ledger history in,
// defaulting to a zeroed USD row for sellers with none.
func (a *Aggregator) Balances(ctx context.Context, sellerID string) ([]Balance, error) {
	if err := validateSellerID(sellerID); err != nil {
		return nil, err
	}

	sums, err := a.ledger.Sums(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if len(sums) == 0 {
		return []Balance{{Currency: "USD"}}, nil
	}

	out := make([]Balance, 0, len(sums))
	for _, s := range sums {
		out = append(out, Balance{
			Currency:              s.Currency,
			AvailableCents:        s.AvailableCents,
			PendingCents:          s.PendingCents,
			LifetimeGrossCents:    s.LifetimeGrossCents,
			LifetimeRefundedCents: s.LifetimeRefundedCents,
			LifetimeNetCents:      s.LifetimeGrossCents - s.LifetimeRefundedCents,
			TotalPaidOutCents:     s.TotalPaidOutCents,
		})
	}
	return out, nil
}

// OrderFinancials joins the seller's orders with payouts and classifies the
// hold reason on each. Pure read-side projection; no ledger mutation.
func (a *Aggregator) OrderFinancials(ctx context.Context, sellerID string, f OrderFilters) ([]OrderFinancial, error) {
	if err := validateSellerID(sellerID); err != nil {
		return nil, err
	}

	orders, err := a.orders.ListBySeller(ctx, sellerID, f)
	if err != nil {
		return nil, err
	}

	payoutsByOrder, err := a.payouts.MapByOrder(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	out := make([]OrderFinancial, 0, len(orders))
	for _, o := range orders {
		fin := OrderFinancial{Order: o, HoldReasonCode: holdReason(o)}
		if p, ok := payoutsByOrder[o.ID]; ok {
			fin.PayoutStatus = p.Status
		}
		out = append(out, fin)
	}
	return out, nil
}

// Payouts returns the seller's payout records with administrative fields
// stripped. Failure details surface only on failed payouts.
func (a *Aggregator) Payouts(ctx context.Context, sellerID string, f PayoutFilters) ([]PayoutView, error) {
	if err := validateSellerID(sellerID); err != nil {
		return nil, err
	}

	payouts, err := a.payouts.ListBySeller(ctx, sellerID, f)
	if err != nil {
		return nil, err
	}

	out := make([]PayoutView, 0, len(payouts))
	for _, p := range payouts {
		out = append(out, toView(p))
	}
	return out, nil
}

// Payout returns one payout scoped to the requesting seller. A payout owned
// by another seller reads as not found.
func (a *Aggregator) Payout(ctx context.Context, sellerID, payoutID string) (PayoutView, error) {
	if err := validateSellerID(sellerID); err != nil {
		return PayoutView{}, err
	}

	p, err := a.payouts.Get(ctx, payoutID)
	if err != nil {
		return PayoutView{}, err
	}
	if p.SellerID != sellerID {
		return PayoutView{}, ErrPayoutNotFound
	}
	return toView(p), nil
}

func holdReason(o Order) string {
	if o.EscrowStatus != EscrowHeld {
		return HoldNone
	}
	switch o.EligibilityStatus {
	case EligibilityPendingMaturity:
		return HoldStandardMaturity
	case EligibilityMatureHeld:
		return HoldRiskReview
	default:
		return HoldNone
	}
}

func toView(p Payout) PayoutView {
	v := PayoutView{
		ID:          p.ID,
		OrderID:     p.OrderID,
		AmountCents: p.AmountCents,
		Currency:    p.Currency,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
	}
	if p.Status == PayoutFailed {
		v.FailureCode = p.FailureCode
		v.FailureReason = p.FailureReason
	}
	return v
}

func validateSellerID(sellerID string) error {
	if _, err := uuid.Parse(sellerID); err != nil {
		return ErrInvalidSellerID
	}
	return nil
}
