package seller

import (
	"context"
	"errors"
)

// ErrPayoutNotFound is returned for a missing payout and for any payout the
// requesting seller does not own. Cross-seller lookups must not reveal that
// the record exists.
var ErrPayoutNotFound = errors.New("payout not found")

// OrderRepository reads order projections for the aggregator.
type OrderRepository interface {
	ListBySeller(ctx context.Context, sellerID string, f OrderFilters) ([]Order, error)
}

// PayoutRepository reads payout records for the aggregator.
type PayoutRepository interface {
	ListBySeller(ctx context.Context, sellerID string, f PayoutFilters) ([]Payout, error)
	Get(ctx context.Context, id string) (Payout, error)
	// MapByOrder returns the latest payout per order id for the seller.
	MapByOrder(ctx context.Context, sellerID string) (map[string]Payout, error)
}
