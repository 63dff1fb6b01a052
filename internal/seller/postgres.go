package seller

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresOrderRepository reads order projections from PostgreSQL.
type PostgresOrderRepository struct {
	db *pgxpool.Pool
}

// NewPostgresOrderRepository builds an order projection backed by PostgreSQL.
func NewPostgresOrderRepository(db *pgxpool.Pool) *PostgresOrderRepository {
	return &PostgresOrderRepository{db: db}
}

func (r *PostgresOrderRepository) ListBySeller(ctx context.Context, sellerID string, f OrderFilters) ([]Order, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	escrowStatus := f.EscrowStatus

	rows, err := r.db.Query(ctx, `SELECT id, seller_id, listing_title, amount_cents, currency,
            escrow_status, eligibility_status, release_expected_at, created_at
        FROM orders
        WHERE seller_id = $1 AND ($2 = '' OR escrow_status = $2)
        ORDER BY created_at, id
        LIMIT $3 OFFSET $4`, sellerID, escrowStatus, limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		var id uuid.UUID
		var releaseAt *time.Time
		if err := rows.Scan(&id, &o.SellerID, &o.ListingTitle, &o.AmountCents, &o.Currency,
			&o.EscrowStatus, &o.EligibilityStatus, &releaseAt, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.ID = id.String()
		o.ReleaseExpectedAt = releaseAt
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// PostgresPayoutRepository reads payout records from PostgreSQL.
type PostgresPayoutRepository struct {
	db *pgxpool.Pool
}

// NewPostgresPayoutRepository builds a payout store backed by PostgreSQL.
func NewPostgresPayoutRepository(db *pgxpool.Pool) *PostgresPayoutRepository {
	return &PostgresPayoutRepository{db: db}
}

const payoutColumns = `id, seller_id, order_id, amount_cents, currency, status,
        failure_code, failure_reason, admin_id, reference, created_at`

func (r *PostgresPayoutRepository) ListBySeller(ctx context.Context, sellerID string, f PayoutFilters) ([]Payout, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx, `SELECT `+payoutColumns+`
        FROM payouts
        WHERE seller_id = $1 AND ($2 = '' OR status = $2)
        ORDER BY created_at, id
        LIMIT $3 OFFSET $4`, sellerID, f.Status, limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payouts []Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, p)
	}
	return payouts, rows.Err()
}

func (r *PostgresPayoutRepository) Get(ctx context.Context, id string) (Payout, error) {
	payoutID, err := uuid.Parse(id)
	if err != nil {
		return Payout{}, ErrPayoutNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = $1`, payoutID)
	p, err := scanPayout(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payout{}, ErrPayoutNotFound
	}
	return p, err
}

func (r *PostgresPayoutRepository) MapByOrder(ctx context.Context, sellerID string) (map[string]Payout, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT ON (order_id) `+payoutColumns+`
        FROM payouts
        WHERE seller_id = $1 AND order_id IS NOT NULL
        ORDER BY order_id, created_at DESC`, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]Payout)
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		out[p.OrderID] = p
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayout(row rowScanner) (Payout, error) {
	var p Payout
	var id uuid.UUID
	var orderID, failureCode, failureReason, adminID *string
	if err := row.Scan(&id, &p.SellerID, &orderID, &p.AmountCents, &p.Currency, &p.Status,
		&failureCode, &failureReason, &adminID, &p.Reference, &p.CreatedAt); err != nil {
		return Payout{}, err
	}
	p.ID = id.String()
	if orderID != nil {
		p.OrderID = *orderID
	}
	if failureCode != nil {
		p.FailureCode = *failureCode
	}
	if failureReason != nil {
		p.FailureReason = *failureReason
	}
	if adminID != nil {
		p.AdminID = *adminID
	}
	return p, nil
}
