package escrow

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists ledger entries in PostgreSQL. Multi-row appends run
// inside one transaction so escrow transitions land atomically.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed entry store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append inserts all entries in a single transaction.
func (s *PostgresStore) Append(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	for _, e := range entries {
		id, err := uuid.Parse(e.ID)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `INSERT INTO ledger_entries
            (id, user_id, role, type, amount_cents, currency, status, description, order_id, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			id, e.UserID, e.Role, e.Type, e.AmountCents, e.Currency, e.Status,
			e.Description, nullableOrder(e.OrderID), e.CreatedAt.UTC()); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// ListByUser returns every entry for the user, oldest first.
func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `SELECT id, user_id, role, type, amount_cents, currency, status,
            description, order_id, created_at
        FROM ledger_entries WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var id uuid.UUID
		var orderID *string
		if err := rows.Scan(&id, &e.UserID, &e.Role, &e.Type, &e.AmountCents, &e.Currency,
			&e.Status, &e.Description, &orderID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ID = id.String()
		if orderID != nil {
			e.OrderID = *orderID
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// OrderLockedCents sums the locked bucket for one order.
func (s *PostgresStore) OrderLockedCents(ctx context.Context, userID, orderID string) (int64, error) {
	var sum int64
	err := s.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount_cents), 0)
        FROM ledger_entries
        WHERE user_id = $1 AND order_id = $2 AND status = $3`,
		userID, orderID, StatusLocked).Scan(&sum)
	return sum, err
}

// Sums computes the per-currency conditional sums in one query.
func (s *PostgresStore) Sums(ctx context.Context, userID string) ([]BalanceSums, error) {
	rows, err := s.db.Query(ctx, `SELECT currency,
            COALESCE(SUM(amount_cents) FILTER (WHERE status = 'available'), 0),
            COALESCE(SUM(amount_cents) FILTER (WHERE status = 'locked'), 0),
            COALESCE(SUM(amount_cents) FILTER (WHERE type = 'escrow_lock'), 0),
            COALESCE(ABS(SUM(amount_cents) FILTER (WHERE type IN ('escrow_reversal', 'seller_reversal'))), 0),
            COALESCE(ABS(SUM(amount_cents) FILTER (WHERE type IN ('payout', 'payout_reservation', 'payout_fail_reversal'))), 0)
        FROM ledger_entries
        WHERE user_id = $1
        GROUP BY currency
        ORDER BY currency`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BalanceSums
	for rows.Next() {
		var b BalanceSums
		if err := rows.Scan(&b.Currency, &b.AvailableCents, &b.PendingCents,
			&b.LifetimeGrossCents, &b.LifetimeRefundedCents, &b.TotalPaidOutCents); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func nullableOrder(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
