package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresTransactionLog stores the wallet audit trail in PostgreSQL.
type PostgresTransactionLog struct {
	db *pgxpool.Pool
}

// NewPostgresTransactionLog builds a transaction log backed by PostgreSQL.
func NewPostgresTransactionLog(db *pgxpool.Pool) *PostgresTransactionLog {
	return &PostgresTransactionLog{db: db}
}

const txColumns = `id, wallet_id, user_id, type, amount, currency, status,
        balance_before, balance_after, order_id, listing_id, metadata, retry_count, created_at`

// Record appends one audit row. Rows are never updated afterwards; a
// compensating row is written instead.
func (l *PostgresTransactionLog) Record(ctx context.Context, tx Transaction) error {
	id, err := uuid.Parse(tx.ID)
	if err != nil {
		return err
	}
	walletID, err := uuid.Parse(tx.WalletID)
	if err != nil {
		return err
	}
	_, err = l.db.Exec(ctx, `INSERT INTO wallet_transactions
        (id, wallet_id, user_id, type, amount, currency, status,
         balance_before, balance_after, order_id, listing_id, metadata, retry_count, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		id, walletID, tx.UserID, tx.Type, tx.Amount, tx.Currency, tx.Status,
		tx.BalanceBefore, tx.BalanceAfter, nullable(tx.OrderID), nullable(tx.ListingID),
		tx.Metadata, tx.RetryCount, tx.CreatedAt.UTC())
	return err
}

// ListByWallet returns the audit rows for one wallet, oldest first.
func (l *PostgresTransactionLog) ListByWallet(ctx context.Context, walletID string) ([]Transaction, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return nil, err
	}
	return l.list(ctx, `SELECT `+txColumns+` FROM wallet_transactions WHERE wallet_id = $1 ORDER BY created_at, id`, id)
}

// ListByUser returns the audit rows for one user, oldest first.
func (l *PostgresTransactionLog) ListByUser(ctx context.Context, userID string) ([]Transaction, error) {
	return l.list(ctx, `SELECT `+txColumns+` FROM wallet_transactions WHERE user_id = $1 ORDER BY created_at, id`, userID)
}

// DeleteByMetadataKey removes provenance-tagged rows. Migration rollback only.
func (l *PostgresTransactionLog) DeleteByMetadataKey(ctx context.Context, key string) (int64, error) {
	tag, err := l.db.Exec(ctx, `DELETE FROM wallet_transactions WHERE metadata ? $1`, key)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (l *PostgresTransactionLog) list(ctx context.Context, query string, arg any) ([]Transaction, error) {
	rows, err := l.db.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		var tx Transaction
		var id, walletID uuid.UUID
		var orderID, listingID *string
		if err := rows.Scan(&id, &walletID, &tx.UserID, &tx.Type, &tx.Amount, &tx.Currency, &tx.Status,
			&tx.BalanceBefore, &tx.BalanceAfter, &orderID, &listingID, &tx.Metadata, &tx.RetryCount, &tx.CreatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, nil
			}
			return nil, err
		}
		tx.ID = id.String()
		tx.WalletID = walletID.String()
		if orderID != nil {
			tx.OrderID = *orderID
		}
		if listingID != nil {
			tx.ListingID = *listingID
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
