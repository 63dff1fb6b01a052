package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresRepository stores platform wallets in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const walletColumns = `id, user_id, balance, currency, total_funded, total_spent,
        last_funded_at, last_spent_at, active, created_at, updated_at`

// Create inserts a wallet record.
func (r *PostgresRepository) Create(ctx context.Context, w Wallet) error {
	id, err := uuid.Parse(w.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO platform_wallets
        (id, user_id, balance, currency, total_funded, total_spent, active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		id, w.UserID, w.Balance, w.Currency, w.TotalFunded, w.TotalSpent, w.Active, w.CreatedAt.UTC())
	return err
}

// Get fetches a wallet by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Wallet, error) {
	walletID, err := uuid.Parse(id)
	if err != nil {
		return Wallet{}, err
	}
	row := r.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM platform_wallets WHERE id = $1`, walletID)
	return scanWallet(row)
}

// GetByUserID fetches the wallet owned by the given user.
func (r *PostgresRepository) GetByUserID(ctx context.Context, userID string) (Wallet, error) {
	row := r.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM platform_wallets WHERE user_id = $1`, userID)
	return scanWallet(row)
}

// Credit adds funds and bumps the funded counters.
func (r *PostgresRepository) Credit(ctx context.Context, id string, amount decimal.Decimal) (Wallet, error) {
	walletID, err := uuid.Parse(id)
	if err != nil {
		return Wallet{}, err
	}
	row := r.db.QueryRow(ctx, `UPDATE platform_wallets
        SET balance = balance + $2,
            total_funded = total_funded + $2,
            last_funded_at = now(),
            updated_at = now()
        WHERE id = $1
        RETURNING `+walletColumns, walletID, amount)
	return scanWallet(row)
}

// Debit subtracts funds. The WHERE balance >= amount guard makes the
// read-compute-write race lose cleanly instead of persisting a negative.
func (r *PostgresRepository) Debit(ctx context.Context, id string, amount decimal.Decimal) (Wallet, error) {
	walletID, err := uuid.Parse(id)
	if err != nil {
		return Wallet{}, err
	}
	row := r.db.QueryRow(ctx, `UPDATE platform_wallets
        SET balance = balance - $2,
            total_spent = total_spent + $2,
            last_spent_at = now(),
            updated_at = now()
        WHERE id = $1 AND balance >= $2
        RETURNING `+walletColumns, walletID, amount)
	w, err := scanWallet(row)
	if errors.Is(err, ErrNotFound) {
		// Either the wallet is missing or the guard rejected the debit.
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, ErrNegativeBalance
	}
	return w, err
}

// List pages wallets at or above minBalance in creation order.
func (r *PostgresRepository) List(ctx context.Context, minBalance decimal.Decimal, limit, offset int) ([]Wallet, error) {
	rows, err := r.db.Query(ctx, `SELECT `+walletColumns+` FROM platform_wallets
        WHERE balance >= $1
        ORDER BY created_at, id
        LIMIT $2 OFFSET $3`, minBalance, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// SumBalances returns the total of all platform balances.
func (r *PostgresRepository) SumBalances(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(balance), 0) FROM platform_wallets`).Scan(&total)
	return total, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWallet(row rowScanner) (Wallet, error) {
	var w Wallet
	var id uuid.UUID
	var lastFunded, lastSpent *time.Time
	if err := row.Scan(&id, &w.UserID, &w.Balance, &w.Currency, &w.TotalFunded, &w.TotalSpent,
		&lastFunded, &lastSpent, &w.Active, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}
	w.ID = id.String()
	w.LastFundedAt = lastFunded
	w.LastSpentAt = lastSpent
	return w, nil
}
