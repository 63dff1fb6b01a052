package legacy

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores legacy wallets in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const legacyColumns = `id, user_id, balance_cents, currency, source, migrated,
        migrated_at, migrated_to_wallet_id, total_funded_cents, total_spent_cents, created_at, updated_at`

// Create inserts a legacy wallet record.
func (r *PostgresRepository) Create(ctx context.Context, w Wallet) error {
	id, err := uuid.Parse(w.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO legacy_wallets
        (id, user_id, balance_cents, currency, source, migrated,
         total_funded_cents, total_spent_cents, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		id, w.UserID, w.BalanceCents, w.Currency, w.Source, w.Migrated,
		w.TotalFundedCents, w.TotalSpentCents, w.CreatedAt.UTC())
	return err
}

// GetByUserID fetches the legacy wallet owned by the given user.
func (r *PostgresRepository) GetByUserID(ctx context.Context, userID string) (Wallet, error) {
	row := r.db.QueryRow(ctx, `SELECT `+legacyColumns+` FROM legacy_wallets WHERE user_id = $1`, userID)
	return scanWallet(row)
}

// Debit subtracts cents with balance and migrated guards enforced in the
// UPDATE itself so a racing writer cannot push the balance negative.
func (r *PostgresRepository) Debit(ctx context.Context, userID string, cents int64) (Wallet, error) {
	row := r.db.QueryRow(ctx, `UPDATE legacy_wallets
        SET balance_cents = balance_cents - $2,
            total_spent_cents = total_spent_cents + $2,
            updated_at = now()
        WHERE user_id = $1 AND migrated = false AND balance_cents >= $2
        RETURNING `+legacyColumns, userID, cents)
	w, err := scanWallet(row)
	if errors.Is(err, ErrNotFound) {
		return Wallet{}, r.classifyGuardFailure(ctx, userID, ErrInsufficientBalance)
	}
	return w, err
}

// Credit adds cents to an unmigrated wallet.
func (r *PostgresRepository) Credit(ctx context.Context, userID string, cents int64) (Wallet, error) {
	row := r.db.QueryRow(ctx, `UPDATE legacy_wallets
        SET balance_cents = balance_cents + $2,
            total_funded_cents = total_funded_cents + $2,
            updated_at = now()
        WHERE user_id = $1 AND migrated = false
        RETURNING `+legacyColumns, userID, cents)
	w, err := scanWallet(row)
	if errors.Is(err, ErrNotFound) {
		return Wallet{}, r.classifyGuardFailure(ctx, userID, ErrMigrated)
	}
	return w, err
}

// MarkMigrated freezes the wallet, recording when and where the balance went.
func (r *PostgresRepository) MarkMigrated(ctx context.Context, userID, platformWalletID string) (Wallet, error) {
	row := r.db.QueryRow(ctx, `UPDATE legacy_wallets
        SET migrated = true,
            migrated_at = now(),
            migrated_to_wallet_id = $2,
            updated_at = now()
        WHERE user_id = $1 AND migrated = false
        RETURNING `+legacyColumns, userID, nullableID(platformWalletID))
	w, err := scanWallet(row)
	if errors.Is(err, ErrNotFound) {
		return Wallet{}, r.classifyGuardFailure(ctx, userID, ErrMigrated)
	}
	return w, err
}

// List pages legacy wallets in creation order.
func (r *PostgresRepository) List(ctx context.Context, limit, offset int) ([]Wallet, error) {
	rows, err := r.db.Query(ctx, `SELECT `+legacyColumns+` FROM legacy_wallets
        ORDER BY created_at, id LIMIT $1 OFFSET $2`, limit, offset)
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

// Update rewrites mutable fields for validation auto-fixes.
func (r *PostgresRepository) Update(ctx context.Context, w Wallet) error {
	id, err := uuid.Parse(w.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `UPDATE legacy_wallets
        SET balance_cents = $2, currency = $3, updated_at = now()
        WHERE id = $1`, id, w.BalanceCents, w.Currency)
	return err
}

// SumBalances returns the total cents held across all legacy wallets.
func (r *PostgresRepository) SumBalances(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(balance_cents), 0) FROM legacy_wallets`).Scan(&total)
	return total, err
}

// DeleteAll removes every legacy wallet row.
func (r *PostgresRepository) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM legacy_wallets`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// classifyGuardFailure distinguishes missing wallet, frozen wallet and
// guard-rejected writes after an UPDATE matched no row.
func (r *PostgresRepository) classifyGuardFailure(ctx context.Context, userID string, guardErr error) error {
	w, err := r.GetByUserID(ctx, userID)
	if err != nil {
		return ErrNotFound
	}
	if w.Migrated {
		return ErrMigrated
	}
	return guardErr
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWallet(row rowScanner) (Wallet, error) {
	var w Wallet
	var id uuid.UUID
	var migratedAt *time.Time
	var migratedTo *uuid.UUID
	if err := row.Scan(&id, &w.UserID, &w.BalanceCents, &w.Currency, &w.Source, &w.Migrated,
		&migratedAt, &migratedTo, &w.TotalFundedCents, &w.TotalSpentCents, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}
	w.ID = id.String()
	w.MigratedAt = migratedAt
	if migratedTo != nil {
		w.MigratedToWalletID = migratedTo.String()
	}
	return w, nil
}

func nullableID(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
