package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/keyhaven/keyhaven/internal/legacy"
	"github.com/keyhaven/keyhaven/internal/money"
	"github.com/keyhaven/keyhaven/internal/userlock"
	"github.com/keyhaven/keyhaven/internal/wallet"
)

// toleranceCents is the aggregate balance tolerance for validation ($0.01).
const toleranceCents = 1

// runLockKey serializes engine runs: migrate and rollback must never run
// concurrently with each other or themselves.
const runLockKey = "migration-engine"

// ErrRollbackNotConfirmed rejects a rollback without explicit confirmation.
var ErrRollbackNotConfirmed = errors.New("rollback requires --force")

// Options tune a batch run.
type Options struct {
	DryRun          bool
	BatchSize       int
	MinBalanceCents int64
	Force           bool
	FixIssues       bool
}

func (o Options) batchSize() int {
	if o.BatchSize <= 0 {
		return 100
	}
	return o.BatchSize
}

// Engine drives the one-shot balance import: it snapshots original wallet
// balances into legacy wallet rows, with rollback and validation modes.
type Engine struct {
	wallets wallet.Repository
	legacy  legacy.Repository
	txlog   wallet.TransactionLog
	locks   userlock.Locker
	logger  *slog.Logger
}

// NewEngine builds the migration engine.
func NewEngine(wallets wallet.Repository, legacyRepo legacy.Repository, txlog wallet.TransactionLog, locks userlock.Locker, logger *slog.Logger) *Engine {
	return &Engine{wallets: wallets, legacy: legacyRepo, txlog: txlog, locks: locks, logger: logger}
}

// Migrate pages original wallets at or above the minimum balance in stable
// creation order and snapshots each into a legacy wallet row, copying the
// wallet's transactions with provenance metadata. A user with an existing
// legacy row is skipped even when its migrated flag is false: a partial
// earlier run already covered them.
func (e *Engine) Migrate(ctx context.Context, opts Options) (Report, error) {
	report := Report{Mode: "migrate", DryRun: opts.DryRun, StartedAt: time.Now().UTC()}

	release, err := e.locks.Acquire(ctx, runLockKey)
	if err != nil {
		return report, fmt.Errorf("acquire run lock: %w", err)
	}
	defer release()

	minBalance := money.FromCents(opts.MinBalanceCents)
	batch := opts.batchSize()

	for offset := 0; ; offset += batch {
		wallets, err := e.wallets.List(ctx, minBalance, batch, offset)
		if err != nil {
			return report, fmt.Errorf("list wallets: %w", err)
		}
		if len(wallets) == 0 {
			break
		}

		for _, w := range wallets {
			report.Processed++
			created, cents, err := e.migrateWallet(ctx, w, opts.DryRun)
			switch {
			case err != nil:
				report.Failed++
				report.Errors = append(report.Errors, UserError{UserID: w.UserID, Message: err.Error()})
				e.logger.Warn("wallet migration failed", "user_id", w.UserID, "error", err)
			case created:
				report.Created++
				report.TotalCents += cents
			default:
				report.Skipped++
			}
		}
	}

	report.FinishedAt = time.Now().UTC()
	e.logger.Info("migration run finished",
		"dry_run", opts.DryRun, "processed", report.Processed,
		"created", report.Created, "skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}

func (e *Engine) migrateWallet(ctx context.Context, w wallet.Wallet, dryRun bool) (bool, int64, error) {
	_, err := e.legacy.GetByUserID(ctx, w.UserID)
	if err == nil {
		return false, 0, nil // already snapshotted by an earlier run
	}
	if !errors.Is(err, legacy.ErrNotFound) {
		return false, 0, err
	}

	cents := money.ToCents(w.Balance)
	if dryRun {
		return true, cents, nil
	}

	now := time.Now().UTC()
	snapshot := legacy.Wallet{
		ID:               uuid.NewString(),
		UserID:           w.UserID,
		BalanceCents:     cents,
		Currency:         w.Currency,
		Source:           legacy.SourceImport,
		TotalFundedCents: money.ToCents(w.TotalFunded),
		TotalSpentCents:  money.ToCents(w.TotalSpent),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := e.legacy.Create(ctx, snapshot); err != nil {
		return false, 0, err
	}

	txs, err := e.txlog.ListByWallet(ctx, w.ID)
	if err != nil {
		return false, 0, err
	}
	for _, tx := range txs {
		copied := tx
		copied.ID = uuid.NewString()
		copied.Metadata = cloneMetadata(tx.Metadata)
		copied.Metadata[wallet.MetaMigratedFrom] = legacy.SourceImport
		copied.Metadata[wallet.MetaOriginalWalletID] = w.ID
		copied.CreatedAt = now
		if err := e.txlog.Record(ctx, copied); err != nil {
			return false, 0, err
		}
	}

	return true, cents, nil
}

// Rollback deletes every legacy wallet and all transaction rows carrying
// migration provenance. Destructive; requires Force.
func (e *Engine) Rollback(ctx context.Context, opts Options) (Report, error) {
	report := Report{Mode: "rollback", DryRun: opts.DryRun, StartedAt: time.Now().UTC()}

	if !opts.Force && !opts.DryRun {
		return report, ErrRollbackNotConfirmed
	}

	release, err := e.locks.Acquire(ctx, runLockKey)
	if err != nil {
		return report, fmt.Errorf("acquire run lock: %w", err)
	}
	defer release()

	if opts.DryRun {
		for offset := 0; ; offset += opts.batchSize() {
			wallets, err := e.legacy.List(ctx, opts.batchSize(), offset)
			if err != nil {
				return report, err
			}
			if len(wallets) == 0 {
				break
			}
			report.Processed += len(wallets)
		}
		report.FinishedAt = time.Now().UTC()
		return report, nil
	}

	removedWallets, err := e.legacy.DeleteAll(ctx)
	if err != nil {
		return report, fmt.Errorf("delete legacy wallets: %w", err)
	}
	removedTxs, err := e.txlog.DeleteByMetadataKey(ctx, wallet.MetaMigratedFrom)
	if err != nil {
		return report, fmt.Errorf("delete provenance transactions: %w", err)
	}

	report.WalletsRemoved = removedWallets
	report.TransactionsRemoved = removedTxs
	report.FinishedAt = time.Now().UTC()
	e.logger.Info("rollback finished", "wallets_removed", removedWallets, "transactions_removed", removedTxs)
	return report, nil
}

// Validate recomputes totals and flags per-user mismatches, orphaned legacy
// wallets and unmigrated wallets with positive balance. With FixIssues it
// clamps negative balances to zero and defaults a missing currency to USD.
func (e *Engine) Validate(ctx context.Context, opts Options) (ValidationReport, error) {
	report := ValidationReport{StartedAt: time.Now().UTC()}
	batch := opts.batchSize()

	originalTotal, err := e.wallets.SumBalances(ctx)
	if err != nil {
		return report, fmt.Errorf("sum original balances: %w", err)
	}
	legacyTotal, err := e.legacy.SumBalances(ctx)
	if err != nil {
		return report, fmt.Errorf("sum legacy balances: %w", err)
	}

	report.OriginalTotalCents = money.ToCents(originalTotal)
	report.LegacyTotalCents = legacyTotal
	report.DifferenceCents = report.OriginalTotalCents - report.LegacyTotalCents
	diff := report.DifferenceCents
	if diff < 0 {
		diff = -diff
	}
	report.WithinTolerance = diff <= toleranceCents

	// Per-user checks over the legacy snapshots.
	for offset := 0; ; offset += batch {
		snapshots, err := e.legacy.List(ctx, batch, offset)
		if err != nil {
			return report, err
		}
		if len(snapshots) == 0 {
			break
		}

		for _, lw := range snapshots {
			fixed := false
			if opts.FixIssues {
				if lw.BalanceCents < 0 {
					lw.BalanceCents = 0
					fixed = true
				}
				if lw.Currency == "" {
					lw.Currency = "USD"
					fixed = true
				}
				if fixed {
					if err := e.legacy.Update(ctx, lw); err != nil {
						report.Errors = append(report.Errors, UserError{UserID: lw.UserID, Message: err.Error()})
						continue
					}
					report.FixedUsers = append(report.FixedUsers, lw.UserID)
				}
			}

			ow, err := e.wallets.GetByUserID(ctx, lw.UserID)
			if err != nil {
				if errors.Is(err, wallet.ErrNotFound) {
					report.OrphanedUsers = append(report.OrphanedUsers, lw.UserID)
					continue
				}
				report.Errors = append(report.Errors, UserError{UserID: lw.UserID, Message: err.Error()})
				continue
			}

			// Migrated snapshots are frozen at the transferred amount and
			// will legitimately disagree with a live original balance.
			if lw.Migrated {
				continue
			}

			originalCents := money.ToCents(ow.Balance)
			delta := originalCents - lw.BalanceCents
			if delta < 0 {
				delta = -delta
			}
			if delta > toleranceCents {
				report.Mismatches = append(report.Mismatches, Mismatch{
					UserID:        lw.UserID,
					OriginalCents: originalCents,
					LegacyCents:   lw.BalanceCents,
				})
			}
		}
	}

	// Unmigrated originals with positive balance and no snapshot.
	for offset := 0; ; offset += batch {
		wallets, err := e.wallets.List(ctx, money.FromCents(1), batch, offset)
		if err != nil {
			return report, err
		}
		if len(wallets) == 0 {
			break
		}
		for _, w := range wallets {
			if _, err := e.legacy.GetByUserID(ctx, w.UserID); errors.Is(err, legacy.ErrNotFound) {
				report.UnmigratedPositive = append(report.UnmigratedPositive, w.UserID)
			}
		}
	}

	report.FinishedAt = time.Now().UTC()
	return report, nil
}

func cloneMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in)+2)
	for k, v := range in {
		out[k] = v
	}
	return out
}
