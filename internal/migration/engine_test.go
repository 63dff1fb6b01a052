package migration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/keyhaven/keyhaven/internal/legacy"
	"github.com/keyhaven/keyhaven/internal/logging"
	"github.com/keyhaven/keyhaven/internal/money"
	"github.com/keyhaven/keyhaven/internal/userlock"
	"github.com/keyhaven/keyhaven/internal/wallet"
)

type engineFixture struct {
	engine  *Engine
	wallets wallet.Repository
	legacy  legacy.Repository
	txlog   wallet.TransactionLog
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	wallets := wallet.NewMemoryRepository()
	legacyRepo := legacy.NewMemoryRepository()
	txlog := wallet.NewMemoryTransactionLog()
	engine := NewEngine(wallets, legacyRepo, txlog, userlock.NewMemory(), logging.Discard())
	return &engineFixture{engine: engine, wallets: wallets, legacy: legacyRepo, txlog: txlog}
}

func (f *engineFixture) seedWallet(t *testing.T, cents int64, createdAt time.Time) wallet.Wallet {
	t.Helper()
	ctx := context.Background()
	w := wallet.Wallet{
		ID: uuid.NewString(), UserID: uuid.NewString(), Currency: "USD",
		Active: true, CreatedAt: createdAt, UpdatedAt: createdAt,
	}
	if err := f.wallets.Create(ctx, w); err != nil {
		t.Fatalf("seed wallet: %v", err)
	}
	if cents > 0 {
		var err error
		if w, err = f.wallets.Credit(ctx, w.ID, money.FromCents(cents)); err != nil {
			t.Fatalf("seed balance: %v", err)
		}
	}
	return w
}

func TestMigrateSnapshotsBalances(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	base := time.Now().UTC()

	w1 := f.seedWallet(t, 10_000, base)
	w2 := f.seedWallet(t, 2_550, base.Add(time.Second))
	f.seedWallet(t, 0, base.Add(2*time.Second)) // below min balance

	report, err := f.engine.Migrate(ctx, Options{MinBalanceCents: 1, BatchSize: 1})
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if report.Created != 2 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.TotalCents != 12_550 {
		t.Fatalf("expected total 12550, got %d", report.TotalCents)
	}

	lw, err := f.legacy.GetByUserID(ctx, w1.UserID)
	if err != nil {
		t.Fatalf("legacy snapshot missing: %v", err)
	}
	if lw.BalanceCents != 10_000 || lw.Source != legacy.SourceImport {
		t.Fatalf("unexpected snapshot: %+v", lw)
	}

	if _, err := f.legacy.GetByUserID(ctx, w2.UserID); err != nil {
		t.Fatalf("second snapshot missing: %v", err)
	}
}

func TestMigrateConservesTotalValue(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	base := time.Now().UTC()

	var expected int64
	for i, cents := range []int64{100, 2_550, 99_999, 1} {
		f.seedWallet(t, cents, base.Add(time.Duration(i)*time.Second))
		expected += cents
	}

	report, err := f.engine.Migrate(ctx, Options{MinBalanceCents: 1, BatchSize: 2})
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if report.TotalCents != expected {
		t.Fatalf("expected %d migrated, got %d", expected, report.TotalCents)
	}

	legacyTotal, _ := f.legacy.SumBalances(ctx)
	if legacyTotal != expected {
		t.Fatalf("legacy total %d != original total %d", legacyTotal, expected)
	}
}

func TestMigrateSkipsExistingSnapshots(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	f.seedWallet(t, 5_000, time.Now().UTC())

	first, err := f.engine.Migrate(ctx, Options{})
	if err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	if first.Created != 1 {
		t.Fatalf("expected 1 created, got %+v", first)
	}

	second, err := f.engine.Migrate(ctx, Options{})
	if err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if second.Created != 0 || second.Skipped != 1 {
		t.Fatalf("rerun should skip existing snapshots: %+v", second)
	}
}

func TestMigrateDryRunWritesNothing(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	w := f.seedWallet(t, 5_000, time.Now().UTC())

	report, err := f.engine.Migrate(ctx, Options{DryRun: true})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if report.Created != 1 || report.TotalCents != 5_000 {
		t.Fatalf("dry run should report planned work: %+v", report)
	}

	if _, err := f.legacy.GetByUserID(ctx, w.UserID); !errors.Is(err, legacy.ErrNotFound) {
		t.Fatalf("dry run must not create snapshots, got %v", err)
	}
}

func TestMigrateCopiesTransactionsWithProvenance(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	w := f.seedWallet(t, 5_000, time.Now().UTC())
	original := wallet.Transaction{
		ID: uuid.NewString(), WalletID: w.ID, UserID: w.UserID,
		Type: wallet.TxFunding, Amount: money.FromCents(5_000), Currency: "USD",
		Status: wallet.TxCompleted, CreatedAt: time.Now().UTC(),
	}
	if err := f.txlog.Record(ctx, original); err != nil {
		t.Fatalf("seed transaction: %v", err)
	}

	if _, err := f.engine.Migrate(ctx, Options{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	txs, _ := f.txlog.ListByWallet(ctx, w.ID)
	if len(txs) != 2 {
		t.Fatalf("expected original + copy, got %d rows", len(txs))
	}

	var copied *wallet.Transaction
	for i := range txs {
		if txs[i].ID != original.ID {
			copied = &txs[i]
		}
	}
	if copied == nil {
		t.Fatalf("copy not found")
	}
	if copied.Metadata[wallet.MetaOriginalWalletID] != w.ID {
		t.Fatalf("missing provenance metadata: %v", copied.Metadata)
	}
}

func TestRollbackRemovesSnapshotsAndProvenance(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	f.seedWallet(t, 5_000, time.Now().UTC())
	if _, err := f.engine.Migrate(ctx, Options{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	// Refuses without confirmation.
	if _, err := f.engine.Rollback(ctx, Options{}); !errors.Is(err, ErrRollbackNotConfirmed) {
		t.Fatalf("expected ErrRollbackNotConfirmed, got %v", err)
	}

	report, err := f.engine.Rollback(ctx, Options{Force: true})
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if report.WalletsRemoved != 1 {
		t.Fatalf("expected 1 wallet removed, got %+v", report)
	}

	total, _ := f.legacy.SumBalances(ctx)
	if total != 0 {
		t.Fatalf("legacy wallets should be gone, total %d", total)
	}
}

func TestValidateDetectsMismatchAndOrphans(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	w := f.seedWallet(t, 5_000, time.Now().UTC())
	if _, err := f.engine.Migrate(ctx, Options{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	// Drift the original balance after the snapshot.
	if _, err := f.wallets.Credit(ctx, w.ID, money.FromCents(2_000)); err != nil {
		t.Fatalf("drift balance: %v", err)
	}

	// Orphan: a snapshot with no original wallet.
	now := time.Now().UTC()
	orphanUser := uuid.NewString()
	if err := f.legacy.Create(ctx, legacy.Wallet{
		ID: uuid.NewString(), UserID: orphanUser, BalanceCents: 100,
		Currency: "USD", Source: legacy.SourceImport, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed orphan: %v", err)
	}

	report, err := f.engine.Validate(ctx, Options{})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	if len(report.Mismatches) != 1 || report.Mismatches[0].UserID != w.UserID {
		t.Fatalf("expected one mismatch for %s, got %+v", w.UserID, report.Mismatches)
	}
	if len(report.OrphanedUsers) != 1 || report.OrphanedUsers[0] != orphanUser {
		t.Fatalf("expected orphan %s, got %+v", orphanUser, report.OrphanedUsers)
	}
	if report.WithinTolerance {
		t.Fatalf("totals drifted by 1900 cents; should be out of tolerance: %+v", report)
	}
	if report.IssueCount() == 0 {
		t.Fatalf("expected issues, got none")
	}
}

func TestValidateFlagsUnmigratedPositiveBalances(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	w := f.seedWallet(t, 3_000, time.Now().UTC())

	report, err := f.engine.Validate(ctx, Options{})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(report.UnmigratedPositive) != 1 || report.UnmigratedPositive[0] != w.UserID {
		t.Fatalf("expected unmigrated flag for %s, got %+v", w.UserID, report.UnmigratedPositive)
	}
}

func TestValidateFixIssues(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	userID := uuid.NewString()
	if err := f.legacy.Create(ctx, legacy.Wallet{
		ID: uuid.NewString(), UserID: userID, BalanceCents: -500,
		Currency: "", Source: legacy.SourceImport, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed broken wallet: %v", err)
	}

	report, err := f.engine.Validate(ctx, Options{FixIssues: true})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(report.FixedUsers) != 1 {
		t.Fatalf("expected one fix, got %+v", report.FixedUsers)
	}

	lw, _ := f.legacy.GetByUserID(ctx, userID)
	if lw.BalanceCents != 0 || lw.Currency != "USD" {
		t.Fatalf("fixes not applied: %+v", lw)
	}
}
