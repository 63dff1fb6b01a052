package spending

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/keyhaven/keyhaven/internal/bridge"
	"github.com/keyhaven/keyhaven/internal/config"
	"github.com/keyhaven/keyhaven/internal/legacy"
	"github.com/keyhaven/keyhaven/internal/logging"
	"github.com/keyhaven/keyhaven/internal/money"
	"github.com/keyhaven/keyhaven/internal/notification"
	"github.com/keyhaven/keyhaven/internal/userlock"
	"github.com/keyhaven/keyhaven/internal/wallet"
)

type testNotifier struct {
	mu   sync.Mutex
	msgs []notification.Message
}

func (n *testNotifier) Send(_ context.Context, msg notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return nil
}

type harness struct {
	svc      *Service
	platform wallet.Repository
	legacy   legacy.Repository
	notifier *testNotifier
}

func newHarness(t *testing.T, policy config.Spending) *harness {
	t.Helper()
	platformRepo := wallet.NewMemoryRepository()
	legacyRepo := legacy.NewMemoryRepository()
	txlog := wallet.NewMemoryTransactionLog()
	logger := logging.Discard()
	b := bridge.NewService(platformRepo, legacyRepo, txlog, policy, logger)
	notifier := &testNotifier{}
	svc := NewService(b, legacyRepo, userlock.NewMemory(), policy, notifier, logger)
	return &harness{svc: svc, platform: platformRepo, legacy: legacyRepo, notifier: notifier}
}

func (h *harness) fund(t *testing.T, userID string, legacyCents, platformCents int64) {
	t.Helper()
	ctx := context.Background()
	if legacyCents >= 0 {
		now := time.Now().UTC()
		if err := h.legacy.Create(ctx, legacy.Wallet{
			ID: uuid.NewString(), UserID: userID, BalanceCents: legacyCents,
			Currency: "USD", Source: legacy.SourceImport, CreatedAt: now, UpdatedAt: now,
		}); err != nil {
			t.Fatalf("seed legacy: %v", err)
		}
	}
	if platformCents > 0 {
		if err := h.svc.AddFunds(ctx, userID, platformCents, bridge.Metadata{}); err != nil {
			t.Fatalf("seed platform: %v", err)
		}
	}
}

func TestSpendUsesLegacyFirstPolicy(t *testing.T) {
	h := newHarness(t, config.Spending{Strategy: config.StrategyLegacyFirst, LegacyEnabled: true})
	ctx := context.Background()
	userID := uuid.NewString()
	h.fund(t, userID, 2_500, 5_000)

	res, err := h.svc.Spend(ctx, userID, 3_000, bridge.Metadata{OrderID: "order-1"})
	if err != nil {
		t.Fatalf("spend: %v", err)
	}
	if res.LegacySpentCents != 2_500 || res.PlatformSpentCents != 500 {
		t.Fatalf("unexpected breakdown: %+v", res)
	}

	if len(h.notifier.msgs) != 1 || h.notifier.msgs[0].Kind != notification.KindPurchase {
		t.Fatalf("expected one purchase notification, got %+v", h.notifier.msgs)
	}
}

func TestSpendForcesPlatformOnlyAfterMigration(t *testing.T) {
	h := newHarness(t, config.Spending{Strategy: config.StrategyLegacyFirst, LegacyEnabled: true})
	ctx := context.Background()
	userID := uuid.NewString()
	h.fund(t, userID, 2_500, 0)

	if _, err := h.svc.MigrateUser(ctx, userID); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	// Migration moved $25 into the platform wallet; the frozen legacy
	// balance must not be spendable again.
	res, err := h.svc.Spend(ctx, userID, 1_000, bridge.Metadata{})
	if err != nil {
		t.Fatalf("spend after migration: %v", err)
	}
	if res.LegacySpentCents != 0 || res.PlatformSpentCents != 1_000 {
		t.Fatalf("expected platform-only spend, got %+v", res)
	}

	combined, _ := h.svc.GetCombinedBalance(ctx, userID)
	if combined.TotalCents != 1_500 {
		t.Fatalf("expected 1500 remaining, got %+v", combined)
	}
}

func TestSpendDisabledPolicy(t *testing.T) {
	h := newHarness(t, config.Spending{Strategy: config.StrategyDisabled, LegacyEnabled: true})
	userID := uuid.NewString()
	h.fund(t, userID, 1_000, 1_000)

	if _, err := h.svc.Spend(context.Background(), userID, 100, bridge.Metadata{}); !errors.Is(err, bridge.ErrSpendingDisabled) {
		t.Fatalf("expected ErrSpendingDisabled, got %v", err)
	}
}

func TestConcurrentSpendsConserveMoney(t *testing.T) {
	h := newHarness(t, config.Spending{Strategy: config.StrategyLegacyFirst, LegacyEnabled: true})
	ctx := context.Background()
	userID := uuid.NewString()
	h.fund(t, userID, 5_000, 5_000)

	const spenders = 20
	var wg sync.WaitGroup
	var succeeded int64
	var mu sync.Mutex

	for i := 0; i < spenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.svc.Spend(ctx, userID, 1_000, bridge.Metadata{}); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	combined, err := h.svc.GetCombinedBalance(ctx, userID)
	if err != nil {
		t.Fatalf("combined balance: %v", err)
	}
	if succeeded != 10 {
		t.Fatalf("expected exactly 10 spends to succeed, got %d", succeeded)
	}
	if combined.TotalCents != 0 {
		t.Fatalf("lost update: expected 0 remaining, got %d", combined.TotalCents)
	}
}

func TestRefundRoundTripAfterSpend(t *testing.T) {
	h := newHarness(t, config.Spending{Strategy: config.StrategyLegacyFirst, LegacyEnabled: true})
	ctx := context.Background()
	userID := uuid.NewString()
	h.fund(t, userID, 2_500, 5_000)

	spent, err := h.svc.Spend(ctx, userID, 3_000, bridge.Metadata{OrderID: "order-1"})
	if err != nil {
		t.Fatalf("spend: %v", err)
	}

	refunded, err := h.svc.Refund(ctx, userID, 3_000, &spent.Breakdown, bridge.Metadata{OrderID: "order-1"})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refunded.LegacyRefundedCents != spent.LegacySpentCents || refunded.PlatformRefundedCents != spent.PlatformSpentCents {
		t.Fatalf("refund did not mirror spend: spent=%+v refunded=%+v", spent, refunded)
	}

	combined, _ := h.svc.GetCombinedBalance(ctx, userID)
	if combined.TotalCents != 7_500 {
		t.Fatalf("round trip should restore the balance, got %+v", combined)
	}

	lw, _ := h.legacy.GetByUserID(ctx, userID)
	if lw.BalanceCents != 2_500 {
		t.Fatalf("legacy balance not restored: %d", lw.BalanceCents)
	}
	pw, _ := h.platform.GetByUserID(ctx, userID)
	if money.ToCents(pw.Balance) != 5_000 {
		t.Fatalf("platform balance not restored: %s", pw.Balance)
	}
}
