package spending

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/keyhaven/keyhaven/internal/bridge"
	"github.com/keyhaven/keyhaven/internal/config"
	"github.com/keyhaven/keyhaven/internal/legacy"
	"github.com/keyhaven/keyhaven/internal/notification"
	"github.com/keyhaven/keyhaven/internal/userlock"
)

// Service is the policy layer over the bridge: it resolves the per-user
// spending strategy and serializes every balance mutation for a user under
// the user lock, so concurrent spends cannot lose updates.
type Service struct {
	bridge   *bridge.Service
	legacy   legacy.Repository
	locks    userlock.Locker
	policy   config.Spending
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService constructs the wallet service.
func NewService(b *bridge.Service, legacyRepo legacy.Repository, locks userlock.Locker, policy config.Spending, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{bridge: b, legacy: legacyRepo, locks: locks, policy: policy, notifier: notifier, logger: logger}
}

// GetCombinedBalance reports the user's purchasing power across both wallets.
func (s *Service) GetCombinedBalance(ctx context.Context, userID string) (bridge.CombinedBalance, error) {
	return s.bridge.GetCombinedBalance(ctx, userID)
}

// Spend debits the user's wallets under the resolved strategy. The returned
// breakdown must be persisted by the caller (on the order); it is the sole
// input to proportional refunds.
func (s *Service) Spend(ctx context.Context, userID string, amountCents int64, meta bridge.Metadata) (bridge.SpendResult, error) {
	release, err := s.locks.Acquire(ctx, userID)
	if err != nil {
		return bridge.SpendResult{}, err
	}
	defer release()

	strategy, err := s.resolveStrategy(ctx, userID)
	if err != nil {
		return bridge.SpendResult{}, err
	}

	res, err := s.bridge.Spend(ctx, userID, amountCents, strategy, meta)
	if err != nil {
		return bridge.SpendResult{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindPurchase,
			Destination: userID,
			Body:        fmt.Sprintf("Purchase of %d cents (legacy %d, platform %d)", amountCents, res.LegacySpentCents, res.PlatformSpentCents),
		})
	}

	return res, nil
}

// Refund credits amountCents back to the user's wallets, proportionally when
// the original spend breakdown is known.
func (s *Service) Refund(ctx context.Context, userID string, amountCents int64, original *bridge.Breakdown, meta bridge.Metadata) (bridge.RefundResult, error) {
	release, err := s.locks.Acquire(ctx, userID)
	if err != nil {
		return bridge.RefundResult{}, err
	}
	defer release()

	res, err := s.bridge.Refund(ctx, userID, amountCents, original, meta)
	if err != nil {
		return bridge.RefundResult{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindRefund,
			Destination: userID,
			Body:        fmt.Sprintf("Refund of %d cents", amountCents),
		})
	}

	return res, nil
}

// AddFunds credits the platform wallet after an external payment confirmed.
func (s *Service) AddFunds(ctx context.Context, userID string, amountCents int64, meta bridge.Metadata) error {
	release, err := s.locks.Acquire(ctx, userID)
	if err != nil {
		return err
	}
	defer release()

	return s.bridge.AddFunds(ctx, userID, amountCents, meta)
}

// MigrateUser migrates one user's legacy balance into the platform wallet.
func (s *Service) MigrateUser(ctx context.Context, userID string) (bridge.MigrationResult, error) {
	release, err := s.locks.Acquire(ctx, userID)
	if err != nil {
		return bridge.MigrationResult{}, err
	}
	defer release()

	return s.bridge.MigrateOne(ctx, userID)
}

// resolveStrategy picks the effective strategy for one user. A migrated
// legacy wallet forces platform-only: its balance is frozen and must never
// be spent again.
func (s *Service) resolveStrategy(ctx context.Context, userID string) (string, error) {
	strategy := s.policy.Strategy
	if strategy == "" {
		strategy = config.StrategyLegacyFirst
	}
	if strategy == config.StrategyDisabled {
		return strategy, nil
	}

	lw, err := s.legacy.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		if lw.Migrated {
			if strategy == config.StrategyLegacyOnly {
				return "", bridge.ErrLegacySpendingDisabled
			}
			return config.StrategyPlatformOnly, nil
		}
	case errors.Is(err, legacy.ErrNotFound):
		if strategy == config.StrategyLegacyFirst {
			return config.StrategyPlatformOnly, nil
		}
	default:
		return "", err
	}

	return strategy, nil
}
