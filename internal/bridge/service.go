package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/keyhaven/keyhaven/internal/config"
	"github.com/keyhaven/keyhaven/internal/legacy"
	"github.com/keyhaven/keyhaven/internal/money"
	"github.com/keyhaven/keyhaven/internal/wallet"
)

const defaultCurrency = "USD"

// Migration outcome statuses for a single user.
const (
	StatusMigrated        = "migrated"
	StatusAlreadyMigrated = "already_migrated"
	StatusZeroBalance     = "zero_balance"
	StatusNoLegacyWallet  = "no_legacy_wallet"
)

// Service bridges the legacy cents wallet and the platform dollar wallet.
// All arithmetic runs in integer cents; decimal dollars appear only at the
// platform wallet storage boundary via the money package.
//
// Callers must hold the per-user lock around Spend, Refund, AddFunds and
// MigrateOne; both wallet balances are read-then-write.
type Service struct {
	platform wallet.Repository
	legacy   legacy.Repository
	txlog    wallet.TransactionLog
	policy   config.Spending
	logger   *slog.Logger
}

// NewService constructs the bridge with the spending policy injected.
func NewService(platform wallet.Repository, legacyRepo legacy.Repository, txlog wallet.TransactionLog, policy config.Spending, logger *slog.Logger) *Service {
	return &Service{platform: platform, legacy: legacyRepo, txlog: txlog, policy: policy, logger: logger}
}

// CombinedBalance is the user's total purchasing power across both wallets.
type CombinedBalance struct {
	UserID        string
	LegacyCents   int64
	PlatformCents int64
	TotalCents    int64
	Currency      string
	HasLegacy     bool
	HasPlatform   bool
}

// Breakdown records how a spend split across the two wallets. The caller
// must persist it (on the order): it is the sole input to proportional refunds.
type Breakdown struct {
	LegacySpentCents   int64 `json:"legacy_spent_cents"`
	PlatformSpentCents int64 `json:"platform_spent_cents"`
}

// Total returns the combined spent amount.
func (b Breakdown) Total() int64 {
	return b.LegacySpentCents + b.PlatformSpentCents
}

// SpendResult is the outcome of a spend, including the remaining combined balance.
type SpendResult struct {
	Breakdown
	RemainingCents int64 `json:"remaining_cents"`
}

// RefundResult records how a refund was distributed.
type RefundResult struct {
	LegacyRefundedCents   int64 `json:"legacy_refunded_cents"`
	PlatformRefundedCents int64 `json:"platform_refunded_cents"`
}

// MigrationResult is the outcome of a single-user migration.
type MigrationResult struct {
	Status        string
	AmountCents   int64
	PlatformWalID string
}

// Metadata carries order/listing references onto audit rows.
type Metadata struct {
	OrderID   string
	ListingID string
}

// GetCombinedBalance sums both wallets, tolerating either being absent.
func (s *Service) GetCombinedBalance(ctx context.Context, userID string) (CombinedBalance, error) {
	if err := validateUserID(userID); err != nil {
		return CombinedBalance{}, err
	}

	out := CombinedBalance{UserID: userID, Currency: defaultCurrency}

	lw, err := s.legacy.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		out.HasLegacy = true
		if !lw.Migrated {
			out.LegacyCents = lw.BalanceCents
		}
	case errors.Is(err, legacy.ErrNotFound):
	default:
		return CombinedBalance{}, err
	}

	pw, err := s.platform.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		out.HasPlatform = true
		out.PlatformCents = money.ToCents(pw.Balance)
		if pw.Currency != "" {
			out.Currency = pw.Currency
		}
	case errors.Is(err, wallet.ErrNotFound):
	default:
		return CombinedBalance{}, err
	}

	out.TotalCents = out.LegacyCents + out.PlatformCents
	return out, nil
}

// Spend debits amountCents according to strategy. With the legacy-first
// strategy the legacy wallet is drained before the platform wallet touches
// a cent. Money is conserved: combined balance drops by exactly amountCents.
func (s *Service) Spend(ctx context.Context, userID string, amountCents int64, strategy string, meta Metadata) (SpendResult, error) {
	if err := validateUserID(userID); err != nil {
		return SpendResult{}, err
	}
	if amountCents <= 0 {
		return SpendResult{}, ErrInvalidAmount
	}
	if strategy == config.StrategyDisabled {
		return SpendResult{}, ErrSpendingDisabled
	}

	combined, err := s.GetCombinedBalance(ctx, userID)
	if err != nil {
		return SpendResult{}, err
	}

	legacyPortion, err := s.legacyPortion(combined, amountCents, strategy)
	if err != nil {
		return SpendResult{}, err
	}
	platformPortion := amountCents - legacyPortion

	if platformPortion > 0 && combined.PlatformCents < platformPortion {
		return SpendResult{}, &InsufficientFundsError{
			AvailableCents: combined.TotalCents,
			RequiredCents:  amountCents,
			Currency:       combined.Currency,
		}
	}

	if legacyPortion > 0 {
		if _, err := s.legacy.Debit(ctx, userID, legacyPortion); err != nil {
			if errors.Is(err, legacy.ErrInsufficientBalance) {
				// A concurrent writer changed the balance underneath us.
				return SpendResult{}, &InsufficientFundsError{
					AvailableCents: combined.TotalCents,
					RequiredCents:  amountCents,
					Currency:       combined.Currency,
				}
			}
			return SpendResult{}, err
		}
	}

	if platformPortion > 0 {
		if err := s.debitPlatform(ctx, userID, platformPortion, meta); err != nil {
			if legacyPortion > 0 {
				// Compensate the legacy debit so the spend fails atomically.
				if _, crErr := s.legacy.Credit(ctx, userID, legacyPortion); crErr != nil {
					s.logger.Error("legacy compensation failed after platform debit error",
						"user_id", userID, "cents", legacyPortion, "error", crErr)
				}
			}
			return SpendResult{}, err
		}
	}

	return SpendResult{
		Breakdown: Breakdown{
			LegacySpentCents:   legacyPortion,
			PlatformSpentCents: platformPortion,
		},
		RemainingCents: combined.TotalCents - amountCents,
	}, nil
}

func (s *Service) legacyPortion(combined CombinedBalance, amountCents int64, strategy string) (int64, error) {
	legacyAllowed := s.policy.LegacyEnabled && !s.policy.LegacyReadonly

	switch strategy {
	case config.StrategyPlatformOnly:
		if combined.PlatformCents < amountCents {
			return 0, &InsufficientFundsError{
				AvailableCents: combined.PlatformCents,
				RequiredCents:  amountCents,
				Currency:       combined.Currency,
			}
		}
		return 0, nil

	case config.StrategyLegacyOnly:
		if !legacyAllowed {
			return 0, ErrLegacySpendingDisabled
		}
		if combined.LegacyCents < amountCents {
			return 0, &InsufficientFundsError{
				AvailableCents: combined.LegacyCents,
				RequiredCents:  amountCents,
				Currency:       combined.Currency,
			}
		}
		return amountCents, nil

	case config.StrategyLegacyFirst, "":
		if combined.TotalCents < amountCents {
			return 0, &InsufficientFundsError{
				AvailableCents: combined.TotalCents,
				RequiredCents:  amountCents,
				Currency:       combined.Currency,
			}
		}
		portion := amountCents
		if combined.LegacyCents < portion {
			portion = combined.LegacyCents
		}
		if portion > 0 && !legacyAllowed {
			return 0, ErrLegacySpendingDisabled
		}
		return portion, nil

	default:
		return 0, fmt.Errorf("unknown spending strategy %q", strategy)
	}
}

// Refund distributes amountCents back to the wallets. With an original
// breakdown the split is proportional to how the money was spent; without
// one, everything goes to the platform wallet. A legacy wallet is never
// implicitly credited for an unattributed refund.
func (s *Service) Refund(ctx context.Context, userID string, amountCents int64, original *Breakdown, meta Metadata) (RefundResult, error) {
	if err := validateUserID(userID); err != nil {
		return RefundResult{}, err
	}
	if amountCents <= 0 {
		return RefundResult{}, ErrInvalidAmount
	}

	var legacyShare, platformShare int64
	if original != nil && original.Total() > 0 {
		legacyShare, platformShare = money.SplitProportional(amountCents, original.LegacySpentCents, original.Total())
	} else {
		platformShare = amountCents
	}

	result := RefundResult{}

	if legacyShare > 0 {
		credited, err := s.creditLegacy(ctx, userID, legacyShare)
		if err != nil {
			return RefundResult{}, err
		}
		if !credited {
			// Frozen (migrated) legacy wallet: route the share to the
			// platform wallet so the refund is never lost.
			platformShare += legacyShare
			legacyShare = 0
		}
		result.LegacyRefundedCents = legacyShare
	}

	if platformShare > 0 {
		if err := s.creditPlatform(ctx, userID, platformShare, wallet.TxRefund, meta, nil); err != nil {
			return RefundResult{}, err
		}
		result.PlatformRefundedCents = platformShare
	}

	return result, nil
}

// creditLegacy credits the legacy wallet, auto-creating a zero-balance row
// if absent. Returns false when the wallet is frozen by migration.
func (s *Service) creditLegacy(ctx context.Context, userID string, cents int64) (bool, error) {
	_, err := s.legacy.Credit(ctx, userID, cents)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, legacy.ErrMigrated) {
		return false, nil
	}
	if !errors.Is(err, legacy.ErrNotFound) {
		return false, err
	}

	now := time.Now().UTC()
	w := legacy.Wallet{
		ID:           uuid.NewString(),
		UserID:       userID,
		BalanceCents: 0,
		Currency:     defaultCurrency,
		Source:       legacy.SourceRefundCreated,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.legacy.Create(ctx, w); err != nil {
		return false, err
	}
	if _, err := s.legacy.Credit(ctx, userID, cents); err != nil {
		return false, err
	}
	return true, nil
}

// AddFunds credits the platform wallet after an external payment confirmed
// funding of the amount, creating the wallet lazily if needed.
func (s *Service) AddFunds(ctx context.Context, userID string, amountCents int64, meta Metadata) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	if amountCents <= 0 {
		return ErrInvalidAmount
	}
	return s.creditPlatform(ctx, userID, amountCents, wallet.TxFunding, meta, nil)
}

// MigrateOne moves a user's legacy balance into the platform wallet exactly
// once. The legacy balance is frozen at its pre-migration value so the row
// records what was transferred out.
func (s *Service) MigrateOne(ctx context.Context, userID string) (MigrationResult, error) {
	if err := validateUserID(userID); err != nil {
		return MigrationResult{}, err
	}

	lw, err := s.legacy.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, legacy.ErrNotFound) {
			return MigrationResult{Status: StatusNoLegacyWallet}, nil
		}
		return MigrationResult{}, err
	}
	if lw.Migrated {
		return MigrationResult{Status: StatusAlreadyMigrated, PlatformWalID: lw.MigratedToWalletID}, nil
	}

	if lw.BalanceCents == 0 {
		if _, err := s.legacy.MarkMigrated(ctx, userID, ""); err != nil && !errors.Is(err, legacy.ErrMigrated) {
			return MigrationResult{}, err
		}
		return MigrationResult{Status: StatusZeroBalance}, nil
	}

	pw, err := s.ensurePlatform(ctx, userID, lw.Currency)
	if err != nil {
		return MigrationResult{}, err
	}

	balanceBefore := pw.Balance
	updated, err := s.platform.Credit(ctx, pw.ID, money.FromCents(lw.BalanceCents))
	if err != nil {
		return MigrationResult{}, err
	}

	tx := wallet.Transaction{
		ID:            uuid.NewString(),
		WalletID:      pw.ID,
		UserID:        userID,
		Type:          wallet.TxFunding,
		Amount:        money.FromCents(lw.BalanceCents),
		Currency:      updated.Currency,
		Status:        wallet.TxCompleted,
		BalanceBefore: balanceBefore,
		BalanceAfter:  updated.Balance,
		Metadata: map[string]string{
			wallet.MetaLegacyMigration: lw.ID,
			"legacyBalanceCents":       fmt.Sprintf("%d", lw.BalanceCents),
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.txlog.Record(ctx, tx); err != nil {
		return MigrationResult{}, err
	}

	if _, err := s.legacy.MarkMigrated(ctx, userID, pw.ID); err != nil {
		return MigrationResult{}, err
	}

	s.logger.Info("legacy wallet migrated",
		"user_id", userID, "cents", lw.BalanceCents, "platform_wallet_id", pw.ID)

	return MigrationResult{Status: StatusMigrated, AmountCents: lw.BalanceCents, PlatformWalID: pw.ID}, nil
}

func (s *Service) debitPlatform(ctx context.Context, userID string, cents int64, meta Metadata) error {
	pw, err := s.platform.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}

	amount := money.FromCents(cents)
	balanceBefore := pw.Balance
	updated, err := s.platform.Debit(ctx, pw.ID, amount)
	if err != nil {
		if errors.Is(err, wallet.ErrNegativeBalance) {
			// Raced with another writer; surface as insufficient funds.
			return &InsufficientFundsError{
				AvailableCents: money.ToCents(pw.Balance),
				RequiredCents:  cents,
				Currency:       pw.Currency,
			}
		}
		return err
	}

	return s.txlog.Record(ctx, wallet.Transaction{
		ID:            uuid.NewString(),
		WalletID:      pw.ID,
		UserID:        userID,
		Type:          wallet.TxPurchase,
		Amount:        amount,
		Currency:      updated.Currency,
		Status:        wallet.TxCompleted,
		BalanceBefore: balanceBefore,
		BalanceAfter:  updated.Balance,
		OrderID:       meta.OrderID,
		ListingID:     meta.ListingID,
		CreatedAt:     time.Now().UTC(),
	})
}

func (s *Service) creditPlatform(ctx context.Context, userID string, cents int64, txType string, meta Metadata, extraMeta map[string]string) error {
	pw, err := s.ensurePlatform(ctx, userID, defaultCurrency)
	if err != nil {
		return err
	}

	amount := money.FromCents(cents)
	balanceBefore := pw.Balance
	updated, err := s.platform.Credit(ctx, pw.ID, amount)
	if err != nil {
		return err
	}

	return s.txlog.Record(ctx, wallet.Transaction{
		ID:            uuid.NewString(),
		WalletID:      pw.ID,
		UserID:        userID,
		Type:          txType,
		Amount:        amount,
		Currency:      updated.Currency,
		Status:        wallet.TxCompleted,
		BalanceBefore: balanceBefore,
		BalanceAfter:  updated.Balance,
		OrderID:       meta.OrderID,
		ListingID:     meta.ListingID,
		Metadata:      extraMeta,
		CreatedAt:     time.Now().UTC(),
	})
}

func (s *Service) ensurePlatform(ctx context.Context, userID, currency string) (wallet.Wallet, error) {
	pw, err := s.platform.GetByUserID(ctx, userID)
	if err == nil {
		return pw, nil
	}
	if !errors.Is(err, wallet.ErrNotFound) {
		return wallet.Wallet{}, err
	}

	if currency == "" {
		currency = defaultCurrency
	}
	now := time.Now().UTC()
	pw = wallet.Wallet{
		ID:        uuid.NewString(),
		UserID:    userID,
		Currency:  currency,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.platform.Create(ctx, pw); err != nil {
		return wallet.Wallet{}, err
	}
	return pw, nil
}

func validateUserID(userID string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return ErrInvalidUserID
	}
	return nil
}
