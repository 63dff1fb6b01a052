package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/keyhaven/keyhaven/internal/bridge"
	"github.com/keyhaven/keyhaven/internal/config"
	"github.com/keyhaven/keyhaven/internal/escrow"
	"github.com/keyhaven/keyhaven/internal/legacy"
	"github.com/keyhaven/keyhaven/internal/middleware"
	"github.com/keyhaven/keyhaven/internal/notification"
	"github.com/keyhaven/keyhaven/internal/seller"
	"github.com/keyhaven/keyhaven/internal/spending"
	"github.com/keyhaven/keyhaven/internal/userlock"
	"github.com/keyhaven/keyhaven/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !isDev(d.Cfg.AppEnv) {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	// Health
	RegisterHealthRoutes(app, d)

	// Repositories. Memory backends keep dev mode runnable without Postgres.
	var (
		platformRepo wallet.Repository
		legacyRepo   legacy.Repository
		txlog        wallet.TransactionLog
		ledgerStore  escrow.Store
		orderRepo    seller.OrderRepository
		payoutRepo   seller.PayoutRepository
	)
	if d.DB != nil {
		platformRepo = wallet.NewPostgresRepository(d.DB)
		legacyRepo = legacy.NewPostgresRepository(d.DB)
		txlog = wallet.NewPostgresTransactionLog(d.DB)
		ledgerStore = escrow.NewPostgresStore(d.DB)
		orderRepo = seller.NewPostgresOrderRepository(d.DB)
		payoutRepo = seller.NewPostgresPayoutRepository(d.DB)
	} else {
		platformRepo = wallet.NewMemoryRepository()
		legacyRepo = legacy.NewMemoryRepository()
		txlog = wallet.NewMemoryTransactionLog()
		ledgerStore = escrow.NewInMemory()
		orderRepo = seller.NewMemoryOrderRepository()
		payoutRepo = seller.NewMemoryPayoutRepository()
	}

	var locks userlock.Locker
	if d.Cache != nil {
		locks = userlock.NewRedisLocker(d.Cache, d.Cfg.UserLockTTL)
	} else {
		locks = userlock.NewMemory()
	}

	// Services and handlers
	notifier := notification.NewLoggerNotifier(d.Logger)
	bridgeSvc := bridge.NewService(platformRepo, legacyRepo, txlog, d.Cfg.Spending, d.Logger)
	walletSvc := spending.NewService(bridgeSvc, legacyRepo, locks, d.Cfg.Spending, notifier, d.Logger)
	escrowSvc := escrow.NewService(ledgerStore, d.Logger)
	aggregator := seller.NewAggregator(ledgerStore, orderRepo, payoutRepo)

	walletHandler := spending.NewHandler(walletSvc)
	sellerHandler := seller.NewHandler(aggregator)
	escrowHandler := escrow.NewHandler(escrowSvc, notifier)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFromCtx(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterWalletRoutes(api, walletHandler)
	RegisterSellerRoutes(api, sellerHandler)
	RegisterEscrowRoutes(api, escrowHandler)

	return nil
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}
