package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/keyhaven/keyhaven/internal/config"
	"github.com/keyhaven/keyhaven/internal/infra"
	"github.com/keyhaven/keyhaven/internal/legacy"
	"github.com/keyhaven/keyhaven/internal/logging"
	"github.com/keyhaven/keyhaven/internal/migration"
	"github.com/keyhaven/keyhaven/internal/userlock"
	"github.com/keyhaven/keyhaven/internal/wallet"
)

func main() {
	var (
		dryRun       = flag.Bool("dry-run", false, "report what would change without writing")
		batchSize    = flag.Int("batch-size", 100, "wallets processed per page")
		minBalance   = flag.Int64("min-balance", 0, "minimum balance in cents to migrate")
		force        = flag.Bool("force", false, "confirm destructive operations")
		rollback     = flag.Bool("rollback", false, "delete imported wallets and provenance rows")
		validate     = flag.Bool("validate", false, "verify imported balances against originals")
		fixIssues    = flag.Bool("fix-issues", false, "repair fixable findings during validation")
		exportReport = flag.String("export-report", "", "write the run report as JSON to this file")
	)
	flag.Parse()

	if *rollback && *validate {
		fmt.Fprintln(os.Stderr, "--rollback and --validate are mutually exclusive")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, "walletmigrate")
	ctx := context.Background()

	db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cache, err := infra.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("connect redis", "error", err)
		os.Exit(1)
	}
	defer cache.Close()

	engine := migration.NewEngine(
		wallet.NewPostgresRepository(db),
		legacy.NewPostgresRepository(db),
		wallet.NewPostgresTransactionLog(db),
		userlock.NewRedisLocker(cache, cfg.UserLockTTL),
		logger,
	)

	opts := migration.Options{
		DryRun:          *dryRun,
		BatchSize:       *batchSize,
		MinBalanceCents: *minBalance,
		Force:           *force,
		FixIssues:       *fixIssues,
	}

	var report any
	exitCode := 0

	switch {
	case *validate:
		vr, err := engine.Validate(ctx, opts)
		if err != nil {
			logger.Error("validation failed", "error", err)
			os.Exit(1)
		}
		report = vr
		if vr.IssueCount() > 0 {
			logger.Warn("validation found issues",
				"issues", vr.IssueCount(), "mismatches", len(vr.Mismatches),
				"orphans", len(vr.OrphanedUsers), "unmigrated", len(vr.UnmigratedPositive))
			exitCode = 1
		}
	case *rollback:
		r, err := engine.Rollback(ctx, opts)
		if err != nil {
			logger.Error("rollback failed", "error", err)
			os.Exit(1)
		}
		report = r
	default:
		r, err := engine.Migrate(ctx, opts)
		if err != nil {
			logger.Error("migration failed", "error", err)
			os.Exit(1)
		}
		report = r
		if r.Failed > 0 {
			exitCode = 1
		}
	}

	if err := writeReport(*exportReport, report); err != nil {
		logger.Error("write report", "error", err)
		os.Exit(1)
	}

	os.Exit(exitCode)
}

// writeReport serializes the report to the given path, or stdout when no
// path is provided.
func writeReport(path string, report any) error {
	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	payload = append(payload, '\n')

	if path == "" {
		_, err = os.Stdout.Write(payload)
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}
