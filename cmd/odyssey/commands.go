package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/odyssey-erp/odyssey-resale/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-resale/internal/app"
	"github.com/odyssey-erp/odyssey-resale/internal/inventory"
	"github.com/odyssey-erp/odyssey-resale/internal/platform/db"
	"github.com/odyssey-erp/odyssey-resale/migrations"
)

const usage = `usage:
  odyssey                               start the HTTP server
  odyssey migrate                       apply embedded SQL migrations
  odyssey reconcile --owner ID [--json] check an owner's pool against its IO log
  odyssey jobs trigger NAME [--owner ID] enqueue inventory:auto-confirm or idempotency:cleanup
  odyssey jobs stats                    print default queue statistics`

func runCommand(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	switch args[0] {
	case "migrate":
		return runMigrate(ctx, cfg, logger)
	case "reconcile":
		return runReconcile(ctx, cfg, args[1:])
	case "jobs":
		return runJobs(ctx, cfg, logger, args[1:])
	default:
		_, _ = fmt.Fprintln(os.Stderr, usage)
		return 2
	}
}

func runMigrate(ctx context.Context, cfg *app.Config, logger *slog.Logger) int {
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions())
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		return 1
	}
	defer pool.Close()

	applied, err := db.Migrate(ctx, pool, migrations.FS)
	if err != nil {
		logger.Error("migrate", slog.Any("error", err), slog.Any("applied", applied))
		return 1
	}
	logger.Info("migrations applied", slog.Int("count", len(applied)), slog.Any("files", applied))
	return 0
}

func runReconcile(ctx context.Context, cfg *app.Config, args []string) int {
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	owner := fs.String("owner", "", "owner id")
	asJSON := fs.Bool("json", false, "print JSON summary")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions())
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "reconcile: %v\n", err)
		return 1
	}
	defer pool.Close()

	cmd, err := cli.NewReconcileCLI(inventory.NewRepository(pool))
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "reconcile: %v\n", err)
		return 1
	}
	return cmd.ReconcileCommand(ctx, cli.ReconcileOptions{OwnerID: *owner, JSONOutput: *asJSON})
}

func runJobs(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(os.Stderr, usage)
		return 2
	}
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "jobs: %v\n", err)
		return 1
	}
	defer func() {
		if err := jobsCLI.Close(); err != nil {
			logger.Warn("jobs cli close", slog.Any("error", err))
		}
	}()

	switch args[0] {
	case "trigger":
		fs := flag.NewFlagSet("jobs trigger", flag.ContinueOnError)
		owner := fs.String("owner", "", "owner id, all owners when empty")
		if len(args) < 2 {
			_, _ = fmt.Fprintln(os.Stderr, usage)
			return 2
		}
		if err := fs.Parse(args[2:]); err != nil {
			return 2
		}
		info, err := jobsCLI.Trigger(ctx, args[1], *owner)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "jobs trigger: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(os.Stdout, "enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
		return 0
	case "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "jobs stats: %v\n", err)
			return 1
		}
		if err := json.NewEncoder(os.Stdout).Encode(stats); err != nil {
			return 1
		}
		return 0
	default:
		_, _ = fmt.Fprintln(os.Stderr, usage)
		return 2
	}
}
