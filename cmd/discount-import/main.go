package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"

	"github.com/go-faster/errors"

	"github.com/zaincode21/uruti-discounts/internal/domain/discount"
	"github.com/zaincode21/uruti-discounts/internal/storage/memory"
	"github.com/zaincode21/uruti-discounts/internal/storage/postgres"
)

func main() {
	var (
		dataDir     string
		pattern     string
		databaseURL string
		dryRun      bool
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing discount files")
	flag.StringVar(&pattern, "pattern", "*.jsonl.gz", "glob matched inside data-dir")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.BoolVar(&dryRun, "dry-run", false, "validate files against an empty in-memory store without writing")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, filepath.Join(dataDir, pattern), databaseURL, dryRun); err != nil {
		slog.Error("discount import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("discount import completed successfully")
}

func run(ctx context.Context, glob, databaseURL string, dryRun bool) error {
	files, err := filepath.Glob(glob)
	if err != nil {
		return errors.Wrapf(err, "match %s", glob)
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %s", glob)
	}
	slices.Sort(files)
	slog.Info("importing discounts", slog.Int("files", len(files)), slog.Bool("dry_run", dryRun))

	var store discount.Store
	if dryRun {
		store = memory.New()
	} else {
		slog.Info("connecting to database")

		pool, err := postgres.NewPool(ctx, databaseURL, postgres.PoolConfig{MaxConns: 4})
		if err != nil {
			return errors.Wrap(err, "connect to database")
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}
		store = postgres.NewDiscountStore(pool)
	}

	svc, err := discount.NewService(store)
	if err != nil {
		return errors.Wrap(err, "create discount service")
	}
	imp, err := newImporter(ctx, svc)
	if err != nil {
		return err
	}

	stats, err := imp.Run(ctx, files)
	slog.Info("import summary",
		slog.Int("imported", stats.Imported),
		slog.Int("skipped", stats.Skipped),
		slog.Int("invalid", stats.Invalid),
	)
	return err
}
