package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/zaincode21/uruti-discounts/internal/domain/auth"
	"github.com/zaincode21/uruti-discounts/internal/domain/discount"
	"github.com/zaincode21/uruti-discounts/internal/storage/postgres"
)

func main() {
	var (
		databaseURL  string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or DISCOUNTS_SEED_API_KEY env), skipped when empty")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or DISCOUNTS_ADMIN_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("DISCOUNTS_SEED_API_KEY")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("DISCOUNTS_ADMIN_PEPPER")
	}
	if apiKey != "" && apiKeyPepper == "" {
		slog.Error("API key pepper is required when seeding a key: set --api-key-pepper or DISCOUNTS_ADMIN_PEPPER")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL, postgres.PoolConfig{MaxConns: 2})
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedDiscounts(ctx, postgres.NewDiscountStore(pool), sampleDiscounts()); err != nil {
		return errors.Wrap(err, "seed discounts")
	}

	if apiKey == "" {
		slog.Info("no API key given, skipping")
		return nil
	}
	if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func intPtr(v int) *int { return &v }

func sampleDiscounts() []discount.Discount {
	return []discount.Discount{
		{
			ID:                 "seed-loyal-beverages",
			Name:               "Loyal customer beverages",
			Description:        "10% off beverages for gold and silver customers",
			Kind:               discount.KindPercentage,
			Value:              decimal.NewFromInt(10),
			MaxDiscount:        decimal.NewNullDecimal(decimal.NewFromInt(5000)),
			CustomerUsageLimit: intPtr(3),
			AppliesTo:          discount.TargetProductType,
			ProductTypes:       []string{"beverage"},
			CustomerTiers:      []string{"gold", "silver"},
			Active:             true,
		},
		{
			ID:          "seed-bulk-order",
			Name:        "Bulk order",
			Description: "2000 off orders of 50000 or more",
			Kind:        discount.KindFixedAmount,
			Value:       decimal.NewFromInt(2000),
			MinPurchase: decimal.NewNullDecimal(decimal.NewFromInt(50000)),
			UsageLimit:  intPtr(500),
			AppliesTo:   discount.TargetCategory,
			CategoryIDs: []string{"wholesale"},
			Active:      true,
		},
		{
			ID:                  "seed-bottle-return",
			Name:                "Crate bottle return",
			Description:         "Credit for returning two empty bottles",
			Kind:                discount.KindBottleReturn,
			BottleReturnCount:   2,
			AppliesTo:           discount.TargetProductType,
			ProductTypes:        []string{"beverage"},
			Active:              true,
			AllowPartialPayment: true,
		},
	}
}

// seedDiscounts creates missing samples and overwrites existing ones.
func seedDiscounts(ctx context.Context, store discount.Store, samples []discount.Discount) error {
	slog.Info("seeding sample discounts", slog.Int("count", len(samples)))

	now := time.Now().UTC()
	for i := range samples {
		d := &samples[i]
		if err := discount.Validate(d); err != nil {
			return errors.Wrapf(err, "validate %s", d.ID)
		}

		d.UpdatedAt = now
		existing, err := store.Get(ctx, d.ID)
		switch {
		case errors.Is(err, discount.ErrNotFound):
			d.CreatedAt = now
			err = store.Create(ctx, d)
		case err == nil:
			d.CreatedAt = existing.CreatedAt
			err = store.Update(ctx, d)
		}
		if err != nil {
			return errors.Wrapf(err, "upsert discount %s", d.ID)
		}

		slog.Info("upserted discount", slog.String("id", d.ID), slog.String("name", d.Name))
	}

	return nil
}

func seedAPIKey(ctx context.Context, repo *postgres.APIKeyRepository, apiKey, pepper string) error {
	slog.Info("seeding admin API key")

	info := auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.Hash([]byte(pepper), apiKey),
		Name:    "Default admin key",
		Scopes:  []string{auth.ScopeDiscountsWrite},
	}
	if err := repo.Upsert(ctx, info); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", info.ID), slog.String("name", info.Name))

	return nil
}
