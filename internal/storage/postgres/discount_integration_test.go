//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/zaincode21/uruti-discounts/internal/domain/auth"
	"github.com/zaincode21/uruti-discounts/internal/domain/discount"
	"github.com/zaincode21/uruti-discounts/internal/storage/postgres"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "discounts",
				"POSTGRES_PASSWORD": "discounts",
				"POSTGRES_DB":       "discounts",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Terminate(context.Background())
	})

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	url := fmt.Sprintf("postgres://discounts:discounts@%s:%s/discounts?sslmode=disable", host, port.Port())
	pool, err := postgres.NewPool(ctx, url, postgres.PoolConfig{MaxConns: 16})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.RunMigrations(ctx, pool))
	// Applying twice must be harmless.
	require.NoError(t, postgres.RunMigrations(ctx, pool))
	return pool
}

func sampleDiscount(id string, kind discount.Kind) discount.Discount {
	now := time.Now().UTC().Truncate(time.Microsecond)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d := discount.Discount{
		ID:           id,
		Name:         "Sample " + id,
		Kind:         kind,
		Value:        decimal.RequireFromString("12.5"),
		MinPurchase:  decimal.NewNullDecimal(decimal.NewFromInt(10)),
		StartDate:    &start,
		AppliesTo:    discount.TargetCategory,
		CategoryIDs:  []string{"cat-1", "cat-2"},
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if kind == discount.KindBottleReturn {
		d.Value = decimal.Zero
		d.BottleReturnCount = 2
	}
	return d
}

func TestDiscountStore(t *testing.T) {
	pool := startPostgres(t)
	store := postgres.NewDiscountStore(pool)
	svc, err := discount.NewService(store)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("CRUD", func(t *testing.T) {
		d := sampleDiscount("crud", discount.KindPercentage)
		limit := 3
		d.UsageLimit = &limit
		require.NoError(t, store.Create(ctx, &d))

		got, err := store.Get(ctx, "crud")
		require.NoError(t, err)
		assert.Equal(t, d.Name, got.Name)
		assert.Equal(t, discount.KindPercentage, got.Kind)
		assert.Equal(t, discount.TargetCategory, got.AppliesTo)
		assert.True(t, d.Value.Equal(got.Value))
		assert.True(t, got.MinPurchase.Valid)
		assert.False(t, got.MaxDiscount.Valid)
		require.NotNil(t, got.StartDate)
		assert.Equal(t, "2026-01-01", got.StartDate.Format(time.DateOnly))
		assert.Nil(t, got.EndDate)
		require.NotNil(t, got.UsageLimit)
		assert.Equal(t, 3, *got.UsageLimit)
		assert.Nil(t, got.CustomerUsageLimit)
		assert.Equal(t, []string{"cat-1", "cat-2"}, got.CategoryIDs)
		assert.Empty(t, got.ProductTypes)

		d.Name = "Renamed"
		d.Active = false
		require.NoError(t, store.Update(ctx, &d))
		got, err = store.Get(ctx, "crud")
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Name)
		assert.False(t, got.Active)

		inactive := false
		list, err := store.List(ctx, discount.ListFilter{Active: &inactive, Kind: discount.KindPercentage})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "crud", list[0].ID)

		require.NoError(t, store.Delete(ctx, "crud"))
		_, err = store.Get(ctx, "crud")
		require.ErrorIs(t, err, discount.ErrNotFound)
		require.ErrorIs(t, store.Delete(ctx, "crud"), discount.ErrNotFound)
		require.ErrorIs(t, store.Update(ctx, &d), discount.ErrNotFound)
	})

	t.Run("ApplyAndUsage", func(t *testing.T) {
		d := sampleDiscount("apply", discount.KindPercentage)
		require.NoError(t, store.Create(ctx, &d))

		res, err := svc.Apply(ctx, discount.ApplyRequest{
			OrderID: "order-1", DiscountID: "apply", CustomerID: "cust-1",
			OrderAmount: decimal.NewFromInt(200),
		})
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(25).Equal(res.DiscountAmount))
		assert.True(t, decimal.NewFromInt(175).Equal(res.FinalAmount))

		_, err = svc.Apply(ctx, discount.ApplyRequest{
			OrderID: "order-2", DiscountID: "apply", CustomerID: "cust-1",
			OrderAmount: decimal.NewFromInt(100),
		})
		require.NoError(t, err)

		u, err := store.GetCustomerUsage(ctx, "cust-1", "apply")
		require.NoError(t, err)
		require.NotNil(t, u)
		assert.Equal(t, 2, u.Count)

		n, err := store.CountApplications(ctx, "apply")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		apps, err := store.ListApplications(ctx, "order-1")
		require.NoError(t, err)
		require.Len(t, apps, 1)
		assert.True(t, apps[0].PercentageApplied.Valid)
		assert.True(t, decimal.RequireFromString("12.5").Equal(apps[0].PercentageApplied.Decimal))

		_, err = svc.Apply(ctx, discount.ApplyRequest{
			OrderID: "order-1", DiscountID: "apply", CustomerID: "cust-1",
			OrderAmount: decimal.NewFromInt(200),
		})
		require.ErrorIs(t, err, discount.ErrAlreadyApplied)

		// Deleting the definition keeps applications but drops usage.
		require.NoError(t, store.Delete(ctx, "apply"))
		apps, err = store.ListApplications(ctx, "order-1")
		require.NoError(t, err)
		assert.Len(t, apps, 1)
		u, err = store.GetCustomerUsage(ctx, "cust-1", "apply")
		require.NoError(t, err)
		assert.Nil(t, u)
	})

	t.Run("ConcurrentCustomerLimit", func(t *testing.T) {
		d := sampleDiscount("capped", discount.KindFixedAmount)
		limit := 1
		d.CustomerUsageLimit = &limit
		require.NoError(t, store.Create(ctx, &d))

		const workers = 6
		var (
			wg   sync.WaitGroup
			errs = make([]error, workers)
		)
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = svc.Apply(ctx, discount.ApplyRequest{
					OrderID:     fmt.Sprintf("capped-order-%d", i),
					DiscountID:  "capped",
					CustomerID:  "cust-race",
					OrderAmount: decimal.NewFromInt(100),
				})
			}()
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			require.ErrorIs(t, err, discount.ErrIneligible)
		}
		assert.Equal(t, 1, succeeded)
	})

	t.Run("ConcurrentBottleReturn", func(t *testing.T) {
		for _, id := range []string{"bottle-a", "bottle-b"} {
			d := sampleDiscount(id, discount.KindBottleReturn)
			require.NoError(t, store.Create(ctx, &d))
		}

		var (
			wg   sync.WaitGroup
			errs [2]error
		)
		for i, id := range []string{"bottle-a", "bottle-b"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = svc.Apply(ctx, discount.ApplyRequest{
					OrderID:     "bottle-order",
					DiscountID:  id,
					CustomerID:  "cust-bottle",
					OrderAmount: decimal.NewFromInt(5000),
				})
			}()
		}
		wg.Wait()

		failed := 0
		for _, err := range errs {
			if err != nil {
				require.True(t, errors.Is(err, discount.ErrDuplicateBottleReturn), "got %v", err)
				failed++
			}
		}
		assert.Equal(t, 1, failed)

		apps, err := store.ListApplications(ctx, "bottle-order")
		require.NoError(t, err)
		require.Len(t, apps, 1)
		assert.True(t, decimal.NewFromInt(2000).Equal(apps[0].AmountApplied))
	})
}

func TestAPIKeyRepository(t *testing.T) {
	pool := startPostgres(t)
	repo := postgres.NewAPIKeyRepository(pool)
	ctx := context.Background()

	pepper := []byte("pepper")
	require.NoError(t, repo.Upsert(ctx, auth.APIKeyInfo{
		ID:      "admin",
		Name:    "Admin",
		KeyHash: auth.Hash(pepper, "s3cret"),
		Scopes:  []string{auth.ScopeDiscountsWrite},
	}))

	a := auth.NewAuthenticator(repo, pepper)
	info, err := a.Authenticate(ctx, "s3cret", auth.ScopeDiscountsWrite)
	require.NoError(t, err)
	assert.Equal(t, "Admin", info.Name)

	_, err = a.Authenticate(ctx, "nope", auth.ScopeDiscountsWrite)
	require.ErrorIs(t, err, auth.ErrUnauthorized)
}
