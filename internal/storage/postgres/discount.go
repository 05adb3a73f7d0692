package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/zaincode21/uruti-discounts/internal/domain/discount"
)

const discountColumns = `id, name, description, kind, value, min_purchase_amount, max_discount_amount,
	start_date, end_date, usage_limit, customer_usage_limit, applies_to,
	product_types, category_ids, customer_tiers, bottle_return_count,
	active, allow_partial_payment, created_at, updated_at`

const (
	getDiscountSQL = `SELECT ` + discountColumns + ` FROM discounts WHERE id = $1`

	lockDiscountSQL = getDiscountSQL + ` FOR UPDATE`

	listDiscountsSQL = `SELECT ` + discountColumns + ` FROM discounts
		WHERE ($1::boolean IS NULL OR active = $1)
		  AND ($2::text = '' OR kind = $2)
		ORDER BY created_at DESC, id`

	createDiscountSQL = `INSERT INTO discounts (` + discountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	updateDiscountSQL = `UPDATE discounts SET
		name = $2, description = $3, kind = $4, value = $5,
		min_purchase_amount = $6, max_discount_amount = $7,
		start_date = $8, end_date = $9, usage_limit = $10, customer_usage_limit = $11,
		applies_to = $12, product_types = $13, category_ids = $14, customer_tiers = $15,
		bottle_return_count = $16, active = $17, allow_partial_payment = $18, updated_at = $19
		WHERE id = $1`

	deleteDiscountSQL = `DELETE FROM discounts WHERE id = $1`

	countApplicationsSQL = `SELECT count(*) FROM discount_applications WHERE discount_id = $1`

	getCustomerUsageSQL = `SELECT customer_id, discount_id, usage_count, last_used_at
		FROM customer_discount_usage WHERE customer_id = $1 AND discount_id = $2`

	upsertCustomerUsageSQL = `INSERT INTO customer_discount_usage (customer_id, discount_id, usage_count, last_used_at)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (customer_id, discount_id)
		DO UPDATE SET usage_count = customer_discount_usage.usage_count + 1, last_used_at = EXCLUDED.last_used_at`

	hasBottleReturnSQL = `SELECT EXISTS (
		SELECT 1 FROM discount_applications WHERE order_id = $1 AND kind = 'bottle_return')`

	hasApplicationSQL = `SELECT EXISTS (
		SELECT 1 FROM discount_applications WHERE order_id = $1 AND discount_id = $2)`

	recordApplicationSQL = `INSERT INTO discount_applications (id, order_id, discount_id, customer_id, kind,
		original_amount, amount_applied, final_amount, percentage_applied, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	listApplicationsSQL = `SELECT id, order_id, discount_id, customer_id, kind,
		original_amount, amount_applied, final_amount, percentage_applied, applied_at
		FROM discount_applications WHERE order_id = $1 ORDER BY applied_at, id`
)

// Constraint names from db/migrations.
const (
	constraintOrderDiscount = "discount_applications_order_discount_key"
	constraintBottleReturn  = "discount_applications_bottle_return_key"
)

var (
	_ discount.Store  = (*DiscountStore)(nil)
	_ discount.Ledger = (*ledger)(nil)
)

// DiscountStore implements discount.Store backed by PostgreSQL.
type DiscountStore struct {
	pool *pgxpool.Pool
}

// NewDiscountStore returns a DiscountStore that uses the given pool.
func NewDiscountStore(pool *pgxpool.Pool) *DiscountStore {
	return &DiscountStore{pool: pool}
}

// Get returns the discount with id, or discount.ErrNotFound.
func (s *DiscountStore) Get(ctx context.Context, id string) (*discount.Discount, error) {
	return getDiscount(ctx, s.pool, getDiscountSQL, id)
}

// List returns discounts matching filter, newest first.
func (s *DiscountStore) List(ctx context.Context, filter discount.ListFilter) ([]discount.Discount, error) {
	rows, err := s.pool.Query(ctx, listDiscountsSQL, filter.Active, string(filter.Kind))
	if err != nil {
		return nil, fmt.Errorf("listing discounts: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanDiscount)
	if err != nil {
		return nil, fmt.Errorf("listing discounts: %w", err)
	}
	return items, nil
}

// Create inserts d. The id must not already exist.
func (s *DiscountStore) Create(ctx context.Context, d *discount.Discount) error {
	_, err := s.pool.Exec(ctx, createDiscountSQL,
		d.ID, d.Name, d.Description, string(d.Kind), d.Value, d.MinPurchase, d.MaxDiscount,
		d.StartDate, d.EndDate, d.UsageLimit, d.CustomerUsageLimit, string(d.AppliesTo),
		nonNil(d.ProductTypes), nonNil(d.CategoryIDs), nonNil(d.CustomerTiers), d.BottleReturnCount,
		d.Active, d.AllowPartialPayment, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating discount %q: %w", d.ID, err)
	}
	return nil
}

// Update replaces the stored definition with the same id.
func (s *DiscountStore) Update(ctx context.Context, d *discount.Discount) error {
	tag, err := s.pool.Exec(ctx, updateDiscountSQL,
		d.ID, d.Name, d.Description, string(d.Kind), d.Value, d.MinPurchase, d.MaxDiscount,
		d.StartDate, d.EndDate, d.UsageLimit, d.CustomerUsageLimit, string(d.AppliesTo),
		nonNil(d.ProductTypes), nonNil(d.CategoryIDs), nonNil(d.CustomerTiers), d.BottleReturnCount,
		d.Active, d.AllowPartialPayment, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating discount %q: %w", d.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return discount.ErrNotFound
	}
	return nil
}

// Delete removes the definition. Usage rows cascade; applications are kept.
func (s *DiscountStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, deleteDiscountSQL, id)
	if err != nil {
		return fmt.Errorf("deleting discount %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return discount.ErrNotFound
	}
	return nil
}

// CountApplications returns how many times the discount has been applied.
func (s *DiscountStore) CountApplications(ctx context.Context, discountID string) (int, error) {
	return countApplications(ctx, s.pool, discountID)
}

// GetCustomerUsage returns the customer's usage row, or nil when there is none.
func (s *DiscountStore) GetCustomerUsage(ctx context.Context, customerID, discountID string) (*discount.Usage, error) {
	return getCustomerUsage(ctx, s.pool, customerID, discountID)
}

// ListApplications returns the applications recorded for orderID, oldest first.
func (s *DiscountStore) ListApplications(ctx context.Context, orderID string) ([]discount.Application, error) {
	rows, err := s.pool.Query(ctx, listApplicationsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing applications for order %q: %w", orderID, err)
	}
	apps, err := pgx.CollectRows(rows, scanApplication)
	if err != nil {
		return nil, fmt.Errorf("listing applications for order %q: %w", orderID, err)
	}
	return apps, nil
}

// Atomic runs fn in a READ COMMITTED transaction. Ledger.LockDiscount takes a
// row lock on the discount, so concurrent applies of one discount queue
// behind each other and re-read counts after the previous one commits.
func (s *DiscountStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx discount.Ledger) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &ledger{q: tx})
	})
}

type ledger struct {
	q querier
}

func (l *ledger) LockDiscount(ctx context.Context, id string) (*discount.Discount, error) {
	return getDiscount(ctx, l.q, lockDiscountSQL, id)
}

func (l *ledger) CountApplications(ctx context.Context, discountID string) (int, error) {
	return countApplications(ctx, l.q, discountID)
}

func (l *ledger) GetCustomerUsage(ctx context.Context, customerID, discountID string) (*discount.Usage, error) {
	return getCustomerUsage(ctx, l.q, customerID, discountID)
}

func (l *ledger) HasBottleReturnApplication(ctx context.Context, orderID string) (bool, error) {
	var exists bool
	if err := l.q.QueryRow(ctx, hasBottleReturnSQL, orderID).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking bottle return on order %q: %w", orderID, err)
	}
	return exists, nil
}

func (l *ledger) HasApplication(ctx context.Context, orderID, discountID string) (bool, error) {
	var exists bool
	if err := l.q.QueryRow(ctx, hasApplicationSQL, orderID, discountID).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking application on order %q: %w", orderID, err)
	}
	return exists, nil
}

// RecordApplication inserts the application. A concurrent insert that slipped
// past the Has* checks is caught by the unique indexes.
func (l *ledger) RecordApplication(ctx context.Context, app *discount.Application) error {
	_, err := l.q.Exec(ctx, recordApplicationSQL,
		app.ID, app.OrderID, app.DiscountID, app.CustomerID, string(app.Kind),
		app.OriginalAmount, app.AmountApplied, app.FinalAmount, app.PercentageApplied, app.AppliedAt,
	)
	if err == nil {
		return nil
	}
	if name, ok := uniqueConstraint(err); ok {
		switch name {
		case constraintBottleReturn:
			return discount.ErrDuplicateBottleReturn
		case constraintOrderDiscount:
			return discount.ErrAlreadyApplied
		}
	}
	return fmt.Errorf("recording application on order %q: %w", app.OrderID, err)
}

func (l *ledger) UpsertCustomerUsage(ctx context.Context, customerID, discountID string, at time.Time) error {
	if _, err := l.q.Exec(ctx, upsertCustomerUsageSQL, customerID, discountID, at); err != nil {
		return fmt.Errorf("upserting usage for customer %q: %w", customerID, err)
	}
	return nil
}

func getDiscount(ctx context.Context, q querier, sql, id string) (*discount.Discount, error) {
	rows, err := q.Query(ctx, sql, id)
	if err != nil {
		return nil, fmt.Errorf("getting discount %q: %w", id, err)
	}
	d, err := pgx.CollectExactlyOneRow(rows, scanDiscount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrNotFound
		}
		return nil, fmt.Errorf("getting discount %q: %w", id, err)
	}
	return &d, nil
}

func countApplications(ctx context.Context, q querier, discountID string) (int, error) {
	var n int
	if err := q.QueryRow(ctx, countApplicationsSQL, discountID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting applications of %q: %w", discountID, err)
	}
	return n, nil
}

func getCustomerUsage(ctx context.Context, q querier, customerID, discountID string) (*discount.Usage, error) {
	var u discount.Usage
	err := q.QueryRow(ctx, getCustomerUsageSQL, customerID, discountID).
		Scan(&u.CustomerID, &u.DiscountID, &u.Count, &u.LastUsedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting usage for customer %q: %w", customerID, err)
	}
	return &u, nil
}

func scanDiscount(row pgx.CollectableRow) (discount.Discount, error) {
	var (
		d         discount.Discount
		kind      string
		appliesTo string
	)
	err := row.Scan(
		&d.ID, &d.Name, &d.Description, &kind, &d.Value, &d.MinPurchase, &d.MaxDiscount,
		&d.StartDate, &d.EndDate, &d.UsageLimit, &d.CustomerUsageLimit, &appliesTo,
		&d.ProductTypes, &d.CategoryIDs, &d.CustomerTiers, &d.BottleReturnCount,
		&d.Active, &d.AllowPartialPayment, &d.CreatedAt, &d.UpdatedAt,
	)
	d.Kind = discount.Kind(kind)
	d.AppliesTo = discount.Target(appliesTo)
	return d, err
}

func scanApplication(row pgx.CollectableRow) (discount.Application, error) {
	var (
		a    discount.Application
		kind string
		pct  decimal.NullDecimal
	)
	err := row.Scan(
		&a.ID, &a.OrderID, &a.DiscountID, &a.CustomerID, &kind,
		&a.OriginalAmount, &a.AmountApplied, &a.FinalAmount, &pct, &a.AppliedAt,
	)
	a.Kind = discount.Kind(kind)
	a.PercentageApplied = pct
	return a, err
}

// nonNil keeps NOT NULL array columns from receiving NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
