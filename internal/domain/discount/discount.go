package discount

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Kind enumerates the supported discount strategies.
type Kind string

const (
	// KindPercentage takes a percentage of the order amount.
	KindPercentage Kind = "percentage"
	// KindFixedAmount takes a fixed monetary amount capped at the order amount.
	KindFixedAmount Kind = "fixed_amount"
	// KindBottleReturn takes a tiered fixed amount selected by returned bottle count.
	KindBottleReturn Kind = "bottle_return"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindPercentage, KindFixedAmount, KindBottleReturn:
		return true
	default:
		return false
	}
}

// Target selects which order attribute a discount is scoped to.
type Target string

const (
	TargetProductType Target = "product_type"
	TargetCategory    Target = "category"
)

// PaymentStatus is the payment state of the order a discount is evaluated against.
type PaymentStatus string

const (
	PaymentComplete PaymentStatus = "complete"
	PaymentPartial  PaymentStatus = "partial"
)

// Discount is a persisted discount definition.
type Discount struct {
	ID          string
	Name        string
	Description string
	Kind        Kind
	// Value is percentage points for KindPercentage and currency units for
	// KindFixedAmount. It is ignored for KindBottleReturn.
	Value       decimal.Decimal
	MinPurchase decimal.NullDecimal
	MaxDiscount decimal.NullDecimal
	// StartDate and EndDate are calendar dates, both inclusive.
	StartDate *time.Time
	EndDate   *time.Time
	// UsageLimit caps applications across all customers.
	UsageLimit *int
	// CustomerUsageLimit caps applications per customer.
	CustomerUsageLimit  *int
	AppliesTo           Target
	ProductTypes        []string
	CategoryIDs         []string
	CustomerTiers       []string
	BottleReturnCount   int
	Active              bool
	AllowPartialPayment bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Usage is the cumulative usage of one discount by one customer.
type Usage struct {
	CustomerID string
	DiscountID string
	Count      int
	LastUsedAt time.Time
}

// Application records one discount applied to one order.
type Application struct {
	ID                string
	OrderID           string
	DiscountID        string
	CustomerID        string
	Kind              Kind
	OriginalAmount    decimal.Decimal
	AmountApplied     decimal.Decimal
	FinalAmount       decimal.Decimal
	PercentageApplied decimal.NullDecimal
	AppliedAt         time.Time
}

// Line is the targeting-relevant part of an order line.
type Line struct {
	ProductType string
	CategoryID  string
}

// ListFilter narrows Store.List results. Zero values match everything.
type ListFilter struct {
	Active *bool
	Kind   Kind
}

// Store provides persistence of discount definitions and read access to the
// usage ledger.
type Store interface {
	Get(ctx context.Context, id string) (*Discount, error)
	List(ctx context.Context, filter ListFilter) ([]Discount, error)
	Create(ctx context.Context, d *Discount) error
	Update(ctx context.Context, d *Discount) error
	Delete(ctx context.Context, id string) error

	CountApplications(ctx context.Context, discountID string) (int, error)
	// GetCustomerUsage returns nil without error when the customer has never
	// used the discount.
	GetCustomerUsage(ctx context.Context, customerID, discountID string) (*Usage, error)
	ListApplications(ctx context.Context, orderID string) ([]Application, error)

	// Atomic runs fn inside a single storage transaction. Concurrent Atomic
	// calls touching the same discount are serialised by LockDiscount. If fn
	// returns an error nothing it wrote is kept.
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Ledger) error) error
}

// Ledger is the transaction-scoped view used by the application recorder.
type Ledger interface {
	// LockDiscount loads the discount and holds it until the transaction ends.
	LockDiscount(ctx context.Context, id string) (*Discount, error)
	CountApplications(ctx context.Context, discountID string) (int, error)
	GetCustomerUsage(ctx context.Context, customerID, discountID string) (*Usage, error)
	HasBottleReturnApplication(ctx context.Context, orderID string) (bool, error)
	HasApplication(ctx context.Context, orderID, discountID string) (bool, error)
	RecordApplication(ctx context.Context, app *Application) error
	// UpsertCustomerUsage inserts a usage row with count 1 or increments the
	// existing one and moves its last-used timestamp to at.
	UpsertCustomerUsage(ctx context.Context, customerID, discountID string, at time.Time) error
}
