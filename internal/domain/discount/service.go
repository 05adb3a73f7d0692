package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/zaincode21/uruti-discounts/internal/domain/discount"

// EvaluateRequest holds the input for an eligibility check.
type EvaluateRequest struct {
	DiscountID    string
	CustomerID    string
	OrderAmount   decimal.Decimal
	PaymentStatus PaymentStatus
	CustomerTier  string
	Lines         []Line
}

// ApplyRequest holds the input for applying a discount to an order.
type ApplyRequest struct {
	OrderID       string
	DiscountID    string
	CustomerID    string
	OrderAmount   decimal.Decimal
	PaymentStatus PaymentStatus
	CustomerTier  string
	Lines         []Line
}

// ApplyResult holds the output of a successful application.
type ApplyResult struct {
	ApplicationID  string
	DiscountAmount decimal.Decimal
	FinalAmount    decimal.Decimal
}

type options struct {
	now    func() time.Time
	loc    *time.Location
	meter  metric.MeterProvider
	tracer trace.TracerProvider
}

// Option configures a Service.
type Option func(*options)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLocation sets the location whose calendar date is used for validity
// windows. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.loc = loc }
}

// WithMeterProvider sets the meter provider. Defaults to the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meter = mp }
}

// WithTracerProvider sets the tracer provider. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracer = tp }
}

// Service encapsulates discount administration, eligibility evaluation and
// application.
type Service struct {
	store Store
	now   func() time.Time
	loc   *time.Location

	tracer   trace.Tracer
	applied  metric.Int64Counter
	rejected metric.Int64Counter
}

// NewService creates a Service backed by store.
func NewService(store Store, opts ...Option) (*Service, error) {
	o := options{
		now: time.Now,
		loc: time.UTC,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.meter == nil {
		o.meter = otel.GetMeterProvider()
	}
	if o.tracer == nil {
		o.tracer = otel.GetTracerProvider()
	}

	meter := o.meter.Meter(instrumentationName)
	applied, err := meter.Int64Counter("discount.applications",
		metric.WithDescription("Discount applications recorded"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create applications counter")
	}
	rejected, err := meter.Int64Counter("discount.rejections",
		metric.WithDescription("Discount applications rejected"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create rejections counter")
	}

	return &Service{
		store:    store,
		now:      o.now,
		loc:      o.loc,
		tracer:   o.tracer.Tracer(instrumentationName),
		applied:  applied,
		rejected: rejected,
	}, nil
}

func (s *Service) clock() time.Time {
	return s.now().In(s.loc)
}

// Get returns the discount with the given id.
func (s *Service) Get(ctx context.Context, id string) (*Discount, error) {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get discount %s", id)
	}
	return d, nil
}

// List returns the discounts matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Discount, error) {
	items, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "list discounts")
	}
	return items, nil
}

// Create validates d, assigns an id and persists it.
func (s *Service) Create(ctx context.Context, d Discount) (*Discount, error) {
	if err := Validate(&d); err != nil {
		return nil, err
	}

	now := s.now()
	d.ID = uuid.NewString()
	d.CreatedAt = now
	d.UpdatedAt = now

	if err := s.store.Create(ctx, &d); err != nil {
		return nil, errors.Wrap(err, "create discount")
	}

	zctx.From(ctx).Info("Discount created",
		zap.String("discount_id", d.ID),
		zap.String("kind", string(d.Kind)),
	)
	return &d, nil
}

// Update validates d and replaces the stored definition with the same id.
func (s *Service) Update(ctx context.Context, d Discount) (*Discount, error) {
	if err := Validate(&d); err != nil {
		return nil, err
	}

	existing, err := s.store.Get(ctx, d.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "get discount %s", d.ID)
	}
	d.CreatedAt = existing.CreatedAt
	d.UpdatedAt = s.now()

	if err := s.store.Update(ctx, &d); err != nil {
		return nil, errors.Wrapf(err, "update discount %s", d.ID)
	}
	return &d, nil
}

// Delete removes the discount definition. Recorded applications are kept.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return errors.Wrapf(err, "delete discount %s", id)
	}
	zctx.From(ctx).Info("Discount deleted", zap.String("discount_id", id))
	return nil
}

// Evaluate checks whether the discount can be used for the described order.
func (s *Service) Evaluate(ctx context.Context, req EvaluateRequest) (*Evaluation, error) {
	ctx, span := s.tracer.Start(ctx, "discount.Evaluate",
		trace.WithAttributes(attribute.String("discount.id", req.DiscountID)),
	)
	defer span.End()

	if err := checkOrderAmount(req.OrderAmount); err != nil {
		return nil, err
	}

	d, err := s.store.Get(ctx, req.DiscountID)
	if err != nil {
		return nil, errors.Wrapf(err, "get discount %s", req.DiscountID)
	}

	count, err := s.store.CountApplications(ctx, d.ID)
	if err != nil {
		return nil, errors.Wrap(err, "count applications")
	}

	usage := 0
	if req.CustomerID != "" {
		u, err := s.store.GetCustomerUsage(ctx, req.CustomerID, d.ID)
		if err != nil {
			return nil, errors.Wrap(err, "get customer usage")
		}
		if u != nil {
			usage = u.Count
		}
	}

	ev := Evaluate(d, EvaluationInput{
		OrderAmount:      req.OrderAmount,
		PaymentStatus:    req.PaymentStatus,
		ApplicationCount: count,
		CustomerUsage:    usage,
		CustomerTier:     req.CustomerTier,
		Lines:            req.Lines,
	}, s.clock())
	span.SetAttributes(attribute.Bool("discount.eligible", ev.Eligible))
	return &ev, nil
}

// Calculate returns the discount amount the discount would take from
// orderAmount, without checking eligibility.
func (s *Service) Calculate(ctx context.Context, discountID string, orderAmount decimal.Decimal) (decimal.Decimal, error) {
	if err := checkOrderAmount(orderAmount); err != nil {
		return decimal.Zero, err
	}
	d, err := s.store.Get(ctx, discountID)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "get discount %s", discountID)
	}
	return Calculate(d, orderAmount), nil
}

// Apply evaluates the discount under a storage lock and, when eligible,
// records the application and increments the customer's usage as one unit.
// On any error nothing is written.
func (s *Service) Apply(ctx context.Context, req ApplyRequest) (*ApplyResult, error) {
	ctx, span := s.tracer.Start(ctx, "discount.Apply",
		trace.WithAttributes(
			attribute.String("discount.id", req.DiscountID),
			attribute.String("order.id", req.OrderID),
		),
	)
	defer span.End()

	if err := checkOrderAmount(req.OrderAmount); err != nil {
		return nil, err
	}

	var (
		result ApplyResult
		kind   Kind
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx Ledger) error {
		d, err := tx.LockDiscount(ctx, req.DiscountID)
		if err != nil {
			return errors.Wrapf(err, "lock discount %s", req.DiscountID)
		}
		kind = d.Kind

		// Checked before eligibility: a second bottle return is a conflict
		// whatever the state of this discount.
		if d.Kind == KindBottleReturn {
			has, err := tx.HasBottleReturnApplication(ctx, req.OrderID)
			if err != nil {
				return errors.Wrap(err, "check bottle return application")
			}
			if has {
				return ErrDuplicateBottleReturn
			}
		}

		count, err := tx.CountApplications(ctx, d.ID)
		if err != nil {
			return errors.Wrap(err, "count applications")
		}
		usage, err := tx.GetCustomerUsage(ctx, req.CustomerID, d.ID)
		if err != nil {
			return errors.Wrap(err, "get customer usage")
		}
		used := 0
		if usage != nil {
			used = usage.Count
		}

		now := s.clock()
		ev := Evaluate(d, EvaluationInput{
			OrderAmount:      req.OrderAmount,
			PaymentStatus:    req.PaymentStatus,
			ApplicationCount: count,
			CustomerUsage:    used,
			CustomerTier:     req.CustomerTier,
			Lines:            req.Lines,
		}, now)
		if !ev.Eligible {
			return &IneligibleError{DiscountID: d.ID, Reasons: ev.Reasons}
		}

		applied, err := tx.HasApplication(ctx, req.OrderID, d.ID)
		if err != nil {
			return errors.Wrap(err, "check existing application")
		}
		if applied {
			return ErrAlreadyApplied
		}

		amount := Calculate(d, req.OrderAmount)
		app := &Application{
			ID:             uuid.NewString(),
			OrderID:        req.OrderID,
			DiscountID:     d.ID,
			CustomerID:     req.CustomerID,
			Kind:           d.Kind,
			OriginalAmount: req.OrderAmount,
			AmountApplied:  amount,
			FinalAmount:    req.OrderAmount.Sub(amount),
			AppliedAt:      now,
		}
		if d.Kind == KindPercentage {
			app.PercentageApplied = decimal.NewNullDecimal(d.Value)
		}

		if err := tx.RecordApplication(ctx, app); err != nil {
			return errors.Wrap(err, "record application")
		}
		if err := tx.UpsertCustomerUsage(ctx, req.CustomerID, d.ID, now); err != nil {
			return errors.Wrap(err, "upsert customer usage")
		}

		result = ApplyResult{
			ApplicationID:  app.ID,
			DiscountAmount: app.AmountApplied,
			FinalAmount:    app.FinalAmount,
		}
		return nil
	})

	lg := zctx.From(ctx).With(
		zap.String("order_id", req.OrderID),
		zap.String("discount_id", req.DiscountID),
		zap.String("customer_id", req.CustomerID),
	)
	if err != nil {
		if outcome, ok := rejectionOutcome(err); ok {
			s.rejected.Add(ctx, 1, metric.WithAttributes(
				attribute.String("kind", string(kind)),
				attribute.String("outcome", outcome),
			))
			lg.Debug("Discount rejected", zap.String("outcome", outcome), zap.Error(err))
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, "apply failed")
		}
		return nil, errors.Wrap(err, "apply discount")
	}

	s.applied.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
	lg.Info("Discount applied",
		zap.String("application_id", result.ApplicationID),
		zap.String("amount", result.DiscountAmount.String()),
	)
	return &result, nil
}

// Applications returns every discount applied to the order.
func (s *Service) Applications(ctx context.Context, orderID string) ([]Application, error) {
	apps, err := s.store.ListApplications(ctx, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "list applications for order %s", orderID)
	}
	return apps, nil
}

// rejectionOutcome classifies business rule rejections for metrics.
func rejectionOutcome(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrIneligible):
		return "ineligible", true
	case errors.Is(err, ErrDuplicateBottleReturn):
		return "duplicate_bottle_return", true
	case errors.Is(err, ErrAlreadyApplied):
		return "already_applied", true
	case errors.Is(err, ErrNotFound):
		return "not_found", true
	default:
		return "", false
	}
}
