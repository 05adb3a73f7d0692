// Package memory provides an in-process discount.Store used for local runs
// and tests.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/zaincode21/uruti-discounts/internal/domain/discount"
)

var (
	_ discount.Store  = (*Store)(nil)
	_ discount.Ledger = (*ledger)(nil)
)

type usageKey struct {
	customerID string
	discountID string
}

// Store keeps discounts, applications and usage in maps. Atomic holds an
// exclusive lock for the duration of fn, so applies are fully serialised.
type Store struct {
	mu        sync.RWMutex
	discounts map[string]discount.Discount
	apps      []discount.Application
	usage     map[usageKey]discount.Usage
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		discounts: make(map[string]discount.Discount),
		usage:     make(map[usageKey]discount.Usage),
	}
}

// Get returns a copy of the discount with id, or discount.ErrNotFound.
func (s *Store) Get(_ context.Context, id string) (*discount.Discount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(id)
}

func (s *Store) get(id string) (*discount.Discount, error) {
	d, ok := s.discounts[id]
	if !ok {
		return nil, discount.ErrNotFound
	}
	out := cloneDiscount(d)
	return &out, nil
}

// List returns copies of the discounts matching filter, newest first.
func (s *Store) List(_ context.Context, filter discount.ListFilter) ([]discount.Discount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]discount.Discount, 0, len(s.discounts))
	for _, d := range s.discounts {
		if filter.Active != nil && d.Active != *filter.Active {
			continue
		}
		if filter.Kind != "" && d.Kind != filter.Kind {
			continue
		}
		out = append(out, cloneDiscount(d))
	}
	slices.SortFunc(out, func(a, b discount.Discount) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// Create stores a copy of d.
func (s *Store) Create(_ context.Context, d *discount.Discount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discounts[d.ID] = cloneDiscount(*d)
	return nil
}

// Update replaces the stored definition with the same id.
func (s *Store) Update(_ context.Context, d *discount.Discount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.discounts[d.ID]; !ok {
		return discount.ErrNotFound
	}
	s.discounts[d.ID] = cloneDiscount(*d)
	return nil
}

// Delete removes the definition and its usage rows. Applications are kept.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.discounts[id]; !ok {
		return discount.ErrNotFound
	}
	delete(s.discounts, id)
	for k := range s.usage {
		if k.discountID == id {
			delete(s.usage, k)
		}
	}
	return nil
}

// CountApplications returns how many times the discount has been applied.
func (s *Store) CountApplications(_ context.Context, discountID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countApplications(discountID), nil
}

func (s *Store) countApplications(discountID string) int {
	n := 0
	for _, a := range s.apps {
		if a.DiscountID == discountID {
			n++
		}
	}
	return n
}

// GetCustomerUsage returns the customer's usage row, or nil when there is none.
func (s *Store) GetCustomerUsage(_ context.Context, customerID, discountID string) (*discount.Usage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.customerUsage(customerID, discountID), nil
}

func (s *Store) customerUsage(customerID, discountID string) *discount.Usage {
	u, ok := s.usage[usageKey{customerID, discountID}]
	if !ok {
		return nil
	}
	return &u
}

// ListApplications returns the applications recorded for orderID.
func (s *Store) ListApplications(_ context.Context, orderID string) ([]discount.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []discount.Application
	for _, a := range s.apps {
		if a.OrderID == orderID {
			out = append(out, a)
		}
	}
	return out, nil
}

// Atomic runs fn with writes staged in a ledger. Staged writes are published
// only when fn returns nil.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx discount.Ledger) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &ledger{store: s}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.apps = append(s.apps, tx.apps...)
	for _, inc := range tx.increments {
		u, ok := s.usage[inc.key]
		if !ok {
			u = discount.Usage{CustomerID: inc.key.customerID, DiscountID: inc.key.discountID}
		}
		u.Count++
		u.LastUsedAt = inc.at
		s.usage[inc.key] = u
	}
	return nil
}

type increment struct {
	key usageKey
	at  time.Time
}

// ledger reads through to the store and sees its own staged writes. The
// store lock is held by Atomic.
type ledger struct {
	store      *Store
	apps       []discount.Application
	increments []increment
}

func (l *ledger) LockDiscount(_ context.Context, id string) (*discount.Discount, error) {
	return l.store.get(id)
}

func (l *ledger) CountApplications(_ context.Context, discountID string) (int, error) {
	n := l.store.countApplications(discountID)
	for _, a := range l.apps {
		if a.DiscountID == discountID {
			n++
		}
	}
	return n, nil
}

func (l *ledger) GetCustomerUsage(_ context.Context, customerID, discountID string) (*discount.Usage, error) {
	key := usageKey{customerID, discountID}
	u := l.store.customerUsage(customerID, discountID)
	for _, inc := range l.increments {
		if inc.key != key {
			continue
		}
		if u == nil {
			u = &discount.Usage{CustomerID: customerID, DiscountID: discountID}
		}
		u.Count++
		u.LastUsedAt = inc.at
	}
	return u, nil
}

func (l *ledger) HasBottleReturnApplication(_ context.Context, orderID string) (bool, error) {
	return l.any(func(a discount.Application) bool {
		return a.OrderID == orderID && a.Kind == discount.KindBottleReturn
	}), nil
}

func (l *ledger) HasApplication(_ context.Context, orderID, discountID string) (bool, error) {
	return l.any(func(a discount.Application) bool {
		return a.OrderID == orderID && a.DiscountID == discountID
	}), nil
}

func (l *ledger) any(match func(discount.Application) bool) bool {
	return slices.ContainsFunc(l.store.apps, match) || slices.ContainsFunc(l.apps, match)
}

func (l *ledger) RecordApplication(_ context.Context, app *discount.Application) error {
	if app.Kind == discount.KindBottleReturn && l.any(func(a discount.Application) bool {
		return a.OrderID == app.OrderID && a.Kind == discount.KindBottleReturn
	}) {
		return discount.ErrDuplicateBottleReturn
	}
	if l.any(func(a discount.Application) bool {
		return a.OrderID == app.OrderID && a.DiscountID == app.DiscountID
	}) {
		return discount.ErrAlreadyApplied
	}
	l.apps = append(l.apps, *app)
	return nil
}

func (l *ledger) UpsertCustomerUsage(_ context.Context, customerID, discountID string, at time.Time) error {
	l.increments = append(l.increments, increment{key: usageKey{customerID, discountID}, at: at})
	return nil
}

func cloneDiscount(d discount.Discount) discount.Discount {
	d.ProductTypes = slices.Clone(d.ProductTypes)
	d.CategoryIDs = slices.Clone(d.CategoryIDs)
	d.CustomerTiers = slices.Clone(d.CustomerTiers)
	if d.StartDate != nil {
		v := *d.StartDate
		d.StartDate = &v
	}
	if d.EndDate != nil {
		v := *d.EndDate
		d.EndDate = &v
	}
	if d.UsageLimit != nil {
		v := *d.UsageLimit
		d.UsageLimit = &v
	}
	if d.CustomerUsageLimit != nil {
		v := *d.CustomerUsageLimit
		d.CustomerUsageLimit = &v
	}
	return d
}
