package discount

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Rejection reasons reported by Evaluate.
const (
	ReasonInactive             = "discount is not active"
	ReasonPartialPayment       = "discount cannot be used on partially paid orders"
	ReasonNotStarted           = "discount is not valid yet"
	ReasonExpired              = "discount has expired"
	ReasonUsageLimit           = "discount usage limit reached"
	ReasonCustomerUsageLimit   = "customer usage limit reached for this discount"
	ReasonCustomerTier         = "customer tier is not eligible for this discount"
	ReasonNoMatchingOrderLines = "no order line matches the discount targeting"
)

// EvaluationInput is the order and usage context a discount is checked against.
type EvaluationInput struct {
	OrderAmount   decimal.Decimal
	PaymentStatus PaymentStatus
	// ApplicationCount is the number of applications of the discount so far.
	ApplicationCount int
	// CustomerUsage is the customer's usage count of the discount so far.
	CustomerUsage int
	// CustomerTier and Lines are optional; targeting checks are skipped when
	// they are empty.
	CustomerTier string
	Lines        []Line
}

// Evaluation is the outcome of Evaluate.
type Evaluation struct {
	Eligible bool
	Reasons  []string
}

// Evaluate runs every eligibility check of d against in and collects all
// failures. The discount is eligible only when no check fails. Date windows
// are compared on the calendar date of now.
func Evaluate(d *Discount, in EvaluationInput, now time.Time) Evaluation {
	var reasons []string

	if !d.Active {
		reasons = append(reasons, ReasonInactive)
	}

	if in.PaymentStatus == PaymentPartial && !d.AllowPartialPayment {
		reasons = append(reasons, ReasonPartialPayment)
	}

	today := civilDate(now)
	if d.StartDate != nil && today.Before(civilDate(*d.StartDate)) {
		reasons = append(reasons, ReasonNotStarted)
	}
	if d.EndDate != nil && today.After(civilDate(*d.EndDate)) {
		reasons = append(reasons, ReasonExpired)
	}

	if d.MinPurchase.Valid && in.OrderAmount.LessThan(d.MinPurchase.Decimal) {
		reasons = append(reasons, fmt.Sprintf("order amount is below the minimum purchase of %s",
			d.MinPurchase.Decimal.StringFixed(2)))
	}

	if d.UsageLimit != nil && in.ApplicationCount >= *d.UsageLimit {
		reasons = append(reasons, ReasonUsageLimit)
	}
	if d.CustomerUsageLimit != nil && in.CustomerUsage >= *d.CustomerUsageLimit {
		reasons = append(reasons, ReasonCustomerUsageLimit)
	}

	if in.CustomerTier != "" && len(d.CustomerTiers) > 0 && !slices.Contains(d.CustomerTiers, in.CustomerTier) {
		reasons = append(reasons, ReasonCustomerTier)
	}
	if len(in.Lines) > 0 && !matchesAnyLine(d, in.Lines) {
		reasons = append(reasons, ReasonNoMatchingOrderLines)
	}

	return Evaluation{
		Eligible: len(reasons) == 0,
		Reasons:  reasons,
	}
}

// matchesAnyLine reports whether at least one line falls inside the targeting
// list selected by d.AppliesTo.
func matchesAnyLine(d *Discount, lines []Line) bool {
	for _, l := range lines {
		switch d.AppliesTo {
		case TargetProductType:
			if slices.Contains(d.ProductTypes, l.ProductType) {
				return true
			}
		case TargetCategory:
			if slices.Contains(d.CategoryIDs, l.CategoryID) {
				return true
			}
		}
	}
	return false
}

// civilDate drops the clock part of t, keeping its calendar date in t's own
// location.
func civilDate(t time.Time) time.Time {
	y, m, day := t.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}
