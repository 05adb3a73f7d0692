package discount

import "strings"

// Validate checks the definition rules of d and returns a
// *ValidationError listing every violation, or nil.
func Validate(d *Discount) error {
	var problems []string
	add := func(p string) { problems = append(problems, p) }

	if strings.TrimSpace(d.Name) == "" {
		add("name is required")
	}

	if !d.Kind.Valid() {
		add("kind must be one of percentage, fixed_amount, bottle_return")
	}
	if d.Value.IsNegative() {
		add("value must not be negative")
	}
	if !InRange(d.Value) {
		add("value is out of range")
	}
	if d.Kind == KindPercentage && d.Value.GreaterThan(hundred) {
		add("percentage value must not exceed 100")
	}
	if d.Kind == KindBottleReturn && d.BottleReturnCount < 0 {
		add("bottle_return_count must not be negative")
	}

	if d.MinPurchase.Valid && d.MinPurchase.Decimal.IsNegative() {
		add("min_purchase_amount must not be negative")
	}
	if d.MinPurchase.Valid && !InRange(d.MinPurchase.Decimal) {
		add("min_purchase_amount is out of range")
	}
	if d.MaxDiscount.Valid && d.MaxDiscount.Decimal.IsNegative() {
		add("max_discount_amount must not be negative")
	}
	if d.MaxDiscount.Valid && !InRange(d.MaxDiscount.Decimal) {
		add("max_discount_amount is out of range")
	}
	if d.UsageLimit != nil && *d.UsageLimit <= 0 {
		add("usage_limit must be positive")
	}
	if d.CustomerUsageLimit != nil && *d.CustomerUsageLimit <= 0 {
		add("customer_usage_limit must be positive")
	}

	if d.StartDate != nil && d.EndDate != nil && civilDate(*d.StartDate).After(civilDate(*d.EndDate)) {
		add("start_date must not be after end_date")
	}

	problems = append(problems, targetingProblems(d)...)

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// targetingProblems enforces that exactly one targeting list is set and that
// it is the list named by AppliesTo. Applying to everything is not allowed.
func targetingProblems(d *Discount) []string {
	switch d.AppliesTo {
	case TargetProductType:
		if len(d.ProductTypes) == 0 {
			return []string{"product_types is required when applies_to is product_type"}
		}
		if len(d.CategoryIDs) > 0 {
			return []string{"category_ids must be empty when applies_to is product_type"}
		}
	case TargetCategory:
		if len(d.CategoryIDs) == 0 {
			return []string{"category_ids is required when applies_to is category"}
		}
		if len(d.ProductTypes) > 0 {
			return []string{"product_types must be empty when applies_to is category"}
		}
	default:
		return []string{"applies_to must be product_type or category"}
	}
	return nil
}
