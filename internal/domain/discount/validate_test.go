package discount

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *Discount)
		problem string
	}{
		{"valid", func(d *Discount) {}, ""},
		{"missing name", func(d *Discount) { d.Name = "  " }, "name is required"},
		{"unknown kind", func(d *Discount) { d.Kind = "bogo" }, "kind must be one of percentage, fixed_amount, bottle_return"},
		{"negative value", func(d *Discount) { d.Value = dec("-1") }, "value must not be negative"},
		{"percentage above 100", func(d *Discount) { d.Value = dec("100.01") }, "percentage value must not exceed 100"},
		{"negative min purchase", func(d *Discount) {
			d.MinPurchase = decimal.NewNullDecimal(dec("-5"))
		}, "min_purchase_amount must not be negative"},
		{"negative max discount", func(d *Discount) {
			d.MaxDiscount = decimal.NewNullDecimal(dec("-5"))
		}, "max_discount_amount must not be negative"},
		{"value exponent too large", func(d *Discount) { d.Value = dec("1e20000000") }, "value is out of range"},
		{"value too precise", func(d *Discount) { d.Value = dec("0.0000001") }, "value is out of range"},
		{"min purchase out of range", func(d *Discount) {
			d.MinPurchase = decimal.NewNullDecimal(dec("1e16"))
		}, "min_purchase_amount is out of range"},
		{"max discount out of range", func(d *Discount) {
			d.MaxDiscount = decimal.NewNullDecimal(dec("1e-20000000"))
		}, "max_discount_amount is out of range"},
		{"zero usage limit", func(d *Discount) { d.UsageLimit = ptr(0) }, "usage_limit must be positive"},
		{"zero customer limit", func(d *Discount) { d.CustomerUsageLimit = ptr(0) }, "customer_usage_limit must be positive"},
		{"start after end", func(d *Discount) {
			d.StartDate = ptr(date(2026, 6, 2))
			d.EndDate = ptr(date(2026, 6, 1))
		}, "start_date must not be after end_date"},
		{"same start and end", func(d *Discount) {
			d.StartDate = ptr(date(2026, 6, 1))
			d.EndDate = ptr(date(2026, 6, 1))
		}, ""},
		{"applies_to unset", func(d *Discount) { d.AppliesTo = "" }, "applies_to must be product_type or category"},
		{"applies_to all", func(d *Discount) { d.AppliesTo = "all" }, "applies_to must be product_type or category"},
		{"product types empty", func(d *Discount) { d.ProductTypes = nil }, "product_types is required when applies_to is product_type"},
		{"both lists set", func(d *Discount) {
			d.CategoryIDs = []string{"cat-1"}
		}, "category_ids must be empty when applies_to is product_type"},
		{"category without ids", func(d *Discount) {
			d.AppliesTo = TargetCategory
			d.ProductTypes = nil
		}, "category_ids is required when applies_to is category"},
		{"category with product types", func(d *Discount) {
			d.AppliesTo = TargetCategory
			d.CategoryIDs = []string{"cat-1"}
		}, "product_types must be empty when applies_to is category"},
		{"negative bottle count", func(d *Discount) {
			d.Kind = KindBottleReturn
			d.Value = decimal.Zero
			d.BottleReturnCount = -1
		}, "bottle_return_count must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := activeDiscount()
			tt.mutate(&d)

			err := Validate(&d)
			if tt.problem == "" {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, ErrValidation)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Contains(t, vErr.Problems, tt.problem)
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	d := Discount{Kind: KindPercentage, Value: dec("150")}

	var vErr *ValidationError
	require.ErrorAs(t, Validate(&d), &vErr)
	assert.Equal(t, []string{
		"name is required",
		"percentage value must not exceed 100",
		"applies_to must be product_type or category",
	}, vErr.Problems)
}
