package discount

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// bottleReturnTiers maps a returned bottle count to its fixed discount amount.
var bottleReturnTiers = map[int]decimal.Decimal{
	1: decimal.NewFromInt(1000),
	2: decimal.NewFromInt(2000),
	3: decimal.NewFromInt(3000),
	4: decimal.NewFromInt(4000),
}

// BottleReturnTier returns the tier amount for count and whether the count is
// part of the table.
func BottleReturnTier(count int) (decimal.Decimal, bool) {
	amount, ok := bottleReturnTiers[count]
	return amount, ok
}

// Calculate returns the discount amount for d against orderAmount. The result
// is never negative and never exceeds orderAmount. Eligibility is not checked.
func Calculate(d *Discount, orderAmount decimal.Decimal) decimal.Decimal {
	if !orderAmount.IsPositive() {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch d.Kind {
	case KindPercentage:
		amount = orderAmount.Mul(d.Value).Div(hundred)
	case KindFixedAmount:
		amount = decimal.Min(d.Value, orderAmount)
	case KindBottleReturn:
		tier, ok := BottleReturnTier(d.BottleReturnCount)
		if !ok {
			return decimal.Zero
		}
		amount = decimal.Min(tier, orderAmount)
	default:
		return decimal.Zero
	}

	if d.MaxDiscount.Valid && amount.GreaterThan(d.MaxDiscount.Decimal) {
		amount = d.MaxDiscount.Decimal
	}

	return clamp(amount.Round(2), orderAmount)
}

// clamp bounds d to [0, upper].
func clamp(d, upper decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(upper) {
		return upper
	}
	return d
}
