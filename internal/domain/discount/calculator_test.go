package discount

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name     string
		discount Discount
		amount   string
		want     string
	}{
		{
			name:     "percentage",
			discount: Discount{Kind: KindPercentage, Value: dec("10")},
			amount:   "1000",
			want:     "100",
		},
		{
			name:     "percentage rounds to cents",
			discount: Discount{Kind: KindPercentage, Value: dec("15")},
			amount:   "10.33",
			want:     "1.55",
		},
		{
			name:     "full percentage equals order amount",
			discount: Discount{Kind: KindPercentage, Value: dec("100")},
			amount:   "49.99",
			want:     "49.99",
		},
		{
			name:     "fixed below order amount",
			discount: Discount{Kind: KindFixedAmount, Value: dec("500")},
			amount:   "3000",
			want:     "500",
		},
		{
			name:     "fixed capped to order amount",
			discount: Discount{Kind: KindFixedAmount, Value: dec("5000")},
			amount:   "3000",
			want:     "3000",
		},
		{
			name:     "bottle return tier",
			discount: Discount{Kind: KindBottleReturn, BottleReturnCount: 3},
			amount:   "10000",
			want:     "3000",
		},
		{
			name:     "bottle return capped to order amount",
			discount: Discount{Kind: KindBottleReturn, BottleReturnCount: 2},
			amount:   "500",
			want:     "500",
		},
		{
			name:     "bottle return count outside table",
			discount: Discount{Kind: KindBottleReturn, BottleReturnCount: 5},
			amount:   "10000",
			want:     "0",
		},
		{
			name:     "bottle return zero count",
			discount: Discount{Kind: KindBottleReturn},
			amount:   "10000",
			want:     "0",
		},
		{
			name: "max discount cap",
			discount: Discount{
				Kind:        KindPercentage,
				Value:       dec("20"),
				MaxDiscount: decimal.NewNullDecimal(dec("50")),
			},
			amount: "1000",
			want:   "50",
		},
		{
			name: "max discount above raw amount",
			discount: Discount{
				Kind:        KindFixedAmount,
				Value:       dec("30"),
				MaxDiscount: decimal.NewNullDecimal(dec("50")),
			},
			amount: "1000",
			want:   "30",
		},
		{
			name:     "zero order amount",
			discount: Discount{Kind: KindFixedAmount, Value: dec("10")},
			amount:   "0",
			want:     "0",
		},
		{
			name:     "unknown kind",
			discount: Discount{Kind: "mystery", Value: dec("10")},
			amount:   "100",
			want:     "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(&tt.discount, dec(tt.amount))
			assert.True(t, dec(tt.want).Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestCalculate_Bounds(t *testing.T) {
	discounts := []Discount{
		{Kind: KindPercentage, Value: dec("0")},
		{Kind: KindPercentage, Value: dec("33.333")},
		{Kind: KindPercentage, Value: dec("100")},
		{Kind: KindFixedAmount, Value: dec("0.01")},
		{Kind: KindFixedAmount, Value: dec("99999")},
		{Kind: KindBottleReturn, BottleReturnCount: 1},
		{Kind: KindBottleReturn, BottleReturnCount: 4},
		{Kind: KindFixedAmount, Value: dec("10"), MaxDiscount: decimal.NewNullDecimal(dec("0"))},
	}
	amounts := []string{"0", "0.01", "0.99", "1", "12.34", "999.995", "1000", "250000"}

	for _, d := range discounts {
		for _, a := range amounts {
			amount := dec(a)
			got := Calculate(&d, amount)
			assert.False(t, got.IsNegative(), "%s/%s: negative result %s", d.Kind, a, got)
			assert.True(t, got.LessThanOrEqual(amount), "%s/%s: %s exceeds order amount", d.Kind, a, got)
		}
	}
}

func TestBottleReturnTier(t *testing.T) {
	for count, want := range map[int]int64{1: 1000, 2: 2000, 3: 3000, 4: 4000} {
		got, ok := BottleReturnTier(count)
		assert.True(t, ok)
		assert.True(t, decimal.NewFromInt(want).Equal(got))
	}

	_, ok := BottleReturnTier(0)
	assert.False(t, ok)
	_, ok = BottleReturnTier(5)
	assert.False(t, ok)
}
