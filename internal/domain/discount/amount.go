package discount

import "github.com/shopspring/decimal"

// Monetary inputs are limited to this many fractional and integer digits.
// Rounding cost grows with the exponent, so it is bounded before any
// arithmetic.
const (
	maxAmountScale     = 6
	maxAmountIntDigits = 15
)

var amountCeiling = decimal.New(1, maxAmountIntDigits)

// InRange reports whether v has at most maxAmountScale fractional digits and
// its magnitude is below 10^maxAmountIntDigits. Sign is not checked.
func InRange(v decimal.Decimal) bool {
	exp := v.Exponent()
	if exp < -maxAmountScale || exp > maxAmountIntDigits {
		return false
	}
	return v.Abs().LessThan(amountCeiling)
}

// checkOrderAmount rejects negative and out of range order amounts before
// they reach Calculate.
func checkOrderAmount(v decimal.Decimal) error {
	if v.IsNegative() || !InRange(v) {
		return ErrInvalidAmount
	}
	return nil
}
