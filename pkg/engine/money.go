package engine

import "github.com/shopspring/decimal"

// Price and Quantity are fixed/arbitrary-precision decimals: prices key
// price levels by equality, and fills must sum exactly to an order's
// quantity to drive the Closed transition, so binary floating point is
// unsuitable for either.
type (
	Price    = decimal.Decimal
	Quantity = decimal.Decimal
)

// DefaultSlippageBound is the default maximum deviation, expressed as a
// fraction (0.05 == 5%), a market order's discovered price may differ from
// the same-side reference price before it is rejected.
var DefaultSlippageBound = decimal.NewFromFloat(0.05)

func isPositive(d decimal.Decimal) bool {
	return d.Sign() > 0
}

func isNegative(d decimal.Decimal) bool {
	return d.Sign() < 0
}

func minDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// deviation returns |a-b| / b. Callers must ensure b is non-zero.
func deviation(a, b decimal.Decimal) decimal.Decimal {
	return a.Sub(b).Abs().Div(b)
}
