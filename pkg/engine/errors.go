package engine

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Validation and no-liquidity errors carry exact, user-visible messages.
var (
	ErrNegativePrice       = errors.New("Price cannot be negative")
	ErrNonPositiveQuantity = errors.New("Quantity must be greater than zero")
	ErrNoLiquidity         = errors.New("Market order cannot be placed without any existing orders to determine price")
)

// SlippageError is returned when a market order's discovered price deviates
// from the same-side reference price by more than the engine's configured
// bound.
type SlippageError struct {
	Reference  decimal.Decimal
	Discovered decimal.Decimal
	Deviation  decimal.Decimal
	Bound      decimal.Decimal
}

func (e *SlippageError) Error() string {
	pct := e.Bound.Mul(decimal.NewFromInt(100))
	return fmt.Sprintf(
		"Market order price cannot be more than %s%% away from the current market price. Reference price: %s, discovered price: %s",
		pct.String(), e.Reference.String(), e.Discovered.String(),
	)
}
