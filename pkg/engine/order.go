package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// dayExpiry is the default lifetime of a DAY order from creation.
const dayExpiry = 24 * time.Hour

// CreateOrderRequest is the input to Engine.Submit.
type CreateOrderRequest struct {
	ItemID      ItemID
	UserID      UserID
	Side        OrderSide
	Type        OrderType
	Price       Price
	Quantity    Quantity
	TimeInForce TimeInForce
}

// Order is the engine's canonical record of one submission: identity fields
// are fixed at creation, execution fields mutate as fills and cancellation
// occur.
type Order struct {
	ID          OrderID
	ItemID      ItemID
	UserID      UserID
	Side        OrderSide
	Type        OrderType
	TimeInForce TimeInForce

	Price          Price
	Quantity       Quantity
	QuantityFilled Quantity

	Status OrderStatus

	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt *time.Time
}

func newOrder(id OrderID, req CreateOrderRequest, now time.Time) *Order {
	o := &Order{
		ID:             id,
		ItemID:         req.ItemID,
		UserID:         req.UserID,
		Side:           req.Side,
		Type:           req.Type,
		TimeInForce:    req.TimeInForce,
		Price:          req.Price,
		Quantity:       req.Quantity,
		QuantityFilled: decimal.Zero,
		Status:         Open,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if req.TimeInForce.HasExpiry() {
		var exp time.Time
		if req.TimeInForce == DAY {
			exp = now.Add(dayExpiry)
		} else {
			exp = now
		}
		o.ExpiresAt = &exp
	}

	return o
}

// Remaining returns the outstanding, unfilled quantity.
func (o *Order) Remaining() Quantity {
	return o.Quantity.Sub(o.QuantityFilled)
}

// IsTerminal reports whether the order can no longer be filled or mutated.
func (o *Order) IsTerminal() bool {
	return o.Status.IsTerminal()
}

// IsResting reports whether the order currently belongs on the ladder.
func (o *Order) IsResting() bool {
	return o.Status == Open || o.Status == PartiallyFilled
}

// applyFill advances QuantityFilled by amount and recomputes Status. amount
// must be > 0 and must not push QuantityFilled past Quantity.
func (o *Order) applyFill(amount Quantity, now time.Time) {
	o.QuantityFilled = o.QuantityFilled.Add(amount)
	o.recomputeStatus()
	o.UpdatedAt = now
}

func (o *Order) recomputeStatus() {
	switch {
	case o.QuantityFilled.Equal(o.Quantity):
		o.Status = Closed
	case isPositive(o.QuantityFilled):
		o.Status = PartiallyFilled
	default:
		o.Status = Open
	}
}

// cancel transitions the order to Cancelled if it is not already terminal.
// Returns false if the order was already terminal (a no-op).
func (o *Order) cancel(now time.Time) bool {
	if o.IsTerminal() {
		return false
	}
	o.Status = Cancelled
	o.UpdatedAt = now
	return true
}
