package engine

import "time"

// Trade is an immutable, append-only record of one fill between a buy and a
// sell order. Price always equals the resting (maker) order's price at
// match time.
type Trade struct {
	ID          TradeID
	BuyOrderID  OrderID
	SellOrderID OrderID
	ItemID      ItemID
	Quantity    Quantity
	Price       Price
	Timestamp   time.Time
}
