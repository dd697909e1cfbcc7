// Package engine implements the matching core: price-level ladders, the order
// registry, and the submit/match/commit pipeline for a price-time priority
// limit order book. It has no persistence, networking or concurrency wrapper
// of its own — callers inject a Clock and an IDGenerator and own any mutual
// exclusion around the Engine.
package engine

import "github.com/google/uuid"

// OrderID, ItemID, UserID and TradeID are opaque 128-bit identifiers,
// generated externally for each new entity.
type (
	OrderID uuid.UUID
	ItemID  uuid.UUID
	UserID  uuid.UUID
	TradeID uuid.UUID
)

func (id OrderID) String() string { return uuid.UUID(id).String() }
func (id ItemID) String() string  { return uuid.UUID(id).String() }
func (id UserID) String() string  { return uuid.UUID(id).String() }
func (id TradeID) String() string { return uuid.UUID(id).String() }

// IDGenerator mints fresh identifiers for new orders and trades. The engine
// never caches or reuses a value it returns.
type IDGenerator interface {
	NewOrderID() OrderID
	NewTradeID() TradeID
}

// UUIDGenerator is the production IDGenerator, backed by random (v4) UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewOrderID() OrderID { return OrderID(uuid.New()) }
func (UUIDGenerator) NewTradeID() TradeID { return TradeID(uuid.New()) }
