package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stinkymonkeyph/oxide-arbiter/pkg/xlog"
)

var logger = xlog.GetLogger()

// Engine is the matching core: validation, market-price discovery, the
// staged match loop, time-in-force commitment, and the canonical registry,
// ladder and trade log. It is single-threaded and cooperative — every
// public method runs to completion before the next begins. Callers needing
// concurrent access must serialize calls themselves.
type Engine struct {
	clock Clock
	ids   IDGenerator

	registry *Registry
	ladder   *Ladder
	trades   []Trade

	slippageBound decimal.Decimal
}

// New returns an Engine using the default 5% slippage bound.
func New(clock Clock, ids IDGenerator) *Engine {
	return NewWithSlippageBound(clock, ids, DefaultSlippageBound)
}

// NewWithSlippageBound returns an Engine whose market-order slippage guard
// rejects a discovered price deviating from the same-side reference by more
// than bound (a fraction, e.g. 0.05 for 5%).
func NewWithSlippageBound(clock Clock, ids IDGenerator, bound decimal.Decimal) *Engine {
	return &Engine{
		clock:         clock,
		ids:           ids,
		registry:      newRegistry(),
		ladder:        newLadder(),
		slippageBound: bound,
	}
}

// Submit validates, matches and (subject to time-in-force) commits a new
// order, returning a snapshot of its resulting state.
func (e *Engine) Submit(req CreateOrderRequest) (Order, error) {
	if isNegative(req.Price) {
		logger.Warningf("submit rejected item:%s side:%s reason:negative price", req.ItemID, req.Side)
		return Order{}, ErrNegativePrice
	}
	if !isPositive(req.Quantity) {
		logger.Warningf("submit rejected item:%s side:%s reason:non-positive quantity", req.ItemID, req.Side)
		return Order{}, ErrNonPositiveQuantity
	}

	if req.Type == Market {
		resolved, err := e.resolveMarketPrice(req)
		if err != nil {
			return Order{}, err
		}
		req.Price = resolved
	}

	now := e.clock.Now()
	id := e.ids.NewOrderID()
	taker := newOrder(id, req, now)

	stagedFills, stagedTrades, toRemove := e.matchTaker(taker, now)
	takerFilled := sumFills(stagedFills)

	if req.TimeInForce == FOK && takerFilled.LessThan(taker.Quantity) {
		taker.Status = Cancelled
		taker.UpdatedAt = now
		if err := e.registry.Insert(taker); err != nil {
			logger.Errorf("submit FOK insert failed id:%s err:%s", taker.ID, err)
			return Order{}, err
		}
		logger.Infof("submit FOK rolled back id:%s item:%s requested:%s available:%s", taker.ID, taker.ItemID, taker.Quantity, takerFilled)
		return *taker, nil
	}

	e.commit(taker, stagedFills, stagedTrades, toRemove, now)

	logger.Infof("submit committed id:%s item:%s side:%s type:%s tif:%s price:%s qty:%s filled:%s status:%s",
		taker.ID, taker.ItemID, taker.Side, taker.Type, taker.TimeInForce, taker.Price, taker.Quantity, taker.QuantityFilled, taker.Status)

	return *taker, nil
}

// resolveMarketPrice discovers the incoming market order's execution price
// from the opposing book's best price, and guards against excessive
// slippage from the same-side reference.
func (e *Engine) resolveMarketPrice(req CreateOrderRequest) (Price, error) {
	bestOpposing, ok := e.ladder.Best(req.ItemID, Opposite(req.Side))
	if !ok {
		logger.Warningf("market order rejected item:%s side:%s reason:no liquidity", req.ItemID, req.Side)
		return Price{}, ErrNoLiquidity
	}

	if ref, ok := e.ladder.Best(req.ItemID, req.Side); ok && !(ref.IsZero() && bestOpposing.IsZero()) {
		// Any non-zero discovered price is an unbounded deviation from a
		// zero reference, so that case is rejected without dividing by zero.
		var dev decimal.Decimal
		exceeded := ref.IsZero()
		if !exceeded {
			dev = deviation(bestOpposing, ref)
			exceeded = dev.GreaterThan(e.slippageBound)
		}
		if exceeded {
			err := &SlippageError{Reference: ref, Discovered: bestOpposing, Deviation: dev, Bound: e.slippageBound}
			logger.Warningf("market order rejected item:%s side:%s reason:%s", req.ItemID, req.Side, err)
			return Price{}, err
		}
	}

	return bestOpposing, nil
}

// staged identifies one ladder entry whose maker the match walk has fully
// consumed; commit removes it from the ladder.
type staged struct {
	itemID ItemID
	side   OrderSide
	price  Price
	id     OrderID
}

// matchTaker walks the opposing ladder best-price-first, staging fills and
// trades without mutating the registry or ladder, so a Fill-Or-Kill
// rejection can discard the whole walk by simply never calling commit.
func (e *Engine) matchTaker(taker *Order, now time.Time) (map[OrderID]Quantity, []Trade, []staged) {
	stagedFills := make(map[OrderID]Quantity)
	var stagedTrades []Trade
	var toRemove []staged

	remaining := taker.Quantity
	opposite := Opposite(taker.Side)

	for _, level := range e.ladder.Levels(taker.ItemID, opposite) {
		if !crosses(taker.Side, taker.Price, level.Price) {
			break
		}

		progressed := e.walkLevel(taker, level, &remaining, stagedFills, &stagedTrades, &toRemove, now)
		if !progressed {
			// Nothing usable at this level (only stale, terminal or
			// zero-outstanding entries): no progress is possible, so stop.
			break
		}
		if remaining.IsZero() {
			break
		}
	}

	return stagedFills, stagedTrades, toRemove
}

// crosses reports whether a taker of the given side and limit price may
// trade against a resting price. Equality crosses.
func crosses(side OrderSide, takerPrice, restingPrice Price) bool {
	if side == Buy {
		return restingPrice.LessThanOrEqual(takerPrice)
	}
	return restingPrice.GreaterThanOrEqual(takerPrice)
}

// walkLevel walks one price level's FIFO queue front-to-back without
// removing elements, staging fills against the taker until either the
// level or the taker's remaining quantity is exhausted. It returns whether
// any order at this level had outstanding quantity to offer.
func (e *Engine) walkLevel(
	taker *Order,
	level LadderLevel,
	remaining *Quantity,
	stagedFills map[OrderID]Quantity,
	stagedTrades *[]Trade,
	toRemove *[]staged,
	now time.Time,
) bool {
	progressed := false

	for elem := level.Queue.Front(); elem != nil && isPositive(*remaining); elem = elem.Next() {
		makerID := elem.Value.(OrderID)

		maker, ok := e.registry.getMut(makerID)
		if !ok {
			// Defensive only: every ladder entry should reference a live
			// registry record. Skip rather than panic.
			continue
		}

		makerOutstanding := maker.Remaining().Sub(stagedFills[makerID])
		if !isPositive(makerOutstanding) || maker.IsTerminal() {
			// Already fully staged, stale or terminal; advance past this head.
			continue
		}

		fill := minDecimal(*remaining, makerOutstanding)
		stagedFills[makerID] = stagedFills[makerID].Add(fill)
		*remaining = remaining.Sub(fill)
		progressed = true

		trade := Trade{
			ID:        e.ids.NewTradeID(),
			ItemID:    taker.ItemID,
			Quantity:  fill,
			Price:     level.Price,
			Timestamp: now,
		}
		if taker.Side == Buy {
			trade.BuyOrderID = taker.ID
			trade.SellOrderID = maker.ID
		} else {
			trade.BuyOrderID = maker.ID
			trade.SellOrderID = taker.ID
		}
		*stagedTrades = append(*stagedTrades, trade)

		if makerOutstanding.Sub(fill).IsZero() {
			*toRemove = append(*toRemove, staged{itemID: maker.ItemID, side: maker.Side, price: maker.Price, id: maker.ID})
		}
	}

	return progressed
}

func sumFills(fills map[OrderID]Quantity) Quantity {
	total := decimal.Zero
	for _, q := range fills {
		total = total.Add(q)
	}
	return total
}

// commit is the only place that mutates the Registry and Ladder: applies
// every staged maker fill, removes fully-filled makers from the ladder,
// appends staged trades to the trade log in staged order, installs the
// taker, and rests its remainder if its time-in-force allows it.
func (e *Engine) commit(taker *Order, stagedFills map[OrderID]Quantity, stagedTrades []Trade, toRemove []staged, now time.Time) {
	for makerID, fill := range stagedFills {
		maker, ok := e.registry.getMut(makerID)
		if !ok {
			continue
		}
		maker.applyFill(fill, now)
	}

	for _, r := range toRemove {
		e.ladder.Remove(r.itemID, r.side, r.price, r.id)
	}

	e.trades = append(e.trades, stagedTrades...)

	taker.QuantityFilled = sumFills(stagedFills)
	taker.recomputeStatus()
	taker.UpdatedAt = now

	switch taker.TimeInForce {
	case IOC:
		if isPositive(taker.QuantityFilled) && !taker.Status.IsTerminal() {
			taker.Status = Closed
		} else if !isPositive(taker.QuantityFilled) {
			taker.Status = Cancelled
		}
	}

	if err := e.registry.Insert(taker); err != nil {
		logger.Errorf("commit insert failed id:%s err:%s", taker.ID, err)
		return
	}

	if taker.TimeInForce.RestsRemainder() && taker.IsResting() {
		e.ladder.Enqueue(taker.ItemID, taker.Side, taker.Price, taker.ID)
	}
}

// Cancel transitions an order to Cancelled and removes it from the ladder.
// Returns false if the order doesn't exist or is already terminal.
func (e *Engine) Cancel(id OrderID) bool {
	order, ok := e.registry.getMut(id)
	if !ok {
		return false
	}

	wasResting := order.IsResting()
	price, side, item := order.Price, order.Side, order.ItemID

	if !order.cancel(e.clock.Now()) {
		return false
	}

	if wasResting {
		e.ladder.Remove(item, side, price, id)
	}

	logger.Infof("cancel id:%s item:%s", id, item)
	return true
}

// GetOrder returns a snapshot of the order, or false if it doesn't exist.
func (e *Engine) GetOrder(id OrderID) (Order, bool) {
	return e.registry.Get(id)
}

// GetOrders returns a snapshot of every order in the registry.
func (e *Engine) GetOrders() []Order {
	return e.registry.Iter()
}

// MarketPrice returns the current best price on the given item/side, or
// false if that side of the book is empty.
func (e *Engine) MarketPrice(item ItemID, side OrderSide) (Price, bool) {
	return e.ladder.Best(item, side)
}

// Trades returns the trade log in the order trades were committed.
func (e *Engine) Trades() []Trade {
	out := make([]Trade, len(e.trades))
	copy(out, e.trades)
	return out
}

// UpdateStatus administratively sets an order's status. Rejects (returns
// false) if the order doesn't exist or is already terminal; callers must
// respect the lifecycle state machine. Transitioning to a terminal status
// also removes the order from the ladder if it was resting, preserving the
// invariant that every ladder entry's registry record is Open or
// PartiallyFilled.
func (e *Engine) UpdateStatus(id OrderID, status OrderStatus) (Order, bool) {
	order, ok := e.registry.getMut(id)
	if !ok || order.IsTerminal() {
		return Order{}, false
	}

	wasResting := order.IsResting()
	order.Status = status
	order.UpdatedAt = e.clock.Now()

	if status.IsTerminal() && wasResting {
		e.ladder.Remove(order.ItemID, order.Side, order.Price, order.ID)
	}

	return *order, true
}

// UpdateQuantity mutates a resting order's total quantity. Rejects if the
// order doesn't exist, is terminal, or the new quantity would fall below
// what has already been filled.
func (e *Engine) UpdateQuantity(id OrderID, qty Quantity) (Order, bool) {
	order, ok := e.registry.getMut(id)
	if !ok || order.IsTerminal() || !isPositive(qty) || qty.LessThan(order.QuantityFilled) {
		return Order{}, false
	}

	order.Quantity = qty
	order.recomputeStatus()
	order.UpdatedAt = e.clock.Now()

	if order.Status == Closed {
		e.ladder.Remove(order.ItemID, order.Side, order.Price, order.ID)
	}

	return *order, true
}

// UpdatePrice mutates a resting order's price. If the order currently rests
// on the ladder, this internally cancels and re-enqueues it at the tail of
// the new price's queue — the ladder's price-level invariant can't be
// preserved by mutating price in place, so time priority is deliberately
// lost here.
func (e *Engine) UpdatePrice(id OrderID, price Price) (Order, bool) {
	if isNegative(price) {
		return Order{}, false
	}

	order, ok := e.registry.getMut(id)
	if !ok || order.IsTerminal() {
		return Order{}, false
	}

	wasResting := order.IsResting()
	if wasResting {
		e.ladder.Remove(order.ItemID, order.Side, order.Price, order.ID)
	}

	order.Price = price
	order.UpdatedAt = e.clock.Now()

	if wasResting {
		e.ladder.Enqueue(order.ItemID, order.Side, order.Price, order.ID)
	}

	return *order, true
}
