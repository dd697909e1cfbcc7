package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() (*Engine, *fakeClock) {
	clock := newFakeClock()
	return New(clock, UUIDGenerator{}), clock
}

func newItem() ItemID { return ItemID(uuid.New()) }
func newUser() UserID { return UserID(uuid.New()) }

func limitReq(item ItemID, user UserID, side OrderSide, price, qty int64, tif TimeInForce) CreateOrderRequest {
	return CreateOrderRequest{
		ItemID:      item,
		UserID:      user,
		Side:        side,
		Type:        Limit,
		Price:       decimal.NewFromInt(price),
		Quantity:    decimal.NewFromInt(qty),
		TimeInForce: tif,
	}
}

func TestExactCross(t *testing.T) {
	eng, _ := newTestEngine()
	item, user := newItem(), newUser()

	buy, err := eng.Submit(limitReq(item, user, Buy, 100, 50, GTC))
	require.NoError(t, err)

	sell, err := eng.Submit(limitReq(item, user, Sell, 100, 50, GTC))
	require.NoError(t, err)

	trades := eng.Trades()
	require.Len(t, trades, 1)
	assert.True(t, trades[0].Quantity.Equal(decimal.NewFromInt(50)))
	assert.True(t, trades[0].Price.Equal(decimal.NewFromInt(100)))

	gotBuy, _ := eng.GetOrder(buy.ID)
	gotSell, _ := eng.GetOrder(sell.ID)
	assert.Equal(t, Closed, gotBuy.Status)
	assert.Equal(t, Closed, gotSell.Status)

	_, ok := eng.MarketPrice(item, Buy)
	assert.False(t, ok)
	_, ok = eng.MarketPrice(item, Sell)
	assert.False(t, ok)
}

func TestPartialFillOnTaker(t *testing.T) {
	eng, _ := newTestEngine()
	item, user := newItem(), newUser()

	buy, err := eng.Submit(limitReq(item, user, Buy, 100, 30, GTC))
	require.NoError(t, err)

	sell, err := eng.Submit(limitReq(item, user, Sell, 100, 50, GTC))
	require.NoError(t, err)

	trades := eng.Trades()
	require.Len(t, trades, 1)
	assert.True(t, trades[0].Quantity.Equal(decimal.NewFromInt(30)))

	gotBuy, _ := eng.GetOrder(buy.ID)
	assert.Equal(t, Closed, gotBuy.Status)

	gotSell, _ := eng.GetOrder(sell.ID)
	assert.Equal(t, PartiallyFilled, gotSell.Status)
	assert.True(t, gotSell.QuantityFilled.Equal(decimal.NewFromInt(30)))
	assert.True(t, gotSell.Remaining().Equal(decimal.NewFromInt(20)))

	best, ok := eng.MarketPrice(item, Sell)
	require.True(t, ok)
	assert.True(t, best.Equal(decimal.NewFromInt(100)))
}

func TestNoCross(t *testing.T) {
	eng, _ := newTestEngine()
	item, user := newItem(), newUser()

	_, err := eng.Submit(limitReq(item, user, Buy, 99, 10, GTC))
	require.NoError(t, err)
	_, err = eng.Submit(limitReq(item, user, Sell, 101, 10, GTC))
	require.NoError(t, err)

	assert.Empty(t, eng.Trades())

	bestBuy, ok := eng.MarketPrice(item, Buy)
	require.True(t, ok)
	assert.True(t, bestBuy.Equal(decimal.NewFromInt(99)))

	bestSell, ok := eng.MarketPrice(item, Sell)
	require.True(t, ok)
	assert.True(t, bestSell.Equal(decimal.NewFromInt(101)))
}

func TestIOCPartial(t *testing.T) {
	eng, _ := newTestEngine()
	item, user := newItem(), newUser()

	_, err := eng.Submit(limitReq(item, user, Sell, 100, 20, GTC))
	require.NoError(t, err)

	buy, err := eng.Submit(limitReq(item, user, Buy, 100, 50, IOC))
	require.NoError(t, err)

	trades := eng.Trades()
	require.Len(t, trades, 1)
	assert.True(t, trades[0].Quantity.Equal(decimal.NewFromInt(20)))

	gotBuy, _ := eng.GetOrder(buy.ID)
	assert.Equal(t, Closed, gotBuy.Status)
	assert.True(t, gotBuy.QuantityFilled.Equal(decimal.NewFromInt(20)))
	assert.True(t, gotBuy.Quantity.Equal(decimal.NewFromInt(50)))

	_, ok := eng.MarketPrice(item, Sell)
	assert.False(t, ok)
}

func TestFOKRollback(t *testing.T) {
	eng, _ := newTestEngine()
	item, user := newItem(), newUser()

	sell, err := eng.Submit(limitReq(item, user, Sell, 100, 20, GTC))
	require.NoError(t, err)

	buy, err := eng.Submit(limitReq(item, user, Buy, 100, 50, FOK))
	require.NoError(t, err)

	assert.Empty(t, eng.Trades())

	gotBuy, _ := eng.GetOrder(buy.ID)
	assert.Equal(t, Cancelled, gotBuy.Status)
	assert.True(t, gotBuy.QuantityFilled.IsZero())

	gotSell, _ := eng.GetOrder(sell.ID)
	assert.Equal(t, Open, gotSell.Status)
	assert.True(t, gotSell.Remaining().Equal(decimal.NewFromInt(20)))
}

func TestMarketSlippageRejection(t *testing.T) {
	eng, _ := newTestEngine()
	item, user := newItem(), newUser()

	_, err := eng.Submit(limitReq(item, user, Sell, 100, 10, GTC))
	require.NoError(t, err)
	_, err = eng.Submit(limitReq(item, user, Buy, 80, 10, GTC))
	require.NoError(t, err)

	_, err = eng.Submit(CreateOrderRequest{
		ItemID: item, UserID: user, Side: Buy, Type: Market,
		Quantity: decimal.NewFromInt(5), TimeInForce: GTC,
	})
	require.Error(t, err)

	var slipErr *SlippageError
	require.ErrorAs(t, err, &slipErr)

	assert.Empty(t, eng.Trades())
}

func TestPriceTimePriority(t *testing.T) {
	eng, clock := newTestEngine()
	item, user := newItem(), newUser()

	sellA, err := eng.Submit(limitReq(item, user, Sell, 100, 10, GTC))
	require.NoError(t, err)

	clock.advance(time.Second)

	sellB, err := eng.Submit(limitReq(item, user, Sell, 100, 10, GTC))
	require.NoError(t, err)

	_, err = eng.Submit(limitReq(item, user, Buy, 100, 10, GTC))
	require.NoError(t, err)

	trades := eng.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, sellA.ID, trades[0].SellOrderID)

	gotA, _ := eng.GetOrder(sellA.ID)
	assert.Equal(t, Closed, gotA.Status)

	gotB, _ := eng.GetOrder(sellB.ID)
	assert.Equal(t, Open, gotB.Status)
	assert.True(t, gotB.Remaining().Equal(decimal.NewFromInt(10)))
}

func TestMarketOrderWithNoLiquidity(t *testing.T) {
	eng, _ := newTestEngine()
	item, user := newItem(), newUser()

	_, err := eng.Submit(CreateOrderRequest{
		ItemID: item, UserID: user, Side: Buy, Type: Market,
		Quantity: decimal.NewFromInt(5), TimeInForce: GTC,
	})
	assert.ErrorIs(t, err, ErrNoLiquidity)
}

func TestMarketOrderFirstSidedAdmitted(t *testing.T) {
	eng, _ := newTestEngine()
	item, user := newItem(), newUser()

	_, err := eng.Submit(limitReq(item, user, Sell, 100, 10, GTC))
	require.NoError(t, err)

	buy, err := eng.Submit(CreateOrderRequest{
		ItemID: item, UserID: user, Side: Buy, Type: Market,
		Quantity: decimal.NewFromInt(10), TimeInForce: GTC,
	})
	require.NoError(t, err)
	assert.Equal(t, Closed, buy.Status)
}

func TestSubmitValidation(t *testing.T) {
	eng, _ := newTestEngine()
	item, user := newItem(), newUser()

	_, err := eng.Submit(CreateOrderRequest{
		ItemID: item, UserID: user, Side: Buy, Type: Limit,
		Price: decimal.NewFromInt(-1), Quantity: decimal.NewFromInt(1), TimeInForce: GTC,
	})
	assert.ErrorIs(t, err, ErrNegativePrice)

	_, err = eng.Submit(CreateOrderRequest{
		ItemID: item, UserID: user, Side: Buy, Type: Limit,
		Price: decimal.NewFromInt(1), Quantity: decimal.Zero, TimeInForce: GTC,
	})
	assert.ErrorIs(t, err, ErrNonPositiveQuantity)
}

func TestCancelRestingOrder(t *testing.T) {
	eng, _ := newTestEngine()
	item, user := newItem(), newUser()

	order, err := eng.Submit(limitReq(item, user, Buy, 99, 10, GTC))
	require.NoError(t, err)

	ok := eng.Cancel(order.ID)
	assert.True(t, ok)

	got, _ := eng.GetOrder(order.ID)
	assert.Equal(t, Cancelled, got.Status)
	assert.Empty(t, eng.Trades())

	_, ok = eng.MarketPrice(item, Buy)
	assert.False(t, ok)

	assert.False(t, eng.Cancel(order.ID))
}

func TestUpdatePriceLosesTimePriority(t *testing.T) {
	eng, clock := newTestEngine()
	item, user := newItem(), newUser()

	a, err := eng.Submit(limitReq(item, user, Sell, 100, 10, GTC))
	require.NoError(t, err)
	clock.advance(time.Second)
	b, err := eng.Submit(limitReq(item, user, Sell, 100, 10, GTC))
	require.NoError(t, err)

	_, ok := eng.UpdatePrice(a.ID, decimal.NewFromInt(100))
	require.True(t, ok)

	_, err = eng.Submit(limitReq(item, user, Buy, 100, 10, GTC))
	require.NoError(t, err)

	trades := eng.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, b.ID, trades[0].SellOrderID)
}

func TestUpdateQuantityBelowFilledRejected(t *testing.T) {
	eng, _ := newTestEngine()
	item, user := newItem(), newUser()

	sell, err := eng.Submit(limitReq(item, user, Sell, 100, 50, GTC))
	require.NoError(t, err)
	_, err = eng.Submit(limitReq(item, user, Buy, 100, 30, GTC))
	require.NoError(t, err)

	got, _ := eng.GetOrder(sell.ID)
	require.True(t, got.QuantityFilled.Equal(decimal.NewFromInt(30)))

	_, ok := eng.UpdateQuantity(sell.ID, decimal.NewFromInt(10))
	assert.False(t, ok)

	_, ok = eng.UpdateQuantity(sell.ID, decimal.NewFromInt(40))
	assert.True(t, ok)
}

func TestUpdateStatusRemovesRestingOrderFromLadder(t *testing.T) {
	eng, _ := newTestEngine()
	item, user := newItem(), newUser()

	order, err := eng.Submit(limitReq(item, user, Buy, 99, 10, GTC))
	require.NoError(t, err)

	_, ok := eng.UpdateStatus(order.ID, Closed)
	require.True(t, ok)

	_, ok = eng.MarketPrice(item, Buy)
	assert.False(t, ok)
}

func TestRoundTripCancelNoCross(t *testing.T) {
	eng, _ := newTestEngine()
	item, user := newItem(), newUser()

	order, err := eng.Submit(limitReq(item, user, Buy, 50, 5, GTC))
	require.NoError(t, err)

	require.True(t, eng.Cancel(order.ID))

	got, _ := eng.GetOrder(order.ID)
	assert.Equal(t, Cancelled, got.Status)
	assert.Empty(t, eng.Trades())
}

func TestRoundTripPerfectMatchBothClose(t *testing.T) {
	eng, _ := newTestEngine()
	item, user := newItem(), newUser()

	buy, err := eng.Submit(limitReq(item, user, Buy, 75, 8, GTC))
	require.NoError(t, err)
	sell, err := eng.Submit(limitReq(item, user, Sell, 75, 8, GTC))
	require.NoError(t, err)

	trades := eng.Trades()
	require.Len(t, trades, 1)
	assert.True(t, trades[0].Quantity.Equal(decimal.NewFromInt(8)))
	assert.True(t, trades[0].Price.Equal(decimal.NewFromInt(75)))

	gotBuy, _ := eng.GetOrder(buy.ID)
	gotSell, _ := eng.GetOrder(sell.ID)
	assert.Equal(t, Closed, gotBuy.Status)
	assert.Equal(t, Closed, gotSell.Status)
}
