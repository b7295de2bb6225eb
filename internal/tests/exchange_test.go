package tests

import (
	"fmt"
	"sync/atomic"
	"testing"

	. "bourse/internal/common"
	"bourse/internal/config"
	"bourse/internal/engine"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Setup & Helpers --------------------------------------------------------

var orderSeq atomic.Int64

// createTestExchange builds an exchange over the sample rosters.
func createTestExchange(t *testing.T) *engine.Exchange {
	t.Helper()
	stocks, err := config.LoadStocks("../../yaml/stocks.yaml")
	require.NoError(t, err)
	traders, err := config.LoadTraders("../../yaml/traders.yaml")
	require.NoError(t, err)

	eng := engine.New(stocks, traders, nil, nil, engine.Options{})
	require.NoError(t, eng.RegisterStrategy(LimitOrder, engine.LimitMatcher{}))
	return eng
}

func placeTestOrders(eng *engine.Exchange, trader, stock string, price int64, side Side, quantities ...int64) error {
	for _, qty := range quantities {
		id := fmt.Sprintf("order-%d", orderSeq.Add(1))
		if err := eng.Resolve(NewLimitOrder(id, trader, stock, side, price, qty)); err != nil {
			return err
		}
	}
	return nil
}

type Resting struct {
	price    int64
	quantity int64
}

// buildExpectedBook lists resting quantities at one price in arrival order.
func buildExpectedBook(price int64, quantities ...int64) []Resting {
	out := make([]Resting, len(quantities))
	for i, qty := range quantities {
		out[i] = Resting{price, qty}
	}
	return out
}

func flattenBook(t *testing.T, eng *engine.Exchange, stock string, side Side) []Resting {
	t.Helper()
	orders, err := eng.Book(stock, side)
	require.NoError(t, err)
	var out []Resting
	for _, order := range orders {
		out = append(out, Resting{order.LimitPrice, order.Quantity})
	}
	return out
}

// --- Tests ------------------------------------------------------------------

func TestResolve_Limit_NoCross(t *testing.T) {
	eng := createTestExchange(t)

	// 1. Setup: Place 3 orders on Sell side and 3 on Buy side
	assert.NoError(t, placeTestOrders(eng, "bot1", "AAPL", 180, Sell, 100, 90, 80))
	assert.NoError(t, placeTestOrders(eng, "bot2", "AAPL", 170, Buy, 100, 90, 80))

	// 2. Assertions
	assert.Equal(t, buildExpectedBook(180, 100, 90, 80), flattenBook(t, eng, "AAPL", Sell))
	assert.Equal(t, buildExpectedBook(170, 100, 90, 80), flattenBook(t, eng, "AAPL", Buy))

	trader, ok := eng.Trader("bot2")
	require.True(t, ok)
	assert.Empty(t, trader.TransactionHistory)
}

func TestResolve_Limit_WithMatch(t *testing.T) {
	eng := createTestExchange(t)

	// 1. Setup ASKS at a single price.
	assert.NoError(t, placeTestOrders(eng, "bot1", "AAPL", 180, Sell, 100, 90, 80))

	// 2. Check complete match against the earliest ask.
	assert.NoError(t, placeTestOrders(eng, "bot2", "AAPL", 180, Buy, 100))
	assert.Equal(t, buildExpectedBook(180, 90, 80), flattenBook(t, eng, "AAPL", Sell))
	assert.Empty(t, flattenBook(t, eng, "AAPL", Buy))

	// 3. Check partial match.
	assert.NoError(t, placeTestOrders(eng, "bot2", "AAPL", 185, Buy, 20))
	assert.Equal(t, buildExpectedBook(180, 70, 80), flattenBook(t, eng, "AAPL", Sell))

	// 4. Ledger and catalog follow the fills.
	buyer, ok := eng.Trader("bot2")
	require.True(t, ok)
	assert.Equal(t, []Transaction{
		{StockID: "AAPL", Quantity: 100, Price: 180},
		{StockID: "AAPL", Quantity: 20, Price: 180},
	}, buyer.TransactionHistory)
	assert.Equal(t, int64(300+120), buyer.StockAmount("AAPL"))

	seller, ok := eng.Trader("bot1")
	require.True(t, ok)
	assert.Equal(t, int64(500-120), seller.StockAmount("AAPL"))
	assert.Empty(t, seller.TransactionHistory)

	stock, ok := eng.Stock("AAPL")
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(180).Equal(stock.Price))
	assert.True(t, decimal.NewFromInt(180*15500000).Equal(stock.MarketCapitalization))
}

func TestResolve_Limit_NoSweep(t *testing.T) {
	eng := createTestExchange(t)

	// 1. Setup ASKS over two prices.
	assert.NoError(t, placeTestOrders(eng, "bot1", "AAPL", 180, Sell, 10))
	assert.NoError(t, placeTestOrders(eng, "bot1", "AAPL", 181, Sell, 20))

	// 2. A bid through both levels fills against the best ask only and
	//    rests the remainder, even though it still crosses.
	assert.NoError(t, placeTestOrders(eng, "bot2", "AAPL", 185, Buy, 25))
	assert.Equal(t, buildExpectedBook(181, 20), flattenBook(t, eng, "AAPL", Sell))
	assert.Equal(t, buildExpectedBook(185, 15), flattenBook(t, eng, "AAPL", Buy))

	// 3. The next ask trades at the resting bid's price.
	assert.NoError(t, placeTestOrders(eng, "bot1", "AAPL", 181, Sell, 5))
	assert.Equal(t, buildExpectedBook(185, 10), flattenBook(t, eng, "AAPL", Buy))

	seller, ok := eng.Trader("bot1")
	require.True(t, ok)
	assert.Equal(t, []Transaction{{StockID: "AAPL", Quantity: 5, Price: 185}}, seller.TransactionHistory)
}

func TestResolve_Limit_InstrumentsAreIndependent(t *testing.T) {
	eng := createTestExchange(t)

	// 1. Setup: a cheap NVDA ask must not serve an AAPL bid.
	assert.NoError(t, placeTestOrders(eng, "bot2", "NVDA", 100, Sell, 10))
	assert.NoError(t, placeTestOrders(eng, "bot1", "AAPL", 150, Buy, 10))

	// 2. Assertions
	assert.Equal(t, buildExpectedBook(100, 10), flattenBook(t, eng, "NVDA", Sell))
	assert.Equal(t, buildExpectedBook(150, 10), flattenBook(t, eng, "AAPL", Buy))
	assert.Empty(t, flattenBook(t, eng, "AAPL", Sell))
}

func TestResolve_Limit_SellerWithoutHoldings(t *testing.T) {
	eng := createTestExchange(t)

	// 1. bot3 holds no AAPL, so its ask is never workable.
	assert.NoError(t, placeTestOrders(eng, "bot3", "AAPL", 170, Sell, 10))
	assert.NoError(t, placeTestOrders(eng, "bot2", "AAPL", 175, Buy, 10))

	// 2. Both orders rest.
	assert.Equal(t, buildExpectedBook(170, 10), flattenBook(t, eng, "AAPL", Sell))
	assert.Equal(t, buildExpectedBook(175, 10), flattenBook(t, eng, "AAPL", Buy))
}
