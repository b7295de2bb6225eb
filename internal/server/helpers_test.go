package server

import (
	"testing"
	"time"

	. "bourse/internal/common"
	"bourse/internal/config"
	"bourse/internal/engine"
	"bourse/internal/ledger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func createTestExchange(t *testing.T) *engine.Exchange {
	t.Helper()
	seller := ledger.NewTrader("seller", "Seller", 0)
	seller.SetStockAmount("AAPL", 10)

	exchange := engine.New(
		ledger.NewStockCollection(ledger.NewStock("AAPL", "Apple", 100, decimal.NewFromInt(3))),
		ledger.NewTraderCollection(ledger.NewTrader("buyer", "Buyer", 1000), seller),
		nil, nil, engine.Options{},
	)
	require.NoError(t, exchange.RegisterStrategy(LimitOrder, engine.LimitMatcher{}))
	return exchange
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Exchange.Address = "127.0.0.1"
	cfg.Exchange.Port = 0
	cfg.Exchange.Workers = 2
	cfg.Feed.Address = ""
	cfg.Updater.Interval = 20 * time.Millisecond
	return cfg
}

func createTestServer(t *testing.T) (*Server, *engine.Exchange) {
	t.Helper()
	exchange := createTestExchange(t)
	srv, err := Create(testConfig(), exchange)
	require.NoError(t, err)
	return srv, exchange
}
