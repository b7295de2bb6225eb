package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFromEnv_FileThenEnvironment(t *testing.T) {
	envPath := writeFile(t, ".env", `
EXCHANGE_PORT=9001
UPDATE_INTERVAL_MS=250
STRICT_COUNTERPARTY_CHECK=true
LOG_LEVEL=debug
FEED_ADDRESS=
`)
	t.Setenv("EXCHANGE_PORT", "9100")
	t.Setenv("WORKERS", "4")

	cfg, err := LoadFromEnv(envPath)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Exchange.Port, "environment wins over .env")
	assert.Equal(t, uint(4), cfg.Exchange.Workers)
	assert.True(t, cfg.Exchange.StrictCounterpartyCheck)
	assert.Equal(t, 250*time.Millisecond, cfg.Updater.Interval)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Empty(t, cfg.Feed.Address, "an empty feed address disables the feed")
	assert.Equal(t, "yaml/stocks.yaml", cfg.Rosters.StocksFile)
}

func TestLoadFromEnv_LegacyPort(t *testing.T) {
	t.Setenv("MESSAGE_QUEUE_PORT", "7000")
	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Exchange.Port)
}

func TestLoadFromEnv_InvalidValues(t *testing.T) {
	for key, value := range map[string]string{
		"EXCHANGE_PORT":             "http",
		"WORKERS":                   "0",
		"UPDATE_INTERVAL_MS":        "-5",
		"STRICT_COUNTERPARTY_CHECK": "maybe",
	} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}

func TestLoadStocks(t *testing.T) {
	path := writeFile(t, "stocks.yaml", `
stocks:
  - symbol: MSFT
    name: Microsoft
    sharesOutstanding: 100
    price: "2.5"
  - symbol: AAPL
    name: Apple
    sharesOutstanding: 10
`)

	stocks, err := LoadStocks(path)
	require.NoError(t, err)
	require.Equal(t, 2, stocks.Len())

	msft, ok := stocks.Get("MSFT")
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("2.5").Equal(msft.Price))
	assert.True(t, decimal.NewFromInt(250).Equal(msft.MarketCapitalization))

	aapl, ok := stocks.Get("AAPL")
	require.True(t, ok)
	assert.True(t, aapl.Price.IsZero())
}

func TestLoadStocks_Errors(t *testing.T) {
	_, err := LoadStocks(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadStocks(writeFile(t, "dup.yaml", "stocks:\n  - symbol: A\n  - symbol: A\n"))
	assert.ErrorContains(t, err, "duplicate")

	_, err = LoadStocks(writeFile(t, "price.yaml", "stocks:\n  - symbol: A\n    price: cheap\n"))
	assert.Error(t, err)
}

func TestLoadTraders(t *testing.T) {
	path := writeFile(t, "traders.yaml", `
traders:
  - id: bot1
    name: Bot One
    funds: 1000
    ownedShares:
      AAPL: 5
  - id: bot2
    funds: 10
`)

	traders, err := LoadTraders(path)
	require.NoError(t, err)
	require.Equal(t, 2, traders.Len())

	bot1, ok := traders.Get("bot1")
	require.True(t, ok)
	assert.Equal(t, int64(1000), bot1.Funds)
	assert.Equal(t, int64(5), bot1.StockAmount("AAPL"))
	assert.False(t, bot1.HasStockAmount("MSFT", 1))

	_, err = LoadTraders(writeFile(t, "noid.yaml", "traders:\n  - name: x\n"))
	assert.Error(t, err)
}

func TestSampleRosters(t *testing.T) {
	stocks, err := LoadStocks("../../yaml/stocks.yaml")
	require.NoError(t, err)
	assert.Positive(t, stocks.Len())

	traders, err := LoadTraders("../../yaml/traders.yaml")
	require.NoError(t, err)
	assert.Positive(t, traders.Len())
}
