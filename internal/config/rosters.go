package config

import (
	"fmt"
	"os"

	"bourse/internal/ledger"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type stockEntry struct {
	Symbol            string `yaml:"symbol"`
	Name              string `yaml:"name"`
	SharesOutstanding int64  `yaml:"sharesOutstanding"`
	Price             string `yaml:"price"`
}

type traderEntry struct {
	ID          string           `yaml:"id"`
	Name        string           `yaml:"name"`
	Funds       int64            `yaml:"funds"`
	OwnedShares map[string]int64 `yaml:"ownedShares"`
}

// LoadStocks reads the stock catalog. Market capitalization is derived from
// the listed price, never read from the file.
func LoadStocks(path string) (*ledger.StockCollection, error) {
	var roster struct {
		Stocks []stockEntry `yaml:"stocks"`
	}
	if err := readYAML(path, &roster); err != nil {
		return nil, err
	}

	stocks := ledger.NewStockCollection()
	for i, entry := range roster.Stocks {
		if entry.Symbol == "" {
			return nil, fmt.Errorf("%s: stock %d has no symbol", path, i)
		}
		if _, ok := stocks.Get(entry.Symbol); ok {
			return nil, fmt.Errorf("%s: duplicate stock %s", path, entry.Symbol)
		}
		price := decimal.Zero
		if entry.Price != "" {
			var err error
			if price, err = decimal.NewFromString(entry.Price); err != nil {
				return nil, fmt.Errorf("%s: stock %s: %w", path, entry.Symbol, err)
			}
		}
		stocks.Add(ledger.NewStock(entry.Symbol, entry.Name, entry.SharesOutstanding, price))
	}
	return stocks, nil
}

// LoadTraders reads the trader ledger.
func LoadTraders(path string) (*ledger.TraderCollection, error) {
	var roster struct {
		Traders []traderEntry `yaml:"traders"`
	}
	if err := readYAML(path, &roster); err != nil {
		return nil, err
	}

	traders := ledger.NewTraderCollection()
	for i, entry := range roster.Traders {
		if entry.ID == "" {
			return nil, fmt.Errorf("%s: trader %d has no id", path, i)
		}
		if _, ok := traders.Get(entry.ID); ok {
			return nil, fmt.Errorf("%s: duplicate trader %s", path, entry.ID)
		}
		trader := ledger.NewTrader(entry.ID, entry.Name, entry.Funds)
		for stockID, amount := range entry.OwnedShares {
			trader.SetStockAmount(stockID, amount)
		}
		traders.Add(trader)
	}
	return traders, nil
}

func readYAML(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to read roster: %w", err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unable to parse %s: %w", path, err)
	}
	return nil
}
