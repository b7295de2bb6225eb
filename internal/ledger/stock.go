package ledger

import (
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"
)

// Stock is a listed instrument. MarketCapitalization is derived from Price
// and is only ever written by UpdatePrice.
type Stock struct {
	Symbol               string          `json:"symbol"`
	Name                 string          `json:"name"`
	SharesOutstanding    int64           `json:"sharesOutstanding"`
	Price                decimal.Decimal `json:"price"`
	MarketCapitalization decimal.Decimal `json:"marketCapitalization"`
}

func NewStock(symbol, name string, sharesOutstanding int64, price decimal.Decimal) *Stock {
	stock := &Stock{
		Symbol:            symbol,
		Name:              name,
		SharesOutstanding: sharesOutstanding,
	}
	stock.UpdatePrice(price)
	return stock
}

// UpdatePrice sets the latest traded price and recomputes the market cap.
func (s *Stock) UpdatePrice(price decimal.Decimal) {
	s.Price = price
	s.MarketCapitalization = price.Mul(decimal.NewFromInt(s.SharesOutstanding))
}

// StockCollection is the instrument catalog, ordered by symbol.
type StockCollection struct {
	stocks *btree.Map[string, *Stock]
}

func NewStockCollection(stocks ...*Stock) *StockCollection {
	c := &StockCollection{stocks: btree.NewMap[string, *Stock](32)}
	for _, stock := range stocks {
		c.Add(stock)
	}
	return c
}

// Add inserts or replaces a stock keyed by its symbol.
func (c *StockCollection) Add(stock *Stock) {
	c.stocks.Set(stock.Symbol, stock)
}

func (c *StockCollection) Get(symbol string) (*Stock, bool) {
	return c.stocks.Get(symbol)
}

func (c *StockCollection) Len() int { return c.stocks.Len() }

// All returns the live stocks in symbol order.
func (c *StockCollection) All() []*Stock {
	out := make([]*Stock, 0, c.stocks.Len())
	c.stocks.Scan(func(_ string, stock *Stock) bool {
		out = append(out, stock)
		return true
	})
	return out
}

// Snapshot copies every stock out of the catalog in symbol order.
func (c *StockCollection) Snapshot() []Stock {
	out := make([]Stock, 0, c.stocks.Len())
	c.stocks.Scan(func(_ string, stock *Stock) bool {
		out = append(out, *stock)
		return true
	})
	return out
}
