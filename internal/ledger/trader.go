package ledger

import (
	"maps"
	"slices"

	. "bourse/internal/common"

	"github.com/tidwall/btree"
)

// Trader is a participant of the exchange. Funds are checked when the trader
// buys but never debited; only holdings and history change on a fill.
type Trader struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	Funds              int64            `json:"funds"`
	OwnedShares        map[string]int64 `json:"ownedShares"`
	TransactionHistory []Transaction    `json:"transactionHistory"`
}

func NewTrader(id, name string, funds int64) *Trader {
	return &Trader{
		ID:          id,
		Name:        name,
		Funds:       funds,
		OwnedShares: make(map[string]int64),
	}
}

// StockAmount is the number of shares held, zero when none are.
func (t *Trader) StockAmount(stockID string) int64 {
	return t.OwnedShares[stockID]
}

func (t *Trader) SetStockAmount(stockID string, amount int64) {
	if t.OwnedShares == nil {
		t.OwnedShares = make(map[string]int64)
	}
	t.OwnedShares[stockID] = amount
}

// HasStockAmount reports whether the trader holds at least amount shares.
// A trader that has never held the stock holds none of it.
func (t *Trader) HasStockAmount(stockID string, amount int64) bool {
	owned, ok := t.OwnedShares[stockID]
	if !ok {
		return false
	}
	return owned >= amount
}

func (t *Trader) AddTransaction(transaction Transaction) {
	t.TransactionHistory = append(t.TransactionHistory, transaction)
}

// Clone returns a deep copy safe to hand to readers.
func (t *Trader) Clone() Trader {
	clone := *t
	clone.OwnedShares = maps.Clone(t.OwnedShares)
	if clone.OwnedShares == nil {
		clone.OwnedShares = make(map[string]int64)
	}
	clone.TransactionHistory = slices.Clone(t.TransactionHistory)
	return clone
}

// TraderCollection is the participant ledger, ordered by trader id.
type TraderCollection struct {
	traders *btree.Map[string, *Trader]
}

func NewTraderCollection(traders ...*Trader) *TraderCollection {
	c := &TraderCollection{traders: btree.NewMap[string, *Trader](32)}
	for _, trader := range traders {
		c.Add(trader)
	}
	return c
}

// Add inserts or replaces a trader keyed by its id.
func (c *TraderCollection) Add(trader *Trader) {
	c.traders.Set(trader.ID, trader)
}

func (c *TraderCollection) Get(id string) (*Trader, bool) {
	return c.traders.Get(id)
}

func (c *TraderCollection) Len() int { return c.traders.Len() }

// All returns the live traders in id order.
func (c *TraderCollection) All() []*Trader {
	out := make([]*Trader, 0, c.traders.Len())
	c.traders.Scan(func(_ string, trader *Trader) bool {
		out = append(out, trader)
		return true
	})
	return out
}

// Snapshot deep copies every trader in id order.
func (c *TraderCollection) Snapshot() []Trader {
	out := make([]Trader, 0, c.traders.Len())
	c.traders.Scan(func(_ string, trader *Trader) bool {
		out = append(out, trader.Clone())
		return true
	})
	return out
}
