package engine

import (
	"sync"

	"bourse/internal/book"
	. "bourse/internal/common"
	"bourse/internal/ledger"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type Options struct {
	// StrictCounterpartyCheck validates the resting trader against the fill
	// quantity at the resting price. When unset the resting order is only
	// checked against itself.
	StrictCounterpartyCheck bool
}

// Exchange owns the order books, the stock catalog and the trader ledger.
//
// Resolve is the only writer and is expected to be called from a single
// goroutine. Every read accessor copies state out under the read lock, so
// readers never observe a half-settled fill.
type Exchange struct {
	mu sync.RWMutex

	stocks   *ledger.StockCollection
	traders  *ledger.TraderCollection
	orders   *book.OrderManager
	registry *Registry
	opts     Options
}

// New builds an exchange over the given state. Nil arguments are replaced
// with empty collections.
func New(
	stocks *ledger.StockCollection,
	traders *ledger.TraderCollection,
	orders *book.OrderManager,
	registry *Registry,
	opts Options,
) *Exchange {
	if stocks == nil {
		stocks = ledger.NewStockCollection()
	}
	if traders == nil {
		traders = ledger.NewTraderCollection()
	}
	if orders == nil {
		orders = book.NewOrderManager()
	}
	if registry == nil {
		registry = NewRegistry()
	}
	return &Exchange{
		stocks:   stocks,
		traders:  traders,
		orders:   orders,
		registry: registry,
		opts:     opts,
	}
}

// RegisterStrategy binds a match strategy to an order kind.
func (e *Exchange) RegisterStrategy(kind OrderKind, strategy MatchStrategy) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Register(kind, strategy)
}

// Resolve matches an incoming order against the book.
//
// Candidates are tried in priority order and only the first one both traders
// can afford is settled. Whatever is left of the incoming order after that
// single fill rests on the book; it is not swept against further candidates.
//
// Only a nil order is reported. Orders that could never rest (no quantity, a
// negative price or an invalid side) are logged and dropped; any other
// failure is logged and the order is rested unresolved.
func (e *Exchange) Resolve(order *Order) error {
	if order == nil {
		return ErrNullInput
	}
	if order.Quantity <= 0 || order.LimitPrice < 0 {
		log.Warn().
			Str("order", order.ID).
			Int64("quantity", order.Quantity).
			Int64("price", order.LimitPrice).
			Msg("dropping order with non-positive quantity or negative price")
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	candidates, err := e.registry.Match(order, e.orders.View())
	if err != nil {
		log.Warn().
			Err(err).
			Str("order", order.ID).
			Str("kind", string(order.Kind)).
			Msg("unable to match order, resting unresolved")
		e.rest(order)
		return nil
	}
	if candidates == nil {
		e.rest(order)
		return nil
	}

	for _, candidate := range candidates.Orders() {
		if !e.workable(order, candidate) {
			log.Debug().
				Str("order", order.ID).
				Str("candidate", candidate.ID).
				Msg("skipping candidate")
			continue
		}
		e.settle(order, candidate)
		return nil
	}

	e.rest(order)
	return nil
}

func (e *Exchange) rest(order *Order) {
	if err := e.orders.StoreOrder(order); err != nil {
		log.Error().
			Err(err).
			Str("order", order.ID).
			Msg("dropping order")
		return
	}
	log.Debug().
		Str("order", order.ID).
		Str("stock", order.StockID).
		Stringer("side", order.Side).
		Int64("price", order.LimitPrice).
		Int64("quantity", order.Quantity).
		Msg("order resting")
}

// workable reports whether a candidate can be settled against. Unknown
// traders or stocks make the candidate unworkable.
func (e *Exchange) workable(incoming, candidate *Order) bool {
	incomingTrader, ok := e.traders.Get(incoming.TraderID)
	if !ok {
		return false
	}
	restingTrader, ok := e.traders.Get(candidate.TraderID)
	if !ok {
		return false
	}
	if _, ok := e.stocks.Get(candidate.StockID); !ok {
		return false
	}

	if !hasResources(incomingTrader, incoming, incoming.Quantity, candidate.LimitPrice) {
		return false
	}
	if e.opts.StrictCounterpartyCheck {
		fill := min(incoming.Quantity, candidate.Quantity)
		return hasResources(restingTrader, candidate, fill, candidate.LimitPrice)
	}
	return hasResources(restingTrader, candidate, candidate.Quantity, candidate.LimitPrice)
}

// hasResources checks funds for a buy and holdings for a sell.
func hasResources(trader *ledger.Trader, order *Order, quantity, price int64) bool {
	switch order.Side {
	case Buy:
		return canAfford(trader.Funds, quantity, price)
	case Sell:
		return trader.HasStockAmount(order.StockID, quantity)
	}
	return false
}

// canAfford reports funds >= quantity*price without overflowing the product.
// quantity is positive and price non-negative.
func canAfford(funds, quantity, price int64) bool {
	if price == 0 {
		return funds >= 0
	}
	return quantity <= funds/price
}

// settle fills incoming against candidate at the candidate's price.
// Funds are never debited.
func (e *Exchange) settle(incoming, candidate *Order) {
	transaction := Transaction{
		StockID:  incoming.StockID,
		Quantity: min(incoming.Quantity, candidate.Quantity),
		Price:    candidate.LimitPrice,
	}

	switch {
	case incoming.Quantity > candidate.Quantity:
		incoming.Quantity -= candidate.Quantity
		e.rest(incoming)
		_ = e.orders.RemoveOrder(candidate)
	case incoming.Quantity < candidate.Quantity:
		candidate.Quantity -= incoming.Quantity
	default:
		_ = e.orders.RemoveOrder(candidate)
	}

	incomingTrader, _ := e.traders.Get(incoming.TraderID)
	restingTrader, _ := e.traders.Get(candidate.TraderID)
	incomingTrader.AddTransaction(transaction)
	adjustHoldings(incomingTrader, incoming.Side, transaction)
	adjustHoldings(restingTrader, candidate.Side, transaction)

	stock, _ := e.stocks.Get(transaction.StockID)
	stock.UpdatePrice(decimal.NewFromInt(transaction.Price))

	log.Info().
		Str("order", incoming.ID).
		Str("resting", candidate.ID).
		Str("stock", transaction.StockID).
		Int64("quantity", transaction.Quantity).
		Int64("price", transaction.Price).
		Msg("orders settled")
}

func adjustHoldings(trader *ledger.Trader, side Side, transaction Transaction) {
	owned := trader.StockAmount(transaction.StockID)
	switch side {
	case Buy:
		trader.SetStockAmount(transaction.StockID, owned+transaction.Quantity)
	case Sell:
		trader.SetStockAmount(transaction.StockID, owned-transaction.Quantity)
	}
}

// Snapshot is a consistent copy of the whole exchange.
type Snapshot struct {
	Stocks  []ledger.Stock  `json:"stocks"`
	Traders []ledger.Trader `json:"traders"`
	Asks    []Order         `json:"asks"`
	Bids    []Order         `json:"bids"`
}

// Trader looks up a trader by id within the snapshot.
func (s Snapshot) Trader(id string) (ledger.Trader, bool) {
	for _, trader := range s.Traders {
		if trader.ID == id {
			return trader, true
		}
	}
	return ledger.Trader{}, false
}

func (e *Exchange) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	view := e.orders.View()
	return Snapshot{
		Stocks:  e.stocks.Snapshot(),
		Traders: e.traders.Snapshot(),
		Asks:    view.Asks.Snapshot(),
		Bids:    view.Bids.Snapshot(),
	}
}

func (e *Exchange) Stocks() []ledger.Stock {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stocks.Snapshot()
}

func (e *Exchange) Traders() []ledger.Trader {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.traders.Snapshot()
}

func (e *Exchange) Stock(symbol string) (ledger.Stock, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	stock, ok := e.stocks.Get(symbol)
	if !ok {
		return ledger.Stock{}, false
	}
	return *stock, true
}

func (e *Exchange) Trader(id string) (ledger.Trader, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	trader, ok := e.traders.Get(id)
	if !ok {
		return ledger.Trader{}, false
	}
	return trader.Clone(), true
}

// Book copies the resting orders of one side for a stock, in arrival order.
func (e *Exchange) Book(stockID string, side Side) ([]Order, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	orders, err := e.orders.View().Side(side)
	if err != nil {
		return nil, err
	}
	return orders.FilterStock(stockID).Snapshot(), nil
}
