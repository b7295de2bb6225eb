package engine

import (
	"bourse/internal/book"
	. "bourse/internal/common"
)

// MatchStrategy selects, for one kind of order, the resting orders it may
// settle against. Candidates come back in priority order; a nil book means
// there is nothing to match.
type MatchStrategy interface {
	Match(order *Order, view book.View) (*book.OrderBook, error)
}

// LimitMatcher matches limit orders in price-time priority.
//
// A buy takes asks priced at or below its limit, cheapest first. A sell takes
// bids priced at or above its limit, dearest first. Equal prices keep arrival
// order.
type LimitMatcher struct{}

func (LimitMatcher) Match(order *Order, view book.View) (*book.OrderBook, error) {
	if order == nil || view.Asks == nil || view.Bids == nil {
		return nil, ErrNullInput
	}

	var candidates *book.OrderBook
	switch order.Side {
	case Buy:
		candidates = view.Asks.
			FilterStock(order.StockID).
			FilterPriceAtMost(order.LimitPrice).
			SortPriceAscending()
	case Sell:
		candidates = view.Bids.
			FilterStock(order.StockID).
			FilterPriceAtLeast(order.LimitPrice).
			SortPriceDescending()
	default:
		return nil, ErrInvalidOperation
	}

	if candidates.Len() == 0 {
		return nil, nil
	}
	return candidates, nil
}
