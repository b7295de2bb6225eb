package engine

import (
	"fmt"

	"bourse/internal/book"
	. "bourse/internal/common"
)

// Registry maps order kinds to the strategy that matches them. It is owned
// by an Exchange and configured at startup.
type Registry struct {
	strategies map[OrderKind]MatchStrategy
}

func NewRegistry() *Registry {
	return &Registry{strategies: make(map[OrderKind]MatchStrategy)}
}

// Register binds a strategy to a kind, replacing any earlier binding.
func (r *Registry) Register(kind OrderKind, strategy MatchStrategy) error {
	if kind == "" || strategy == nil {
		return ErrNullInput
	}
	r.strategies[kind] = strategy
	return nil
}

// Match looks up the strategy for the order's kind and returns its result
// unchanged.
func (r *Registry) Match(order *Order, view book.View) (*book.OrderBook, error) {
	if order == nil || view.Asks == nil || view.Bids == nil {
		return nil, ErrNullInput
	}
	strategy, ok := r.strategies[order.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOrderKind, order.Kind)
	}
	return strategy.Match(order, view)
}
