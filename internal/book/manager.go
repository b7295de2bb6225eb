package book

import (
	. "bourse/internal/common"
)

const (
	AsksKey = "Asks"
	BidsKey = "Bids"
)

// View exposes both sides of the book to match strategies. The books are
// live, so a strategy sees every change made earlier in the same pass.
type View struct {
	Asks *OrderBook
	Bids *OrderBook
}

// Map returns the view keyed by side name.
func (v View) Map() map[string]*OrderBook {
	return map[string]*OrderBook{
		AsksKey: v.Asks,
		BidsKey: v.Bids,
	}
}

// Side returns the book resting orders of the given side are kept in.
func (v View) Side(side Side) (*OrderBook, error) {
	switch side {
	case Buy:
		return v.Bids, nil
	case Sell:
		return v.Asks, nil
	}
	return nil, ErrInvalidOperation
}

// OrderManager owns the bids and asks for every stock in the exchange.
type OrderManager struct {
	bids *OrderBook
	asks *OrderBook
}

func NewOrderManager() *OrderManager {
	return &OrderManager{
		bids: NewOrderBook(),
		asks: NewOrderBook(),
	}
}

func (m *OrderManager) View() View {
	return View{Asks: m.asks, Bids: m.bids}
}

// StoreOrder rests an order on the side it was placed on.
func (m *OrderManager) StoreOrder(order *Order) error {
	if order == nil {
		return ErrNullInput
	}
	side, err := m.View().Side(order.Side)
	if err != nil {
		return err
	}
	side.Add(order)
	return nil
}

// RemoveOrder removes the first resting order equal to order. An order that
// is not resting is ignored.
func (m *OrderManager) RemoveOrder(order *Order) error {
	if order == nil {
		return ErrNullInput
	}
	side, err := m.View().Side(order.Side)
	if err != nil {
		return err
	}
	side.Remove(order)
	return nil
}
