package book

import (
	"slices"

	. "bourse/internal/common"
)

// OrderBook is an insertion-ordered collection of orders. Position in the
// slice is arrival order, which breaks ties between equal prices.
//
// Filters and sorts never touch the receiver: they return a new book holding
// the same order pointers, so a caller can narrow a side down to candidates
// and still mutate the resting orders in place.
type OrderBook struct {
	orders []*Order
}

func NewOrderBook(orders ...*Order) *OrderBook {
	return &OrderBook{orders: orders}
}

func (book *OrderBook) Len() int { return len(book.orders) }

// Orders returns the live order pointers in book order.
func (book *OrderBook) Orders() []*Order {
	return book.orders
}

// Quantity is the total resting quantity in the book.
func (book *OrderBook) Quantity() int64 {
	var total int64
	for _, order := range book.orders {
		total += order.Quantity
	}
	return total
}

func (book *OrderBook) Add(order *Order) {
	book.orders = append(book.orders, order)
}

// Remove drops the first order equal by value to order. Removing an order
// that is not present is a no-op.
//
// Duplicates are not expected: only one copy of a given order is ever in
// flight, and its quantity changes whenever it is re-stored.
func (book *OrderBook) Remove(order *Order) {
	idx := slices.IndexFunc(book.orders, func(o *Order) bool {
		return o.Equal(*order)
	})
	if idx < 0 {
		return
	}
	book.orders = slices.Delete(book.orders, idx, idx+1)
}

func (book *OrderBook) filter(keep func(*Order) bool) *OrderBook {
	filtered := &OrderBook{}
	for _, order := range book.orders {
		if keep(order) {
			filtered.orders = append(filtered.orders, order)
		}
	}
	return filtered
}

// FilterStock keeps the orders for a single stock.
func (book *OrderBook) FilterStock(stockID string) *OrderBook {
	return book.filter(func(o *Order) bool { return o.StockID == stockID })
}

// FilterPriceAtMost keeps the orders priced at or below the ceiling.
func (book *OrderBook) FilterPriceAtMost(ceiling int64) *OrderBook {
	return book.filter(func(o *Order) bool { return o.LimitPrice <= ceiling })
}

// FilterPriceAtLeast keeps the orders priced at or above the floor.
func (book *OrderBook) FilterPriceAtLeast(floor int64) *OrderBook {
	return book.filter(func(o *Order) bool { return o.LimitPrice >= floor })
}

// SortPriceAscending returns the orders cheapest first, earliest first
// within a price.
func (book *OrderBook) SortPriceAscending() *OrderBook {
	sorted := &OrderBook{orders: slices.Clone(book.orders)}
	slices.SortStableFunc(sorted.orders, func(a, b *Order) int {
		return cmpPrice(a.LimitPrice, b.LimitPrice)
	})
	return sorted
}

// SortPriceDescending returns the orders dearest first, earliest first
// within a price. It is not the reverse of SortPriceAscending, which would
// put later bids ahead of earlier ones at the same price.
func (book *OrderBook) SortPriceDescending() *OrderBook {
	sorted := &OrderBook{orders: slices.Clone(book.orders)}
	slices.SortStableFunc(sorted.orders, func(a, b *Order) int {
		return cmpPrice(b.LimitPrice, a.LimitPrice)
	})
	return sorted
}

func cmpPrice(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Snapshot copies the orders out of the book.
func (book *OrderBook) Snapshot() []Order {
	out := make([]Order, len(book.orders))
	for i, order := range book.orders {
		out[i] = *order
	}
	return out
}
