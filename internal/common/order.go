package common

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNullInput        = errors.New("required input is absent")
	ErrInvalidOperation = errors.New("order side is neither buy nor sell")
	ErrUnknownOrderKind = errors.New("no match strategy registered for order kind")
)

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	}
	return fmt.Sprintf("Side(%d)", int(s))
}

func (s Side) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, ErrInvalidOperation
	}
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "BUY":
		*s = Buy
	case "SELL":
		*s = Sell
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOperation, text)
	}
	return nil
}

// OrderKind selects the match strategy an order is resolved with.
type OrderKind string

const (
	// Limit orders buy at or below, or sell at or above, their limit price.
	// Any unfilled remainder rests on the book.
	LimitOrder OrderKind = "LimitOrder"
)

// Order is a trading intent. Every field except Quantity is fixed once the
// order is built; Quantity shrinks as the order is partially filled.
type Order struct {
	ID         string    `json:"id"`
	Kind       OrderKind `json:"type"`
	TraderID   string    `json:"traderId"`
	StockID    string    `json:"stockId"`
	Side       Side      `json:"side"`
	LimitPrice int64     `json:"limitPrice"`
	Quantity   int64     `json:"quantity"`
}

// NewLimitOrder builds a limit order.
func NewLimitOrder(id, traderID, stockID string, side Side, limitPrice, quantity int64) *Order {
	return &Order{
		ID:         id,
		Kind:       LimitOrder,
		TraderID:   traderID,
		StockID:    stockID,
		Side:       side,
		LimitPrice: limitPrice,
		Quantity:   quantity,
	}
}

// Equal reports field-for-field equality.
func (order Order) Equal(other Order) bool {
	return order == other
}

func (order Order) String() string {
	return fmt.Sprintf(
		`ID:         %s
Kind:       %s
TraderID:   %s
StockID:    %s
Side:       %v
LimitPrice: %d
Quantity:   %d`,
		order.ID,
		order.Kind,
		order.TraderID,
		order.StockID,
		order.Side,
		order.LimitPrice,
		order.Quantity,
	)
}
