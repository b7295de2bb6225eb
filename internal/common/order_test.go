package common

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSide_Text(t *testing.T) {
	var side Side
	require.NoError(t, side.UnmarshalText([]byte("sell")))
	assert.Equal(t, Sell, side)

	assert.ErrorIs(t, side.UnmarshalText([]byte("HOLD")), ErrInvalidOperation)

	_, err := Side(4).MarshalText()
	assert.ErrorIs(t, err, ErrInvalidOperation)
	assert.Equal(t, "Side(4)", Side(4).String())
}

func TestOrder_JSONFieldNames(t *testing.T) {
	raw := `{"id":"o1","type":"LimitOrder","traderId":"t1","stockId":"AAPL","side":"BUY","limitPrice":5,"quantity":2}`

	var order Order
	require.NoError(t, json.Unmarshal([]byte(raw), &order))
	assert.True(t, order.Equal(*NewLimitOrder("o1", "t1", "AAPL", Buy, 5, 2)))

	out, err := json.Marshal(order)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestOrder_Equal(t *testing.T) {
	a := NewLimitOrder("o1", "t1", "AAPL", Buy, 5, 2)
	b := NewLimitOrder("o1", "t1", "AAPL", Buy, 5, 2)
	assert.True(t, a.Equal(*b))

	b.Quantity = 1
	assert.False(t, a.Equal(*b))
}
