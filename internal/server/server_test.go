package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	. "bourse/internal/common"
	"bourse/internal/ledger"
	bourseNet "bourse/internal/net"
	"bourse/internal/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runTestServer(t *testing.T) (*Server, *bourseNet.Client) {
	t.Helper()
	srv, _ := createTestServer(t)

	done := make(chan error, 1)
	go func() { done <- srv.Run(context.Background()) }()

	select {
	case <-srv.Transport().Ready():
	case err := <-done:
		t.Fatalf("server failed to start: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	client, err := bourseNet.Dial(ctx, srv.Transport().Addr().String())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
		srv.Shutdown()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})
	return srv, client
}

func submit(t *testing.T, client *bourseNet.Client, order *Order) {
	t.Helper()
	raw, err := json.Marshal(order)
	require.NoError(t, err)
	body, err := queue.NewMessage(HeaderResolveOrder, string(raw)).Encode()
	require.NoError(t, err)
	require.NoError(t, client.Send(bourseNet.NewNetworkMessage(bourseNet.HeaderMqPut, body)))
}

// awaitTrader reads updates until one for the trader satisfies done.
func awaitTrader(t *testing.T, client *bourseNet.Client, done func(ledger.Trader) bool) ledger.Trader {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		message, err := client.Receive()
		require.NoError(t, err)
		if message.Header != bourseNet.HeaderUpdateTrader {
			continue
		}
		update, err := queue.DecodeMessage(message.Body)
		require.NoError(t, err)

		var trader ledger.Trader
		require.NoError(t, json.Unmarshal([]byte(update.Body), &trader))
		if done(trader) {
			return trader
		}
	}
	t.Fatal("trader update never arrived")
	return ledger.Trader{}
}

func TestServer_ResolvesQueuedOrdersAndPushesUpdates(t *testing.T) {
	_, client := runTestServer(t)

	require.NoError(t, client.Send(bourseNet.NewNetworkMessage(bourseNet.HeaderRegisterTrader, "buyer")))
	submit(t, client, NewLimitOrder("s1", "seller", "AAPL", Sell, 4, 3))
	submit(t, client, NewLimitOrder("b1", "buyer", "AAPL", Buy, 5, 1))

	buyer := awaitTrader(t, client, func(trader ledger.Trader) bool {
		return len(trader.TransactionHistory) > 0
	})
	assert.Equal(t, "buyer", buyer.ID)
	assert.Equal(t, []Transaction{{StockID: "AAPL", Quantity: 1, Price: 4}}, buyer.TransactionHistory)
	assert.Equal(t, int64(1), buyer.StockAmount("AAPL"))
}

func TestServer_ShutdownStopsRun(t *testing.T) {
	srv, _ := createTestServer(t)

	done := make(chan error, 1)
	go func() { done <- srv.Run(context.Background()) }()
	<-srv.Transport().Ready()

	srv.Shutdown()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
