package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	. "bourse/internal/common"
	"bourse/internal/ledger"
	bourseNet "bourse/internal/net"
	"bourse/internal/queue"
	"bourse/internal/server"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	// CLI Parameter Parsing
	serverAddr := flag.String("server", "127.0.0.1:8080", "Address of the exchange server")
	traderID := flag.String("trader", "", "Trader id (compulsory)")
	stockID := flag.String("stock", "AAPL", "Stock symbol")
	sideStr := flag.String("side", "buy", "Order side: 'buy' or 'sell'")
	price := flag.Int64("price", 100, "Limit price")
	qtyStr := flag.String("qty", "", "Quantity or comma-separated list (e.g. 10,20,50); empty only listens")
	listen := flag.Duration("listen", 0, "How long to print updates for; 0 listens until interrupted")
	flag.Parse()

	if *traderID == "" {
		fmt.Println("Error: -trader is compulsory.")
		flag.Usage()
		os.Exit(1)
	}

	var side Side
	if err := side.UnmarshalText([]byte(*sideStr)); err != nil {
		log.Fatal().Err(err).Msg("invalid side")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	if *listen > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *listen)
		defer cancel()
	}

	// Connect to Server
	client, err := bourseNet.Dial(ctx, *serverAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to connect")
	}
	defer client.Close()
	fmt.Printf("Connected to %s as '%s'\n", *serverAddr, *traderID)

	if err := client.Send(bourseNet.NewNetworkMessage(bourseNet.HeaderRegisterTrader, *traderID)); err != nil {
		log.Fatal().Err(err).Msg("unable to register")
	}

	for _, qty := range parseQuantities(*qtyStr) {
		order := NewLimitOrder(uuid.NewString(), *traderID, *stockID, side, *price, qty)
		if err := sendOrder(client, order); err != nil {
			log.Error().Err(err).Int64("quantity", qty).Msg("failed to place order")
			continue
		}
		fmt.Printf("-> Sent %s Order %s: %s %d @ %d\n", side, order.ID, order.StockID, qty, order.LimitPrice)
	}

	// Keep the client alive to receive updates
	fmt.Println("\nListening for updates... (Press Ctrl+C to exit)")
	go func() {
		<-ctx.Done()
		_ = client.Close()
	}()
	readUpdates(ctx, client)
}

// parseQuantities splits a comma-separated string into positive quantities.
func parseQuantities(input string) []int64 {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	var result []int64
	for _, p := range strings.Split(input, ",") {
		p = strings.TrimSpace(p)
		if val, err := strconv.ParseInt(p, 10, 64); err == nil && val > 0 {
			result = append(result, val)
		} else {
			log.Warn().Str("quantity", p).Msg("invalid quantity, skipping")
		}
	}
	return result
}

// sendOrder wraps the order in a resolve command and queues it on the server.
func sendOrder(client *bourseNet.Client, order *Order) error {
	raw, err := json.Marshal(order)
	if err != nil {
		return err
	}
	body, err := queue.NewMessage(server.HeaderResolveOrder, string(raw)).Encode()
	if err != nil {
		return err
	}
	return client.Send(bourseNet.NewNetworkMessage(bourseNet.HeaderMqPut, body))
}

// readUpdates prints stock and account updates until the connection closes.
func readUpdates(ctx context.Context, client *bourseNet.Client) {
	for {
		message, err := client.Receive()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				log.Error().Err(err).Msg("connection lost")
			}
			return
		}
		update, err := queue.DecodeMessage(message.Body)
		if err != nil {
			log.Warn().Err(err).Msg("malformed update")
			continue
		}

		switch message.Header {
		case bourseNet.HeaderUpdateStocks:
			var stocks []ledger.Stock
			if err := json.Unmarshal([]byte(update.Body), &stocks); err != nil {
				log.Warn().Err(err).Msg("malformed stock update")
				continue
			}
			for _, stock := range stocks {
				fmt.Printf("%-6s %10s  cap %s\n", stock.Symbol, stock.Price.StringFixed(2), stock.MarketCapitalization.String())
			}
		case bourseNet.HeaderUpdateTrader:
			var trader ledger.Trader
			if err := json.Unmarshal([]byte(update.Body), &trader); err != nil {
				log.Warn().Err(err).Msg("malformed trader update")
				continue
			}
			fmt.Printf("%s funds %d holdings %v fills %d\n\n", trader.ID, trader.Funds, trader.OwnedShares, len(trader.TransactionHistory))
		default:
			log.Debug().Str("header", message.Header).Msg("ignoring message")
		}
	}
}
