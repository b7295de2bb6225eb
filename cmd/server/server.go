package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	. "bourse/internal/common"
	"bourse/internal/config"
	"bourse/internal/engine"
	"bourse/internal/server"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	envPath := flag.String("env", ".env", "Path to an optional .env file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*envPath)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	setupLogging(cfg.Log)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	stocks, err := config.LoadStocks(cfg.Rosters.StocksFile)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load stocks")
	}
	traders, err := config.LoadTraders(cfg.Rosters.TradersFile)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load traders")
	}
	log.Info().
		Int("stocks", stocks.Len()).
		Int("traders", traders.Len()).
		Msg("rosters loaded")

	// Setup the exchange and the strategies it resolves orders with.
	exchange := engine.New(stocks, traders, nil, nil, engine.Options{
		StrictCounterpartyCheck: cfg.Exchange.StrictCounterpartyCheck,
	})
	if err := exchange.RegisterStrategy(LimitOrder, engine.LimitMatcher{}); err != nil {
		log.Fatal().Err(err).Msg("unable to register limit matcher")
	}

	srv, err := server.Create(cfg, exchange)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to create server")
	}

	// Block on running the server.
	if err := srv.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func setupLogging(cfg config.Log) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		log.Warn().Str("level", cfg.Level).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	}
}
