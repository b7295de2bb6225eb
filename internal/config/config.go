package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Exchange struct {
	Address string
	Port    int
	Workers uint
	// StrictCounterpartyCheck validates resting traders against the fill
	// instead of against their own order.
	StrictCounterpartyCheck bool
}

type Feed struct {
	// Address of the read-only HTTP feed. Empty disables it.
	Address string
}

type Updater struct {
	Interval time.Duration
}

type Rosters struct {
	StocksFile  string
	TradersFile string
}

type Log struct {
	Level  string
	Pretty bool
}

type Config struct {
	Exchange Exchange
	Feed     Feed
	Updater  Updater
	Rosters  Rosters
	Log      Log
}

func Default() Config {
	return Config{
		Exchange: Exchange{
			Address: "0.0.0.0",
			Port:    8080,
			Workers: 10,
		},
		Feed: Feed{
			Address: "0.0.0.0:8081",
		},
		Updater: Updater{
			Interval: time.Second,
		},
		Rosters: Rosters{
			StocksFile:  "yaml/stocks.yaml",
			TradersFile: "yaml/traders.yaml",
		},
		Log: Log{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if it exists) and the
// environment. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) (Config, error) {
	cfg := Default()

	if envPath == "" {
		envPath = ".env"
	}
	file, err := godotenv.Read(envPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("unable to read %s: %w", envPath, err)
	}
	lookup := func(key string) string {
		if value, ok := os.LookupEnv(key); ok {
			return value
		}
		return file[key]
	}

	if v := lookup("EXCHANGE_ADDRESS"); v != "" {
		cfg.Exchange.Address = v
	}
	// MESSAGE_QUEUE_PORT is the older name for the exchange port.
	for _, key := range []string{"MESSAGE_QUEUE_PORT", "EXCHANGE_PORT"} {
		if v := lookup(key); v != "" {
			port, err := strconv.Atoi(v)
			if err != nil || port < 0 || port > 65535 {
				return Config{}, fmt.Errorf("invalid %s %q", key, v)
			}
			cfg.Exchange.Port = port
		}
	}
	if v := lookup("WORKERS"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil || n == 0 {
			return Config{}, fmt.Errorf("invalid WORKERS %q", v)
		}
		cfg.Exchange.Workers = uint(n)
	}
	if v := lookup("STRICT_COUNTERPARTY_CHECK"); v != "" {
		strict, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid STRICT_COUNTERPARTY_CHECK %q: %w", v, err)
		}
		cfg.Exchange.StrictCounterpartyCheck = strict
	}
	if v, ok := os.LookupEnv("FEED_ADDRESS"); ok {
		cfg.Feed.Address = v
	} else if v, ok := file["FEED_ADDRESS"]; ok {
		cfg.Feed.Address = v
	}
	if v := lookup("UPDATE_INTERVAL_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return Config{}, fmt.Errorf("invalid UPDATE_INTERVAL_MS %q", v)
		}
		cfg.Updater.Interval = time.Duration(ms) * time.Millisecond
	}
	if v := lookup("STOCKS_FILE"); v != "" {
		cfg.Rosters.StocksFile = v
	}
	if v := lookup("TRADERS_FILE"); v != "" {
		cfg.Rosters.TradersFile = v
	}
	if v := lookup("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := lookup("LOG_PRETTY"); v != "" {
		cfg.Log.Pretty = v == "true"
	}

	return cfg, nil
}
