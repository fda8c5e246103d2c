package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var DefaultSymbols = []string{"AAPL", "GOOGL", "MSFT", "AMZN", "TSLA"}

// Config holds the exchange settings read from the environment.
type Config struct {
	Symbols             []string
	OrdersPerSecond     int
	MarketMakerInterval time.Duration
	LaneBuffer          int
	FeedBuffer          int
	AnalyticsWindow     int
	AnalyticsRequest    int64
	ShutdownGrace       time.Duration
	AmqpURL             string
	TradeExchange       string
	DatabaseURL         string
}

func DefaultConfig() Config {
	return Config{
		Symbols:             append([]string(nil), DefaultSymbols...),
		OrdersPerSecond:     50,
		MarketMakerInterval: 2 * time.Second,
		LaneBuffer:          1024,
		FeedBuffer:          1024,
		AnalyticsWindow:     1000,
		AnalyticsRequest:    1,
		ShutdownGrace:       5 * time.Second,
		TradeExchange:       "TRADES.Exchange",
	}
}

// LoadConfig reads .env, when present, then the process environment.
func LoadConfig(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return ConfigFromEnv(os.Getenv)
}

// ConfigFromEnv builds a Config from getenv, keeping defaults for unset variables.
func ConfigFromEnv(getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()

	if v := getenv("EXCHANGE_SYMBOLS"); v != "" {
		symbols := make([]string, 0)
		for _, s := range strings.Split(v, ",") {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				symbols = append(symbols, s)
			}
		}
		if len(symbols) == 0 {
			return Config{}, fmt.Errorf("config: EXCHANGE_SYMBOLS has no symbols")
		}
		cfg.Symbols = symbols
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"ORDERS_PER_SECOND", &cfg.OrdersPerSecond},
		{"LANE_BUFFER", &cfg.LaneBuffer},
		{"FEED_BUFFER", &cfg.FeedBuffer},
		{"ANALYTICS_WINDOW", &cfg.AnalyticsWindow},
	}
	for _, e := range ints {
		if err := positiveInt(getenv, e.name, e.dst); err != nil {
			return Config{}, err
		}
	}
	request := int(cfg.AnalyticsRequest)
	if err := positiveInt(getenv, "ANALYTICS_REQUEST", &request); err != nil {
		return Config{}, err
	}
	cfg.AnalyticsRequest = int64(request)

	if err := duration(getenv, "MARKET_MAKER_INTERVAL", &cfg.MarketMakerInterval); err != nil {
		return Config{}, err
	}
	if err := duration(getenv, "SHUTDOWN_GRACE", &cfg.ShutdownGrace); err != nil {
		return Config{}, err
	}

	cfg.AmqpURL = getenv("AMQP_URL")
	cfg.DatabaseURL = getenv("DATABASE_URL")
	if v := getenv("TRADE_EXCHANGE"); v != "" {
		cfg.TradeExchange = v
	}
	return cfg, nil
}

func positiveInt(getenv func(string) string, name string, dst *int) error {
	v := getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fmt.Errorf("config: %s=%q must be a positive integer", name, v)
	}
	*dst = n
	return nil
}

func duration(getenv func(string) string, name string, dst *time.Duration) error {
	v := getenv(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fmt.Errorf("config: %s=%q must be a positive duration", name, v)
	}
	*dst = d
	return nil
}
