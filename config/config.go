package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultSymbols is the universe used when FEED_SYMBOLS is unset.
const DefaultSymbols = "AAPL:150,MSFT:320,GOOGL:135,AMZN:130,TSLA:250"

// Config holds the feed server configuration loaded from environment variables.
type Config struct {
	FeedAddr    string
	MetricsAddr string

	// Universe, in order, with each symbol's starting price.
	Symbols    []string
	BasePrices map[string]float64

	TickInterval  time.Duration
	Volatility    float64
	MinPrice      float64
	HistoryPoints int
	MaxLength     int

	// Optional sinks. Empty disables.
	RedisAddr     string
	RedisPassword string
	SQLitePath    string

	LogLevel string
}

// ViewerConfig holds the terminal viewer configuration.
type ViewerConfig struct {
	URL            string
	HistoryURL     string
	Symbol         string
	MaxPoints      int
	Period         int
	ReconnectDelay time.Duration
	LogLevel       string
}

// LoadDotEnv loads a .env file from the working directory if one exists.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("[config] could not read .env", "error", err)
	}
}

// Load reads the feed server configuration with defaults.
func Load() (*Config, error) {
	LoadDotEnv()

	symbols, bases, err := ParseSymbols(getEnv("FEED_SYMBOLS", DefaultSymbols))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		FeedAddr:    getEnv("FEED_ADDR", ":8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		Symbols:    symbols,
		BasePrices: bases,

		TickInterval:  time.Duration(getEnvInt("TICK_INTERVAL_MS", 1000)) * time.Millisecond,
		Volatility:    getEnvFloat("TICK_VOLATILITY", 0.01),
		MinPrice:      getEnvFloat("MIN_PRICE", 0.01),
		HistoryPoints: getEnvInt("HISTORY_POINTS", 120),
		MaxLength:     getEnvInt("MAX_LENGTH", 600),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
	return cfg, cfg.Validate()
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch {
	case len(c.Symbols) == 0:
		return errors.New("config: FEED_SYMBOLS is empty")
	case c.TickInterval <= 0:
		return fmt.Errorf("config: TICK_INTERVAL_MS must be positive, got %v", c.TickInterval)
	case c.Volatility <= 0 || c.Volatility >= 1:
		return fmt.Errorf("config: TICK_VOLATILITY must be in (0, 1), got %v", c.Volatility)
	case c.MinPrice <= 0:
		return fmt.Errorf("config: MIN_PRICE must be positive, got %v", c.MinPrice)
	case c.MaxLength <= 0:
		return fmt.Errorf("config: MAX_LENGTH must be positive, got %d", c.MaxLength)
	case c.HistoryPoints < 0 || c.HistoryPoints > c.MaxLength:
		return fmt.Errorf("config: HISTORY_POINTS must be in [0, MAX_LENGTH=%d], got %d", c.MaxLength, c.HistoryPoints)
	}
	return nil
}

// LoadViewer reads the viewer configuration with defaults.
func LoadViewer() (*ViewerConfig, error) {
	LoadDotEnv()

	cfg := &ViewerConfig{
		URL:            getEnv("VIEWER_URL", "ws://localhost:8080/ws"),
		HistoryURL:     getEnv("VIEWER_HISTORY_URL", "http://localhost:8080/api/history"),
		Symbol:         strings.ToUpper(getEnv("VIEWER_SYMBOL", "AAPL")),
		MaxPoints:      getEnvInt("VIEWER_MAX_POINTS", 60),
		Period:         getEnvInt("VIEWER_PERIOD", 10),
		ReconnectDelay: time.Duration(getEnvInt("VIEWER_RECONNECT_MS", 1000)) * time.Millisecond,
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}
	if cfg.MaxPoints <= 0 {
		return nil, fmt.Errorf("config: VIEWER_MAX_POINTS must be positive, got %d", cfg.MaxPoints)
	}
	if cfg.Period < 2 {
		return nil, fmt.Errorf("config: VIEWER_PERIOD must be at least 2, got %d", cfg.Period)
	}
	return cfg, nil
}

// ParseSymbols parses "AAPL:150,MSFT:320". A symbol without a price starts
// at 100. Symbols are upper-cased and de-duplicated, keeping first order.
func ParseSymbols(s string) ([]string, map[string]float64, error) {
	var symbols []string
	bases := make(map[string]float64)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		sym, priceStr, hasPrice := strings.Cut(part, ":")
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			return nil, nil, fmt.Errorf("config: empty symbol in %q", part)
		}
		price := 100.0
		if hasPrice {
			p, err := strconv.ParseFloat(strings.TrimSpace(priceStr), 64)
			if err != nil || p <= 0 {
				return nil, nil, fmt.Errorf("config: bad base price for %s: %q", sym, priceStr)
			}
			price = p
		}
		if _, dup := bases[sym]; dup {
			slog.Warn("[config] duplicate symbol ignored", "symbol", sym)
			continue
		}
		symbols = append(symbols, sym)
		bases[sym] = price
	}
	return symbols, bases, nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		slog.Warn("[config] invalid integer, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		slog.Warn("[config] invalid number, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return f
}
