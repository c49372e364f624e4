package config

import (
	"testing"
	"time"
)

func TestParseSymbols(t *testing.T) {
	symbols, bases, err := ParseSymbols(" aapl:150.5, MSFT , GOOGL:135,AAPL:999,")
	if err != nil {
		t.Fatalf("ParseSymbols: %v", err)
	}
	want := []string{"AAPL", "MSFT", "GOOGL"}
	if len(symbols) != len(want) {
		t.Fatalf("symbols = %v, want %v", symbols, want)
	}
	for i := range want {
		if symbols[i] != want[i] {
			t.Errorf("symbols[%d] = %q, want %q", i, symbols[i], want[i])
		}
	}
	if bases["AAPL"] != 150.5 || bases["MSFT"] != 100 || bases["GOOGL"] != 135 {
		t.Errorf("bases = %v", bases)
	}
}

func TestParseSymbols_Errors(t *testing.T) {
	for _, in := range []string{"AAPL:abc", "AAPL:-5", ":150"} {
		if _, _, err := ParseSymbols(in); err == nil {
			t.Errorf("ParseSymbols(%q): expected error", in)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"FEED_SYMBOLS", "TICK_INTERVAL_MS", "HISTORY_POINTS", "MAX_LENGTH", "REDIS_ADDR", "SQLITE_PATH"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Symbols) != 5 || cfg.Symbols[0] != "AAPL" {
		t.Errorf("symbols = %v", cfg.Symbols)
	}
	if cfg.TickInterval != time.Second {
		t.Errorf("interval = %v, want 1s", cfg.TickInterval)
	}
	if cfg.HistoryPoints != 120 || cfg.MaxLength != 600 {
		t.Errorf("history/max = %d/%d", cfg.HistoryPoints, cfg.MaxLength)
	}
	if cfg.RedisAddr != "" || cfg.SQLitePath != "" {
		t.Error("sinks should be disabled by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("FEED_SYMBOLS", "BTC:60000")
	t.Setenv("TICK_INTERVAL_MS", "250")
	t.Setenv("TICK_VOLATILITY", "0.05")
	t.Setenv("HISTORY_POINTS", "10")
	t.Setenv("MAX_LENGTH", "20")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TickInterval != 250*time.Millisecond || cfg.Volatility != 0.05 {
		t.Errorf("interval/volatility = %v/%v", cfg.TickInterval, cfg.Volatility)
	}
	if cfg.BasePrices["BTC"] != 60000 {
		t.Errorf("base = %v", cfg.BasePrices)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Symbols:       []string{"AAPL"},
			TickInterval:  time.Second,
			Volatility:    0.01,
			MinPrice:      0.01,
			HistoryPoints: 10,
			MaxLength:     100,
		}
	}
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no symbols", func(c *Config) { c.Symbols = nil }},
		{"zero interval", func(c *Config) { c.TickInterval = 0 }},
		{"volatility too big", func(c *Config) { c.Volatility = 1.5 }},
		{"zero floor", func(c *Config) { c.MinPrice = 0 }},
		{"history beyond cap", func(c *Config) { c.HistoryPoints = 101 }},
	}
	if err := base().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadViewer(t *testing.T) {
	t.Setenv("VIEWER_SYMBOL", "msft")
	t.Setenv("VIEWER_PERIOD", "5")
	t.Setenv("VIEWER_RECONNECT_MS", "")

	cfg, err := LoadViewer()
	if err != nil {
		t.Fatalf("LoadViewer: %v", err)
	}
	if cfg.Symbol != "MSFT" || cfg.Period != 5 || cfg.ReconnectDelay != time.Second {
		t.Errorf("cfg = %+v", cfg)
	}

	t.Setenv("VIEWER_PERIOD", "1")
	if _, err := LoadViewer(); err == nil {
		t.Error("period 1 should be rejected")
	}
}
