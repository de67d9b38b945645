package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider mode selects which data sources the adapter may use.
const (
	ModeAuto         = "auto"
	ModePrimaryOnly  = "primary-only"
	ModeFallbackOnly = "fallback-only"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Account struct {
		StartingCash float64 `yaml:"starting_cash"`
	} `yaml:"account"`
	Provider struct {
		Mode       string `yaml:"mode"`
		TimeoutSec int    `yaml:"timeout_sec"`
		Proxy      string `yaml:"proxy"`
	} `yaml:"provider"`
	Refresh struct {
		Enabled     bool `yaml:"enabled"`
		IntervalSec int  `yaml:"interval_sec"`
	} `yaml:"refresh"`
	Watchlist []string `yaml:"watchlist"`
	Benchmark string   `yaml:"benchmark"`
	Theme     string   `yaml:"theme"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("TRADEVIEW_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("STARTING_CASH"); v != "" {
		var cash float64
		if _, err := fmt.Sscanf(v, "%f", &cash); err == nil {
			cfg.Account.StartingCash = cash
		}
	}
	if v := os.Getenv("PROVIDER_MODE"); v != "" {
		cfg.Provider.Mode = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Provider.Proxy = v
	}
	if v := os.Getenv("REFRESH_INTERVAL"); v != "" {
		var sec int
		if _, err := fmt.Sscanf(v, "%d", &sec); err == nil {
			cfg.Refresh.IntervalSec = sec
		}
	}
	if v := os.Getenv("WATCHLIST"); v != "" {
		cfg.Watchlist = nil
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.Watchlist = append(cfg.Watchlist, s)
			}
		}
	}

	// Defaults
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8417"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/portfolio.db"
	}
	if cfg.Account.StartingCash == 0 {
		cfg.Account.StartingCash = 100000
	}
	if cfg.Provider.Mode == "" {
		cfg.Provider.Mode = ModeAuto
	}
	if cfg.Provider.TimeoutSec == 0 {
		cfg.Provider.TimeoutSec = 12
	}
	if cfg.Refresh.IntervalSec == 0 {
		cfg.Refresh.IntervalSec = 3
	}
	if len(cfg.Watchlist) == 0 {
		cfg.Watchlist = []string{"AAPL", "MSFT", "NVDA", "TSLA", "SPY"}
	}
	if cfg.Benchmark == "" {
		cfg.Benchmark = "SPY"
	}
	if cfg.Theme == "" {
		cfg.Theme = "dark"
	}

	return cfg, nil
}

// Validate checks that all fields are usable.
func (c *Config) Validate() error {
	if c.Account.StartingCash < 0 {
		return fmt.Errorf("account.starting_cash must not be negative")
	}
	switch c.Provider.Mode {
	case ModeAuto, ModePrimaryOnly, ModeFallbackOnly:
	default:
		return fmt.Errorf("provider.mode must be one of %s, %s, %s",
			ModeAuto, ModePrimaryOnly, ModeFallbackOnly)
	}
	if c.Provider.TimeoutSec <= 0 {
		return fmt.Errorf("provider.timeout_sec must be positive")
	}
	if c.Refresh.IntervalSec < 1 {
		return fmt.Errorf("refresh.interval_sec must be at least 1")
	}
	if len(c.Watchlist) > 15 {
		return fmt.Errorf("watchlist is limited to 15 symbols")
	}
	return nil
}
