package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Account.StartingCash != 100000 {
		t.Errorf("expected default starting cash 100000, got %v", cfg.Account.StartingCash)
	}
	if cfg.Provider.Mode != ModeAuto {
		t.Errorf("expected default mode auto, got %q", cfg.Provider.Mode)
	}
	if cfg.Refresh.IntervalSec != 3 {
		t.Errorf("expected default refresh interval 3, got %d", cfg.Refresh.IntervalSec)
	}
	if len(cfg.Watchlist) == 0 {
		t.Error("expected non-empty default watchlist")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
account:
  starting_cash: 25000
provider:
  mode: primary-only
watchlist: [AAPL, SPY]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PROVIDER_MODE", "fallback-only")
	t.Setenv("STARTING_CASH", "50000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Provider.Mode != ModeFallbackOnly {
		t.Errorf("env should override file: got %q", cfg.Provider.Mode)
	}
	if cfg.Account.StartingCash != 50000 {
		t.Errorf("env should override file: got %v", cfg.Account.StartingCash)
	}
	if len(cfg.Watchlist) != 2 {
		t.Errorf("expected 2 watchlist symbols, got %d", len(cfg.Watchlist))
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative cash", func(c *Config) { c.Account.StartingCash = -1 }},
		{"bad mode", func(c *Config) { c.Provider.Mode = "yahoo" }},
		{"zero timeout", func(c *Config) { c.Provider.TimeoutSec = 0 }},
		{"sub-second refresh", func(c *Config) { c.Refresh.IntervalSec = 0 }},
	}
	for _, tt := range tests {
		cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
		if err != nil {
			t.Fatal(err)
		}
		tt.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}
