package infra

import (
	"os"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Source:  SourceConfig{BaseURL: "http://localhost:5000", Timeout: 5 * time.Second, CacheTTL: time.Minute},
		Poller:  PollerConfig{Interval: 5 * time.Second, StatsHours: 24, TrendHours: 12, MaxRangeHours: 720},
		Display: DisplayConfig{Timezone: "UTC"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing base url", func(c *Config) { c.Source.BaseURL = "" }, true},
		{"zero timeout", func(c *Config) { c.Source.Timeout = 0 }, true},
		{"negative ttl", func(c *Config) { c.Source.CacheTTL = -time.Second }, true},
		{"zero interval", func(c *Config) { c.Poller.Interval = 0 }, true},
		{"zero stats hours", func(c *Config) { c.Poller.StatsHours = 0 }, true},
		{"max range below default window", func(c *Config) { c.Poller.MaxRangeHours = 12 }, true},
		{"missing max range", func(c *Config) { c.Poller.MaxRangeHours = 0 }, true},
		{"unknown zone", func(c *Config) { c.Display.Timezone = "Mars/Olympus" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("SOURCE_BASE_URL", "http://api.internal:5000")
	t.Setenv("DISPLAY_TIMEZONE", "UTC")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Source.BaseURL != "http://api.internal:5000" {
		t.Errorf("expected env override for base url, got %q", cfg.Source.BaseURL)
	}
	if cfg.Source.CacheTTL != time.Minute {
		t.Errorf("expected default cache ttl 1m, got %s", cfg.Source.CacheTTL)
	}
	if cfg.Poller.Interval != 5*time.Second {
		t.Errorf("expected default interval 5s, got %s", cfg.Poller.Interval)
	}
	if cfg.Poller.MaxRangeHours != 720 {
		t.Errorf("expected default max range 720h, got %d", cfg.Poller.MaxRangeHours)
	}
	if cfg.Poller.CriticalThreshold != 8 {
		t.Errorf("expected default critical threshold 8, got %d", cfg.Poller.CriticalThreshold)
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := NewLogger(LoggerConfig{Level: "debug", Format: "console"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewLogger(LoggerConfig{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
