package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Tables.Source != SourcePostgres || cfg.Tables.ReturnsKey != "From" {
		t.Fatalf("unexpected tables defaults %+v", cfg.Tables)
	}
	if cfg.Engine.RiskFreeRate != 4.25 || cfg.Engine.MinPoints != 10 || cfg.Engine.FallbackWindow != 50 {
		t.Fatalf("unexpected engine defaults %+v", cfg.Engine)
	}
	if cfg.Refresh.Interval != time.Hour {
		t.Fatalf("unexpected refresh interval %v", cfg.Refresh.Interval)
	}
	if len(cfg.Process.Periods) != 5 || cfg.Process.Periods[4] != 10 {
		t.Fatalf("unexpected process periods %v", cfg.Process.Periods)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
tables:
  source: csv
  returns_csv: returns.csv
engine:
  min_points: 5
alerting:
  cooldown: 30m
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("INDEXRETURNS_ENGINE_FALLBACK_WINDOW", "20")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Tables.Source != SourceCSV || cfg.Tables.ReturnsCSV != "returns.csv" {
		t.Fatalf("file values not applied: %+v", cfg.Tables)
	}
	if cfg.Engine.MinPoints != 5 || cfg.Engine.FallbackWindow != 20 {
		t.Fatalf("unexpected engine config %+v", cfg.Engine)
	}
	if cfg.Alerting.Cooldown != 30*time.Minute {
		t.Fatalf("unexpected cooldown %v", cfg.Alerting.Cooldown)
	}
}

func TestValidate(t *testing.T) {
	base, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cases := map[string]func(c *Config){
		"unknown source":  func(c *Config) { c.Tables.Source = "sqlite" },
		"no returns key":  func(c *Config) { c.Tables.ReturnsKey = "" },
		"zero fan out":    func(c *Config) { c.Engine.FanOutLimit = 0 },
		"negative period": func(c *Config) { c.Process.Periods = []int{1, -3} },
		"telegram token":  func(c *Config) { c.Alerting.Telegram.Enabled = true },
	}
	for name, mutate := range cases {
		cfg := *base
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected a validation error", name)
		}
	}
}

func TestResolveExportDir(t *testing.T) {
	cfg := &Config{Export: ExportConfig{Dir: "out"}}
	if got := cfg.ResolveExportDir(""); got != "out" {
		t.Fatalf("expected config dir, got %q", got)
	}
	if got := cfg.ResolveExportDir("tmp"); got != "tmp" {
		t.Fatalf("expected override, got %q", got)
	}
}
