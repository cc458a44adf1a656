package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("defaults should load without a file: %v", err)
	}
	if cfg.Cache.LiveTTL != 5*time.Minute || cfg.Cache.ComparisonTTL != time.Minute || cfg.Cache.ChartTTL != 10*time.Minute {
		t.Fatalf("unexpected cache ttls %+v", cfg.Cache)
	}
	if !cfg.Reconcile.Tolerance.Equal(decimal.RequireFromString("0.01")) {
		t.Fatalf("unexpected tolerance %s", cfg.Reconcile.Tolerance)
	}
	if cfg.Provider.VendorKey == "" {
		t.Fatal("vendor key default missing")
	}
	if cfg.ArchiveEnabled() {
		t.Fatal("archive must be disabled without a dsn")
	}
	if h, m, err := cfg.Scheduler.SyncClock(); err != nil || h != 9 || m != 30 {
		t.Fatalf("unexpected sync clock %d:%d %v", h, m, err)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte(`
server:
  addr: ":9090"
reconcile:
  tolerance: 0.05
database:
  dsn: postgres://localhost/gold
scheduler:
  sync_at: "07:15"
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GOLDCHECKER_SYNC_API_KEY", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("addr not read from file: %q", cfg.Server.Addr)
	}
	if !cfg.Reconcile.Tolerance.Equal(decimal.RequireFromString("0.05")) {
		t.Fatalf("tolerance not decoded: %s", cfg.Reconcile.Tolerance)
	}
	if !cfg.ArchiveEnabled() {
		t.Fatal("archive should be enabled with a dsn")
	}
	if cfg.Sync.APIKey != "from-env" {
		t.Fatalf("env override missing: %q", cfg.Sync.APIKey)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Provider:  ProviderConfig{Endpoint: "http://x"},
			Backend:   BackendConfig{BaseURL: "http://y"},
			Cache:     CacheConfig{LiveTTL: time.Minute, ComparisonTTL: time.Minute, ChartTTL: time.Minute},
			Reconcile: ReconcileConfig{Tolerance: decimal.RequireFromString("0.01"), QueueSize: 1, MaxAttempts: 1},
			Scheduler: SchedulerConfig{Enabled: true, SyncAt: "09:30"},
			Export:    ExportConfig{MaxDataPoints: 10},
		}
	}

	ok := base()
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := map[string]func(*Config){
		"negative tolerance": func(c *Config) { c.Reconcile.Tolerance = decimal.RequireFromString("-1") },
		"bad sync clock":     func(c *Config) { c.Scheduler.SyncAt = "25:99" },
		"zero ttl":           func(c *Config) { c.Cache.ChartTTL = 0 },
		"telegram no token":  func(c *Config) { c.Alerting.Telegram = TelegramConfig{Enabled: true, ChatID: "1"} },
		"no endpoint":        func(c *Config) { c.Provider.Endpoint = "" },
	}
	for name, mutate := range cases {
		c := base()
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}
