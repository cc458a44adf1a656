package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"goldchecker/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Server    ServerConfig    `mapstructure:"server"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// ProviderConfig covers the Dubai City of Gold rate app.
type ProviderConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	VendorKey     string        `mapstructure:"vendor_key"`
	Timeout       time.Duration `mapstructure:"timeout"`
	UserAgent     string        `mapstructure:"user_agent"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
}

// BackendConfig covers the GoldChecker backend API.
type BackendConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	ContentURL string        `mapstructure:"content_url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimit  int           `mapstructure:"rate_limit"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity. An empty DSN disables
// the local snapshot archive.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// CacheConfig sets freshness windows.
type CacheConfig struct {
	LiveTTL       time.Duration `mapstructure:"live_ttl"`
	ComparisonTTL time.Duration `mapstructure:"comparison_ttl"`
	ChartTTL      time.Duration `mapstructure:"chart_ttl"`
}

// ReconcileConfig tunes live-versus-persisted reconciliation and write-back.
type ReconcileConfig struct {
	Tolerance    decimal.Decimal `mapstructure:"tolerance"`
	QueueSize    int             `mapstructure:"queue_size"`
	MaxAttempts  int             `mapstructure:"max_attempts"`
	RetryBackoff time.Duration   `mapstructure:"retry_backoff"`
	DrainTimeout time.Duration   `mapstructure:"drain_timeout"`
}

// SchedulerConfig governs the daily sync and midnight rollover.
type SchedulerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	SyncAt          string        `mapstructure:"sync_at"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// SyncConfig guards the manual and cron sync endpoints.
type SyncConfig struct {
	APIKey     string `mapstructure:"api_key"`
	CronSecret string `mapstructure:"cron_secret"`
}

// AlertingConfig defines operator notices.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Cooldown time.Duration  `mapstructure:"cooldown"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram bot used for notices.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GOLDCHECKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "goldchecker")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.request_timeout", "20s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("provider.endpoint", "https://dubaicityofgold.com/gold-rate-app/dcoggoldrate")
	v.SetDefault("provider.vendor_key", "DCOG_KEY_964592976")
	v.SetDefault("provider.timeout", "10s")
	v.SetDefault("provider.rate_per_second", 1.0)

	v.SetDefault("backend.base_url", "https://back.goldchecker.ae")
	v.SetDefault("backend.content_url", "https://api.goldchecker.ae/api")
	v.SetDefault("backend.api_key", "")
	v.SetDefault("backend.timeout", "10s")
	v.SetDefault("backend.rate_limit", 5)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("cache.live_ttl", "5m")
	v.SetDefault("cache.comparison_ttl", "1m")
	v.SetDefault("cache.chart_ttl", "10m")

	v.SetDefault("reconcile.tolerance", "0.01")
	v.SetDefault("reconcile.queue_size", 16)
	v.SetDefault("reconcile.max_attempts", 3)
	v.SetDefault("reconcile.retry_backoff", "2s")
	v.SetDefault("reconcile.drain_timeout", "5s")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.sync_at", "09:30")
	v.SetDefault("scheduler.advisory_lock_key", int64(0x474f4c44))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("sync.api_key", "")
	v.SetDefault("sync.cron_secret", "")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.cooldown", "30m")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.bot_token", "")
	v.SetDefault("alerting.telegram.chat_id", "")
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 3660)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			stringToDecimalHookFunc(),
		)
	}
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

func stringToDecimalHookFunc() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != decimalType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return decimal.NewFromString(strings.TrimSpace(v))
		case float64:
			return decimal.NewFromFloat(v), nil
		case float32:
			return decimal.NewFromFloat32(v), nil
		case int:
			return decimal.NewFromInt(int64(v)), nil
		case int64:
			return decimal.NewFromInt(v), nil
		}
		return data, nil
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Reconcile.Tolerance.IsNegative() {
		return fmt.Errorf("reconcile.tolerance cannot be negative")
	}
	if c.Reconcile.QueueSize <= 0 {
		return fmt.Errorf("reconcile.queue_size must be greater than zero")
	}
	if c.Reconcile.MaxAttempts <= 0 {
		return fmt.Errorf("reconcile.max_attempts must be greater than zero")
	}
	if c.Cache.LiveTTL <= 0 || c.Cache.ComparisonTTL <= 0 || c.Cache.ChartTTL <= 0 {
		return fmt.Errorf("cache ttls must be greater than zero")
	}
	if c.Provider.Endpoint == "" {
		return fmt.Errorf("provider.endpoint is required")
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if c.Scheduler.Enabled {
		if _, _, err := c.Scheduler.SyncClock(); err != nil {
			return err
		}
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}

// SyncClock parses scheduler.sync_at as an HH:MM Dubai wall clock time.
func (s SchedulerConfig) SyncClock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s.SyncAt))
	if err != nil {
		return 0, 0, fmt.Errorf("scheduler.sync_at must be HH:MM, got %q", s.SyncAt)
	}
	return t.Hour(), t.Minute(), nil
}

// ArchiveEnabled reports whether a local Postgres archive is configured.
func (c *Config) ArchiveEnabled() bool {
	return strings.TrimSpace(c.Database.DSN) != ""
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
