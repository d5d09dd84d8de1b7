package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"ffcalendar/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Calendar  CalendarConfig  `mapstructure:"calendar"`
	Scrape    ScrapeConfig    `mapstructure:"scrape"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// CalendarConfig locates the calendar and the zone its days are read in.
type CalendarConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	Timezone string `mapstructure:"timezone"`
}

// Location resolves the configured timezone.
func (c CalendarConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ScrapeConfig bounds every wait of a scrape and the retry policy.
type ScrapeConfig struct {
	Details         bool          `mapstructure:"details"`
	PageLoadTimeout time.Duration `mapstructure:"page_load_timeout"`
	TableTimeout    time.Duration `mapstructure:"table_timeout"`
	DetailTimeout   time.Duration `mapstructure:"detail_timeout"`
	DetailSettle    time.Duration `mapstructure:"detail_settle"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	RestartDelay    time.Duration `mapstructure:"restart_delay"`
}

// BrowserConfig describes the browser used to render pages.
type BrowserConfig struct {
	RemoteURL     string        `mapstructure:"remote_url"`
	ExecPath      string        `mapstructure:"exec_path"`
	Headless      bool          `mapstructure:"headless"`
	WindowWidth   int           `mapstructure:"window_width"`
	WindowHeight  int           `mapstructure:"window_height"`
	UserAgent     string        `mapstructure:"user_agent"`
	ActionTimeout time.Duration `mapstructure:"action_timeout"`
}

// StorageConfig selects the dataset backend.
type StorageConfig struct {
	Driver  string `mapstructure:"driver"`
	CSVPath string `mapstructure:"csv_path"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// SchedulerConfig governs the watch loop.
type SchedulerConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
	LookbackDays  int           `mapstructure:"lookback_days"`
	LookaheadDays int           `mapstructure:"lookahead_days"`
}

// MetricsConfig exposes Prometheus metrics.
type MetricsConfig struct {
	ListenAddr     string `mapstructure:"listen_addr"`
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// AlertingConfig defines digest routing.
type AlertingConfig struct {
	Enabled   bool           `mapstructure:"enabled"`
	MinImpact string         `mapstructure:"min_impact"`
	Telegram  TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram channel.
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// NATSConfig publishes newly captured events.
type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	DefaultDays int `mapstructure:"default_days"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FFCAL")
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
	v.SetDefault("app.name", "ffcal")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("calendar.base_url", "https://www.forexfactory.com/calendar")
	v.SetDefault("calendar.timezone", "Asia/Tehran")

	v.SetDefault("scrape.details", false)
	v.SetDefault("scrape.page_load_timeout", "180s")
	v.SetDefault("scrape.table_timeout", "25s")
	v.SetDefault("scrape.detail_timeout", "7s")
	v.SetDefault("scrape.detail_settle", "500ms")
	v.SetDefault("scrape.max_attempts", 3)
	v.SetDefault("scrape.restart_delay", "2s")

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.window_width", 1400)
	v.SetDefault("browser.window_height", 1000)
	v.SetDefault("browser.action_timeout", "15s")

	v.SetDefault("storage.driver", "csv")
	v.SetDefault("storage.csv_path", "forex_factory_cache.csv")

	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.advisory_lock_key", int64(0x66666361))

	v.SetDefault("scheduler.interval", "1h")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.lookback_days", 1)
	v.SetDefault("scheduler.lookahead_days", 7)

	v.SetDefault("metrics.listen_addr", ":9464")
	v.SetDefault("metrics.job", "ffcal")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.min_impact", "High")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "10s")

	v.SetDefault("nats.subject", "calendar.events")

	v.SetDefault("export.default_days", 30)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if _, err := c.Calendar.Location(); err != nil {
		return err
	}
	if c.Calendar.BaseURL == "" {
		return fmt.Errorf("calendar.base_url must be set")
	}
	if c.Scrape.MaxAttempts <= 0 {
		return fmt.Errorf("scrape.max_attempts must be greater than zero")
	}
	for name, d := range map[string]time.Duration{
		"scrape.page_load_timeout": c.Scrape.PageLoadTimeout,
		"scrape.table_timeout":     c.Scrape.TableTimeout,
		"scrape.detail_timeout":    c.Scrape.DetailTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be greater than zero", name)
		}
	}
	if c.Scrape.RestartDelay < 0 || c.Scrape.DetailSettle < 0 {
		return fmt.Errorf("scrape delays cannot be negative")
	}
	switch c.Storage.Driver {
	case "csv":
		if c.Storage.CSVPath == "" {
			return fmt.Errorf("storage.csv_path must be set for the csv driver")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn must be set for the postgres driver")
		}
	default:
		return fmt.Errorf("storage.driver must be csv or postgres, got %q", c.Storage.Driver)
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Scheduler.LookbackDays < 0 || c.Scheduler.LookaheadDays < 0 {
		return fmt.Errorf("scheduler lookback/lookahead cannot be negative")
	}
	if c.Export.DefaultDays <= 0 {
		return fmt.Errorf("export.default_days must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token must be set")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id must be set")
		}
	}
	return nil
}

// ResolveDays returns either the CLI override or config default.
func (c *Config) ResolveDays(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.DefaultDays
}
