package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"index-returns/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Tables   TablesConfig   `mapstructure:"tables"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Server   ServerConfig   `mapstructure:"server"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	Alerting AlertingConfig `mapstructure:"alerting"`
	Export   ExportConfig   `mapstructure:"export"`
	Process  ProcessConfig  `mapstructure:"process"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// Table sources.
const (
	SourcePostgres = "postgres"
	SourceCSV      = "csv"
)

// TablesConfig names the tables the engine reads and where they live.
type TablesConfig struct {
	Source        string `mapstructure:"source"`
	Returns       string `mapstructure:"returns"`
	ReturnsKey    string `mapstructure:"returns_key"`
	Levels        string `mapstructure:"levels"`
	LevelsKey     string `mapstructure:"levels_key"`
	HeaderPattern string `mapstructure:"header_pattern"`
	ReturnsCSV    string `mapstructure:"returns_csv"`
	LevelsCSV     string `mapstructure:"levels_csv"`
}

// EngineConfig tunes date resolution, fan-out and the synthetic paths.
type EngineConfig struct {
	RiskFreeRate   float64 `mapstructure:"risk_free_rate"`
	MinPoints      int     `mapstructure:"min_points"`
	FallbackWindow int     `mapstructure:"fallback_window"`
	FanOutLimit    int     `mapstructure:"fan_out_limit"`
	StrictPercent  bool    `mapstructure:"strict_percent"`
	SyntheticSeed  uint64  `mapstructure:"synthetic_seed"`
}

// ServerConfig covers the HTTP transport.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// RefreshConfig governs the periodic repository reload.
type RefreshConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Interval     time.Duration `mapstructure:"interval"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
}

// AlertingConfig defines data-quality notification routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Cooldown time.Duration  `mapstructure:"cooldown"`
	Channels []string       `mapstructure:"channels"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	Dir         string `mapstructure:"dir"`
	ChartWidth  int    `mapstructure:"chart_width"`
	ChartHeight int    `mapstructure:"chart_height"`
}

// ProcessConfig drives the returns-table loader.
type ProcessConfig struct {
	Periods         []int  `mapstructure:"periods"`
	HeaderLabel     string `mapstructure:"header_label"`
	AdvisoryLockKey int64  `mapstructure:"advisory_lock_key"`
}

// LoadEnv loads .env style files into the process environment. Missing
// files are ignored unless explicitly named.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		_ = godotenv.Load()
		return nil
	}
	if err := godotenv.Load(paths...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("INDEXRETURNS")
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
	v.SetDefault("app.name", "indexreturns")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("tables.source", SourcePostgres)
	v.SetDefault("tables.returns", "returns")
	v.SetDefault("tables.returns_key", "From")
	v.SetDefault("tables.levels", "levels")
	v.SetDefault("tables.levels_key", "Date")
	v.SetDefault("tables.header_pattern", "Annualized%")

	v.SetDefault("engine.risk_free_rate", 4.25)
	v.SetDefault("engine.min_points", 10)
	v.SetDefault("engine.fallback_window", 50)
	v.SetDefault("engine.fan_out_limit", 4)
	v.SetDefault("engine.strict_percent", false)
	v.SetDefault("engine.synthetic_seed", 0)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("refresh.enabled", true)
	v.SetDefault("refresh.interval", "1h")
	v.SetDefault("refresh.startup_delay", "0s")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.cooldown", "6h")
	v.SetDefault("alerting.channels", []string{"log"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.dir", ".")
	v.SetDefault("export.chart_width", 1280)
	v.SetDefault("export.chart_height", 720)

	v.SetDefault("process.periods", []int{1, 3, 5, 7, 10})
	v.SetDefault("process.header_label", "Annualized Return")
	v.SetDefault("process.advisory_lock_key", int64(0x69727472))
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
		dc.WeaklyTypedInput = true
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	switch c.Tables.Source {
	case SourcePostgres, SourceCSV:
	default:
		return fmt.Errorf("tables.source must be %q or %q", SourcePostgres, SourceCSV)
	}
	if c.Tables.Returns == "" || c.Tables.ReturnsKey == "" {
		return fmt.Errorf("tables.returns and tables.returns_key are required")
	}
	if c.Tables.Levels == "" || c.Tables.LevelsKey == "" {
		return fmt.Errorf("tables.levels and tables.levels_key are required")
	}
	if c.Engine.MinPoints <= 0 {
		return fmt.Errorf("engine.min_points must be greater than zero")
	}
	if c.Engine.FallbackWindow <= 0 {
		return fmt.Errorf("engine.fallback_window must be greater than zero")
	}
	if c.Engine.FanOutLimit <= 0 {
		return fmt.Errorf("engine.fan_out_limit must be greater than zero")
	}
	if c.Refresh.Enabled && c.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh.interval must be greater than zero")
	}
	if c.Export.ChartWidth <= 0 || c.Export.ChartHeight <= 0 {
		return fmt.Errorf("export chart dimensions must be greater than zero")
	}
	for _, years := range c.Process.Periods {
		if years <= 0 {
			return fmt.Errorf("process.periods must be positive, got %d", years)
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

// ResolveExportDir returns either the CLI override or config default.
func (c *Config) ResolveExportDir(override string) string {
	if override != "" {
		return override
	}
	return c.Export.Dir
}
