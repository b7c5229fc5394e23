package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Source     SourceConfig     `yaml:"source" mapstructure:"source"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	History    HistoryConfig    `yaml:"history" mapstructure:"history"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// SourceConfig configures the remote organization directory.
type SourceConfig struct {
	URL         string  `yaml:"url" mapstructure:"url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// Timeout returns the per-request timeout.
func (s SourceConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSecs) * time.Second
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host           string   `yaml:"host" mapstructure:"host"`
	Port           int      `yaml:"port" mapstructure:"port"`
	DefaultPerPage int      `yaml:"default_per_page" mapstructure:"default_per_page"`
	MaxPerPage     int      `yaml:"max_per_page" mapstructure:"max_per_page"`
	CORSOrigins    []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// HistoryConfig configures the refresh history store.
type HistoryConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// MonitoringConfig configures refresh health alerting. Alerts are only
// sent when WebhookURL is set.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	StaleAfterHours      int     `yaml:"stale_after_hours" mapstructure:"stale_after_hours"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("RESO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("source.url", "https://services.reso.org/orgs")
	v.SetDefault("source.timeout_secs", 30)
	v.SetDefault("source.max_attempts", 1)
	v.SetDefault("source.user_agent", "reso-directory/1.0")
	v.SetDefault("source.rate_per_sec", 2.0)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 7766)
	v.SetDefault("server.default_per_page", 25)
	v.SetDefault("server.max_per_page", 500)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("history.driver", "sqlite")
	v.SetDefault("history.database_url", "reso-directory.db")
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.stale_after_hours", 168)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings every command depends on.
func (c *Config) Validate() error {
	var problems []string
	if c.Source.URL == "" {
		problems = append(problems, "source.url is required (RESO_SOURCE_URL)")
	}
	if c.Source.TimeoutSecs <= 0 {
		problems = append(problems, "source.timeout_secs must be positive")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.DefaultPerPage <= 0 {
		problems = append(problems, "server.default_per_page must be positive")
	}
	if c.Server.MaxPerPage < c.Server.DefaultPerPage {
		problems = append(problems, "server.max_per_page must be at least server.default_per_page")
	}
	switch c.History.Driver {
	case "sqlite", "postgres", "none", "":
	default:
		problems = append(problems, fmt.Sprintf("history.driver %q is not one of sqlite, postgres, none", c.History.Driver))
	}
	if c.History.Driver == "postgres" && c.History.DatabaseURL == "" {
		problems = append(problems, "history.database_url is required for the postgres driver")
	}
	if t := c.Monitoring.FailureRateThreshold; t < 0 || t > 1 {
		problems = append(problems, fmt.Sprintf("monitoring.failure_rate_threshold %.2f not in [0, 1]", t))
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
