package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Attribution AttributionConfig `yaml:"attribution" mapstructure:"attribution"`
	Loader      LoaderConfig      `yaml:"loader" mapstructure:"loader"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the read-only analytics database.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port                  int      `yaml:"port" mapstructure:"port"`
	CORSOrigins           []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RateLimitRPS          float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst        int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
	ReadHeaderTimeoutSecs int      `yaml:"read_header_timeout_secs" mapstructure:"read_header_timeout_secs"`
}

// AttributionConfig configures signal fetching and the reconciliation policy.
type AttributionConfig struct {
	SourceTimeoutSecs int    `yaml:"source_timeout_secs" mapstructure:"source_timeout_secs"`
	MaxRangeDays      int    `yaml:"max_range_days" mapstructure:"max_range_days"`
	PolicyFile        string `yaml:"policy_file" mapstructure:"policy_file"`
}

// LoaderConfig configures the bulk conversion-event loader.
type LoaderConfig struct {
	BatchSize   int `yaml:"batch_size" mapstructure:"batch_size"`
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ATTRIBUTION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit_rps", 20.0)
	v.SetDefault("server.rate_limit_burst", 40)
	v.SetDefault("server.read_header_timeout_secs", 10)
	v.SetDefault("attribution.source_timeout_secs", 15)
	v.SetDefault("attribution.max_range_days", 366)
	v.SetDefault("loader.batch_size", 10000)
	v.SetDefault("loader.max_attempts", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
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

// Validate checks the settings a given command mode depends on.
// Modes: "serve", "attribute", "offline", "load", "migrate". "offline" is an
// attribute run over a fixture file and needs no database.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.RateLimitRPS < 0 {
			errs = append(errs, "server.rate_limit_rps must be >= 0")
		}
		if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst < 1 {
			errs = append(errs, "server.rate_limit_burst must be >= 1 when rate limiting is enabled")
		}
		errs = append(errs, c.validateAttribution()...)
		errs = append(errs, c.validateStore()...)
	case "attribute":
		errs = append(errs, c.validateAttribution()...)
		errs = append(errs, c.validateStore()...)
	case "offline":
		errs = append(errs, c.validateAttribution()...)
	case "load":
		if c.Loader.BatchSize < 1 || c.Loader.BatchSize > 100000 {
			errs = append(errs, "loader.batch_size must be between 1 and 100000")
		}
		if c.Loader.MaxAttempts < 1 {
			errs = append(errs, "loader.max_attempts must be >= 1")
		}
		errs = append(errs, c.validateStore()...)
	case "migrate":
		errs = append(errs, c.validateStore()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	if c.Store.MaxConns > 0 && c.Store.MinConns > c.Store.MaxConns {
		errs = append(errs, "store.min_conns must be <= store.max_conns")
	}
	return errs
}

func (c *Config) validateAttribution() []string {
	var errs []string
	if c.Attribution.SourceTimeoutSecs <= 0 {
		errs = append(errs, "attribution.source_timeout_secs must be > 0")
	}
	if c.Attribution.MaxRangeDays < 1 {
		errs = append(errs, "attribution.max_range_days must be >= 1")
	}
	return errs
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
