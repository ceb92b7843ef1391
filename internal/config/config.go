package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	DataRoot string       `yaml:"data_root" mapstructure:"data_root"`
	Store    StoreConfig  `yaml:"store" mapstructure:"store"`
	Pack     PackConfig   `yaml:"pack" mapstructure:"pack"`
	Ingest   IngestConfig `yaml:"ingest" mapstructure:"ingest"`
	Output   OutputConfig `yaml:"output" mapstructure:"output"`
	Server   ServerConfig `yaml:"server" mapstructure:"server"`
	Log      LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the master-data backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PackConfig configures packaging descriptor resolution.
type PackConfig struct {
	PalletSize  int `yaml:"pallet_size" mapstructure:"pallet_size"`
	DefaultSize int `yaml:"default_size" mapstructure:"default_size"`
}

// IngestConfig configures raw file ingestion.
type IngestConfig struct {
	AllowedFormats []string `yaml:"allowed_formats" mapstructure:"allowed_formats"`
	Concurrency    int      `yaml:"concurrency" mapstructure:"concurrency"`
}

// OutputConfig configures artifact writing. OrdersFormat overrides Format
// for supplier order files when set.
type OutputConfig struct {
	Format       string `yaml:"format" mapstructure:"format"`
	OrdersFormat string `yaml:"orders_format" mapstructure:"orders_format"`
}

// ServerConfig configures the read-only HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("REPLENISH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data_root", "data")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "replenish.db")
	v.SetDefault("pack.pallet_size", 100)
	v.SetDefault("pack.default_size", 1)
	v.SetDefault("ingest.allowed_formats", []string{".csv", ".parquet"})
	v.SetDefault("ingest.concurrency", 4)
	v.SetDefault("output.format", "csv")
	v.SetDefault("output.orders_format", "")
	v.SetDefault("server.port", 8080)
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

// Validate checks that the configuration is usable for the given mode
// ("run", "master", "serve"). All discovered problems are reported at
// once.
func (c *Config) Validate(mode string) error {
	var problems []string

	if c.DataRoot == "" {
		problems = append(problems, "data_root is required")
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}

	switch mode {
	case "run":
		if c.Pack.PalletSize < 1 {
			problems = append(problems, "pack.pallet_size must be >= 1")
		}
		if c.Pack.DefaultSize < 1 {
			problems = append(problems, "pack.default_size must be >= 1")
		}
		if c.Ingest.Concurrency < 1 || c.Ingest.Concurrency > 64 {
			problems = append(problems, "ingest.concurrency must be between 1 and 64")
		}
		if len(c.Ingest.AllowedFormats) == 0 {
			problems = append(problems, "ingest.allowed_formats must not be empty")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "master":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
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
