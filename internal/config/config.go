// Package config loads qualysctl settings from a YAML file and QUALYS_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sternrassler/qualys-api-client/pkg/client"
	"github.com/Sternrassler/qualys-api-client/pkg/logging"
	"github.com/Sternrassler/qualys-api-client/pkg/pagination"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. QUALYS_API_USERNAME.
const EnvPrefix = "QUALYS"

// Config represents the application configuration
type Config struct {
	API         APIConfig    `mapstructure:"api"`
	Redis       RedisConfig  `mapstructure:"redis"`
	Cache       CacheConfig  `mapstructure:"cache"`
	Import      ImportConfig `mapstructure:"import"`
	Log         LogConfig    `mapstructure:"log"`
	DBPath      string       `mapstructure:"db_path"`
	MetricsAddr string       `mapstructure:"metrics_addr"`
}

// APIConfig holds the platform endpoint and credentials
type APIConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RequestedWith string        `mapstructure:"requested_with"`
}

// RedisConfig enables caching and shared rate limit state when Addr is set
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig controls the response cache
type CacheConfig struct {
	TTL          time.Duration `mapstructure:"ttl"`
	MaxEntrySize int           `mapstructure:"max_entry_size"`
}

// ImportConfig controls paginated imports
type ImportConfig struct {
	PageSize   int `mapstructure:"page_size"`
	MaxResults int `mapstructure:"max_results"`
	Workers    int `mapstructure:"workers"`
}

// LogConfig controls logging
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Pretty     bool   `mapstructure:"pretty"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "https://qualysapi.qualys.com")
	v.SetDefault("api.username", "")
	v.SetDefault("api.password", "")
	v.SetDefault("api.timeout", 5*time.Minute)
	v.SetDefault("api.requested_with", client.DefaultRequestedWith)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.ttl", 10*time.Minute)
	v.SetDefault("cache.max_entry_size", 8<<20)

	v.SetDefault("import.page_size", 1000)
	v.SetDefault("import.max_results", 0)
	v.SetDefault("import.workers", 4)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("db_path", "")
	v.SetDefault("metrics_addr", "")
}

// Load reads configuration from a YAML file and the environment.
// If path is empty, searches for qualysctl.yaml in the current directory and
// ~/.config/qualysctl/; a missing file is not an error in that case.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		// Use explicit path
		v.SetConfigFile(path)
	} else {
		// Search for config in default locations
		v.SetConfigName("qualysctl")
		v.AddConfigPath(".")

		homeDir, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".config", "qualysctl"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api.base_url must be an absolute URL (got %q)", c.API.BaseURL))
	}

	if c.API.Username == "" {
		errs = append(errs, errors.New("api.username cannot be empty"))
	}

	if c.API.Password == "" {
		errs = append(errs, errors.New("api.password cannot be empty"))
	}

	if c.API.Timeout < 0 {
		errs = append(errs, errors.New("api.timeout must not be negative"))
	}

	if c.Import.PageSize <= 0 {
		errs = append(errs, errors.New("import.page_size must be positive"))
	}

	if c.Import.MaxResults < 0 {
		errs = append(errs, errors.New("import.max_results must not be negative"))
	}

	if c.Import.Workers < 0 {
		errs = append(errs, errors.New("import.workers must not be negative"))
	}

	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// RedisOptions returns connection options, or nil when Redis is disabled.
func (c *Config) RedisOptions() *redis.Options {
	if c.Redis.Addr == "" {
		return nil
	}
	return &redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	}
}

// ClientConfig builds the client configuration. rdb may be nil.
func (c *Config) ClientConfig(rdb *redis.Client) client.Config {
	cfg := client.DefaultConfig(c.API.BaseURL, c.API.Username, c.API.Password)
	cfg.Redis = rdb
	cfg.Timeout = c.API.Timeout
	cfg.RequestedWith = c.API.RequestedWith
	cfg.CacheTTL = c.Cache.TTL
	cfg.MaxCacheEntrySize = c.Cache.MaxEntrySize
	return cfg
}

// LoggingConfig builds the logger configuration.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	cfg.File = logging.FileConfig{
		Path:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
	}
	return cfg
}

// PaginationConfig builds the driver configuration for list imports.
func (c *Config) PaginationConfig() pagination.Config {
	cfg := pagination.DefaultConfig()
	cfg.PageSize = c.Import.PageSize
	cfg.MaxResults = c.Import.MaxResults
	return cfg
}
