package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Tally
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Ledger      LedgerConfig  `toml:"ledger"`
	Report      ReportConfig  `toml:"report"`
	Storage     StorageConfig `toml:"storage"`
	Clients     ClientsConfig `toml:"clients"`
	Cache       CacheConfig   `toml:"cache"`
	Logging     LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP API configuration for `tally serve`
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LedgerConfig holds position ledger policy
type LedgerConfig struct {
	// StrictRemove makes removing an absent ticker an error instead of a no-op
	StrictRemove bool `toml:"strict_remove"`
}

// ReportConfig holds report defaults
type ReportConfig struct {
	DefaultPeriod   string `toml:"default_period"`
	RefreshSchedule string `toml:"refresh_schedule"` // cron spec with seconds field; empty disables
}

// StorageConfig selects and configures the ledger store backend.
// Backends: memory, file, badger, surrealdb, sqlite, postgres.
type StorageConfig struct {
	Backend   string `toml:"backend"`
	Path      string `toml:"path"`      // file, badger and sqlite
	Versions  int    `toml:"versions"`  // file: previous copies kept on each write
	DSN       string `toml:"dsn"`       // postgres
	Address   string `toml:"address"`   // surrealdb
	Namespace string `toml:"namespace"` // surrealdb
	Database  string `toml:"database"`  // surrealdb
	Username  string `toml:"username"`  // surrealdb
	Password  string `toml:"password"`  // surrealdb
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	EODHD EODHDConfig `toml:"eodhd"`
}

// EODHDConfig holds EODHD API configuration
type EODHDConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	Exchange  string `toml:"exchange"` // suffix appended to bare tickers, e.g. "US"
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *EODHDConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// CacheConfig holds price series cache configuration.
// Backends: none, memory, redis.
type CacheConfig struct {
	Backend       string `toml:"backend"`
	TTL           string `toml:"ttl"`
	RedisAddress  string `toml:"redis_address"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// GetTTL parses and returns the cache entry lifetime
func (c *CacheConfig) GetTTL() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string   `toml:"level"`
	Format   string   `toml:"format"`
	Outputs  []string `toml:"outputs"`
	FilePath string   `toml:"file_path"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "localhost",
			Port: 8790,
		},
		Report: ReportConfig{
			DefaultPeriod: "1mo",
		},
		Storage: StorageConfig{
			Backend:   "file",
			Path:      "data/portfolio.json",
			Versions:  3,
			Namespace: "tally",
			Database:  "tally",
			Username:  "root",
			Password:  "root",
		},
		Clients: ClientsConfig{
			EODHD: EODHDConfig{
				BaseURL:   "https://eodhd.com/api",
				Exchange:  "US",
				RateLimit: 10,
				Timeout:   "30s",
			},
		},
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     "15m",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "text",
			Outputs:  []string{"console"},
			FilePath: "./logs/tally.log",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("TALLY_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("TALLY_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("TALLY_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("TALLY_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if backend := os.Getenv("TALLY_STORAGE_BACKEND"); backend != "" {
		config.Storage.Backend = strings.ToLower(backend)
	}
	if path := os.Getenv("TALLY_DATA_PATH"); path != "" {
		config.Storage.Path = path
	}
	if dsn := os.Getenv("TALLY_STORAGE_DSN"); dsn != "" {
		config.Storage.DSN = dsn
	}
	if addr := os.Getenv("TALLY_STORAGE_ADDRESS"); addr != "" {
		config.Storage.Address = addr
	}

	// EODHD key: conventional name first, then the prefixed one
	for _, name := range []string{"EODHD_API_KEY", "TALLY_EODHD_API_KEY"} {
		if v := os.Getenv(name); v != "" {
			config.Clients.EODHD.APIKey = v
			break
		}
	}
	if ex := os.Getenv("TALLY_EODHD_EXCHANGE"); ex != "" {
		config.Clients.EODHD.Exchange = strings.ToUpper(ex)
	}

	if backend := os.Getenv("TALLY_CACHE_BACKEND"); backend != "" {
		config.Cache.Backend = strings.ToLower(backend)
	}
	if addr := os.Getenv("TALLY_REDIS_ADDRESS"); addr != "" {
		config.Cache.RedisAddress = addr
	}
	if db := os.Getenv("TALLY_REDIS_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			config.Cache.RedisDB = n
		}
	}

	if v := os.Getenv("TALLY_STRICT_REMOVE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Ledger.StrictRemove = b
		}
	}
	if p := os.Getenv("TALLY_PERIOD"); p != "" {
		config.Report.DefaultPeriod = p
	}
}

// ResolvePaths makes relative file paths absolute against base
func (c *Config) ResolvePaths(base string) {
	if c.Storage.Path != "" && !filepath.IsAbs(c.Storage.Path) {
		c.Storage.Path = filepath.Join(base, c.Storage.Path)
	}
	if c.Logging.FilePath != "" && !filepath.IsAbs(c.Logging.FilePath) {
		c.Logging.FilePath = filepath.Join(base, c.Logging.FilePath)
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
