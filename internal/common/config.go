// Package common provides shared utilities for Folio
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

const defaultJWTSecret = "dev-jwt-secret-change-in-production"

// Config holds all configuration for Folio
type Config struct {
	Environment string          `toml:"environment"`
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Clients     ClientsConfig   `toml:"clients"`
	Ledger      LedgerConfig    `toml:"ledger"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Jobs        JobsConfig      `toml:"jobs"`
	Logging     LoggingConfig   `toml:"logging"`
	Auth        AuthConfig      `toml:"auth"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig selects the storage backend and its connection settings.
type StorageConfig struct {
	Backend   string `toml:"backend"` // "surrealdb" (default) or "memory"
	Address   string `toml:"address"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	Prices PricesConfig `toml:"prices"`
	Gemini GeminiConfig `toml:"gemini"`
}

// PricesConfig holds the remote price-lookup function configuration
type PricesConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
	CacheTTL  string `toml:"cache_ttl"` // cached quotes younger than this skip the upstream call
}

// GetTimeout parses and returns the timeout duration
func (c *PricesConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetCacheTTL parses and returns the quote cache freshness window
func (c *PricesConfig) GetCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	Timeout string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *GeminiConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 90 * time.Second
	}
	return d
}

// LedgerConfig holds ledger engine settings.
type LedgerConfig struct {
	OperationTimeout  string  `toml:"operation_timeout"`  // upper bound for one lifecycle operation, lock wait included
	DefaultInvestment float64 `toml:"default_investment"` // used to size AI suggestions when the portfolio has no cash
	JournalRetention  string  `toml:"journal_retention"`  // completed journal entries older than this are purged
}

// GetOperationTimeout parses and returns the per-operation timeout
func (c *LedgerConfig) GetOperationTimeout() time.Duration {
	d, err := time.ParseDuration(c.OperationTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// GetJournalRetention parses and returns the journal retention window
func (c *LedgerConfig) GetJournalRetention() time.Duration {
	d, err := time.ParseDuration(c.JournalRetention)
	if err != nil || d <= 0 {
		return 30 * 24 * time.Hour
	}
	return d
}

// SchedulerConfig holds cron schedules for background work.
// An empty schedule disables the entry.
type SchedulerConfig struct {
	PriceRefresh   string `toml:"price_refresh"`
	RecoverySweep  string `toml:"recovery_sweep"`
	JournalCleanup string `toml:"journal_cleanup"`
}

// JobsConfig holds background job processor settings
type JobsConfig struct {
	Enabled       bool   `toml:"enabled"`
	MaxConcurrent int    `toml:"max_concurrent"`
	MaxRetries    int    `toml:"max_retries"`
	PollInterval  string `toml:"poll_interval"`
}

// GetPollInterval parses and returns the empty-queue poll interval
func (c *JobsConfig) GetPollInterval() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// GetMaxRetries returns the configured attempt limit, default 3
func (c *JobsConfig) GetMaxRetries() int {
	if c.MaxRetries <= 0 {
		return 3
	}
	return c.MaxRetries
}

// AuthConfig holds bearer token validation settings.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
	Required  bool   `toml:"required"` // reject requests without a bearer token
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string   `toml:"level"`
	Format     string   `toml:"format"`
	Outputs    []string `toml:"outputs"`
	FilePath   string   `toml:"file_path"`
	MaxSizeMB  int      `toml:"max_size_mb"`
	MaxBackups int      `toml:"max_backups"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Backend:   "surrealdb",
			Address:   "ws://localhost:8000/rpc",
			Namespace: "folio",
			Database:  "folio",
			Username:  "root",
			Password:  "root",
		},
		Clients: ClientsConfig{
			Prices: PricesConfig{
				BaseURL:   "http://localhost:5001",
				RateLimit: 5,
				Timeout:   "10s",
				CacheTTL:  "15m",
			},
			Gemini: GeminiConfig{
				Model:   "gemini-2.0-flash",
				Timeout: "90s",
			},
		},
		Ledger: LedgerConfig{
			OperationTimeout:  "30s",
			DefaultInvestment: 10000,
			JournalRetention:  "720h",
		},
		Scheduler: SchedulerConfig{
			PriceRefresh:   "@every 15m",
			RecoverySweep:  "@hourly",
			JournalCleanup: "@daily",
		},
		Jobs: JobsConfig{
			Enabled:       true,
			MaxConcurrent: 2,
			MaxRetries:    3,
			PollInterval:  "1s",
		},
		Auth: AuthConfig{
			JWTSecret: defaultJWTSecret,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Outputs:    []string{"console"},
			FilePath:   "./logs/folio.log",
			MaxSizeMB:  100,
			MaxBackups: 3,
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

	if err := loadEnvFile(envFilePath()); err != nil {
		return nil, err
	}
	applyEnvOverrides(config)

	return config, nil
}

// envFilePath names the dotenv file consulted before env overrides:
// FOLIO_ENV_FILE when set, otherwise .env in the working directory.
func envFilePath() string {
	if p := os.Getenv("FOLIO_ENV_FILE"); p != "" {
		return p
	}
	return ".env"
}

// loadEnvFile exports the variables of a dotenv file that are not already
// set in the process environment. A missing file is not an error.
func loadEnvFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		return fmt.Errorf("failed to read env file %s: %w", path, err)
	}
	for k, v := range vars {
		if _, set := os.LookupEnv(k); set {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("failed to export %s: %w", k, err)
		}
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FOLIO_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("FOLIO_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("FOLIO_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("FOLIO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	// Storage overrides
	if v := os.Getenv("FOLIO_STORAGE_BACKEND"); v != "" {
		config.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("FOLIO_STORAGE_ADDRESS"); v != "" {
		config.Storage.Address = v
	}
	if v := os.Getenv("FOLIO_STORAGE_NAMESPACE"); v != "" {
		config.Storage.Namespace = v
	}
	if v := os.Getenv("FOLIO_STORAGE_DATABASE"); v != "" {
		config.Storage.Database = v
	}
	if v := os.Getenv("FOLIO_STORAGE_USERNAME"); v != "" {
		config.Storage.Username = v
	}
	if v := os.Getenv("FOLIO_STORAGE_PASSWORD"); v != "" {
		config.Storage.Password = v
	}

	// Client overrides
	if v := os.Getenv("FOLIO_PRICES_URL"); v != "" {
		config.Clients.Prices.BaseURL = v
	}
	if v := os.Getenv("FOLIO_PRICES_API_KEY"); v != "" {
		config.Clients.Prices.APIKey = v
	}
	if v := firstEnv("GEMINI_API_KEY", "FOLIO_GEMINI_API_KEY", "GOOGLE_API_KEY"); v != "" {
		config.Clients.Gemini.APIKey = v
	}

	if v := os.Getenv("FOLIO_AUTH_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("FOLIO_AUTH_REQUIRED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Auth.Required = b
		}
	}

	if v := os.Getenv("FOLIO_JOBS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Jobs.Enabled = b
		}
	}
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// ValidateRequired returns the names of settings that must be supplied
// before the server can run against real collaborators.
func (c *Config) ValidateRequired() []string {
	var missing []string
	if c.Storage.Backend == "surrealdb" && c.Storage.Address == "" {
		missing = append(missing, "storage.address")
	}
	if c.Clients.Prices.BaseURL == "" {
		missing = append(missing, "clients.prices.base_url")
	}
	if c.Clients.Gemini.APIKey == "" {
		missing = append(missing, "clients.gemini.api_key")
	}
	if c.Auth.JWTSecret == "" || c.Auth.JWTSecret == defaultJWTSecret {
		missing = append(missing, "auth.jwt_secret")
	}
	return missing
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
