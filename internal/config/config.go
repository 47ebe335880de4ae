package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	App           AppConfig
	Links         LinksConfig
	Cache         CacheConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"SERVER_PORT" required:"true"`
	Host            string        `envconfig:"SERVER_HOST" required:"true"`
	BaseURL         string        `envconfig:"SERVER_BASE_URL" required:"true"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" required:"true"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" required:"true"`
	IdleTimeout     time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" required:"true"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" required:"true"`
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	return nil
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" required:"true"`
	Port     string `envconfig:"DB_PORT" required:"true"`
	User     string `envconfig:"DB_USER" required:"true"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	Name     string `envconfig:"DB_NAME" required:"true"`
	SSLMode  string `envconfig:"DB_SSLMODE" required:"true"`
	MaxConns int32  `envconfig:"DB_MAX_CONNS" required:"true"`
	MinConns int32  `envconfig:"DB_MIN_CONNS" required:"true"`
	Migrate  bool   `envconfig:"DB_MIGRATE" default:"true"`
}

// Validate validates the database configuration.
func (c *DatabaseConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.User == "" {
		return fmt.Errorf("user cannot be empty")
	}
	if c.Password == "" {
		return fmt.Errorf("password cannot be empty")
	}
	if c.Name == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("max connections must be positive")
	}
	if c.MinConns <= 0 {
		return fmt.Errorf("min connections must be positive")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min connections (%d) cannot be greater than max connections (%d)", c.MinConns, c.MaxConns)
	}

	validSSLModes := map[string]bool{
		"disable":     true,
		"require":     true,
		"verify-ca":   true,
		"verify-full": true,
	}
	if !validSSLModes[c.SSLMode] {
		return fmt.Errorf("invalid SSL mode: %s (must be one of: disable, require, verify-ca, verify-full)", c.SSLMode)
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// AppConfig holds application-specific configuration.
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" required:"true"`   // development, staging, production, test
	LogLevel    string `envconfig:"LOG_LEVEL" required:"true"` // debug, info, warn, error
	LogFile     string `envconfig:"LOG_FILE"`                  // empty logs to stdout
}

// Validate validates the app configuration.
func (c *AppConfig) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
		"test":        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s (must be one of: development, staging, production, test)", c.Environment)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}
	return nil
}

// LinksConfig holds link pool behavior.
type LinksConfig struct {
	PoolSize           int    `envconfig:"LINK_POOL_SIZE" default:"100"` // 0 disables eviction
	MatchMode          string `envconfig:"LINK_MATCH_MODE" default:"exact"`
	ReplenishOnDelete  bool   `envconfig:"LINK_REPLENISH_ON_DELETE" default:"true"`
	ShortCodeLength    int    `envconfig:"LINK_SHORT_CODE_LENGTH" default:"8"`
	ShortCodeRetries   int    `envconfig:"LINK_SHORT_CODE_RETRIES" default:"3"`
	MaxBatchDeleteSize int    `envconfig:"LINK_MAX_BATCH_DELETE" default:"100"`
}

// Validate validates the links configuration.
func (c *LinksConfig) Validate() error {
	if c.PoolSize < 0 {
		return fmt.Errorf("pool size cannot be negative")
	}
	if c.MatchMode != "exact" && c.MatchMode != "suffix" {
		return fmt.Errorf("invalid match mode: %s (must be one of: exact, suffix)", c.MatchMode)
	}
	if c.ShortCodeLength < 4 || c.ShortCodeLength > 32 {
		return fmt.Errorf("short code length must be between 4 and 32, got %d", c.ShortCodeLength)
	}
	if c.ShortCodeRetries <= 0 {
		return fmt.Errorf("short code retries must be positive")
	}
	if c.MaxBatchDeleteSize <= 0 {
		return fmt.Errorf("max batch delete size must be positive")
	}
	return nil
}

// CacheConfig holds listing cache and short code filter configuration.
type CacheConfig struct {
	Backend                string        `envconfig:"CACHE_BACKEND" default:"local"` // none, local, redis
	TTL                    time.Duration `envconfig:"CACHE_TTL" default:"30s"`
	LocalMaxItems          int64         `envconfig:"CACHE_LOCAL_MAX_ITEMS" default:"1000"`
	RedisAddr              string        `envconfig:"REDIS_ADDR"`
	RedisPassword          string        `envconfig:"REDIS_PASSWORD"`
	RedisDB                int           `envconfig:"REDIS_DB" default:"0"`
	BloomEnabled           bool          `envconfig:"BLOOM_ENABLED" default:"true"`
	BloomExpectedItems     uint          `envconfig:"BLOOM_EXPECTED_ITEMS" default:"100000"`
	BloomFalsePositiveRate float64       `envconfig:"BLOOM_FALSE_POSITIVE_RATE" default:"0.01"`
	BloomRefreshInterval   time.Duration `envconfig:"BLOOM_REFRESH_INTERVAL" default:"30s"` // 0 disables
	BloomMissRecheck       time.Duration `envconfig:"BLOOM_MISS_RECHECK" default:"1s"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	switch c.Backend {
	case "none", "local":
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("redis address is required when cache backend is redis")
		}
		if c.RedisDB < 0 {
			return fmt.Errorf("redis db cannot be negative")
		}
	default:
		return fmt.Errorf("invalid cache backend: %s (must be one of: none, local, redis)", c.Backend)
	}

	if c.Backend != "none" && c.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	if c.Backend == "local" && c.LocalMaxItems <= 0 {
		return fmt.Errorf("local cache max items must be positive")
	}
	if c.BloomEnabled {
		if c.BloomExpectedItems == 0 {
			return fmt.Errorf("bloom expected items must be positive")
		}
		if c.BloomFalsePositiveRate <= 0 || c.BloomFalsePositiveRate >= 1 {
			return fmt.Errorf("bloom false positive rate must be between 0 and 1, got %f", c.BloomFalsePositiveRate)
		}
		if c.BloomRefreshInterval < 0 {
			return fmt.Errorf("bloom refresh interval cannot be negative")
		}
		if c.BloomMissRecheck <= 0 {
			return fmt.Errorf("bloom miss recheck must be positive")
		}
	}
	return nil
}

// ObservabilityConfig holds configuration for tracing/metrics.
type ObservabilityConfig struct {
	Enabled           bool    `envconfig:"OTEL_ENABLED" required:"true"`
	ServiceName       string  `envconfig:"OTEL_SERVICE_NAME"`
	ServiceVersion    string  `envconfig:"OTEL_SERVICE_VERSION"`
	OTelEndpoint      string  `envconfig:"OTEL_ENDPOINT"`
	OTelInsecure      bool    `envconfig:"OTEL_INSECURE"`
	TracingSampleRate float64 `envconfig:"OTEL_TRACING_SAMPLE_RATE"`
	MetricsEnabled    bool    `envconfig:"METRICS_ENABLED" default:"true"`
}

// Validate validates the observability configuration.
func (c *ObservabilityConfig) Validate() error {
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		return fmt.Errorf("tracing sample rate must be between 0 and 1, got %f", c.TracingSampleRate)
	}

	// Only require these when observability is enabled.
	if c.Enabled {
		if c.ServiceName == "" {
			return fmt.Errorf("service name is required when observability is enabled")
		}
		if c.OTelEndpoint == "" {
			return fmt.Errorf("OTEL endpoint is required when observability is enabled")
		}
		if c.ServiceVersion == "" {
			return fmt.Errorf("service version is required when observability is enabled")
		}
	}

	return nil
}

type section struct {
	name     string
	target   any
	validate func() error
}

// Load loads configuration from environment variables only.
// (.env loading happens in internal/app for development and test.)
func Load() (*Config, error) {
	cfg := &Config{}

	sections := []section{
		{"Server", &cfg.Server, cfg.Server.Validate},
		{"Database", &cfg.Database, cfg.Database.Validate},
		{"App", &cfg.App, cfg.App.Validate},
		{"Links", &cfg.Links, cfg.Links.Validate},
		{"Cache", &cfg.Cache, cfg.Cache.Validate},
		{"Observability", &cfg.Observability, cfg.Observability.Validate},
	}

	for _, s := range sections {
		if err := envconfig.Process("", s.target); err != nil {
			return nil, fmt.Errorf("failed to load %s config: %w", s.name, err)
		}
		if err := s.validate(); err != nil {
			return nil, fmt.Errorf("invalid %s config: %w", s.name, err)
		}
	}

	return cfg, nil
}
