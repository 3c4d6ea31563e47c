// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Redis, Kafka, Postgres, Cache, Analytics, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Env       string          `yaml:"env"`
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Cache     CacheConfig     `yaml:"cache"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	MaxBodyBytes    int64         `yaml:"maxBodyBytes"`
	AllowOrigins    []string      `yaml:"allowOrigins"`
}

// RedisConfig holds Redis connection parameters for the shared search cache.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// CacheConfig controls the search result cache.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"`
	LocalSize     int           `yaml:"localSize"`
	RemoteTimeout time.Duration `yaml:"remoteTimeout"`
}

// AnalyticsConfig controls event collection and stats snapshotting.
type AnalyticsConfig struct {
	Enabled          bool          `yaml:"enabled"`
	BufferSize       int           `yaml:"bufferSize"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
	SnapshotRetain   int           `yaml:"snapshotRetain"`
}

// RateLimitConfig controls per-client request limiting on the API routes.
type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled"`
	Limit   int           `yaml:"limit"`
	Window  time.Duration `yaml:"window"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig toggles span logging around create and search.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate reports the first configuration value that cannot work.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1-65535, got %d", c.Server.Port)
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be in 1-65535, got %d", c.Metrics.Port)
	}
	if c.Metrics.Enabled && c.Metrics.Port == c.Server.Port {
		return fmt.Errorf("metrics.port must differ from server.port (%d)", c.Server.Port)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf(`logging.format must be "json" or "text", got %q`, c.Logging.Format)
	}
	if c.RateLimit.Enabled && (c.RateLimit.Limit <= 0 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("rateLimit.limit and rateLimit.window must be positive when enabled")
	}
	if c.Cache.Enabled && c.Cache.LocalSize <= 0 {
		return fmt.Errorf("cache.localSize must be positive, got %d", c.Cache.LocalSize)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Env: "DEV",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxBodyBytes:    10 << 20,
			AllowOrigins:    []string{"*"},
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "inverted-index-group",
			Topics: KafkaTopics{
				AnalyticsEvents: "inverted-index-events",
			},
		},
		Postgres: PostgresConfig{
			Enabled:         false,
			Host:            "localhost",
			Port:            5432,
			Database:        "invertedindex",
			User:            "invertedindex",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Cache: CacheConfig{
			Enabled:       true,
			LocalSize:     1024,
			RemoteTimeout: 250 * time.Millisecond,
		},
		Analytics: AnalyticsConfig{
			Enabled:          false,
			BufferSize:       10000,
			SnapshotInterval: time.Minute,
			SnapshotRetain:   1440,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Limit:   600,
			Window:  time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides layers II_* environment variables over cfg. APP_ENV, or
// NODE_ENV when APP_ENV is unset, picks which of PORT_DEV, PORT_TEST or
// PORT_PROD sets the server port; II_SERVER_PORT wins over both. Setting a
// Redis address or Postgres host also enables that backend. Unparseable
// numbers and booleans are ignored.
func applyEnvOverrides(cfg *Config) {
	for _, name := range []string{"NODE_ENV", "APP_ENV"} {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			cfg.Env = strings.ToUpper(v)
		}
	}
	envInt(portVarFor(cfg.Env), &cfg.Server.Port)

	envInt("II_SERVER_PORT", &cfg.Server.Port)
	envInt("II_METRICS_PORT", &cfg.Metrics.Port)
	if envString("II_REDIS_ADDR", &cfg.Redis.Addr) {
		cfg.Redis.Enabled = true
	}
	envString("II_REDIS_PASSWORD", &cfg.Redis.Password)
	var brokers string
	if envString("II_KAFKA_BROKERS", &brokers) {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	envBool("II_ANALYTICS_ENABLED", &cfg.Analytics.Enabled)
	if envString("II_POSTGRES_HOST", &cfg.Postgres.Host) {
		cfg.Postgres.Enabled = true
	}
	envInt("II_POSTGRES_PORT", &cfg.Postgres.Port)
	envString("II_POSTGRES_DATABASE", &cfg.Postgres.Database)
	envString("II_POSTGRES_USER", &cfg.Postgres.User)
	envString("II_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	envString("II_LOGGING_LEVEL", &cfg.Logging.Level)
	envString("II_LOGGING_FORMAT", &cfg.Logging.Format)
}

func portVarFor(env string) string {
	switch env {
	case "DEV":
		return "PORT_DEV"
	case "TEST":
		return "PORT_TEST"
	default:
		return "PORT_PROD"
	}
}

// envString copies a non-empty variable into dst and reports whether it did.
func envString(key string, dst *string) bool {
	v := os.Getenv(key)
	if v == "" {
		return false
	}
	*dst = v
	return true
}

func envInt(key string, dst *int) {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		*dst = n
	}
}

func envBool(key string, dst *bool) {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		*dst = b
	}
}
