package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/auditable/pkg/observability"
	"github.com/platinummonkey/auditable/pkg/storage"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Config holds all configuration of the audit daemon
type Config struct {
	Server        ServerConfig
	Storage       storage.Config
	Audit         AuditConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// APITokens are the bearer tokens accepted by the history API; empty
	// leaves the API unauthenticated
	APITokens []string
	// RateLimitPerMinute caps history API requests per caller; 0 disables it
	RateLimitPerMinute int
	RateLimitBurst     int
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// AuditConfig holds engine level configuration
type AuditConfig struct {
	// PolicyFile is the YAML file of per-entity policies; empty runs with none
	PolicyFile string
	// WatchPolicies reloads PolicyFile when it changes; ignored without a file
	WatchPolicies bool
	// SweepSchedule is a cron expression for the retention sweep; empty disables it
	SweepSchedule string
	// SystemActor is recorded when no request actor is known
	SystemActor string
}

// ObservabilityConfig holds observability configuration
type ObservabilityConfig struct {
	// Logging
	LogLevel logrus.Level

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Audit:         loadAuditConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("AUDIT_HOST", "0.0.0.0"),
		Port:            getEnv("AUDIT_PORT", "9090"),
		ReadTimeout:     getEnvDuration("AUDIT_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("AUDIT_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("AUDIT_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("AUDIT_SHUTDOWN_TIMEOUT", 30*time.Second),

		APITokens:          getEnvList("AUDIT_API_TOKENS"),
		RateLimitPerMinute: getEnvInt("AUDIT_RATE_LIMIT", 0),
		RateLimitBurst:     getEnvInt("AUDIT_RATE_LIMIT_BURST", 10),
	}
}

func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	if storageType := getEnv("AUDIT_STORAGE_TYPE", ""); storageType != "" {
		cfg.Type = strings.ToLower(storageType)
	}

	// PostgreSQL config
	cfg.PostgresURL = getEnv("AUDIT_POSTGRES_URL", cfg.PostgresURL)
	cfg.PostgresReplicaURLs = getEnv("AUDIT_POSTGRES_REPLICA_URLS", cfg.PostgresReplicaURLs)
	if maxConns := getEnvInt("AUDIT_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("AUDIT_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("AUDIT_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}

	// SQLite config
	cfg.SQLitePath = getEnv("AUDIT_SQLITE_PATH", cfg.SQLitePath)

	// Redis config
	cfg.RedisURL = getEnv("AUDIT_REDIS_URL", cfg.RedisURL)
	cfg.RedisPassword = getEnv("AUDIT_REDIS_PASSWORD", cfg.RedisPassword)
	if redisDB := getEnvInt("AUDIT_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}

	// Count cache config
	cfg.CacheEnabled = getEnvBool("AUDIT_CACHE_ENABLED", cfg.CacheEnabled)
	if size := getEnvInt("AUDIT_L1_CACHE_SIZE", 0); size > 0 {
		cfg.L1CacheSize = size
	}
	if ttl := getEnvDuration("AUDIT_CACHE_TTL", 0); ttl > 0 {
		cfg.CacheTTL = ttl
	}

	return cfg
}

func loadAuditConfig() AuditConfig {
	return AuditConfig{
		PolicyFile:    getEnv("AUDIT_POLICY_FILE", ""),
		WatchPolicies: getEnvBool("AUDIT_POLICY_WATCH", true),
		SweepSchedule: getEnv("AUDIT_SWEEP_SCHEDULE", "*/15 * * * *"),
		SystemActor:   getEnv("AUDIT_SYSTEM_ACTOR", ""),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLevel(getEnv("AUDIT_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("AUDIT_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("AUDIT_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("AUDIT_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("AUDIT_OTEL_SERVICE_NAME", "auditd"),
		OTelServiceVersion: getEnv("AUDIT_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("AUDIT_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Server.RateLimitPerMinute < 0 || c.Server.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit settings must not be negative")
	}

	switch c.Storage.Type {
	case storage.TypeMemory:
	case storage.TypePostgres:
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
	case storage.TypeSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for sqlite storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be memory, postgres, or sqlite)", c.Storage.Type)
	}

	if c.Audit.SweepSchedule != "" {
		if _, err := cron.ParseStandard(c.Audit.SweepSchedule); err != nil {
			return fmt.Errorf("invalid sweep schedule %q: %w", c.Audit.SweepSchedule, err)
		}
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList returns a comma-separated environment variable as a list
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
