// Package config loads application configuration from FOLIO_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/folio-cms/folio/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Session       SessionConfig
	Schema        SchemaConfig
	Assets        AssetsConfig
	SSO           SSOConfig
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

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	MaxBodyBytes int64
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// SessionConfig holds Redis-backed session settings
type SessionConfig struct {
	RedisURL      string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
	CookieName    string
	CookieSecure  bool
	AnonymousRole string
}

// SchemaConfig holds content schema seed settings
type SchemaConfig struct {
	SeedDir   string
	WatchSeed bool
}

// AssetsConfig holds S3 asset store settings
type AssetsConfig struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// SSOConfig holds OIDC single sign-on settings
type SSOConfig struct {
	Enabled      bool
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	DefaultRole  string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Session:       loadSessionConfig(),
		Schema:        loadSchemaConfig(),
		Assets:        loadAssetsConfig(),
		SSO:           loadSSOConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("FOLIO_HOST", "0.0.0.0"),
		Port:            getEnv("FOLIO_PORT", "8080"),
		ReadTimeout:     getEnvDuration("FOLIO_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("FOLIO_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("FOLIO_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("FOLIO_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("FOLIO_HEALTH_PORT", "9090"),
		MaxBodyBytes:    getEnvInt64("FOLIO_MAX_BODY_BYTES", 10<<20),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:          getEnv("FOLIO_POSTGRES_URL", ""),
		MaxOpenConns: getEnvInt("FOLIO_POSTGRES_MAX_CONNS", 25),
		MaxIdleConns: getEnvInt("FOLIO_POSTGRES_IDLE_CONNS", 5),
		ConnLifetime: getEnvDuration("FOLIO_POSTGRES_CONN_LIFETIME", 30*time.Minute),
	}
}

func loadSessionConfig() SessionConfig {
	return SessionConfig{
		RedisURL:      getEnv("FOLIO_REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("FOLIO_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("FOLIO_REDIS_DB", 0),
		TTL:           getEnvDuration("FOLIO_SESSION_TTL", 24*time.Hour),
		CookieName:    getEnv("FOLIO_SESSION_COOKIE", "folio_session"),
		CookieSecure:  getEnvBool("FOLIO_SESSION_SECURE", true),
		AnonymousRole: getEnv("FOLIO_ANONYMOUS_ROLE", "anonymous"),
	}
}

func loadSchemaConfig() SchemaConfig {
	return SchemaConfig{
		SeedDir:   getEnv("FOLIO_SCHEMA_SEED_DIR", ""),
		WatchSeed: getEnvBool("FOLIO_SCHEMA_WATCH", false),
	}
}

func loadAssetsConfig() AssetsConfig {
	return AssetsConfig{
		Endpoint:     getEnv("FOLIO_S3_ENDPOINT", ""),
		Region:       getEnv("FOLIO_S3_REGION", "us-east-1"),
		Bucket:       getEnv("FOLIO_S3_BUCKET", ""),
		AccessKey:    getEnv("FOLIO_S3_ACCESS_KEY", ""),
		SecretKey:    getEnv("FOLIO_S3_SECRET_KEY", ""),
		UsePathStyle: getEnvBool("FOLIO_S3_USE_PATH_STYLE", false),
	}
}

func loadSSOConfig() SSOConfig {
	return SSOConfig{
		Enabled:      getEnvBool("FOLIO_SSO_ENABLED", false),
		IssuerURL:    getEnv("FOLIO_SSO_ISSUER_URL", ""),
		ClientID:     getEnv("FOLIO_SSO_CLIENT_ID", ""),
		ClientSecret: getEnv("FOLIO_SSO_CLIENT_SECRET", ""),
		RedirectURL:  getEnv("FOLIO_SSO_REDIRECT_URL", ""),
		DefaultRole:  getEnv("FOLIO_SSO_DEFAULT_ROLE", "student"),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("FOLIO_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("FOLIO_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("FOLIO_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("FOLIO_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("FOLIO_OTEL_SERVICE_NAME", "folio"),
		OTelServiceVersion: getEnv("FOLIO_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("FOLIO_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Session.RedisURL == "" {
		return fmt.Errorf("redis URL is required")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}

	if c.SSO.Enabled {
		if c.SSO.IssuerURL == "" {
			return fmt.Errorf("SSO issuer URL is required when SSO is enabled")
		}
		if c.SSO.ClientID == "" || c.SSO.ClientSecret == "" {
			return fmt.Errorf("SSO client credentials are required when SSO is enabled")
		}
		if c.SSO.RedirectURL == "" {
			return fmt.Errorf("SSO redirect URL is required when SSO is enabled")
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

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
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

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if dur, err := time.ParseDuration(value); err == nil {
			return dur
		}
	}
	return defaultValue
}
