package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Auth modes for caller identity verification
const (
	AuthModeNone = "none"
	AuthModeJWKS = "jwks"
	AuthModeHMAC = "hmac"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      *DatabaseConfig // Optional: audit log is disabled when nil
	Token         TokenConfig
	Auth          AuthConfig
	Secrets       SecretsConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	TLS             struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}
}

// DatabaseConfig holds the PostgreSQL connection for the audit log
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AuditBuffer     int
	AuditWorkers    int
}

// TokenConfig holds issuance policy
type TokenConfig struct {
	TTL                 time.Duration
	IssueMessagingToken bool
	StrictMapping       bool

	ttlErr error
}

// AuthConfig holds caller identity settings
type AuthConfig struct {
	RequireAuth  bool
	Bypass       bool
	Mode         string
	JWKSURL      string
	Issuer       string
	Audience     string
	HMACSecret   string
	JWKSCacheTTL time.Duration
}

// SecretsConfig locates the signing credentials
type SecretsConfig struct {
	File string // YAML file; environment variables are used when empty
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	ttl, ttlErr := parseEnvDuration("TOKEN_TTL", time.Hour)

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 5*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:*", "https://*"}),
			TLS: struct {
				Enabled  bool
				CertFile string
				KeyFile  string
			}{
				Enabled:  getEnvAsBool("TLS_ENABLED", false),
				CertFile: getEnv("TLS_CERT_FILE", "certs/cert.pem"),
				KeyFile:  getEnv("TLS_KEY_FILE", "certs/key.pem"),
			},
		},
		Database: loadDatabaseConfig(),
		Token: TokenConfig{
			TTL:                 ttl,
			IssueMessagingToken: getEnvAsBool("ISSUE_RTM_TOKEN", true),
			StrictMapping:       getEnvAsBool("STRICT_MAPPING", false),
			ttlErr:              ttlErr,
		},
		Auth: AuthConfig{
			RequireAuth:  getEnvAsBool("REQUIRE_AUTH", false),
			Bypass:       getEnvAsBool("AUTH_BYPASS", false),
			Mode:         strings.ToLower(getEnv("AUTH_MODE", AuthModeNone)),
			JWKSURL:      getEnv("AUTH_JWKS_URL", ""),
			Issuer:       getEnv("AUTH_ISSUER", ""),
			Audience:     getEnv("AUTH_AUDIENCE", ""),
			HMACSecret:   getEnv("AUTH_HMAC_SECRET", ""),
			JWKSCacheTTL: getEnvAsDuration("AUTH_JWKS_CACHE_TTL", time.Hour),
		},
		Secrets: SecretsConfig{
			File: getEnv("SECRETS_FILE", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Token.ttlErr != nil {
		return c.Token.ttlErr
	}
	if c.Token.TTL < time.Second {
		return fmt.Errorf("token TTL must be at least 1s, got %v", c.Token.TTL)
	}

	switch c.Auth.Mode {
	case AuthModeNone:
		if c.Auth.RequireAuth && !c.Auth.Bypass {
			return fmt.Errorf("REQUIRE_AUTH needs AUTH_MODE jwks or hmac")
		}
	case AuthModeJWKS:
		if c.Auth.JWKSURL == "" {
			return fmt.Errorf("AUTH_JWKS_URL is required when AUTH_MODE is jwks")
		}
	case AuthModeHMAC:
		if c.Auth.HMACSecret == "" {
			return fmt.Errorf("AUTH_HMAC_SECRET is required when AUTH_MODE is hmac")
		}
	default:
		return fmt.Errorf("invalid AUTH_MODE %q: must be one of none, jwks, hmac", c.Auth.Mode)
	}

	if c.IsProduction() && c.Auth.Bypass {
		return fmt.Errorf("AUTH_BYPASS is not allowed in production")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// LogString returns a safe string for logging (no password)
func (c *DatabaseConfig) LogString() string {
	u, err := url.Parse(c.URL)
	if err != nil || u.Host == "" {
		return "host=<from DATABASE_URL>"
	}
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	db := strings.TrimPrefix(u.Path, "/")
	return fmt.Sprintf("host=%s port=%s database=%s", u.Hostname(), port, db)
}

// loadDatabaseConfig returns nil when DATABASE_URL is not set
func loadDatabaseConfig() *DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		return nil
	}
	return &DatabaseConfig{
		URL:             dbURL,
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		AuditBuffer:     getEnvAsInt("AUDIT_BUFFER_SIZE", 1000),
		AuditWorkers:    getEnvAsInt("AUDIT_WORKERS", 2),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := parseEnvDuration(key, defaultValue)
	if err != nil {
		return defaultValue
	}
	return value
}

// parseEnvDuration is getEnvAsDuration for settings where a typo must not
// silently fall back to the default
func parseEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, valueStr, err)
	}
	return value, nil
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
