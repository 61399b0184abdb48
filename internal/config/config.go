package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/perimeterhq/gatehouse/internal/policy"
)

// Config holds gateway configuration
type Config struct {
	ServerPort  string
	UpstreamURL string `validate:"required,url"`
	// Environment selects production or development behavior, including
	// the origin-validation localhost carve-out.
	Environment string `validate:"oneof=development production"`

	// AllowedOrigins is the comma-separated origin allow-list shared by
	// CORS and WebSocket enforcement.
	AllowedOrigins string

	// SessionSecret verifies session tokens; the gateway never issues them.
	SessionSecret     string `validate:"required,min=16"`
	SessionCookieName string
	CookieDomain      string
	CookieSecure      bool

	EnableHSTS bool

	// Optional backing services.
	DatabaseURL string
	RedisURL    string
	RabbitMQURL string

	// PolicyFile is an optional YAML file overriding rate-limit quotas.
	PolicyFile string

	ServerDebugMode bool
	OTELEnabled     bool
	OTELEndpoint    string
}

var validate = validator.New()

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		UpstreamURL:       getEnv("UPSTREAM_URL", ""),
		Environment:       getEnv("ENVIRONMENT", "production"),
		AllowedOrigins:    getEnv("ALLOWED_ORIGINS", ""),
		SessionSecret:     getEnv("SESSION_SECRET", ""),
		SessionCookieName: getEnv("SESSION_COOKIE_NAME", "gatehouse_session"),
		CookieDomain:      getEnv("COOKIE_DOMAIN", ""),
		CookieSecure:      getEnvBool("COOKIE_SECURE", true),
		EnableHSTS:        getEnvBool("ENABLE_HSTS", false),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		RedisURL:          getEnv("REDIS_URL", ""),
		RabbitMQURL:       getEnv("RABBITMQ_URL", ""),
		PolicyFile:        getEnv("POLICY_FILE", ""),
		ServerDebugMode:   getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:       getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:      getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.UpstreamURL == "" {
		return nil, fmt.Errorf("UPSTREAM_URL is required")
	}

	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// DevMode reports whether the gateway runs with development-mode
// permissiveness.
func (c *Config) DevMode() bool {
	return c.Environment == "development"
}

// Limits resolves the rate-limit quotas: built-in defaults, overridden
// per policy by environment variables, then by the policy file when
// one is configured. An unparsable quota is a startup failure.
func (c *Config) Limits() (policy.Limits, error) {
	limits := policy.DefaultLimits()

	var err error
	if limits.API, err = quotaFromEnv("API_RATE", limits.API); err != nil {
		return limits, err
	}
	if limits.Login, err = quotaFromEnv("LOGIN_RATE", limits.Login); err != nil {
		return limits, err
	}
	if limits.Form, err = quotaFromEnv("FORM_RATE", limits.Form); err != nil {
		return limits, err
	}

	if c.PolicyFile != "" {
		data, err := os.ReadFile(c.PolicyFile)
		if err != nil {
			return limits, fmt.Errorf("read policy file: %w", err)
		}
		if err := yaml.Unmarshal(data, &limits); err != nil {
			return limits, fmt.Errorf("parse policy file: %w", err)
		}
	}

	if err := validate.Struct(limits); err != nil {
		return limits, fmt.Errorf("invalid rate limit quotas: %w", err)
	}

	return limits, nil
}

// quotaFromEnv applies <prefix>_LIMIT and <prefix>_WINDOW overrides,
// e.g. LOGIN_RATE_LIMIT=10 LOGIN_RATE_WINDOW=30m.
func quotaFromEnv(prefix string, q policy.Quota) (policy.Quota, error) {
	if v := os.Getenv(prefix + "_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, fmt.Errorf("invalid %s_LIMIT %q: %w", prefix, v, err)
		}
		q.Limit = n
	}
	if v := os.Getenv(prefix + "_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return q, fmt.Errorf("invalid %s_WINDOW %q: %w", prefix, v, err)
		}
		q.Window = d
	}
	return q, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}
