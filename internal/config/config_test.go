package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

var envMutex sync.Mutex

// All config-related env vars that tests may modify.
var allConfigEnvVars = []string{
	"SERVER_PORT",
	"UPSTREAM_URL",
	"ENVIRONMENT",
	"ALLOWED_ORIGINS",
	"SESSION_SECRET",
	"SESSION_COOKIE_NAME",
	"COOKIE_SECURE",
	"ENABLE_HSTS",
	"DATABASE_URL",
	"REDIS_URL",
	"RABBITMQ_URL",
	"POLICY_FILE",
	"API_RATE_LIMIT",
	"API_RATE_WINDOW",
	"LOGIN_RATE_LIMIT",
	"LOGIN_RATE_WINDOW",
	"FORM_RATE_LIMIT",
	"FORM_RATE_WINDOW",
}

func withEnv(t *testing.T, envVars map[string]string, fn func()) {
	t.Helper()

	envMutex.Lock()
	defer envMutex.Unlock()

	originalEnv := make(map[string]string)
	for _, key := range allConfigEnvVars {
		originalEnv[key] = os.Getenv(key)
		_ = os.Unsetenv(key)
	}
	defer func() {
		for key, value := range originalEnv {
			if value == "" {
				_ = os.Unsetenv(key)
			} else {
				_ = os.Setenv(key, value)
			}
		}
	}()

	for key, value := range envVars {
		if value != "" {
			_ = os.Setenv(key, value)
		}
	}

	fn()
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		envVars     map[string]string
		expectError bool
		validate    func(*testing.T, *Config)
	}{
		{
			name: "all required env vars set",
			envVars: map[string]string{
				"UPSTREAM_URL":   "http://app:3000",
				"SESSION_SECRET": "0123456789abcdef0123456789abcdef",
				"SERVER_PORT":    "9090",
				"ENVIRONMENT":    "development",
			},
			expectError: false,
			validate: func(t *testing.T, cfg *Config) {
				if cfg.UpstreamURL != "http://app:3000" {
					t.Errorf("Expected UpstreamURL to be 'http://app:3000', got '%s'", cfg.UpstreamURL)
				}
				if cfg.ServerPort != "9090" {
					t.Errorf("Expected ServerPort to be '9090', got '%s'", cfg.ServerPort)
				}
				if !cfg.DevMode() {
					t.Error("Expected DevMode to be true for development environment")
				}
			},
		},
		{
			name: "missing UPSTREAM_URL",
			envVars: map[string]string{
				"SESSION_SECRET": "0123456789abcdef0123456789abcdef",
			},
			expectError: true,
		},
		{
			name: "missing SESSION_SECRET",
			envVars: map[string]string{
				"UPSTREAM_URL": "http://app:3000",
			},
			expectError: true,
		},
		{
			name: "short SESSION_SECRET rejected",
			envVars: map[string]string{
				"UPSTREAM_URL":   "http://app:3000",
				"SESSION_SECRET": "short",
			},
			expectError: true,
		},
		{
			name: "invalid environment rejected",
			envVars: map[string]string{
				"UPSTREAM_URL":   "http://app:3000",
				"SESSION_SECRET": "0123456789abcdef0123456789abcdef",
				"ENVIRONMENT":    "staging",
			},
			expectError: true,
		},
		{
			name: "default values",
			envVars: map[string]string{
				"UPSTREAM_URL":   "http://app:3000",
				"SESSION_SECRET": "0123456789abcdef0123456789abcdef",
			},
			expectError: false,
			validate: func(t *testing.T, cfg *Config) {
				if cfg.ServerPort != "8080" {
					t.Errorf("Expected default ServerPort to be '8080', got '%s'", cfg.ServerPort)
				}
				if cfg.Environment != "production" {
					t.Errorf("Expected default Environment to be 'production', got '%s'", cfg.Environment)
				}
				if cfg.SessionCookieName != "gatehouse_session" {
					t.Errorf("Expected default SessionCookieName to be 'gatehouse_session', got '%s'", cfg.SessionCookieName)
				}
				if !cfg.CookieSecure {
					t.Error("Expected default CookieSecure to be true")
				}
				if cfg.DevMode() {
					t.Error("Expected DevMode to be false by default")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withEnv(t, tt.envVars, func() {
				cfg, err := Load()

				if tt.expectError {
					if err == nil {
						t.Error("Expected error, got nil")
					}
					return
				}
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				if tt.validate != nil {
					tt.validate(t, cfg)
				}
			})
		})
	}
}

func TestLimits_Defaults(t *testing.T) {
	withEnv(t, map[string]string{
		"UPSTREAM_URL":   "http://app:3000",
		"SESSION_SECRET": "0123456789abcdef0123456789abcdef",
	}, func() {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		limits, err := cfg.Limits()
		if err != nil {
			t.Fatalf("Limits returned error: %v", err)
		}
		if limits.API.Limit != 100 || limits.API.Window != 15*time.Minute {
			t.Errorf("API quota = %+v, want 100/15m", limits.API)
		}
		if limits.Login.Limit != 5 {
			t.Errorf("Login limit = %d, want 5", limits.Login.Limit)
		}
		if limits.Form.Window != time.Minute {
			t.Errorf("Form window = %v, want 1m", limits.Form.Window)
		}
	})
}

func TestLimits_EnvOverrides(t *testing.T) {
	withEnv(t, map[string]string{
		"UPSTREAM_URL":      "http://app:3000",
		"SESSION_SECRET":    "0123456789abcdef0123456789abcdef",
		"LOGIN_RATE_LIMIT":  "10",
		"LOGIN_RATE_WINDOW": "30m",
	}, func() {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		limits, err := cfg.Limits()
		if err != nil {
			t.Fatalf("Limits returned error: %v", err)
		}
		if limits.Login.Limit != 10 {
			t.Errorf("Login limit = %d, want 10", limits.Login.Limit)
		}
		if limits.Login.Window != 30*time.Minute {
			t.Errorf("Login window = %v, want 30m", limits.Login.Window)
		}
		// Untouched policies keep defaults.
		if limits.API.Limit != 100 {
			t.Errorf("API limit = %d, want 100", limits.API.Limit)
		}
	})
}

func TestLimits_InvalidEnvOverride(t *testing.T) {
	withEnv(t, map[string]string{
		"UPSTREAM_URL":   "http://app:3000",
		"SESSION_SECRET": "0123456789abcdef0123456789abcdef",
		"API_RATE_LIMIT": "not-a-number",
	}, func() {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if _, err := cfg.Limits(); err == nil {
			t.Error("Expected error for unparsable API_RATE_LIMIT")
		}
	})
}

func TestLimits_PolicyFile(t *testing.T) {
	dir := t.TempDir()
	policyFile := filepath.Join(dir, "policies.yaml")
	yamlBody := "api:\n  limit: 200\n  window: 10m\nlogin:\n  limit: 3\n  window: 1h\n"
	if err := os.WriteFile(policyFile, []byte(yamlBody), 0o600); err != nil {
		t.Fatalf("Failed to write policy file: %v", err)
	}

	withEnv(t, map[string]string{
		"UPSTREAM_URL":   "http://app:3000",
		"SESSION_SECRET": "0123456789abcdef0123456789abcdef",
		"POLICY_FILE":    policyFile,
	}, func() {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		limits, err := cfg.Limits()
		if err != nil {
			t.Fatalf("Limits returned error: %v", err)
		}
		if limits.API.Limit != 200 || limits.API.Window != 10*time.Minute {
			t.Errorf("API quota = %+v, want 200/10m", limits.API)
		}
		if limits.Login.Limit != 3 || limits.Login.Window != time.Hour {
			t.Errorf("Login quota = %+v, want 3/1h", limits.Login)
		}
		// Policies absent from the file keep defaults.
		if limits.Form.Limit != 3 {
			t.Errorf("Form limit = %d, want 3", limits.Form.Limit)
		}
	})
}

func TestLimits_RejectsNonPositiveQuota(t *testing.T) {
	withEnv(t, map[string]string{
		"UPSTREAM_URL":    "http://app:3000",
		"SESSION_SECRET":  "0123456789abcdef0123456789abcdef",
		"FORM_RATE_LIMIT": "0",
	}, func() {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if _, err := cfg.Limits(); err == nil {
			t.Error("Expected error for zero FORM_RATE_LIMIT")
		}
	})
}
