package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv(mapEnv{"AGRO_DATA_DIR": "/tmp/agro"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.APIURL != defaultAPIURL {
		t.Fatalf("expected default api url, got %q", cfg.APIURL)
	}
	if cfg.CredentialBackend != BackendFile {
		t.Fatalf("expected file backend, got %q", cfg.CredentialBackend)
	}
	if cfg.RequestTimeout != defaultRequestTimeout {
		t.Fatalf("expected default timeout, got %s", cfg.RequestTimeout)
	}
	if cfg.JWTSecret != devJWTSecret {
		t.Fatalf("expected dev jwt secret in development, got %q", cfg.JWTSecret)
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	cfg, err := LoadFromEnv(mapEnv{
		"AGRO_API_URL":            "https://api.agroinsight.example/v1/",
		"REQUEST_TIMEOUT_SECONDS": "5",
		"CREDENTIAL_BACKEND":      "SQLite",
		"AGRO_DATA_DIR":           "/tmp/agro",
		"LOGIN_RATE_LIMIT":        "3",
		"APP_ENV":                 "production",
		"JWT_SECRET":              "prod",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.APIURL != "https://api.agroinsight.example/v1" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.APIURL)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Fatalf("expected 5s timeout, got %s", cfg.RequestTimeout)
	}
	if cfg.CredentialBackend != BackendSQLite {
		t.Fatalf("expected sqlite backend, got %q", cfg.CredentialBackend)
	}
	if cfg.LoginRateLimit != 3 {
		t.Fatalf("expected rate limit 3, got %d", cfg.LoginRateLimit)
	}
	if cfg.IsDev() {
		t.Fatalf("production must not be treated as dev")
	}
}

func TestLoadFromEnvRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		env  mapEnv
	}{
		{"relative api url", mapEnv{"AGRO_API_URL": "localhost:8080"}},
		{"bad timeout", mapEnv{"REQUEST_TIMEOUT": "soon"}},
		{"unknown backend", mapEnv{"CREDENTIAL_BACKEND": "keychain"}},
		{"redis without url", mapEnv{"CREDENTIAL_BACKEND": "redis"}},
		{"postgres without url", mapEnv{"CREDENTIAL_BACKEND": "postgres"}},
		{"bad rate limit", mapEnv{"LOGIN_RATE_LIMIT": "0"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadFromEnv(tc.env); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadFromEnvYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agroinsight.yaml")
	content := []byte("api_url: https://file.example\nlog_level: debug\ncredential_backend: memory\nrequest_timeout: 12s\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromEnv(mapEnv{
		"AGRO_CONFIG_FILE": path,
		"LOG_LEVEL":        "warn",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.APIURL != "https://file.example" {
		t.Fatalf("expected api url from file, got %q", cfg.APIURL)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected env to win over file, got %q", cfg.LogLevel)
	}
	if cfg.CredentialBackend != BackendMemory {
		t.Fatalf("expected memory backend from file, got %q", cfg.CredentialBackend)
	}
	if cfg.RequestTimeout != 12*time.Second {
		t.Fatalf("expected 12s timeout from file, got %s", cfg.RequestTimeout)
	}
}

func TestLoadFromEnvMissingFile(t *testing.T) {
	if _, err := LoadFromEnv(mapEnv{"AGRO_CONFIG_FILE": filepath.Join(t.TempDir(), "nope.yaml")}); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestAddress(t *testing.T) {
	if got := (Config{Port: "9090"}).Address(); got != ":9090" {
		t.Fatalf("expected :9090, got %q", got)
	}
	if got := (Config{Port: ":7000"}).Address(); got != ":7000" {
		t.Fatalf("expected :7000, got %q", got)
	}
}
