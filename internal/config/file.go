package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML overlay. Keys mirror the environment variables in
// snake case; the environment always wins over the file.
type fileConfig struct {
	AppEnv            string `yaml:"app_env"`
	LogLevel          string `yaml:"log_level"`
	APIURL            string `yaml:"api_url"`
	RequestTimeout    string `yaml:"request_timeout"`
	CredentialBackend string `yaml:"credential_backend"`
	DataDir           string `yaml:"data_dir"`
	DatabaseURL       string `yaml:"database_url"`
	RedisURL          string `yaml:"redis_url"`
	CredentialTTL     string `yaml:"credential_ttl"`
	Port              string `yaml:"port"`
	ShutdownTimeout   string `yaml:"shutdown_timeout"`
	JWTSecret         string `yaml:"jwt_secret"`
	TokenTTL          string `yaml:"token_ttl"`
	ChallengeTTL      string `yaml:"challenge_ttl"`
	LoginRateLimit    string `yaml:"login_rate_limit"`
}

func readFile(path string) (mapEnv, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return fc.env(), nil
}

func (fc fileConfig) env() mapEnv {
	return mapEnv{
		"APP_ENV":            fc.AppEnv,
		"LOG_LEVEL":          fc.LogLevel,
		"AGRO_API_URL":       fc.APIURL,
		"REQUEST_TIMEOUT":    fc.RequestTimeout,
		"CREDENTIAL_BACKEND": fc.CredentialBackend,
		"AGRO_DATA_DIR":      fc.DataDir,
		"DATABASE_URL":       fc.DatabaseURL,
		"REDIS_URL":          fc.RedisURL,
		"CREDENTIAL_TTL":     fc.CredentialTTL,
		"PORT":               fc.Port,
		"SHUTDOWN_TIMEOUT":   fc.ShutdownTimeout,
		"JWT_SECRET":         fc.JWTSecret,
		"TOKEN_TTL":          fc.TokenTTL,
		"CHALLENGE_TTL":      fc.ChallengeTTL,
		"LOGIN_RATE_LIMIT":   fc.LoginRateLimit,
	}
}

type mapEnv map[string]string

func (m mapEnv) Getenv(key string) string { return m[key] }

type layeredEnv struct {
	primary  Env
	fallback Env
}

func (l layeredEnv) Getenv(key string) string {
	if v := l.primary.Getenv(key); v != "" {
		return v
	}
	return l.fallback.Getenv(key)
}
