package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppEnv            = "development"
	defaultLogLevel          = "info"
	defaultAPIURL            = "http://localhost:8080"
	defaultRequestTimeout    = 30 * time.Second
	defaultCredentialBackend = BackendFile
	defaultPort              = "8080"
	defaultShutdownDelay     = 10 * time.Second
	defaultTokenTTL          = 7 * 24 * time.Hour
	defaultChallengeTTL      = 10 * time.Minute
	defaultLoginRateLimit    = 5
	devJWTSecret             = "agroinsight-dev-secret"

	requestTimeoutSecondsEnvVar = "REQUEST_TIMEOUT_SECONDS"
	requestTimeoutEnvVar        = "REQUEST_TIMEOUT"
	shutdownSecondsEnvVar       = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar      = "SHUTDOWN_TIMEOUT"
	configFileEnvVar            = "AGRO_CONFIG_FILE"
)

// Credential store backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config captures client and fake-backend runtime configuration.
type Config struct {
	AppEnv   string
	LogLevel string

	// Client side.
	APIURL            string
	RequestTimeout    time.Duration
	CredentialBackend string
	DataDir           string
	DatabaseURL       string
	RedisURL          string
	CredentialTTL     time.Duration

	// Fake backend.
	Port           string
	ShutdownPeriod time.Duration
	JWTSecret      string
	TokenTTL       time.Duration
	ChallengeTTL   time.Duration
	LoginRateLimit int
}

// Env abstracts environment lookups so tests can supply their own values.
type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

// Load reads configuration from the process environment, layered over the
// YAML file named by AGRO_CONFIG_FILE when it is set.
func Load() (Config, error) {
	return LoadFromEnv(osEnv{})
}

// LoadFromEnv is Load with an injectable environment.
func LoadFromEnv(env Env) (Config, error) {
	if path := env.Getenv(configFileEnvVar); path != "" {
		file, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		env = layeredEnv{primary: env, fallback: file}
	}

	cfg := Config{
		AppEnv:            getEnv(env, "APP_ENV", defaultAppEnv),
		LogLevel:          strings.ToLower(getEnv(env, "LOG_LEVEL", defaultLogLevel)),
		APIURL:            strings.TrimRight(getEnv(env, "AGRO_API_URL", defaultAPIURL), "/"),
		RequestTimeout:    defaultRequestTimeout,
		CredentialBackend: strings.ToLower(getEnv(env, "CREDENTIAL_BACKEND", defaultCredentialBackend)),
		DataDir:           getEnv(env, "AGRO_DATA_DIR", defaultDataDir()),
		DatabaseURL:       env.Getenv("DATABASE_URL"),
		RedisURL:          env.Getenv("REDIS_URL"),
		Port:              getEnv(env, "PORT", defaultPort),
		ShutdownPeriod:    defaultShutdownDelay,
		JWTSecret:         env.Getenv("JWT_SECRET"),
		TokenTTL:          defaultTokenTTL,
		ChallengeTTL:      defaultChallengeTTL,
		LoginRateLimit:    defaultLoginRateLimit,
	}

	var err error
	if cfg.RequestTimeout, err = durationEnv(env, requestTimeoutSecondsEnvVar, requestTimeoutEnvVar, cfg.RequestTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownPeriod, err = durationEnv(env, shutdownSecondsEnvVar, shutdownDurationEnvVar, cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.CredentialTTL, err = durationEnv(env, "", "CREDENTIAL_TTL", 0); err != nil {
		return Config{}, err
	}
	if cfg.TokenTTL, err = durationEnv(env, "", "TOKEN_TTL", cfg.TokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.ChallengeTTL, err = durationEnv(env, "", "CHALLENGE_TTL", cfg.ChallengeTTL); err != nil {
		return Config{}, err
	}

	if v := env.Getenv("LOGIN_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid LOGIN_RATE_LIMIT %q", v)
		}
		cfg.LoginRateLimit = n
	}

	if cfg.JWTSecret == "" && cfg.IsDev() {
		cfg.JWTSecret = devJWTSecret
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("AGRO_API_URL must be an absolute URL, got %q", c.APIURL)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}

	switch c.CredentialBackend {
	case BackendMemory, BackendFile, BackendSQLite:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL must be set when CREDENTIAL_BACKEND=redis")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set when CREDENTIAL_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("unknown CREDENTIAL_BACKEND %q", c.CredentialBackend)
	}

	if c.DataDir == "" {
		return fmt.Errorf("AGRO_DATA_DIR must not be empty")
	}
	return nil
}

// IsDev reports whether the app runs in a development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(env Env, key, fallback string) string {
	if value := env.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// durationEnv reads an integer seconds variable first, then a Go duration
// string. Either name may be empty.
func durationEnv(env Env, secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if secondsKey != "" {
		if v := env.Getenv(secondsKey); v != "" {
			seconds, err := strconv.Atoi(v)
			if err != nil {
				return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
			}
			return time.Duration(seconds) * time.Second, nil
		}
	}
	if durationKey != "" {
		if v := env.Getenv(durationKey); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
			}
			return d, nil
		}
	}
	return fallback, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".agroinsight"
	}
	return filepath.Join(home, ".agroinsight")
}
