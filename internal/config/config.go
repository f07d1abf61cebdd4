// Package config loads process settings from the environment, with an
// optional config file for local runs.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/jun/cloudmover/internal/secret"
	"github.com/spf13/viper"
)

// Session backends.
const (
	BackendRedis    = "redis"
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
)

// Config holds every setting the server reads at startup.
type Config struct {
	DevMode  bool
	LogLevel string

	SessionBackend string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	SessionTable   string
	SessionTTL     time.Duration
	KMSKeyID       string

	GoogleClientID          string
	GoogleClientSecretParam string
	GoogleRedirectURL       string
	FrontendURL             string

	// APIGatewaySecretParam names the shared secret the CDN sends in
	// X-Origin-Verify. Requests without it are rejected outside dev mode.
	APIGatewaySecretParam string

	// DemoLogin enables sign-in to seeded in-memory drives. Always on in dev mode.
	DemoLogin bool

	ScanMaxCalls int
	ScanTimeout  time.Duration

	// Addr is the listen address for the standalone server.
	Addr string
}

// New returns a viper instance with defaults set and the environment bound.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("DEV_MODE", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SESSION_TABLE", "CloudMoverSessions")
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("GOOGLE_CLIENT_SECRET_PARAM", secret.GoogleClientSecretParam)
	v.SetDefault("API_GATEWAY_SECRET_PARAM", secret.APIGatewaySecretParam)
	v.SetDefault("GOOGLE_REDIRECT_URL", "http://localhost:8080/auth/callback")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("DEMO_LOGIN", false)
	v.SetDefault("SCAN_MAX_CALLS", 500)
	v.SetDefault("SCAN_TIMEOUT", "2m")
	v.SetDefault("ADDR", ":8080")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads settings from v. If configFile is set it is read first and the
// environment still wins over it.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		DevMode:                 v.GetBool("DEV_MODE"),
		LogLevel:                v.GetString("LOG_LEVEL"),
		SessionBackend:          strings.ToLower(v.GetString("SESSION_BACKEND")),
		RedisAddr:               v.GetString("REDIS_ADDR"),
		RedisPassword:           v.GetString("REDIS_PASSWORD"),
		RedisDB:                 v.GetInt("REDIS_DB"),
		SessionTable:            v.GetString("SESSION_TABLE"),
		SessionTTL:              v.GetDuration("SESSION_TTL"),
		KMSKeyID:                v.GetString("KMS_KEY_ID"),
		GoogleClientID:          v.GetString("GOOGLE_CLIENT_ID"),
		GoogleClientSecretParam: v.GetString("GOOGLE_CLIENT_SECRET_PARAM"),
		GoogleRedirectURL:       v.GetString("GOOGLE_REDIRECT_URL"),
		FrontendURL:             strings.TrimRight(v.GetString("FRONTEND_URL"), "/"),
		APIGatewaySecretParam:   v.GetString("API_GATEWAY_SECRET_PARAM"),
		DemoLogin:               v.GetBool("DEMO_LOGIN"),
		ScanMaxCalls:            v.GetInt("SCAN_MAX_CALLS"),
		ScanTimeout:             v.GetDuration("SCAN_TIMEOUT"),
		Addr:                    v.GetString("ADDR"),
	}

	// Dev mode needs no external services unless a backend is named.
	if cfg.SessionBackend == "" {
		cfg.SessionBackend = BackendRedis
		if cfg.DevMode {
			cfg.SessionBackend = BackendMemory
		}
	}
	if cfg.DevMode {
		cfg.DemoLogin = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at request time.
func (c *Config) Validate() error {
	switch c.SessionBackend {
	case BackendRedis, BackendDynamoDB, BackendMemory:
	default:
		return fmt.Errorf("SESSION_BACKEND: unknown backend %q", c.SessionBackend)
	}
	if c.SessionBackend == BackendMemory && !c.DevMode {
		return fmt.Errorf("SESSION_BACKEND=memory requires DEV_MODE")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.ScanMaxCalls <= 0 {
		return fmt.Errorf("SCAN_MAX_CALLS must be positive, got %d", c.ScanMaxCalls)
	}
	if c.ScanTimeout <= 0 {
		return fmt.Errorf("SCAN_TIMEOUT must be positive, got %s", c.ScanTimeout)
	}
	if !c.DevMode && c.GoogleClientID == "" {
		return fmt.Errorf("GOOGLE_CLIENT_ID is required outside dev mode")
	}
	return nil
}
