package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures the process level configuration for the verification
// session service.
type Config struct {
	Addr          string
	JWTSigningKey string

	// Remote Gateway (the flowswitch CRUD backend).
	BackendBaseURL string
	BackendToken   string

	// Redis is optional; empty URL disables the lookup cache.
	Redis RedisConfig

	// Session engine tuning.
	GeolocationTimeout    time.Duration
	ExtractionTimeout     time.Duration
	HomebasePromptDelay   time.Duration
	RequiredVerifications int
}

// RedisConfig holds connection tuning for the optional cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AgentLookupCacheTTL enforces retention for cached agent identity lookups.
var AgentLookupCacheTTL = 5 * time.Minute

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	addr := os.Getenv("FLOWSWITCH_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	backend := os.Getenv("FLOWSWITCH_BACKEND_URL")
	if backend == "" {
		backend = "http://localhost:9090/api"
	}

	jwtSigningKey := os.Getenv("FLOWSWITCH_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Config{
		Addr:           addr,
		JWTSigningKey:  jwtSigningKey,
		BackendBaseURL: backend,
		BackendToken:   os.Getenv("FLOWSWITCH_BACKEND_TOKEN"),
		Redis: RedisConfig{
			URL:          os.Getenv("FLOWSWITCH_REDIS_URL"),
			PoolSize:     envInt("FLOWSWITCH_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("FLOWSWITCH_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("FLOWSWITCH_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("FLOWSWITCH_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("FLOWSWITCH_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		GeolocationTimeout:    envDuration("FLOWSWITCH_GEO_TIMEOUT", 5*time.Second),
		ExtractionTimeout:     envDuration("FLOWSWITCH_EXTRACT_TIMEOUT", 15*time.Second),
		HomebasePromptDelay:   envDuration("FLOWSWITCH_HOMEBASE_PROMPT_DELAY", 6*time.Second),
		RequiredVerifications: envInt("FLOWSWITCH_REQUIRED_VERIFICATIONS", 4),
	}
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return v
}
