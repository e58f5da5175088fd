package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Ledger Service (remote accounting backend)
	LedgerURL        string
	LedgerAPIKey     string
	LedgerServiceKey string
	UseLedger        bool // false → in-memory ledger (local development)

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Performance calculator
	RiskFreeRate float64 // annual rate used by the Sharpe ratio, default 0

	// Automatic accrual scheduler
	AutoCalcEnabled  bool
	AutoCalcInterval time.Duration

	// Service-to-service auth. Empty secret disables the check.
	JWTSecret string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		LedgerURL:        getEnv("LEDGER_URL", ""),
		LedgerAPIKey:     getEnv("LEDGER_API_KEY", ""),
		LedgerServiceKey: getEnv("LEDGER_SERVICE_KEY", ""),
		UseLedger:        getEnv("USE_LEDGER", "true") == "true",

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		CacheTTL: getEnvDuration("CACHE_TTL", 1*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		RiskFreeRate: getEnvFloat("RISK_FREE_RATE", 0),

		AutoCalcEnabled:  getEnv("AUTO_CALC_ENABLED", "false") == "true",
		AutoCalcInterval: getEnvDuration("AUTO_CALC_INTERVAL", 1*time.Hour),

		JWTSecret: getEnv("JWT_SECRET", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
