// Package config loads server settings from the environment, with a
// .env file honored in local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the server needs at startup.
type Config struct {
	Port     string
	Env      string // development, staging, production
	LogLevel string

	// Without DATABASE_URL the server runs on in-memory stores.
	DatabaseURL string

	// Card orders stay disabled until a Stripe key is configured.
	StripeKey     string
	StripeVersion string

	// Transfer timers
	PaymentDeadline  time.Duration // Pending transfers are cancelled past this
	AutoRelease      time.Duration // Completed payments release after this
	ScanInterval     time.Duration // How often the deadline scanner runs
	ScannerDisabled  bool
	SettingsFromDB   bool // Read timer overrides from the settings table
	OTLPEndpoint     string
	AllowedOrigins   []string
	RateLimitRPS     int
	AdminSecret      string // Admin API secret
	MaxRequestSizeKB int64
}

const (
	DefaultPort            = "8080"
	DefaultEnv             = "development"
	DefaultLogLevel        = "info"
	DefaultRateLimit       = 100
	DefaultScanIntervalSec = 30
	DefaultMaxRequestKB    = 64
)

// Load builds a validated Config from the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", DefaultPort),
		Env:              getEnv("ENV", DefaultEnv),
		LogLevel:         getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		StripeKey:        os.Getenv("STRIPE_KEY"),
		StripeVersion:    getEnv("STRIPE_VERSION", "2024-06-20"),
		PaymentDeadline:  getEnvMinutes("P2P_PAYMENT_DEADLINE_MINUTES", 15),
		AutoRelease:      getEnvMinutes("P2P_AUTO_RELEASE_MINUTES", 30),
		ScanInterval:     time.Duration(getEnvInt64("SCAN_INTERVAL_SECONDS", DefaultScanIntervalSec)) * time.Second,
		ScannerDisabled:  os.Getenv("SCANNER_DISABLED") == "true",
		SettingsFromDB:   os.Getenv("SETTINGS_FROM_DB") != "false",
		OTLPEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		AllowedOrigins:   splitList(getEnv("ALLOWED_ORIGINS", "*")),
		RateLimitRPS:     int(getEnvInt64("RATE_LIMIT_RPS", int64(DefaultRateLimit))),
		AdminSecret:      os.Getenv("ADMIN_SECRET"),
		MaxRequestSizeKB: getEnvInt64("MAX_REQUEST_SIZE_KB", DefaultMaxRequestKB),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the scanner or admin surface cannot run with.
func (c *Config) Validate() error {
	if c.PaymentDeadline <= 0 {
		return fmt.Errorf("P2P_PAYMENT_DEADLINE_MINUTES must be positive")
	}
	if c.AutoRelease <= 0 {
		return fmt.Errorf("P2P_AUTO_RELEASE_MINUTES must be positive")
	}
	if c.ScanInterval < time.Second {
		return fmt.Errorf("SCAN_INTERVAL_SECONDS must be at least 1")
	}
	if c.IsProduction() && c.AdminSecret == "" {
		return fmt.Errorf("ADMIN_SECRET is required in production")
	}
	return nil
}

func (c *Config) IsDevelopment() bool { return c.Env == "development" }

func (c *Config) IsProduction() bool { return c.Env == "production" }

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt64 falls back on unset or unparseable values rather than
// failing startup.
func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func getEnvMinutes(key string, defaultMinutes int64) time.Duration {
	return time.Duration(getEnvInt64(key, defaultMinutes)) * time.Minute
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
