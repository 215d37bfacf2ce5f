package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.PaymentDeadline)
	assert.Equal(t, 30*time.Minute, cfg.AutoRelease)
	assert.Equal(t, 30*time.Second, cfg.ScanInterval)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.False(t, cfg.ScannerDisabled)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("P2P_PAYMENT_DEADLINE_MINUTES", "5")
	t.Setenv("P2P_AUTO_RELEASE_MINUTES", "60")
	t.Setenv("SCAN_INTERVAL_SECONDS", "10")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SCANNER_DISABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.PaymentDeadline)
	assert.Equal(t, time.Hour, cfg.AutoRelease)
	assert.Equal(t, 10*time.Second, cfg.ScanInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.ScannerDisabled)
}

func TestValidate(t *testing.T) {
	base := Config{
		Env:             "development",
		PaymentDeadline: 15 * time.Minute,
		AutoRelease:     30 * time.Minute,
		ScanInterval:    30 * time.Second,
	}
	require.NoError(t, base.Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero payment deadline", func(c *Config) { c.PaymentDeadline = 0 }, "P2P_PAYMENT_DEADLINE_MINUTES"},
		{"negative auto release", func(c *Config) { c.AutoRelease = -time.Minute }, "P2P_AUTO_RELEASE_MINUTES"},
		{"sub-second scan interval", func(c *Config) { c.ScanInterval = 100 * time.Millisecond }, "SCAN_INTERVAL_SECONDS"},
		{"production without admin secret", func(c *Config) { c.Env = "production" }, "ADMIN_SECRET"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestEnvPredicates(t *testing.T) {
	dev := &Config{Env: "development"}
	assert.True(t, dev.IsDevelopment())
	assert.False(t, dev.IsProduction())

	prod := &Config{Env: "production"}
	assert.False(t, prod.IsDevelopment())
	assert.True(t, prod.IsProduction())
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_VAR", "custom_value")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_INVALID", "not_a_number")

	assert.Equal(t, "custom_value", getEnv("TEST_VAR", "default"))
	assert.Equal(t, "default", getEnv("NONEXISTENT_VAR", "default"))

	assert.Equal(t, int64(42), getEnvInt64("TEST_INT", 0))
	assert.Equal(t, int64(99), getEnvInt64("NONEXISTENT_VAR", 99))
	// Unparseable values fall back rather than fail.
	assert.Equal(t, int64(99), getEnvInt64("TEST_INVALID", 99))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList("a, b"))
	assert.Equal(t, []string{"*"}, splitList("*"))
	assert.Empty(t, splitList(" , "))
}
