package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 1366, cfg.Browser.ViewportWidth)
	assert.Equal(t, 15*time.Second, cfg.Browser.ElementTimeout)
	assert.Equal(t, 2*time.Second, cfg.Detector.SettleDelay)
	assert.Equal(t, "register.htm", cfg.Detector.SubmissionMarker)
	assert.Equal(t, []string{"account was created", "welcome", "successful"}, cfg.Detector.SuccessPhrases)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.Pacing)
	assert.Equal(t, "Welcome", cfg.Detector.WelcomeLiteral)
	assert.Equal(t, "ParaBank", cfg.Target.TitleMarker)
	assert.Equal(t, 1, cfg.Suite.Concurrency)
	assert.Equal(t, "span.error", cfg.Selectors.ErrorMessages)
	assert.NoError(t, cfg.Validate())
}

func TestTargetURLs(t *testing.T) {
	target := TargetConfig{BaseURL: "https://example.test/parabank/", HomePath: "/index.htm", RegisterPath: "register.htm"}

	assert.Equal(t, "https://example.test/parabank/index.htm", target.HomeURL())
	assert.Equal(t, "https://example.test/parabank/register.htm", target.RegisterURL())
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"missing base url", func(c *Config) { c.Target.BaseURL = "" }, "target.base_url is a required"},
		{"relative base url", func(c *Config) { c.Target.BaseURL = "parabank" }, "must be an absolute URL"},
		{"unknown log format", func(c *Config) { c.Logger.Format = "xml" }, "logger.format"},
		{"zero viewport", func(c *Config) { c.Browser.ViewportHeight = 0 }, "viewport"},
		{"zero element timeout", func(c *Config) { c.Browser.ElementTimeout = 0 }, "browser.element_timeout"},
		{"negative settle delay", func(c *Config) { c.Detector.SettleDelay = -time.Second }, "detector.settle_delay"},
		{"missing submission marker", func(c *Config) { c.Detector.SubmissionMarker = "" }, "detector.submission_marker"},
		{"empty welcome literal", func(c *Config) { c.Detector.WelcomeLiteral = "" }, "detector.welcome_literal"},
		{"missing title marker", func(c *Config) { c.Target.TitleMarker = "" }, "target.title_marker"},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "retry.max_attempts"},
		{"short password", func(c *Config) { c.Registrant.PasswordLength = 4 }, "registrant.password_length"},
		{"too many digits", func(c *Config) { c.Registrant.PasswordDigits = 20 }, "registrant.password_digits"},
		{"zero concurrency", func(c *Config) { c.Suite.Concurrency = 0 }, "suite.concurrency"},
		{"no cases", func(c *Config) { c.Suite.Cases = nil }, "suite.cases"},
		{"no artifact dir", func(c *Config) { c.Artifacts.Dir = "" }, "artifacts.dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// -- Viper Integration Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("yaml overrides defaults", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		yaml := []byte(`
target:
  base_url: "http://localhost:8080/parabank"
retry:
  max_attempts: 5
  pacing: 250ms
detector:
  settle_delay: 500ms
suite:
  cases: ["registration"]
`)
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yaml)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8080/parabank", cfg.Target.BaseURL)
		assert.Equal(t, 5, cfg.Retry.MaxAttempts)
		assert.Equal(t, 250*time.Millisecond, cfg.Retry.Pacing)
		assert.Equal(t, 500*time.Millisecond, cfg.Detector.SettleDelay)
		assert.Equal(t, []string{"registration"}, cfg.Suite.Cases)
	})

	t.Run("HEADLESS and CI environment variables", func(t *testing.T) {
		t.Setenv("HEADLESS", "false")
		t.Setenv("CI", "true")
		v := viper.New()
		SetDefaults(v)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.False(t, cfg.Browser.Headless)
		assert.True(t, cfg.CI)
		assert.Equal(t, "json", cfg.Logger.Format, "CI forces structured logs")
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("retry.max_attempts", -1)

		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})
}
