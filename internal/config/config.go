package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Browser    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	Target     TargetConfig     `mapstructure:"target" yaml:"target"`
	Selectors  SelectorsConfig  `mapstructure:"selectors" yaml:"selectors"`
	Challenge  ChallengeConfig  `mapstructure:"challenge" yaml:"challenge"`
	Detector   DetectorConfig   `mapstructure:"detector" yaml:"detector"`
	Retry      RetryConfig      `mapstructure:"retry" yaml:"retry"`
	Registrant RegistrantConfig `mapstructure:"registrant" yaml:"registrant"`
	Suite      SuiteConfig      `mapstructure:"suite" yaml:"suite"`
	Artifacts  ArtifactsConfig  `mapstructure:"artifacts" yaml:"artifacts"`
	Database   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	// CI is populated from the CI environment variable; it switches logging to JSON.
	CI bool `mapstructure:"ci" yaml:"ci"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig controls how the Chromium process is launched and how long
// element level operations may block.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	ExecPath          string        `mapstructure:"exec_path" yaml:"exec_path"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	Locale            string        `mapstructure:"locale" yaml:"locale"`
	LaunchTimeout     time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ElementTimeout    time.Duration `mapstructure:"element_timeout" yaml:"element_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// TargetConfig points at the application under test.
type TargetConfig struct {
	BaseURL      string `mapstructure:"base_url" yaml:"base_url"`
	HomePath     string `mapstructure:"home_path" yaml:"home_path"`
	RegisterPath string `mapstructure:"register_path" yaml:"register_path"`
	// TitleMarker must appear in the landing page title.
	TitleMarker string `mapstructure:"title_marker" yaml:"title_marker"`
}

// HomeURL resolves the landing page against the base URL.
func (t TargetConfig) HomeURL() string { return joinURL(t.BaseURL, t.HomePath) }

// RegisterURL resolves the registration page against the base URL.
func (t TargetConfig) RegisterURL() string { return joinURL(t.BaseURL, t.RegisterPath) }

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// SelectorsConfig holds every CSS selector the page clients and the outcome
// detector rely on. A selector may end in :has-text("...") to filter matches
// by their text content.
type SelectorsConfig struct {
	ErrorMessages  string `mapstructure:"error_messages" yaml:"error_messages"`
	SuccessBanner  string `mapstructure:"success_banner" yaml:"success_banner"`
	AccountCreated string `mapstructure:"account_created" yaml:"account_created"`
	WelcomeTitle   string `mapstructure:"welcome_title" yaml:"welcome_title"`
	AccountSummary string `mapstructure:"account_summary" yaml:"account_summary"`
	LoginPanel     string `mapstructure:"login_panel" yaml:"login_panel"`
	RegisterForm   string `mapstructure:"register_form" yaml:"register_form"`
	RegisterSubmit string `mapstructure:"register_submit" yaml:"register_submit"`
}

// ChallengeConfig describes the interstitial verification overlay.
type ChallengeConfig struct {
	Selector string        `mapstructure:"selector" yaml:"selector"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// DetectorConfig tunes the outcome detector.
type DetectorConfig struct {
	SettleDelay      time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	SubmissionMarker string        `mapstructure:"submission_marker" yaml:"submission_marker"`
	AccountMarkers   []string      `mapstructure:"account_markers" yaml:"account_markers"`
	WelcomeLiteral   string        `mapstructure:"welcome_literal" yaml:"welcome_literal"`
	SuccessPhrases   []string      `mapstructure:"success_phrases" yaml:"success_phrases"`
}

// RetryConfig bounds the registration attempt loop.
type RetryConfig struct {
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`
	// Pacing is the minimum interval between two attempts. Zero disables pacing.
	Pacing time.Duration `mapstructure:"pacing" yaml:"pacing"`
}

// RegistrantConfig shapes generated registration identities.
type RegistrantConfig struct {
	UsernamePrefix string `mapstructure:"username_prefix" yaml:"username_prefix"`
	PasswordLength int    `mapstructure:"password_length" yaml:"password_length"`
	PasswordDigits int    `mapstructure:"password_digits" yaml:"password_digits"`
}

// SuiteConfig selects which cases run and how many at once.
type SuiteConfig struct {
	Concurrency int      `mapstructure:"concurrency" yaml:"concurrency"`
	Cases       []string `mapstructure:"cases" yaml:"cases"`
}

// ArtifactsConfig controls where reports and screenshots land.
type ArtifactsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// DatabaseConfig holds the database connection details. An empty URL
// disables run history persistence.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// SetDefaults applies every default value to the given viper instance.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "regprobe")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "red")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.viewport_width", 1366)
	v.SetDefault("browser.viewport_height", 768)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")
	v.SetDefault("browser.locale", "en-US")
	v.SetDefault("browser.launch_timeout", "30s")
	v.SetDefault("browser.navigation_timeout", "45s")
	v.SetDefault("browser.element_timeout", "15s")
	v.SetDefault("browser.poll_interval", "250ms")

	// -- Target --
	v.SetDefault("target.base_url", "https://parabank.parasoft.com/parabank")
	v.SetDefault("target.home_path", "index.htm")
	v.SetDefault("target.register_path", "register.htm")
	v.SetDefault("target.title_marker", "ParaBank")

	// -- Selectors --
	v.SetDefault("selectors.error_messages", "span.error")
	v.SetDefault("selectors.success_banner", ".alert-success")
	v.SetDefault("selectors.account_created", `#rightPanel p:has-text("Your account was created")`)
	v.SetDefault("selectors.welcome_title", "#rightPanel h1.title")
	v.SetDefault("selectors.account_summary", `#leftPanel a[href*="overview.htm"]`)
	v.SetDefault("selectors.login_panel", "#loginPanel")
	v.SetDefault("selectors.register_form", "#customerForm")
	v.SetDefault("selectors.register_submit", `input[value="Register"]`)

	// -- Challenge --
	v.SetDefault("challenge.selector", "#challenge-running, #challenge-stage, .cf-browser-verification")
	v.SetDefault("challenge.timeout", "30s")

	// -- Detector --
	v.SetDefault("detector.settle_delay", "2s")
	v.SetDefault("detector.submission_marker", "register.htm")
	v.SetDefault("detector.account_markers", []string{"overview", "account"})
	v.SetDefault("detector.welcome_literal", "Welcome")
	v.SetDefault("detector.success_phrases", []string{"account was created", "welcome", "successful"})

	// -- Retry --
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.pacing", "1s")

	// -- Registrant --
	v.SetDefault("registrant.username_prefix", "u")
	v.SetDefault("registrant.password_length", 12)
	v.SetDefault("registrant.password_digits", 3)

	// -- Suite --
	v.SetDefault("suite.concurrency", 1)
	v.SetDefault("suite.cases", []string{"home", "registration"})

	// -- Artifacts --
	v.SetDefault("artifacts.dir", "artifacts")

	// -- Database --
	v.SetDefault("database.url", "")

	v.SetDefault("ci", false)
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	// Defaults are static and well formed, so this cannot fail in practice.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// NewConfigFromViper builds and validates a Config from a populated viper instance.
// HEADLESS and CI are honoured unprefixed in addition to their REGPROBE_ forms.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	_ = v.BindEnv("browser.headless", "REGPROBE_BROWSER_HEADLESS", "HEADLESS")
	_ = v.BindEnv("ci", "REGPROBE_CI", "CI")
	_ = v.BindEnv("database.url", "REGPROBE_DATABASE_URL", "DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// CI logs are consumed by machines.
	if cfg.CI {
		cfg.Logger.Format = "json"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Target.BaseURL == "" {
		return fmt.Errorf("target.base_url is a required configuration field")
	}
	u, err := url.Parse(c.Target.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("target.base_url must be an absolute URL, got %q", c.Target.BaseURL)
	}
	if c.Target.TitleMarker == "" {
		return fmt.Errorf("target.title_marker is a required configuration field")
	}
	if c.Logger.Format != "console" && c.Logger.Format != "json" {
		return fmt.Errorf("logger.format must be either 'console' or 'json'")
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport dimensions must be positive integers")
	}
	if c.Browser.LaunchTimeout <= 0 {
		return fmt.Errorf("browser.launch_timeout must be positive")
	}
	if c.Browser.ElementTimeout <= 0 {
		return fmt.Errorf("browser.element_timeout must be positive")
	}
	if c.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be positive")
	}
	if c.Detector.SettleDelay < 0 {
		return fmt.Errorf("detector.settle_delay must not be negative")
	}
	if c.Detector.SubmissionMarker == "" {
		return fmt.Errorf("detector.submission_marker is a required configuration field")
	}
	if c.Detector.WelcomeLiteral == "" {
		return fmt.Errorf("detector.welcome_literal is a required configuration field")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be a positive integer")
	}
	if c.Retry.Pacing < 0 {
		return fmt.Errorf("retry.pacing must not be negative")
	}
	if c.Registrant.PasswordLength < 8 {
		return fmt.Errorf("registrant.password_length must be at least 8")
	}
	if c.Registrant.PasswordDigits < 0 || c.Registrant.PasswordDigits > c.Registrant.PasswordLength {
		return fmt.Errorf("registrant.password_digits must be between 0 and registrant.password_length")
	}
	if c.Suite.Concurrency <= 0 {
		return fmt.Errorf("suite.concurrency must be a positive integer")
	}
	if len(c.Suite.Cases) == 0 {
		return fmt.Errorf("suite.cases must name at least one case")
	}
	if c.Artifacts.Dir == "" {
		return fmt.Errorf("artifacts.dir is a required configuration field")
	}
	return nil
}
