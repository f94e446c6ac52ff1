package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"hqe/internal/errs"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the run configuration. It is built once by Load and not
// modified afterwards.
type Config struct {
	// Project settings
	ProjectPath string
	SpecPath    string
	SpecSuffix  string
	SupportFile string

	// Target
	BaseURL string

	// Output settings
	ResultsDir  string
	SummaryDir  string
	SummaryFile string
	MetricsFile string
	HistoryDSN  string
	Screenshots bool

	// Execution settings
	Workers         int
	CommandTimeout  time.Duration
	PageLoadTimeout time.Duration
	RunTimeout      time.Duration

	// Browser settings
	Driver   string
	Browser  string
	Headless bool

	// Logging
	LogLevel  string
	LogFormat string

	// Paths to ignore when scanning
	PathsToIgnore []string

	// Command flags
	Flags Flags
}

// Flags holds command-line flags
type Flags struct {
	ConfigFile   string
	ProjectPath  string
	SpecPath     string
	NameFilter   string
	Grep         string
	Tags         []string
	Workers      int
	BaseURL      string
	ResultsDir   string
	Driver       string
	Browser      string
	Headed       bool
	Bail         bool
	Migrate      bool
	Fresh        bool
	TestCases    bool
	OpenFailures bool
	HistoryLimit int
	LogLevel     string
	LogFormat    string
}

// fileConfig mirrors the keys accepted in hqe.yaml and HQE_* variables.
type fileConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	ResultsDir      string        `mapstructure:"results_dir"`
	SupportFile     string        `mapstructure:"support_file"`
	SpecPath        string        `mapstructure:"spec_path"`
	Workers         int           `mapstructure:"workers"`
	CommandTimeout  time.Duration `mapstructure:"command_timeout"`
	PageLoadTimeout time.Duration `mapstructure:"page_load_timeout"`
	RunTimeout      time.Duration `mapstructure:"run_timeout"`
	Driver          string        `mapstructure:"driver"`
	Browser         string        `mapstructure:"browser"`
	Headless        bool          `mapstructure:"headless"`
	Screenshots     bool          `mapstructure:"screenshots"`
	HistoryDSN      string        `mapstructure:"history_dsn"`
	MetricsFile     string        `mapstructure:"metrics_file"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
}

// New creates a new Config with defaults
func New() *Config {
	cfg := &Config{
		ProjectPath:     DefaultProjectPath,
		SpecPath:        DefaultSpecPath,
		SpecSuffix:      DefaultSpecSuffix,
		SupportFile:     DefaultSupportFile,
		BaseURL:         DefaultBaseURL,
		ResultsDir:      DefaultResultsDir,
		SummaryDir:      DefaultSummaryDir,
		SummaryFile:     DefaultSummaryFile,
		Screenshots:     true,
		Workers:         DefaultWorkers,
		CommandTimeout:  DefaultCommandTimeout,
		PageLoadTimeout: DefaultPageLoadTimeout,
		Driver:          DefaultDriver,
		Browser:         DefaultBrowser,
		Headless:        true,
		LogLevel:        "info",
		LogFormat:       "text",
	}
	// Copy default paths to ignore
	cfg.PathsToIgnore = make([]string, len(DefaultPathsToIgnore))
	copy(cfg.PathsToIgnore, DefaultPathsToIgnore)
	return cfg
}

// Load builds the run configuration. Precedence, lowest first: defaults,
// hqe.yaml, .env, HQE_* environment variables, flags.
func Load(flags Flags) (*Config, error) {
	cfg := New()
	if flags.ProjectPath != "" {
		cfg.ProjectPath = flags.ProjectPath
	}

	// .env never overrides variables that are already set
	if err := godotenv.Load(filepath.Join(cfg.ProjectPath, ".env")); err != nil {
		_ = err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if flags.ConfigFile != "" {
		v.SetConfigFile(flags.ConfigFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.AddConfigPath(cfg.ProjectPath)
	}
	setDefaults(v, cfg)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if flags.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, errs.Wrap(errs.Configuration, "failed to read config file", err)
		}
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, errs.Wrap(errs.Configuration, "failed to unmarshal config", err)
	}
	cfg.apply(fc)
	cfg.applyFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("base_url", cfg.BaseURL)
	v.SetDefault("results_dir", cfg.ResultsDir)
	v.SetDefault("support_file", cfg.SupportFile)
	v.SetDefault("spec_path", cfg.SpecPath)
	v.SetDefault("workers", cfg.Workers)
	v.SetDefault("command_timeout", cfg.CommandTimeout)
	v.SetDefault("page_load_timeout", cfg.PageLoadTimeout)
	v.SetDefault("run_timeout", cfg.RunTimeout)
	v.SetDefault("driver", cfg.Driver)
	v.SetDefault("browser", cfg.Browser)
	v.SetDefault("headless", cfg.Headless)
	v.SetDefault("screenshots", cfg.Screenshots)
	v.SetDefault("history_dsn", cfg.HistoryDSN)
	v.SetDefault("metrics_file", cfg.MetricsFile)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
}

func (c *Config) apply(fc fileConfig) {
	c.BaseURL = fc.BaseURL
	c.ResultsDir = fc.ResultsDir
	c.SupportFile = fc.SupportFile
	c.SpecPath = fc.SpecPath
	c.Workers = fc.Workers
	c.CommandTimeout = fc.CommandTimeout
	c.PageLoadTimeout = fc.PageLoadTimeout
	c.RunTimeout = fc.RunTimeout
	c.Driver = fc.Driver
	c.Browser = fc.Browser
	c.Headless = fc.Headless
	c.Screenshots = fc.Screenshots
	c.HistoryDSN = fc.HistoryDSN
	c.MetricsFile = fc.MetricsFile
	c.LogLevel = fc.LogLevel
	c.LogFormat = fc.LogFormat
}

func (c *Config) applyFlags(flags Flags) {
	c.Flags = flags

	// Apply flag overrides
	if flags.BaseURL != "" {
		c.BaseURL = flags.BaseURL
	}
	if flags.ResultsDir != "" {
		c.ResultsDir = flags.ResultsDir
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}
	if flags.Driver != "" {
		c.Driver = flags.Driver
	}
	if flags.Browser != "" {
		c.Browser = flags.Browser
	}
	if flags.Headed {
		c.Headless = false
	}
	if flags.LogLevel != "" {
		c.LogLevel = flags.LogLevel
	}
	if flags.LogFormat != "" {
		c.LogFormat = flags.LogFormat
	}
}

// Validate reports a configuration error for values no run can start with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errs.New(errs.Configuration, fmt.Sprintf("base url must be an absolute http(s) URL, got %q", c.BaseURL))
	}
	if strings.TrimSpace(c.ResultsDir) == "" {
		return errs.New(errs.Configuration, "results dir must not be empty")
	}
	if c.Workers < 1 {
		return errs.New(errs.Configuration, fmt.Sprintf("workers must be at least 1, got %d", c.Workers))
	}
	if c.CommandTimeout < 0 || c.PageLoadTimeout < 0 || c.RunTimeout < 0 {
		return errs.New(errs.Configuration, "timeouts must not be negative")
	}
	switch c.Driver {
	case "playwright", "chromedp":
	default:
		return errs.New(errs.Configuration, fmt.Sprintf("unknown driver %q", c.Driver))
	}
	switch c.Browser {
	case "chromium", "firefox", "webkit":
	default:
		return errs.New(errs.Configuration, fmt.Sprintf("unknown browser %q", c.Browser))
	}
	if c.Driver == "chromedp" && c.Browser != "chromium" {
		return errs.New(errs.Configuration, "the chromedp driver only supports chromium")
	}
	return nil
}

// resolve makes p relative to the project path unless it is absolute.
func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ProjectPath, p)
}

// GetSpecPath returns the directory suites are discovered in, using the flag if provided
func (c *Config) GetSpecPath() string {
	if c.Flags.SpecPath != "" {
		return c.resolve(c.Flags.SpecPath)
	}
	return c.resolve(c.SpecPath)
}

// GetResultsDir returns the absolute directory for reporting output.
func (c *Config) GetResultsDir() string {
	p := c.resolve(c.ResultsDir)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// GetScreenshotDir returns where failure screenshots are written.
func (c *Config) GetScreenshotDir() string {
	return filepath.Join(c.GetResultsDir(), "screenshots")
}

// GetSummaryPath returns the full path to the last run summary (so run and failures use the same file).
func (c *Config) GetSummaryPath() string {
	p := c.resolve(filepath.Join(c.SummaryDir, c.SummaryFile))
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// GetSupportFile returns the support file path, or "" when disabled.
func (c *Config) GetSupportFile() string {
	if c.SupportFile == "" {
		return ""
	}
	return c.resolve(c.SupportFile)
}

// GetMetricsFile returns the metrics textfile path, or "" when disabled.
func (c *Config) GetMetricsFile() string {
	if c.MetricsFile == "" {
		return ""
	}
	return c.resolve(c.MetricsFile)
}

// ResolveURL resolves a visit target against the base URL. Absolute
// targets are returned unchanged.
func (c *Config) ResolveURL(target string) (string, error) {
	ref, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", target, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", c.BaseURL, err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	return base.ResolveReference(ref).String(), nil
}

// TemplateVars are the variables suite files may reference.
func (c *Config) TemplateVars() map[string]string {
	return map[string]string{
		"base_url":    c.BaseURL,
		"results_dir": c.GetResultsDir(),
	}
}
