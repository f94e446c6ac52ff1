package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"hqe/internal/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_GetSpecPath(t *testing.T) {
	tests := []struct {
		name     string
		config   *Config
		expected string
	}{
		{
			name: "default path",
			config: &Config{
				ProjectPath: ".",
				SpecPath:    "e2e",
				Flags:       Flags{},
			},
			expected: "e2e",
		},
		{
			name: "with spec path flag",
			config: &Config{
				ProjectPath: "/project",
				SpecPath:    "e2e",
				Flags: Flags{
					SpecPath: "e2e/regression",
				},
			},
			expected: "/project/e2e/regression",
		},
		{
			name: "absolute spec path",
			config: &Config{
				ProjectPath: "/project",
				SpecPath:    "e2e",
				Flags: Flags{
					SpecPath: "/absolute/path",
				},
			},
			expected: "/absolute/path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.config.GetSpecPath()
			if result != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, result)
			}
		})
	}
}

func TestConfig_ResolveURL(t *testing.T) {
	cfg := New()
	cfg.BaseURL = "https://horadoqa.com.br"

	tests := []struct {
		target   string
		expected string
	}{
		{"/", "https://horadoqa.com.br/"},
		{"about", "https://horadoqa.com.br/about"},
		{"/blog?page=2", "https://horadoqa.com.br/blog?page=2"},
		{"https://www.horadoqa.com.br/", "https://www.horadoqa.com.br/"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			got, err := cfg.ResolveURL(tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.ProjectPath != DefaultProjectPath {
		t.Errorf("expected ProjectPath %s, got %s", DefaultProjectPath, cfg.ProjectPath)
	}

	if cfg.Workers != DefaultWorkers {
		t.Errorf("expected Workers %d, got %d", DefaultWorkers, cfg.Workers)
	}

	if len(cfg.PathsToIgnore) != len(DefaultPathsToIgnore) {
		t.Errorf("expected %d paths to ignore, got %d", len(DefaultPathsToIgnore), len(cfg.PathsToIgnore))
	}

	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative base url", func(c *Config) { c.BaseURL = "/home" }},
		{"ftp base url", func(c *Config) { c.BaseURL = "ftp://example.com" }},
		{"empty results dir", func(c *Config) { c.ResultsDir = " " }},
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"negative timeout", func(c *Config) { c.CommandTimeout = -time.Second }},
		{"unknown driver", func(c *Config) { c.Driver = "selenium" }},
		{"chromedp with firefox", func(c *Config) { c.Driver = "chromedp"; c.Browser = "firefox" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, errs.Configuration, errs.KindOf(err))
		})
	}
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	yaml := "base_url: https://from-file.example\nworkers: 3\ncommand_timeout: 10s\nresults_dir: out/allure\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hqe.yaml"), []byte(yaml), 0644))

	t.Run("file values", func(t *testing.T) {
		cfg, err := Load(Flags{ProjectPath: dir})
		require.NoError(t, err)
		assert.Equal(t, "https://from-file.example", cfg.BaseURL)
		assert.Equal(t, 3, cfg.Workers)
		assert.Equal(t, 10*time.Second, cfg.CommandTimeout)
		assert.Equal(t, filepath.Join(dir, "out/allure"), cfg.GetResultsDir())
		assert.Equal(t, DefaultPageLoadTimeout, cfg.PageLoadTimeout)
	})

	t.Run("env overrides file", func(t *testing.T) {
		t.Setenv("HQE_BASE_URL", "https://from-env.example")
		cfg, err := Load(Flags{ProjectPath: dir})
		require.NoError(t, err)
		assert.Equal(t, "https://from-env.example", cfg.BaseURL)
	})

	t.Run("flags override env", func(t *testing.T) {
		t.Setenv("HQE_BASE_URL", "https://from-env.example")
		cfg, err := Load(Flags{ProjectPath: dir, BaseURL: "http://localhost:3000", Workers: 2, Headed: true})
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:3000", cfg.BaseURL)
		assert.Equal(t, 2, cfg.Workers)
		assert.False(t, cfg.Headless)
	})
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	_, err := Load(Flags{ProjectPath: t.TempDir(), ConfigFile: "/non/existent/hqe.yaml"})
	require.Error(t, err)
	assert.Equal(t, errs.Configuration, errs.KindOf(err))
}

func TestLoad_NoConfigFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(Flags{ProjectPath: dir})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, filepath.Join(dir, DefaultSupportFile), cfg.GetSupportFile())
	assert.Equal(t, filepath.Join(dir, DefaultSummaryDir, DefaultSummaryFile), cfg.GetSummaryPath())
}
