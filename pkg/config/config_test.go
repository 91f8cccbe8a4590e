package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://www.firstview.com", cfg.FirstView.BaseURL)
	assert.Equal(t, "PHPSESSID", cfg.FirstView.CookieName)
	assert.True(t, cfg.FirstView.StrictURLs)
	assert.Equal(t, StrategyHTTP, cfg.Scraper.Strategy)
	assert.Equal(t, 4, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, 2, cfg.Download.ConcurrentCollections)
	assert.Equal(t, FormatPNG, cfg.Download.Format)
	assert.Equal(t, 0, cfg.Download.FirstIndex)
	assert.Equal(t, 3, cfg.Download.MaxDirFailures)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.True(t, filepath.IsAbs(cfg.Output.BaseDirectory) || cfg.Output.BaseDirectory != "")
	assert.Equal(t, "FirstView", filepath.Base(cfg.Output.BaseDirectory))

	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FVDOWNLOADER_OUTPUT_DIR", "/tmp/fv")
	t.Setenv("FVDOWNLOADER_CONCURRENT_DOWNLOADS", "8")
	t.Setenv("FVDOWNLOADER_STRATEGY", "browser")
	t.Setenv("FVDOWNLOADER_PAGE_TIMEOUT", "45s")
	t.Setenv("FVDOWNLOADER_STRICT_URLS", "false")
	t.Setenv("FVDOWNLOADER_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "/tmp/fv", cfg.Output.BaseDirectory)
	assert.Equal(t, 8, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, StrategyBrowser, cfg.Scraper.Strategy)
	assert.Equal(t, 45*time.Second, cfg.Scraper.PageTimeout)
	assert.False(t, cfg.FirstView.StrictURLs)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvRejectsMalformedValues(t *testing.T) {
	t.Setenv("FVDOWNLOADER_CONCURRENT_DOWNLOADS", "many")
	t.Setenv("FVDOWNLOADER_PAGE_TIMEOUT", "soon")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FVDOWNLOADER_CONCURRENT_DOWNLOADS")
	assert.Contains(t, err.Error(), "FVDOWNLOADER_PAGE_TIMEOUT")
	assert.Equal(t, 4, cfg.Download.ConcurrentDownloads)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
firstview:
  base_url: http://localhost:8080
scraper:
  strategy: browser
  page_timeout: 1m
download:
  concurrent_downloads: 6
  format: jpeg
  first_index: 1
output:
  base_directory: /data/firstview
  dir_permissions: 0700
retry:
  max_attempts: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "http://localhost:8080", cfg.FirstView.BaseURL)
	assert.Equal(t, StrategyBrowser, cfg.Scraper.Strategy)
	assert.Equal(t, time.Minute, cfg.Scraper.PageTimeout)
	assert.Equal(t, 6, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, FormatJPEG, cfg.Download.Format)
	assert.Equal(t, 1, cfg.Download.FirstIndex)
	assert.Equal(t, "/data/firstview", cfg.Output.BaseDirectory)
	assert.Equal(t, os.FileMode(0700), cfg.Output.DirPermissions)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	// untouched sections keep their defaults
	assert.Equal(t, "PHPSESSID", cfg.FirstView.CookieName)
	assert.Equal(t, 2, cfg.Download.ConcurrentCollections)
}

func TestLoadFromFileErrors(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("download: [unterminated"), 0644))
	err := cfg.LoadFromFile(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)

	assert.Equal(t, "", FindConfigFile())

	require.NoError(t, os.WriteFile(".fvdownloader.yaml", []byte("{}"), 0644))
	assert.Equal(t, ".fvdownloader.yaml", FindConfigFile())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*Config)
		errorContains []string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name: "bad base url",
			mutate: func(c *Config) {
				c.FirstView.BaseURL = "ftp://firstview.com"
			},
			errorContains: []string{"must be http or https"},
		},
		{
			name: "concurrency out of range",
			mutate: func(c *Config) {
				c.Download.ConcurrentDownloads = 0
				c.Download.ConcurrentCollections = 20
			},
			errorContains: []string{"concurrent downloads", "concurrent collections"},
		},
		{
			name: "unknown enums",
			mutate: func(c *Config) {
				c.Scraper.Strategy = "telnet"
				c.Download.Format = "gif"
				c.UI.Mode = "gui"
				c.Logging.Level = "chatty"
			},
			errorContains: []string{"scraper strategy", "output format", "ui mode", "log level"},
		},
		{
			name: "retry bounds",
			mutate: func(c *Config) {
				c.Retry.MaxAttempts = 0
				c.Retry.InitialBackoff = time.Minute
				c.Retry.MaxBackoff = time.Second
			},
			errorContains: []string{"max attempts", "backoff bounds"},
		},
		{
			name: "negative first index",
			mutate: func(c *Config) {
				c.Download.FirstIndex = -1
			},
			errorContains: []string{"first index"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if len(tt.errorContains) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.errorContains {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"output":      "/flag/out",
		"concurrent":  12,
		"format":      "JPEG",
		"strategy":    "Browser",
		"headless":    false,
		"strict-urls": false,
		"ui":          "quiet",
		"concurrent2": "ignored",
	})

	assert.Equal(t, "/flag/out", cfg.Output.BaseDirectory)
	assert.Equal(t, 12, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, FormatJPEG, cfg.Download.Format)
	assert.Equal(t, StrategyBrowser, cfg.Scraper.Strategy)
	assert.False(t, cfg.Scraper.BrowserHeadless)
	assert.False(t, cfg.FirstView.StrictURLs)
	assert.Equal(t, UIModeQuiet, cfg.UI.Mode)
}

func TestSaveAndLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	original := DefaultConfig()
	original.Output.BaseDirectory = "/saved/out"
	original.Download.Format = FormatJPEG
	require.NoError(t, original.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, original, loaded)
}

func TestLoad(t *testing.T) {
	t.Run("precedence order", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `
output:
  base_directory: /file/output
download:
  concurrent_downloads: 5
  format: jpeg
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		t.Setenv("FVDOWNLOADER_OUTPUT_DIR", "/env/output")
		t.Setenv("FVDOWNLOADER_CONCURRENT_DOWNLOADS", "7")

		cfg, err := Load(path, map[string]interface{}{"concurrent": 9})
		require.NoError(t, err)

		assert.Equal(t, 9, cfg.Download.ConcurrentDownloads)
		assert.Equal(t, "/env/output", cfg.Output.BaseDirectory)
		assert.Equal(t, FormatJPEG, cfg.Download.Format)
	})

	t.Run("validation failure", func(t *testing.T) {
		t.Chdir(t.TempDir())
		cfg, err := Load("", map[string]interface{}{"format": "bmp"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration validation failed")
		assert.Nil(t, cfg)
	})

	t.Run("loads .env file", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)
		t.Setenv("HOME", dir)
		require.NoError(t, os.WriteFile(".env", []byte("FVDOWNLOADER_FORMAT=jpeg\n"), 0644))
		t.Cleanup(func() { os.Unsetenv("FVDOWNLOADER_FORMAT") })

		cfg, err := Load("", nil)
		require.NoError(t, err)
		assert.Equal(t, FormatJPEG, cfg.Download.Format)
	})
}
