package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv
const EnvPrefix = "FVDOWNLOADER_"

const (
	StrategyHTTP    = "http"
	StrategyBrowser = "browser"

	FormatPNG  = "png"
	FormatJPEG = "jpeg"

	UIModeProgress = "progress"
	UIModeTUI      = "tui"
	UIModeQuiet    = "quiet"
)

// Config holds all configuration options for the downloader
type Config struct {
	FirstView FirstViewConfig `yaml:"firstview" json:"firstview"`
	Scraper   ScraperConfig   `yaml:"scraper" json:"scraper"`
	Download  DownloadConfig  `yaml:"download" json:"download"`
	Output    OutputConfig    `yaml:"output" json:"output"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Retry     RetryConfig     `yaml:"retry" json:"retry"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	UI        UIConfig        `yaml:"ui" json:"ui"`
}

// FirstViewConfig describes the catalog site
type FirstViewConfig struct {
	BaseURL    string `yaml:"base_url" json:"base_url"`
	UserAgent  string `yaml:"user_agent" json:"user_agent"`
	CookieName string `yaml:"cookie_name" json:"cookie_name"`
	// SessionCookie is normally left empty and resolved from the credential store
	SessionCookie string `yaml:"session_cookie,omitempty" json:"session_cookie,omitempty"`
	StrictURLs    bool   `yaml:"strict_urls" json:"strict_urls"`
}

// ScraperConfig selects and tunes the page source
type ScraperConfig struct {
	Strategy        string        `yaml:"strategy" json:"strategy"`
	PageTimeout     time.Duration `yaml:"page_timeout" json:"page_timeout"`
	BrowserHeadless bool          `yaml:"browser_headless" json:"browser_headless"`
	BrowserWait     time.Duration `yaml:"browser_wait" json:"browser_wait"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	ConcurrentDownloads   int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	ConcurrentCollections int           `yaml:"concurrent_collections" json:"concurrent_collections"`
	Timeout               time.Duration `yaml:"timeout" json:"timeout"`
	Format                string        `yaml:"format" json:"format"`
	JPEGQuality           int           `yaml:"jpeg_quality" json:"jpeg_quality"`
	FirstIndex            int           `yaml:"first_index" json:"first_index"`
	MaxDirFailures        int           `yaml:"max_dir_failures" json:"max_dir_failures"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory   string      `yaml:"base_directory" json:"base_directory"`
	DirPermissions  os.FileMode `yaml:"dir_permissions" json:"dir_permissions"`
	FilePermissions os.FileMode `yaml:"file_permissions" json:"file_permissions"`
	// WriteManifest stores a collection.json beside each album's images
	WriteManifest bool `yaml:"write_manifest" json:"write_manifest"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// RetryConfig bounds the retries of page loads and image fetches
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" json:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" json:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier" json:"multiplier"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// UIConfig selects how progress is presented
type UIConfig struct {
	Mode          string `yaml:"mode" json:"mode"`
	Notifications bool   `yaml:"notifications" json:"notifications"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		FirstView: FirstViewConfig{
			BaseURL:    "https://www.firstview.com",
			UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			CookieName: "PHPSESSID",
			StrictURLs: true,
		},
		Scraper: ScraperConfig{
			Strategy:        StrategyHTTP,
			PageTimeout:     30 * time.Second,
			BrowserHeadless: true,
			BrowserWait:     2 * time.Second,
		},
		Download: DownloadConfig{
			ConcurrentDownloads:   4,
			ConcurrentCollections: 2,
			Timeout:               60 * time.Second,
			Format:                FormatPNG,
			JPEGQuality:           95,
			FirstIndex:            0,
			MaxDirFailures:        3,
		},
		Output: OutputConfig{
			BaseDirectory:   defaultBaseDirectory(),
			DirPermissions:  0755,
			FilePermissions: 0644,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 600,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     10 * time.Second,
			Multiplier:     2.0,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		UI: UIConfig{
			Mode:          UIModeProgress,
			Notifications: false,
		},
	}
}

func defaultBaseDirectory() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("Downloads", "FirstView")
	}
	return filepath.Join(home, "Downloads", "FirstView")
}

// LoadFromEnv loads configuration from FVDOWNLOADER_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	str := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = n
	}
	boolean := func(name string, dst *bool) {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = b
	}
	dur := func(name string, dst *time.Duration) {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = d
	}

	str("BASE_URL", &c.FirstView.BaseURL)
	str("USER_AGENT", &c.FirstView.UserAgent)
	str("COOKIE_NAME", &c.FirstView.CookieName)
	boolean("STRICT_URLS", &c.FirstView.StrictURLs)

	str("STRATEGY", &c.Scraper.Strategy)
	dur("PAGE_TIMEOUT", &c.Scraper.PageTimeout)
	boolean("BROWSER_HEADLESS", &c.Scraper.BrowserHeadless)

	num("CONCURRENT_DOWNLOADS", &c.Download.ConcurrentDownloads)
	num("CONCURRENT_COLLECTIONS", &c.Download.ConcurrentCollections)
	dur("DOWNLOAD_TIMEOUT", &c.Download.Timeout)
	str("FORMAT", &c.Download.Format)
	num("FIRST_INDEX", &c.Download.FirstIndex)

	str("OUTPUT_DIR", &c.Output.BaseDirectory)
	boolean("WRITE_MANIFEST", &c.Output.WriteManifest)
	num("REQUESTS_PER_MINUTE", &c.RateLimit.RequestsPerMinute)
	num("MAX_ATTEMPTS", &c.Retry.MaxAttempts)

	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FILE", &c.Logging.File)
	str("UI_MODE", &c.UI.Mode)
	boolean("NOTIFICATIONS", &c.UI.Notifications)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file. An empty path
// searches the standard locations and is not an error when none exists.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// ConfigLocations lists the config file search path in order of precedence
func ConfigLocations() []string {
	locations := []string{".fvdownloader.yaml", ".fvdownloader.yml"}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations,
			filepath.Join(home, ".config", "fvdownloader", "config.yaml"),
			filepath.Join(home, ".config", "fvdownloader", "config.yml"),
			filepath.Join(home, ".fvdownloader.yaml"),
		)
	}
	return locations
}

// FindConfigFile returns the first existing config file, or ""
func FindConfigFile() string {
	for _, loc := range ConfigLocations() {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.FirstView.BaseURL == "" {
		errs = append(errs, errors.New("firstview base URL is required"))
	} else if !strings.HasPrefix(c.FirstView.BaseURL, "http://") && !strings.HasPrefix(c.FirstView.BaseURL, "https://") {
		errs = append(errs, errors.New("firstview base URL must be http or https"))
	}
	if c.FirstView.CookieName == "" {
		errs = append(errs, errors.New("session cookie name is required"))
	}

	switch c.Scraper.Strategy {
	case StrategyHTTP, StrategyBrowser:
	default:
		errs = append(errs, fmt.Errorf("unknown scraper strategy %q", c.Scraper.Strategy))
	}
	if c.Scraper.PageTimeout <= 0 {
		errs = append(errs, errors.New("page timeout must be positive"))
	}

	if c.Download.ConcurrentDownloads < 1 || c.Download.ConcurrentDownloads > 32 {
		errs = append(errs, errors.New("concurrent downloads must be between 1 and 32"))
	}
	if c.Download.ConcurrentCollections < 1 || c.Download.ConcurrentCollections > 8 {
		errs = append(errs, errors.New("concurrent collections must be between 1 and 8"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	switch c.Download.Format {
	case FormatPNG, FormatJPEG:
	default:
		errs = append(errs, fmt.Errorf("unsupported output format %q", c.Download.Format))
	}
	if c.Download.JPEGQuality < 1 || c.Download.JPEGQuality > 100 {
		errs = append(errs, errors.New("jpeg quality must be between 1 and 100"))
	}
	if c.Download.FirstIndex < 0 {
		errs = append(errs, errors.New("first index cannot be negative"))
	}
	if c.Download.MaxDirFailures < 1 {
		errs = append(errs, errors.New("max directory failures must be positive"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry max attempts must be at least 1"))
	}
	if c.Retry.InitialBackoff < 0 || c.Retry.MaxBackoff < c.Retry.InitialBackoff {
		errs = append(errs, errors.New("retry backoff bounds are inconsistent"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry multiplier must be at least 1"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	switch c.UI.Mode {
	case UIModeProgress, UIModeTUI, UIModeQuiet:
	default:
		errs = append(errs, fmt.Errorf("unknown ui mode %q", c.UI.Mode))
	}

	return errors.Join(errs...)
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges explicitly set command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.BaseDirectory = v
	}
	if v, ok := flags["concurrent"].(int); ok && v > 0 {
		c.Download.ConcurrentDownloads = v
	}
	if v, ok := flags["collections"].(int); ok && v > 0 {
		c.Download.ConcurrentCollections = v
	}
	if v, ok := flags["format"].(string); ok && v != "" {
		c.Download.Format = strings.ToLower(v)
	}
	if v, ok := flags["first-index"].(int); ok && v >= 0 {
		c.Download.FirstIndex = v
	}
	if v, ok := flags["strategy"].(string); ok && v != "" {
		c.Scraper.Strategy = strings.ToLower(v)
	}
	if v, ok := flags["headless"].(bool); ok {
		c.Scraper.BrowserHeadless = v
	}
	if v, ok := flags["retries"].(int); ok && v > 0 {
		c.Retry.MaxAttempts = v
	}
	if v, ok := flags["rate"].(int); ok && v > 0 {
		c.RateLimit.RequestsPerMinute = v
	}
	if v, ok := flags["session-cookie"].(string); ok && v != "" {
		c.FirstView.SessionCookie = v
	}
	if v, ok := flags["strict-urls"].(bool); ok {
		c.FirstView.StrictURLs = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["log-file"].(string); ok && v != "" {
		c.Logging.File = v
	}
	if v, ok := flags["ui"].(string); ok && v != "" {
		c.UI.Mode = strings.ToLower(v)
	}
	if v, ok := flags["manifest"].(bool); ok {
		c.Output.WriteManifest = v
	}
	if v, ok := flags["notify"].(bool); ok {
		c.UI.Notifications = v
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: command line flags > environment variables > .env file > config file > defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".fvdownloader.env"))
	}

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}
