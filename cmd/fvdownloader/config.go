package main

import (
	"fmt"
	"os"
	"path/filepath"

	"fvdownloader/pkg/auth"
	"fvdownloader/pkg/config"
	"fvdownloader/pkg/ui"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage fvdownloader configuration files.

Configuration is resolved from, highest priority first:
  - Command line flags
  - Environment variables (FVDOWNLOADER_*, .env files included)
  - Configuration file
  - Default values`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with every available option.

The file is written to ./.fvdownloader.yaml unless --config names another path.`,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Print the configuration that a download would use, after merging
every source. The session cookie is masked.`,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Check a configuration file for YAML errors and invalid values, and
that the download root can be created.`,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

const exampleConfig = `# fvdownloader configuration
#
# Every option can also be set with an FVDOWNLOADER_* environment variable,
# for example FVDOWNLOADER_OUTPUT_DIR or FVDOWNLOADER_CONCURRENT_DOWNLOADS.

firstview:
  base_url: "https://www.firstview.com"
  # Sent with every request; a desktop Chrome string by default
  # user_agent: "Mozilla/5.0 ..."
  # Name of the session cookie. Store the value with 'fvdownloader auth login'.
  cookie_name: "PHPSESSID"
  # Reject URLs that are not collection pages on base_url
  strict_urls: true

scraper:
  # http: plain requests. browser: render pages in headless Chrome.
  strategy: "http"
  page_timeout: 30s
  browser_headless: true
  # Extra wait after a page loads in the browser
  browser_wait: 2s

download:
  # Images fetched at once within a collection
  concurrent_downloads: 4
  # Collections processed at once
  concurrent_collections: 2
  timeout: 60s
  # png or jpeg
  format: "png"
  jpeg_quality: 95
  # Number of the first file in each album directory
  first_index: 0
  # Give up on a collection after this many directory creation failures
  max_dir_failures: 3

output:
  # Defaults to ~/Downloads/FirstView
  # base_directory: "/srv/runway"
  dir_permissions: 0755
  file_permissions: 0644
  # Write collection.json with the source of every image
  write_manifest: false

rate_limit:
  requests_per_minute: 600

retry:
  max_attempts: 3
  initial_backoff: 500ms
  max_backoff: 10s
  multiplier: 2.0

logging:
  # debug, info, warn, error, disabled
  level: "info"
  # Also write logs to this file
  file: ""

ui:
  # progress, tui or quiet
  mode: "progress"
  notifications: false
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = ".fvdownloader.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return &exitError{code: exitUsage, err: fmt.Errorf("configuration file already exists: %s", path)}
	}

	if err := os.WriteFile(path, []byte(exampleConfig), 0644); err != nil {
		return &exitError{code: exitFailure, err: fmt.Errorf("failed to create configuration file: %w", err)}
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Fprintln(ui.Output, "\nNext steps:")
	fmt.Fprintln(ui.Output, "1. Edit the file to taste")
	fmt.Fprintln(ui.Output, "2. Run 'fvdownloader config validate' to check it")
	fmt.Fprintln(ui.Output, "3. Store your session with 'fvdownloader auth login'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return usageError(err)
	}

	display := *cfg
	if display.FirstView.SessionCookie != "" {
		display.FirstView.SessionCookie = auth.Mask(display.FirstView.SessionCookie)
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return &exitError{code: exitFailure, err: fmt.Errorf("failed to format configuration: %w", err)}
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, string(data))

	source := configFile
	if source == "" {
		source = config.FindConfigFile()
	}
	if source == "" {
		source = "(none found, defaults)"
	}
	fmt.Fprintf(out, "\n# file: %s\n", source)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.FindConfigFile()
	}
	if path == "" {
		return usageError(fmt.Errorf("no configuration file found in %v; pass one with --config", config.ConfigLocations()))
	}

	ui.PrintInfo("Validating configuration", path)

	cfg, err := config.Load(path, nil)
	if err != nil {
		return usageError(err)
	}

	var problems, warnings []string

	if err := os.MkdirAll(cfg.Output.BaseDirectory, cfg.Output.DirPermissions|0700); err != nil {
		problems = append(problems, fmt.Sprintf("cannot create download root: %v", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}
	if cfg.FirstView.SessionCookie != "" {
		warnings = append(warnings, "session cookie is stored in plain text; prefer 'fvdownloader auth login'")
	}
	if cfg.Scraper.Strategy == config.StrategyBrowser && !cfg.Scraper.BrowserHeadless && cfg.Download.ConcurrentCollections > 1 {
		warnings = append(warnings, "a visible browser with several concurrent collections opens several windows")
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:", nil)
		for _, p := range problems {
			fmt.Fprintf(ui.Output, "  - %s\n", p)
		}
		return &exitError{code: exitUsage}
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Fprintf(ui.Output, "  - %s\n", w)
		}
		fmt.Fprintln(ui.Output)
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Fprintln(ui.Output, "\nConfiguration summary:")
	fmt.Fprintf(ui.Output, "  Download root: %s\n", cfg.Output.BaseDirectory)
	fmt.Fprintf(ui.Output, "  Strategy: %s\n", cfg.Scraper.Strategy)
	fmt.Fprintf(ui.Output, "  Format: %s\n", cfg.Download.Format)
	fmt.Fprintf(ui.Output, "  Concurrency: %d images x %d collections\n", cfg.Download.ConcurrentDownloads, cfg.Download.ConcurrentCollections)
	fmt.Fprintf(ui.Output, "  Rate limit: %d requests/minute\n", cfg.RateLimit.RequestsPerMinute)
	fmt.Fprintf(ui.Output, "  Retry attempts: %d\n", cfg.Retry.MaxAttempts)
	fmt.Fprintf(ui.Output, "  Log level: %s\n", cfg.Logging.Level)
	return nil
}
