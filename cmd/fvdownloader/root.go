package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"fvdownloader/pkg/config"
	"fvdownloader/pkg/logger"
	"fvdownloader/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	// Version information, set with -ldflags at build time
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	logFile    string
	uiMode     string
	quiet      bool
	verbose    bool
)

// Exit codes
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// exitError carries the process exit code out of a command
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error {
	return &exitError{code: exitUsage, err: err}
}

var rootCmd = &cobra.Command{
	Use:   "fvdownloader [collection-url...]",
	Short: "Bulk downloader for FirstView runway collections",
	Long: `fvdownloader downloads every image of one or more FirstView collections.

Images are stored as <root>/<Designer>/<Gender>/<Season>/<Album>/<n>.png
and are re-encoded to PNG (or JPEG) on the way. Running it again over the
same collection overwrites the same files.

Passing collection URLs without a subcommand is the same as 'download'.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	Args:          cobra.ArbitraryArgs,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			ui.Output = os.Stderr
		}
		if !quiet && !noLogoCommand(cmd) && uiMode != config.UIModeTUI {
			ui.PrintLogo()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && downloadFile == "" {
			return cmd.Help()
		}
		return runDownload(cmd, args)
	},
}

// Execute runs the root command and returns the process exit code
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return exitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			ui.PrintError("Error", ee.err)
		}
		return ee.code
	}

	// flag and argument errors from cobra
	ui.PrintError("Error", err)
	fmt.Fprintln(os.Stderr, "Run 'fvdownloader --help' for usage.")
	return exitUsage
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: search ./.fvdownloader.yaml, ~/.config/fvdownloader/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error, disabled)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")
	rootCmd.PersistentFlags().StringVar(&uiMode, "ui", "", "progress display: progress, tui or quiet")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every step at debug level")

	addDownloadFlags(rootCmd)

	rootCmd.SetVersionTemplate(`fvdownloader {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func noLogoCommand(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "version", "help", "show":
		return true
	}
	return false
}

// loadConfig resolves configuration from file, environment and the flags
// explicitly set on cmd
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := make(map[string]interface{})
	set := func(name string, value interface{}) {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			flags[name] = value
		}
	}

	set("log-level", logLevel)
	set("log-file", logFile)
	set("ui", uiMode)
	set("output", outputDir)
	set("concurrent", concurrent)
	set("collections", collections)
	set("format", format)
	set("first-index", firstIndex)
	set("strategy", strategy)
	set("headless", headless)
	set("retries", retries)
	set("rate", rate)
	set("strict-urls", strictURLs)
	set("notify", notify)
	set("manifest", manifest)

	if quiet {
		flags["ui"] = config.UIModeQuiet
	}
	if verbose {
		flags["log-level"] = "debug"
	}

	return config.Load(configFile, flags)
}

// newLogger builds the run logger. The full-screen UI owns the terminal,
// so it only gets file output.
func newLogger(cfg *config.Config, explicitLevel bool) (logger.Logger, error) {
	logCfg := cfg.Logging
	switch cfg.UI.Mode {
	case config.UIModeTUI:
		if logCfg.File == "" {
			return logger.NewNopLogger(), nil
		}
		return logger.NewWithWriter(&logCfg, nil)
	case config.UIModeProgress, config.UIModeQuiet:
		if !explicitLevel && logCfg.Level == "info" {
			logCfg.Level = "warn"
		}
	}
	return logger.New(&logCfg)
}
