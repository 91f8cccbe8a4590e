package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"fvdownloader/pkg/auth"
	"fvdownloader/pkg/batch"
	"fvdownloader/pkg/config"
	"fvdownloader/pkg/logger"
	"fvdownloader/pkg/metrics"
	"fvdownloader/pkg/models"
	"fvdownloader/pkg/progress"
	"fvdownloader/pkg/ui"
	"fvdownloader/pkg/ui/tui"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	// Download command flags
	downloadFile string
	outputDir    string
	concurrent   int
	collections  int
	format       string
	firstIndex   int
	strategy     string
	headless     bool
	retries      int
	rate         int
	strictURLs   bool
	notify       bool
	manifest     bool
	profile      string
	metricsAddr  string
)

var downloadCmd = &cobra.Command{
	Use:     "download [collection-url...]",
	Aliases: []string{"dl", "get"},
	Short:   "Download every image of one or more collections",
	Long: `Download every image of the given FirstView collections.

URLs come from the arguments and from --file, one per line. Blank lines and
lines starting with # are ignored; --file - reads standard input.

A session cookie is attached when one is available, looked up in this order:
  - the FVDOWNLOADER_SESSION_COOKIE environment variable
  - the system keychain ('fvdownloader auth login')
  - the encrypted session file

Exit status is 0 when every collection finished cleanly, 1 when any
collection failed, partially failed or was cancelled, and 2 on usage or
configuration errors.`,
	Example: `  # Download one collection to the default root
  fvdownloader download 'https://www.firstview.com/collection_images.php?id=12345'

  # Several collections from a file, as JPEG, into ./runway
  fvdownloader download --file collections.txt --format jpeg --output ./runway

  # Render pages in headless Chrome and show the full-screen UI
  fvdownloader download --strategy browser --ui tui --file collections.txt

  # Expose Prometheus metrics while downloading
  fvdownloader download --metrics-addr :9090 --file collections.txt`,
	Args: cobra.ArbitraryArgs,
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)
	addDownloadFlags(downloadCmd)
}

// addDownloadFlags registers the download flags on cmd. The root command
// carries them too so URLs can be passed without the subcommand.
func addDownloadFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&downloadFile, "file", "f", "", "read collection URLs from a file (- for stdin)")
	f.StringVarP(&outputDir, "output", "o", "", "download root (default ~/Downloads/FirstView)")
	f.IntVar(&concurrent, "concurrent", 4, "concurrent image downloads per collection")
	f.IntVar(&collections, "collections", 2, "collections processed at once")
	f.StringVar(&format, "format", config.FormatPNG, "output format: png or jpeg")
	f.IntVar(&firstIndex, "first-index", 0, "number given to the first image of a collection")
	f.StringVar(&strategy, "strategy", config.StrategyHTTP, "page loading: http or browser")
	f.BoolVar(&headless, "headless", true, "run the browser strategy headless")
	f.IntVar(&retries, "retries", 3, "attempts per page load and image fetch")
	f.IntVar(&rate, "rate", 600, "requests per minute")
	f.BoolVar(&strictURLs, "strict-urls", true, "reject URLs that are not FirstView collection pages")
	f.BoolVar(&notify, "notify", false, "send a desktop notification when the batch ends")
	f.BoolVar(&manifest, "manifest", false, "write collection.json beside each album")
	f.StringVar(&profile, "profile", auth.DefaultProfile, "stored session profile")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
}

func runDownload(cmd *cobra.Command, args []string) error {
	urls, err := collectURLs(args, downloadFile, cmd.InOrStdin())
	if err != nil {
		return usageError(err)
	}
	if len(urls) == 0 {
		return usageError(errors.New("no collection URLs given"))
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return usageError(err)
	}

	explicitLevel := verbose || cmd.Flags().Changed("log-level")
	log, err := newLogger(cfg, explicitLevel)
	if err != nil {
		return usageError(err)
	}
	logger.SetLogger(log)
	log.WithFields(map[string]interface{}{
		"version":     version,
		"collections": len(urls),
		"strategy":    cfg.Scraper.Strategy,
		"root":        cfg.Output.BaseDirectory,
	}).Info("fvdownloader starting")

	resolveSession(cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracker := progress.NewTracker()
	observers := []progress.Observer{tracker}

	var terminal *tui.TUI
	switch cfg.UI.Mode {
	case config.UIModeTUI:
		terminal = tui.New(stop)
		observers = append(observers, terminal)
	case config.UIModeProgress:
		ui.PrintInfo("Collections", fmt.Sprint(len(urls)))
		ui.PrintInfo("Saving to", cfg.Output.BaseDirectory)
		observers = append(observers, ui.NewProgressDisplay(os.Stderr, verbose))
	}

	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		observers = append(observers, metrics.New(reg))
		go func() {
			if err := metrics.Serve(ctx, metricsAddr, reg, log); err != nil {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	runner, closeRunner, err := batch.Build(cfg, progress.NewMulti(observers...), log)
	if err != nil {
		return usageError(err)
	}
	defer func() {
		if err := closeRunner(); err != nil {
			log.WithError(err).Warn("Failed to release page source")
		}
	}()

	var summaries []models.CollectionSummary
	if terminal != nil {
		done := make(chan struct{})
		go func() {
			defer close(done)
			summaries = runner.Run(ctx, urls)
			terminal.Done()
		}()
		if err := terminal.Run(); err != nil {
			log.WithError(err).Error("Terminal UI failed")
			stop()
		}
		<-done
	} else {
		summaries = runner.Run(ctx, urls)
	}

	if cfg.UI.Mode == config.UIModeQuiet {
		printFailures(summaries)
	} else {
		fmt.Println()
		ui.PrintSummary(os.Stdout, summaries)
	}

	if cfg.UI.Notifications {
		if err := ui.NewNotifier().BatchFinished(summaries); err != nil {
			log.WithError(err).Warn("Failed to send notification")
		}
	}

	for _, s := range summaries {
		if s.Status != models.StatusDone {
			return &exitError{code: exitFailure}
		}
	}
	return nil
}

// collectURLs merges URLs from args and from the list file at path
func collectURLs(args []string, path string, stdin io.Reader) ([]string, error) {
	var urls []string
	for _, a := range args {
		if a = strings.TrimSpace(a); a != "" {
			urls = append(urls, a)
		}
	}
	if path == "" {
		return urls, nil
	}

	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open URL list: %w", err)
		}
		defer f.Close()
		r = f
	}

	fromFile, err := readURLList(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read URL list: %w", err)
	}
	return append(urls, fromFile...), nil
}

// readURLList reads one URL per line, skipping blanks and # comments
func readURLList(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, scanner.Err()
}

// resolveSession fills in the session cookie from the credential store
// when none was configured. Downloading without one is allowed.
func resolveSession(cfg *config.Config, log logger.Logger) {
	if cfg.FirstView.SessionCookie != "" {
		log.Debug("Using session cookie from configuration")
		return
	}

	manager, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Warn("Credential store unavailable")
		return
	}

	session, backend, err := manager.Load(profile)
	if err != nil {
		if errors.Is(err, auth.ErrSessionNotFound) {
			log.Info("No stored session, continuing without one")
		} else {
			log.WithError(err).Warn("Failed to load stored session")
		}
		return
	}

	cfg.FirstView.SessionCookie = session.Value
	if session.CookieName != "" {
		cfg.FirstView.CookieName = session.CookieName
	}
	log.WithFields(map[string]interface{}{
		"profile": session.Profile,
		"backend": backend,
	}).Info("Using stored session")
}

func printFailures(summaries []models.CollectionSummary) {
	for _, s := range summaries {
		if s.Status == models.StatusDone {
			continue
		}
		ui.PrintError(fmt.Sprintf("%s %s", s.Status, s.Request.URL), s.Err)
	}
}
