package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"fvdownloader/pkg/auth"
	"fvdownloader/pkg/batch"
	"fvdownloader/pkg/logger"
	"fvdownloader/pkg/ui"

	"github.com/spf13/cobra"
)

var previewCmd = &cobra.Command{
	Use:   "preview [collection-url...]",
	Short: "Show what each collection is without downloading it",
	Long: `Load only the first listing page of each collection and print its
designer, gender, season and album, so a URL list can be checked before a
long download. Invalid URLs are reported and make the command exit 1.`,
	Example: `  fvdownloader preview 'https://www.firstview.com/collection_images.php?id=12345'
  fvdownloader preview --file collections.txt`,
	Args: cobra.ArbitraryArgs,
	RunE: runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)
	previewCmd.Flags().StringVarP(&downloadFile, "file", "f", "", "read collection URLs from a file (- for stdin)")
	previewCmd.Flags().StringVar(&profile, "profile", auth.DefaultProfile, "stored session profile")
}

func runPreview(cmd *cobra.Command, args []string) error {
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
	logCfg := cfg.Logging
	if !verbose && !cmd.Flags().Changed("log-level") {
		logCfg.Level = "warn"
	}
	log, err := logger.New(&logCfg)
	if err != nil {
		return usageError(err)
	}
	resolveSession(cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := batch.NewClient(cfg, log)
	pag, closeSource, err := batch.NewPaginator(cfg, client, log)
	if err != nil {
		return usageError(err)
	}
	defer closeSource()

	previewer := batch.NewPreviewer(pag, cfg.FirstView.BaseURL, cfg.FirstView.StrictURLs)

	invalid := 0
	for _, url := range urls {
		if ctx.Err() != nil {
			break
		}
		pv, err := previewer.Preview(ctx, url)
		if err != nil {
			invalid++
			fmt.Fprintf(ui.Output, "%s %s\n", ui.Red("Invalid URL:"), url)
			log.WithError(err).WithField("url", url).Debug("Preview failed")
			continue
		}
		fmt.Fprintf(ui.Output, "%s %s\n", ui.Green("✓"), pv)
	}

	if invalid > 0 || ctx.Err() != nil {
		return &exitError{code: exitFailure, err: fmt.Errorf("%d of %d URLs could not be previewed", invalid, len(urls))}
	}
	return nil
}
