/*
Copyright © 2025 Katie Mulliken <katie@mulliken.net>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/seckatie/snapmark/internal/core"
	"github.com/seckatie/snapmark/internal/core/web"
	"github.com/seckatie/snapmark/internal/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "snapmark",
	Short: "Bookmark saver with screenshots and LinkedIn post enrichment",
	Long: `snapmark stores bookmarks behind a small JSON API. Every new bookmark
is enriched in the background: a headless Chrome captures a screenshot of
the page and, for LinkedIn posts, signs in with the configured account to
save the post's author, text and images.

Configuration comes from an optional config file, SNAPMARK_* environment
variables and the flags below. LinkedIn credentials are read from
LINKEDIN_EMAIL and LINKEDIN_PASSWORD.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

// runServe starts the API and the enrichment pipeline and blocks until the
// process is interrupted.
func runServe(cmd *cobra.Command) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	metrics.Init()

	enricher := core.NewEnricher(a.capturer(), a.scraper(), a.cfg.Scrape.Hosts, a.logger)
	core.RegisterListeners(a.db, enricher, a.files, a.logger)
	if !a.cfg.LinkedIn.Configured() {
		a.logger.Warn("LinkedIn credentials not set, post scraping is disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := web.NewServer(a.db, a.files, a.logger.Named("web"))
	if err := server.Run(ctx, a.cfg.Server.Addr(), a.cfg.Server.ShutdownTimeout); err != nil {
		return fmt.Errorf("web server: %w", err)
	}

	a.logger.Info("waiting for in-flight enrichment")
	waitCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := enricher.Wait(waitCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	} else if err != nil {
		a.logger.Warn("enrichment still running at shutdown", zap.Error(err))
	}
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a config file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("data-dir", "data", "Directory for the database, screenshots, images and session")
	rootCmd.PersistentFlags().StringP("db", "d", "", "Path to the SQLite database file (default <data-dir>/bookmarks.db)")
	rootCmd.PersistentFlags().String("chrome-path", "", "Path to Chrome/Chromium executable")
	rootCmd.PersistentFlags().Bool("headless", true, "Run Chrome without a visible window")
	rootCmd.PersistentFlags().Bool("no-sandbox", false, "Disable the Chrome sandbox (needed in some containers)")
	rootCmd.PersistentFlags().Bool("dev", true, "Use human-readable development logging")

	rootCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	rootCmd.Flags().String("host", "localhost", "Host to listen on")
}
