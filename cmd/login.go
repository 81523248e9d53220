/*
Copyright © 2025 Katie Mulliken <katie@mulliken.net>
*/

// The login command signs in to LinkedIn once and stores the session, so the
// server can reuse it instead of logging in on its first scrape.
//
// Example usage:
//
//	LINKEDIN_EMAIL=me@example.com LINKEDIN_PASSWORD=secret snapmark login
//	snapmark login --headless=false --timeout=2m
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/seckatie/snapmark/internal/core"
	"github.com/seckatie/snapmark/internal/core/browser"
	"github.com/seckatie/snapmark/internal/core/session"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to LinkedIn and cache the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLogin(cmd)
	},
}

func runLogin(cmd *cobra.Command) error {
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return fmt.Errorf("failed to read --timeout: %w", err)
	}
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if !cfg.LinkedIn.Configured() {
		return fmt.Errorf("%w: set LINKEDIN_EMAIL and LINKEDIN_PASSWORD", core.ErrNoCredentials)
	}

	cache := session.NewFile(cfg.Data.SessionPath)
	scraper := newScraper(cfg, browser.NewChrome(cfg.Browser), cache, nil, nil, logger)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := scraper.Login(ctx); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	logger.Info("session stored", zap.String("path", cache.Path()))
	return nil
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().Duration("timeout", 2*time.Minute, "Overall login timeout")
}
