/*
Copyright © 2025 Katie Mulliken <katie@mulliken.net>
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/seckatie/snapmark/internal/config"
	"github.com/seckatie/snapmark/internal/core"
	"github.com/seckatie/snapmark/internal/core/assets"
	"github.com/seckatie/snapmark/internal/core/browser"
	"github.com/seckatie/snapmark/internal/core/db"
	"github.com/seckatie/snapmark/internal/core/session"
	"github.com/seckatie/snapmark/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds the dependencies shared by the commands.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	db      *db.DB
	files   *assets.Store
	session *session.File
	chrome  *browser.Chrome
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed to read --config: %w", err)
	}
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// newApp loads configuration and opens the store, asset directories and
// session cache.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Data.DBPath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	database, err := db.NewSQLiteDB(cfg.Data.DBPath, logger.Named("db"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.Migrate(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Info("database ready", zap.String("path", cfg.Data.DBPath))

	files, err := assets.New(cfg.Data.Assets())
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to prepare asset directories: %w", err)
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		db:      database,
		files:   files,
		session: session.NewFile(cfg.Data.SessionPath),
		chrome:  browser.NewChrome(cfg.Browser),
	}, nil
}

func (a *app) capturer() *core.Capturer {
	return core.NewCapturer(a.chrome, a.files, a.db, a.cfg.Capture.SettleDelay, a.logger)
}

// scraper returns nil without credentials so the scrape stage is skipped.
func (a *app) scraper() core.PostScraper {
	if !a.cfg.LinkedIn.Configured() {
		return nil
	}
	return newScraper(a.cfg, a.chrome, a.session, a.files, a.db, a.logger)
}

func newScraper(cfg config.Config, launcher browser.Launcher, cache session.Cache, files core.AssetWriter, store core.Recorder, logger *zap.Logger) *core.Scraper {
	return core.NewScraper(core.ScraperConfig{
		Credentials:   cfg.LinkedIn,
		MaxImages:     cfg.Scrape.MaxImages,
		LookupTimeout: cfg.Scrape.LookupTimeout,
	}, launcher, cache, files, store, logger)
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", zap.Error(err))
	}
	_ = a.logger.Sync()
}
