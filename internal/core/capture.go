package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/seckatie/snapmark/internal/core/browser"
	"github.com/seckatie/snapmark/internal/core/db"
	"go.uber.org/zap"
)

// Recorder is the part of the bookmark store the enrichment stages write to.
type Recorder interface {
	UpdateScreenshot(id int64, filename string) error
	UpdateEnrichment(id int64, payload []byte) error
}

// AssetWriter persists screenshot and post image bytes.
type AssetWriter interface {
	WriteScreenshot(id int64, png []byte) (string, error)
	WriteImage(id int64, index int, data []byte) (string, error)
	Remove(id int64) error
}

// Capturer renders a bookmarked page and stores a viewport screenshot.
type Capturer struct {
	launcher    browser.Launcher
	assets      AssetWriter
	store       Recorder
	settleDelay time.Duration
	logger      *zap.Logger
}

// NewCapturer builds a Capturer. A non-positive settleDelay uses
// DefaultCaptureSettleDelay.
func NewCapturer(launcher browser.Launcher, assets AssetWriter, store Recorder, settleDelay time.Duration, logger *zap.Logger) *Capturer {
	if settleDelay <= 0 {
		settleDelay = DefaultCaptureSettleDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Capturer{
		launcher:    launcher,
		assets:      assets,
		store:       store,
		settleDelay: settleDelay,
		logger:      logger.Named("capture"),
	}
}

// Capture loads url in its own browser, waits for the DOM plus the settle
// delay, saves "<id>.png" and records it on the bookmark. Failures leave the
// bookmark untouched and are only reported in the result.
func (c *Capturer) Capture(ctx context.Context, id int64, url string) (res StageResult) {
	defer recoverStage(StageCapture, &res)

	if err := c.capture(ctx, id, url); err != nil {
		return stageFailed(StageCapture, err)
	}
	return stageOK(StageCapture)
}

func (c *Capturer) capture(ctx context.Context, id int64, url string) error {
	b, err := c.launcher.Launch(ctx)
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			c.logger.Debug("browser close failed", zap.Int64("id", id), zap.Error(err))
		}
	}()

	p, err := b.NewPage(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.Navigate(ctx, url); err != nil {
		return err
	}
	if err := p.Settle(ctx, c.settleDelay); err != nil {
		return err
	}
	png, err := p.Screenshot(ctx)
	if err != nil {
		return err
	}

	name, err := c.assets.WriteScreenshot(id, png)
	if err != nil {
		return err
	}
	if err := c.store.UpdateScreenshot(id, name); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			discardAssets(c.assets, c.logger, id)
		}
		return fmt.Errorf("record screenshot: %w", err)
	}

	c.logger.Debug("screenshot saved", zap.Int64("id", id), zap.String("file", name), zap.Int("bytes", len(png)))
	return nil
}

// discardAssets removes the files of a bookmark that was deleted while its
// enrichment was running. The delete listener ran before they were written.
func discardAssets(files AssetWriter, logger *zap.Logger, id int64) {
	if err := files.Remove(id); err != nil {
		logger.Warn("failed to remove assets of deleted bookmark", zap.Int64("id", id), zap.Error(err))
		return
	}
	logger.Info("bookmark deleted during enrichment, assets removed", zap.Int64("id", id))
}
