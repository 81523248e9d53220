package core

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/seckatie/snapmark/internal/metrics"
	"go.uber.org/zap"
)

// ScreenshotCapturer is the first enrichment stage.
type ScreenshotCapturer interface {
	Capture(ctx context.Context, id int64, url string) StageResult
}

// PostScraper is the second enrichment stage, run only for scrape targets.
type PostScraper interface {
	Scrape(ctx context.Context, id int64, url string) StageResult
}

// errNotScrapeTarget is the skip reason for hosts outside the scrape list.
var errNotScrapeTarget = errors.New("host is not a scrape target")

// Report is the outcome of one bookmark's enrichment.
type Report struct {
	BookmarkID int64
	Capture    StageResult
	Scrape     StageResult
}

// Enricher runs the capture and scrape stages for new bookmarks in the
// background. Each bookmark gets its own goroutine and exactly one attempt.
type Enricher struct {
	capturer ScreenshotCapturer
	scraper  PostScraper
	hosts    []string
	logger   *zap.Logger

	wg sync.WaitGroup
}

// NewEnricher builds an Enricher. scraper may be nil, which skips the scrape
// stage for every bookmark. Empty hosts uses DefaultScrapeHosts.
func NewEnricher(capturer ScreenshotCapturer, scraper PostScraper, hosts []string, logger *zap.Logger) *Enricher {
	if len(hosts) == 0 {
		hosts = DefaultScrapeHosts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{
		capturer: capturer,
		scraper:  scraper,
		hosts:    hosts,
		logger:   logger.Named("enrich"),
	}
}

// IsScrapeTarget reports whether rawURL's host equals one of hosts,
// ignoring case. Subdomains and look-alike hosts do not match.
func IsScrapeTarget(rawURL string, hosts []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, h := range hosts {
		if host == strings.ToLower(h) {
			return true
		}
	}
	return false
}

// Enrich captures a screenshot of url and then, for scrape targets, scrapes
// the post. The stages run one after the other and neither can fail the
// other.
func (e *Enricher) Enrich(ctx context.Context, id int64, url string) Report {
	report := Report{BookmarkID: id}

	report.Capture = e.capturer.Capture(ctx, id, url)
	e.observe(id, report.Capture)

	switch {
	case !IsScrapeTarget(url, e.hosts):
		report.Scrape = stageSkipped(StageScrape, errNotScrapeTarget)
	case e.scraper == nil:
		report.Scrape = stageSkipped(StageScrape, ErrNoCredentials)
	default:
		report.Scrape = e.scraper.Scrape(ctx, id, url)
	}
	e.observe(id, report.Scrape)

	return report
}

func (e *Enricher) observe(id int64, res StageResult) {
	metrics.ObserveStage(res.Stage, res.Outcome.String())

	fields := []zap.Field{
		zap.Int64("id", id),
		zap.String("stage", res.Stage),
		zap.Stringer("outcome", res.Outcome),
	}
	if res.Err != nil {
		fields = append(fields, zap.Error(res.Err))
	}
	if res.Outcome == OutcomeFailed {
		e.logger.Info("enrichment stage failed", fields...)
		return
	}
	e.logger.Debug("enrichment stage finished", fields...)
}

// Spawn enriches a bookmark on its own goroutine and returns immediately.
// The work is not tied to any request and is never cancelled.
func (e *Enricher) Spawn(id int64, url string) {
	e.wg.Add(1)
	metrics.IncInflight()
	go func() {
		defer e.wg.Done()
		defer metrics.DecInflight()
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("enrichment panicked", zap.Int64("id", id), zap.Error(fmt.Errorf("%v", r)))
			}
		}()
		e.Enrich(context.Background(), id, url)
	}()
}

// Wait blocks until every spawned enrichment has finished or ctx is done.
func (e *Enricher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
