package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/seckatie/snapmark/internal/core/browser"
	"github.com/seckatie/snapmark/internal/core/db"
	"github.com/seckatie/snapmark/internal/core/session"
	"github.com/seckatie/snapmark/internal/metrics"
	"go.uber.org/zap"
)

var (
	// ErrNoCredentials means no LinkedIn account is configured; scraping is off.
	ErrNoCredentials = errors.New("linkedin credentials not configured")
	// ErrLoginFailed means the login form landed on a login or checkpoint page.
	ErrLoginFailed = errors.New("linkedin login failed")
)

// Credentials is the LinkedIn account used to sign in.
type Credentials struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// Configured reports whether both values are present.
func (c Credentials) Configured() bool {
	return strings.TrimSpace(c.Email) != "" && c.Password != ""
}

// ScraperConfig tunes the Scraper.
type ScraperConfig struct {
	Credentials Credentials
	// MaxImages caps the image elements scanned per post. Values outside
	// 1..MaxPostImages use MaxPostImages.
	MaxImages int
	// LookupTimeout bounds the wait for each post field.
	LookupTimeout time.Duration
	// ResourceTimeout bounds each image download.
	ResourceTimeout time.Duration
	// HTTPClient downloads images. Defaults to a client with ResourceTimeout.
	HTTPClient *http.Client
}

// Scraper signs in to LinkedIn, reusing the cached session when it is still
// valid, and stores a post's content and images on the bookmark.
type Scraper struct {
	cfg      ScraperConfig
	launcher browser.Launcher
	session  session.Cache
	assets   AssetWriter
	store    Recorder
	logger   *zap.Logger
}

// NewScraper builds a Scraper. Zero config values fall back to defaults.
func NewScraper(cfg ScraperConfig, launcher browser.Launcher, cache session.Cache, assets AssetWriter, store Recorder, logger *zap.Logger) *Scraper {
	if cfg.MaxImages <= 0 || cfg.MaxImages > MaxPostImages {
		cfg.MaxImages = MaxPostImages
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = DefaultLookupTimeout
	}
	if cfg.ResourceTimeout <= 0 {
		cfg.ResourceTimeout = DefaultResourceTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.ResourceTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		cfg:      cfg,
		launcher: launcher,
		session:  cache,
		assets:   assets,
		store:    store,
		logger:   logger.Named("scrape"),
	}
}

// Scrape extracts the post at url and writes it to the bookmark's
// enrichment data. Missing credentials skip the stage; every other problem
// fails it without touching the bookmark.
func (s *Scraper) Scrape(ctx context.Context, id int64, url string) (res StageResult) {
	defer recoverStage(StageScrape, &res)

	if !s.cfg.Credentials.Configured() {
		return stageSkipped(StageScrape, ErrNoCredentials)
	}
	if err := s.scrape(ctx, id, url); err != nil {
		return stageFailed(StageScrape, err)
	}
	return stageOK(StageScrape)
}

// Login signs in (or confirms the cached session) and saves the session.
func (s *Scraper) Login(ctx context.Context) error {
	if !s.cfg.Credentials.Configured() {
		return ErrNoCredentials
	}
	b, err := s.launcher.Launch(ctx)
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	defer s.closeBrowser(b)

	p, err := s.acquireSession(ctx, b)
	if err != nil {
		return err
	}
	defer p.Close()
	return s.saveSession(ctx, p)
}

func (s *Scraper) scrape(ctx context.Context, id int64, postURL string) error {
	b, err := s.launcher.Launch(ctx)
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	defer s.closeBrowser(b)

	p, err := s.acquireSession(ctx, b)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.Navigate(ctx, postURL); err != nil {
		return err
	}
	if err := p.Settle(ctx, PostSettleDelay); err != nil {
		return err
	}

	if p.ClickIfVisible(ctx, seeMoreSelector, SeeMoreProbeTimeout) {
		_ = p.Settle(ctx, SeeMoreSettleDelay)
	}
	post := s.readPost(ctx, p, id)

	document, err := p.HTML(ctx)
	if err != nil {
		return err
	}
	post.ImageURLs, err = ExtractImageSources(document, s.cfg.MaxImages)
	if err != nil {
		return err
	}

	base := postURL
	if loc, err := p.Location(ctx); err == nil && loc != "" {
		base = loc
	}
	images := s.saveImages(ctx, p, id, base, post.ImageURLs)

	if err := s.saveSession(ctx, p); err != nil {
		s.logger.Warn("failed to refresh session", zap.Error(err))
	}

	payload, err := json.Marshal(Enrichment{
		Author:   post.Author,
		Headline: post.Headline,
		Text:     post.Text,
		Date:     post.Date,
		Images:   images,
	})
	if err != nil {
		return fmt.Errorf("encode enrichment: %w", err)
	}
	if err := s.store.UpdateEnrichment(id, payload); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			discardAssets(s.assets, s.logger, id)
		}
		return fmt.Errorf("record enrichment: %w", err)
	}

	s.logger.Debug("post scraped",
		zap.Int64("id", id),
		zap.Bool("author", post.Author != ""),
		zap.Int("text_len", len(post.Text)),
		zap.Int("images", len(images)),
	)
	return nil
}

// readPost reads each field from the live page. Lookups are independent and
// each waits at most LookupTimeout; a field that is not found stays empty.
func (s *Scraper) readPost(ctx context.Context, p browser.Page, id int64) Post {
	lookup := func(field string, selectors []string) string {
		text, err := p.InnerText(ctx, selectorList(selectors), s.cfg.LookupTimeout)
		if err != nil {
			s.logger.Debug("post field not found", zap.Int64("id", id), zap.String("field", field), zap.Error(err))
			return ""
		}
		return text
	}
	return Post{
		Author:   firstLine(lookup("author", authorSelectors)),
		Headline: firstLine(lookup("headline", headlineSelectors)),
		Text:     strings.TrimSpace(lookup("text", textSelectors)),
		Date:     firstLine(lookup("date", dateSelectors)),
	}
}

// acquireSession returns a page signed in to LinkedIn. A cached session is
// tried first; if it lands on a login wall a fresh context is logged in.
func (s *Scraper) acquireSession(ctx context.Context, b browser.Browser) (browser.Page, error) {
	blob, ok, err := s.session.Load()
	if err != nil {
		s.logger.Warn("failed to load session", zap.Error(err))
		ok = false
	}

	if ok {
		p, err := b.NewPage(ctx)
		if err != nil {
			return nil, err
		}
		if s.reuse(ctx, p, blob) {
			s.logger.Debug("reusing saved session")
			return p, nil
		}
		_ = p.Close()
		s.logger.Info("saved session is no longer valid, logging in")
	}

	p, err := b.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.login(ctx, p); err != nil {
		_ = p.Close()
		return nil, err
	}
	if err := s.saveSession(ctx, p); err != nil {
		s.logger.Warn("failed to save session", zap.Error(err))
	}
	return p, nil
}

func (s *Scraper) reuse(ctx context.Context, p browser.Page, blob []byte) bool {
	if err := p.ImportState(ctx, blob); err != nil {
		s.logger.Debug("failed to restore session", zap.Error(err))
		return false
	}
	if err := p.Navigate(ctx, FeedURL); err != nil {
		s.logger.Debug("feed navigation failed", zap.Error(err))
		return false
	}
	if err := p.Settle(ctx, FeedSettleDelay); err != nil {
		return false
	}
	loc, err := p.Location(ctx)
	if err != nil {
		return false
	}
	return !IsLoginWall(loc)
}

func (s *Scraper) login(ctx context.Context, p browser.Page) error {
	if err := p.Navigate(ctx, LoginURL); err != nil {
		return err
	}
	if err := p.Settle(ctx, LoginPageSettleDelay); err != nil {
		return err
	}
	if err := p.Fill(ctx, usernameSelector, s.cfg.Credentials.Email); err != nil {
		return err
	}
	if err := p.Fill(ctx, passwordSelector, s.cfg.Credentials.Password); err != nil {
		return err
	}
	if err := p.Click(ctx, submitSelector); err != nil {
		return err
	}
	if err := p.Settle(ctx, LoginSubmitSettleDelay); err != nil {
		return err
	}
	loc, err := p.Location(ctx)
	if err != nil {
		return err
	}
	if IsLoginWall(loc) {
		return fmt.Errorf("%w: landed on %s", ErrLoginFailed, loc)
	}
	s.logger.Info("logged in to linkedin")
	return nil
}

func (s *Scraper) saveSession(ctx context.Context, p browser.Page) error {
	blob, err := p.ExportState(ctx)
	if err != nil {
		return err
	}
	return s.session.Store(blob)
}

// saveImages downloads each scanned image with the page's cookies. A failed
// image is skipped; its index is not reused.
func (s *Scraper) saveImages(ctx context.Context, p browser.Page, id int64, pageURL string, srcs []string) []string {
	base, _ := url.Parse(pageURL)
	saved := []string{}
	for i, src := range srcs {
		name, err := s.saveImage(ctx, p, id, i, resolveURL(base, src))
		metrics.ObserveImage(err == nil)
		if err != nil {
			s.logger.Debug("image skipped", zap.Int64("id", id), zap.Int("index", i), zap.Error(err))
			continue
		}
		saved = append(saved, name)
	}
	return saved
}

func (s *Scraper) saveImage(ctx context.Context, p browser.Page, id int64, index int, imageURL string) (string, error) {
	if imageURL == "" {
		return "", errors.New("image has no source")
	}
	cookies, err := p.Cookies(ctx, imageURL)
	if err != nil {
		return "", err
	}
	data, err := fetchResource(ctx, s.cfg.HTTPClient, imageURL, cookies, MaxResourceSize)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", imageURL, err)
	}
	return s.assets.WriteImage(id, index, data)
}

func (s *Scraper) closeBrowser(b browser.Browser) {
	if err := b.Close(); err != nil {
		s.logger.Debug("browser close failed", zap.Error(err))
	}
}

// IsLoginWall reports whether rawURL is a login, auth wall or checkpoint page.
func IsLoginWall(rawURL string) bool {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	for _, marker := range loginWallMarkers {
		if strings.Contains(path, marker) {
			return true
		}
	}
	return false
}
