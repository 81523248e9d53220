package core

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/seckatie/snapmark/internal/core/browser"
)

const authWallURL = "https://www.linkedin.com/authwall?trk=bf"

// fakeSite is a scripted stand-in for Chrome plus the LinkedIn site.
type fakeSite struct {
	mu sync.Mutex

	launchErr  error
	navErr     map[string]error
	panicOnNav bool

	// validState is the session blob that passes the feed check and the one
	// a logged-in page exports.
	validState   []byte
	loginLanding string

	pages      map[string]string
	texts      map[string]map[string]string
	screenshot []byte
	cookies    []*http.Cookie

	launches    int
	closed      int
	pagesOpened int
	submits     int
	fills       map[string]string
	imported    [][]byte
	cookieURLs  []string
	seeMoreSeen bool
	lookups     []textLookup
}

type textLookup struct {
	selector string
	timeout  time.Duration
}

func newFakeSite() *fakeSite {
	return &fakeSite{
		navErr:       map[string]error{},
		validState:   []byte(`{"cookies":[{"name":"li_at","value":"token"}]}`),
		loginLanding: FeedURL,
		pages:        map[string]string{},
		texts:        map[string]map[string]string{},
		screenshot:   []byte("\x89PNG fake"),
		fills:        map[string]string{},
	}
}

func (s *fakeSite) Launch(ctx context.Context) (browser.Browser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.launchErr != nil {
		return nil, s.launchErr
	}
	s.launches++
	return &fakeBrowser{site: s}, nil
}

type fakeBrowser struct {
	site *fakeSite
}

func (b *fakeBrowser) NewPage(ctx context.Context) (browser.Page, error) {
	b.site.mu.Lock()
	defer b.site.mu.Unlock()
	b.site.pagesOpened++
	return &fakePage{site: b.site, location: "about:blank"}, nil
}

func (b *fakeBrowser) Close() error {
	b.site.mu.Lock()
	defer b.site.mu.Unlock()
	b.site.closed++
	return nil
}

type fakePage struct {
	site     *fakeSite
	location string
	state    []byte
	loggedIn bool
}

func (p *fakePage) authenticated() bool {
	return p.loggedIn || (p.state != nil && bytes.Equal(p.state, p.site.validState))
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	if p.site.panicOnNav {
		panic("renderer crashed")
	}
	if err := p.site.navErr[url]; err != nil {
		return err
	}
	switch {
	case url == FeedURL && !p.authenticated():
		p.location = authWallURL
	case strings.Contains(url, "linkedin.com/posts/") && !p.authenticated():
		p.location = authWallURL
	default:
		p.location = url
	}
	return nil
}

func (p *fakePage) Settle(ctx context.Context, d time.Duration) error { return ctx.Err() }

func (p *fakePage) Location(ctx context.Context) (string, error) {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	return p.location, nil
}

func (p *fakePage) Fill(ctx context.Context, selector, value string) error {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	p.site.fills[selector] = value
	return nil
}

func (p *fakePage) Click(ctx context.Context, selector string) error {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	if selector == submitSelector {
		p.site.submits++
		p.location = p.site.loginLanding
		p.loggedIn = !IsLoginWall(p.location)
	}
	return nil
}

func (p *fakePage) ClickIfVisible(ctx context.Context, selector string, probe time.Duration) bool {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	if selector == seeMoreSelector && strings.Contains(p.site.pages[p.location], "see-more") {
		p.site.seeMoreSeen = true
		return true
	}
	return false
}

// InnerText answers from the site's scripted texts, which stand in for what
// Chrome renders. Unscripted selectors behave like a lookup timeout.
func (p *fakePage) InnerText(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	p.site.lookups = append(p.site.lookups, textLookup{selector: selector, timeout: timeout})
	if text, ok := p.site.texts[p.location][selector]; ok {
		return text, nil
	}
	return "", context.DeadlineExceeded
}

func (p *fakePage) HTML(ctx context.Context) (string, error) {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	if html, ok := p.site.pages[p.location]; ok {
		return html, nil
	}
	return "<html><body></body></html>", nil
}

func (p *fakePage) Screenshot(ctx context.Context) ([]byte, error) {
	return p.site.screenshot, nil
}

func (p *fakePage) Cookies(ctx context.Context, urls ...string) ([]*http.Cookie, error) {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	p.site.cookieURLs = append(p.site.cookieURLs, urls...)
	return p.site.cookies, nil
}

func (p *fakePage) ExportState(ctx context.Context) ([]byte, error) {
	if !p.authenticated() {
		return nil, errors.New("nothing to export")
	}
	return append([]byte(nil), p.site.validState...), nil
}

func (p *fakePage) ImportState(ctx context.Context, state []byte) error {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	p.site.imported = append(p.site.imported, state)
	p.state = state
	return nil
}

func (p *fakePage) Close() error { return nil }

// memSession is an in-memory session.Cache.
type memSession struct {
	mu     sync.Mutex
	blob   []byte
	stores int
}

func (m *memSession) Load() ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.blob) == 0 {
		return nil, false, nil
	}
	return append([]byte(nil), m.blob...), true, nil
}

func (m *memSession) Store(blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blob = append([]byte(nil), blob...)
	m.stores++
	return nil
}

// memRecorder records store writes.
type memRecorder struct {
	mu          sync.Mutex
	screenshots map[int64]string
	enrichment  map[int64][]byte
	err         error
}

func newMemRecorder() *memRecorder {
	return &memRecorder{screenshots: map[int64]string{}, enrichment: map[int64][]byte{}}
}

func (r *memRecorder) UpdateScreenshot(id int64, filename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.screenshots[id] = filename
	return nil
}

func (r *memRecorder) UpdateEnrichment(id int64, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.enrichment[id] = append([]byte(nil), payload...)
	return nil
}
