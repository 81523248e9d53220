// Package browser drives headless Chrome for the enrichment pipeline.
//
// The pipeline only talks to the Launcher, Browser and Page interfaces so it
// can be exercised without a Chrome binary. Chrome is the production
// implementation, built on chromedp.
package browser

import (
	"context"
	"net/http"
	"time"
)

// Launcher starts isolated browser instances.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// Browser is one running browser process.
type Browser interface {
	// NewPage opens a tab in a fresh, isolated browser context (its own
	// cookie jar).
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single tab. Every blocking call is bounded by the browser's
// navigation or action timeout as well as ctx.
type Page interface {
	// Navigate loads url and returns once the DOM is constructed. It does not
	// wait for the full load event.
	Navigate(ctx context.Context, url string) error
	// Settle waits d so late-rendering content can appear.
	Settle(ctx context.Context, d time.Duration) error
	// Location is the current URL after redirects.
	Location(ctx context.Context) (string, error)
	// Fill types value into the first element matching selector.
	Fill(ctx context.Context, selector, value string) error
	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error
	// ClickIfVisible clicks selector only if it becomes visible within probe.
	// It reports whether a click happened.
	ClickIfVisible(ctx context.Context, selector string, probe time.Duration) bool
	// InnerText returns the rendered innerText of the first element matching
	// selector in document order, waiting up to timeout for one to appear.
	InnerText(ctx context.Context, selector string, timeout time.Duration) (string, error)
	// HTML is the rendered document's outer HTML.
	HTML(ctx context.Context) (string, error)
	// Screenshot captures the visible viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	// Cookies returns the cookies that would be sent to urls, or to the
	// current URL when none are given.
	Cookies(ctx context.Context, urls ...string) ([]*http.Cookie, error)
	// ExportState serializes the session so it can be restored later.
	ExportState(ctx context.Context) ([]byte, error)
	// ImportState restores a session produced by ExportState.
	ImportState(ctx context.Context, state []byte) error
	Close() error
}

// Options configures Chrome.
type Options struct {
	// ExecPath optionally overrides the Chrome/Chromium executable path.
	// If empty, chromedp will try to find a browser on PATH / default locations.
	ExecPath string `mapstructure:"chrome_path"`
	// Headless controls whether Chrome runs without a visible window.
	Headless bool `mapstructure:"headless"`
	// NoSandbox disables the Chrome sandbox, needed when running as root in
	// a container.
	NoSandbox bool `mapstructure:"no_sandbox"`
	// UserAgent overrides the browser user agent when set.
	UserAgent string `mapstructure:"user_agent"`

	ViewportWidth  int64 `mapstructure:"viewport_width"`
	ViewportHeight int64 `mapstructure:"viewport_height"`

	// NavigationTimeout bounds each Navigate call.
	NavigationTimeout time.Duration `mapstructure:"nav_timeout"`
	// ActionTimeout bounds every other page interaction.
	ActionTimeout time.Duration `mapstructure:"action_timeout"`
}

// DefaultOptions returns a headless 1280x720 setup with 15s navigations.
func DefaultOptions() Options {
	return Options{
		Headless:          true,
		ViewportWidth:     1280,
		ViewportHeight:    720,
		NavigationTimeout: 15 * time.Second,
		ActionTimeout:     15 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ViewportWidth <= 0 {
		o.ViewportWidth = d.ViewportWidth
	}
	if o.ViewportHeight <= 0 {
		o.ViewportHeight = d.ViewportHeight
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = d.NavigationTimeout
	}
	if o.ActionTimeout <= 0 {
		o.ActionTimeout = d.ActionTimeout
	}
	return o
}
