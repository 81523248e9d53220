package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Chrome launches a local Chrome/Chromium through the DevTools protocol.
type Chrome struct {
	opts Options
}

// NewChrome returns a Launcher using opts. Zero sizes and timeouts fall back
// to DefaultOptions.
func NewChrome(opts Options) *Chrome {
	return &Chrome{opts: opts.withDefaults()}
}

// Options returns the effective options.
func (c *Chrome) Options() Options { return c.opts }

func (c *Chrome) allocatorOptions() []chromedp.ExecAllocatorOption {
	allocatorOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocatorOpts = append(allocatorOpts,
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoFirstRun,
		chromedp.WindowSize(int(c.opts.ViewportWidth), int(c.opts.ViewportHeight)),
	)
	if c.opts.ExecPath != "" {
		allocatorOpts = append(allocatorOpts, chromedp.ExecPath(c.opts.ExecPath))
	}
	if c.opts.Headless {
		allocatorOpts = append(allocatorOpts, chromedp.Headless)
	} else {
		allocatorOpts = append(allocatorOpts, chromedp.Flag("headless", false))
	}
	if c.opts.NoSandbox {
		allocatorOpts = append(allocatorOpts, chromedp.NoSandbox)
	}
	if c.opts.UserAgent != "" {
		allocatorOpts = append(allocatorOpts, chromedp.UserAgent(c.opts.UserAgent))
	}
	return allocatorOpts
}

// Launch starts a browser process. The process lives until Close, independent
// of ctx, which only bounds startup.
func (c *Chrome) Launch(ctx context.Context) (Browser, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), c.allocatorOptions()...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// The first Run allocates the process and binds it to the context it is
	// given, so it must not carry a deadline. Caller cancellation still
	// aborts startup.
	stop := context.AfterFunc(ctx, cancelBrowser)
	err := chromedp.Run(browserCtx)
	stop()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &chromeBrowser{
		opts:   c.opts,
		ctx:    browserCtx,
		cancel: func() { cancelBrowser(); cancelAlloc() },
	}, nil
}

type chromeBrowser struct {
	opts   Options
	ctx    context.Context
	cancel func()
}

func (b *chromeBrowser) NewPage(ctx context.Context) (Page, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.ctx, chromedp.WithNewBrowserContext())
	p := &chromePage{opts: b.opts, ctx: tabCtx, cancel: cancelTab}

	// As with the browser, the tab's first Run binds its event loop to the
	// given context.
	stop := context.AfterFunc(ctx, cancelTab)
	err := chromedp.Run(tabCtx, chromedp.EmulateViewport(b.opts.ViewportWidth, b.opts.ViewportHeight))
	stop()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		cancelTab()
		return nil, fmt.Errorf("open page: %w", err)
	}
	return p, nil
}

func (b *chromeBrowser) Close() error {
	err := chromedp.Cancel(b.ctx)
	b.cancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type chromePage struct {
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc
}

// scoped derives a context from the tab bounded by timeout that is also
// cancelled when ctx is. Actions must run on the tab's context, so the
// caller's deadline is attached rather than inherited.
func (p *chromePage) scoped(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := p.scoped(ctx, timeout)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := p.scoped(ctx, p.opts.NavigationTimeout)
	defer cancel()

	listenCtx, stopListening := context.WithCancel(runCtx)
	defer stopListening()

	loaded := make(chan struct{}, 1)
	chromedp.ListenTarget(listenCtx, func(ev any) {
		if _, ok := ev.(*page.EventDomContentEventFired); ok {
			select {
			case loaded <- struct{}{}:
			default:
			}
		}
	})

	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, errorText, _, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return fmt.Errorf("page load error %s", errorText)
		}
		select {
		case <-loaded:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}))
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (p *chromePage) Settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

func (p *chromePage) Location(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, p.opts.ActionTimeout, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

func (p *chromePage) Fill(ctx context.Context, selector, value string) error {
	err := p.run(ctx, p.opts.ActionTimeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("fill %s: %w", selector, err)
	}
	return nil
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	err := p.run(ctx, p.opts.ActionTimeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

func (p *chromePage) ClickIfVisible(ctx context.Context, selector string, probe time.Duration) bool {
	if err := p.run(ctx, probe, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return false
	}
	return p.run(ctx, p.opts.ActionTimeout, chromedp.Click(selector, chromedp.ByQuery)) == nil
}

func (p *chromePage) InnerText(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	var text string
	err := p.run(ctx, timeout,
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.Evaluate(innerTextScript(selector), &text),
	)
	if err != nil {
		return "", fmt.Errorf("read text of %s: %w", selector, err)
	}
	return text, nil
}

// innerTextScript evaluates to the innerText of the first match, or "".
func innerTextScript(selector string) string {
	quoted, _ := json.Marshal(selector)
	return fmt.Sprintf(`document.querySelector(%s)?.innerText ?? ""`, quoted)
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, p.opts.ActionTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return html, nil
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, p.opts.ActionTimeout, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

func (p *chromePage) cookies(ctx context.Context, urls []string) ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := p.run(ctx, p.opts.ActionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		params := network.GetCookies()
		if len(urls) > 0 {
			params = params.WithURLs(urls)
		}
		var err error
		cookies, err = params.Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	return cookies, nil
}

func (p *chromePage) Cookies(ctx context.Context, urls ...string) ([]*http.Cookie, error) {
	cookies, err := p.cookies(ctx, urls)
	if err != nil {
		return nil, err
	}
	return toHTTPCookies(cookies), nil
}

func (p *chromePage) ExportState(ctx context.Context) ([]byte, error) {
	cookies, err := p.cookies(ctx, nil)
	if err != nil {
		return nil, err
	}
	return encodeState(cookies, time.Now())
}

func (p *chromePage) ImportState(ctx context.Context, state []byte) error {
	params, err := decodeState(state)
	if err != nil {
		return err
	}
	if len(params) == 0 {
		return nil
	}
	err = p.run(ctx, p.opts.ActionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookies(params).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("restore cookies: %w", err)
	}
	return nil
}

func (p *chromePage) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
