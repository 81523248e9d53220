package core

import "time"

// Enrichment stage names used in results, logs and metrics.
const (
	StageCapture = "capture"
	StageScrape  = "scrape"
)

// Timing defaults for browser work.
const (
	DefaultCaptureSettleDelay = 1 * time.Second
	DefaultLookupTimeout      = 2 * time.Second
	DefaultResourceTimeout    = 10 * time.Second

	FeedSettleDelay        = 2 * time.Second
	LoginPageSettleDelay   = 1 * time.Second
	LoginSubmitSettleDelay = 3 * time.Second
	PostSettleDelay        = 3 * time.Second
	SeeMoreProbeTimeout    = 1 * time.Second
	SeeMoreSettleDelay     = 500 * time.Millisecond
)

// Resource limits
const (
	MaxResourceSize = 5 * 1024 * 1024 // 5MB
	MaxPostImages   = 5
)

// LinkedIn endpoints and markers.
const (
	LoginURL = "https://www.linkedin.com/login"
	FeedURL  = "https://www.linkedin.com/feed/"
)

// DefaultScrapeHosts are the hosts whose bookmarks get scraped.
var DefaultScrapeHosts = []string{"linkedin.com", "www.linkedin.com"}

// loginWallMarkers in a URL path mean the session is not authenticated.
var loginWallMarkers = []string{"/login", "/authwall", "/checkpoint"}

// Login form selectors.
const (
	usernameSelector = "#username"
	passwordSelector = "#password"
	submitSelector   = `button[type="submit"]`
)

// Post selectors. Each field lists the current class name and the legacy
// one; they are queried together and the first match in the page wins.
var (
	seeMoreSelector   = "button.see-more, button[aria-label*='see more']"
	authorSelectors   = []string{".update-components-actor__name", ".feed-shared-actor__name"}
	headlineSelectors = []string{".update-components-actor__description", ".feed-shared-actor__description"}
	textSelectors     = []string{".update-components-text", ".feed-shared-update-v2__description", ".feed-shared-text"}
	dateSelectors     = []string{".update-components-actor__sub-description", ".feed-shared-actor__sub-description"}
	imageSelector     = ".update-components-image__image img, .feed-shared-image__image img"
)

// HTTP client configuration
const (
	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)
