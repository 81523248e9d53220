package db

import "encoding/json"

type Bookmark struct {
	ID    int64
	URL   string
	Title string
	// Screenshot is the stored screenshot filename. It stays nil until a
	// capture succeeds.
	Screenshot *string
	// EnrichmentData is the JSON payload written by the post scraper, nil
	// when the bookmark was never scraped.
	EnrichmentData json.RawMessage
	// CreatedAt is stored in the DB as RFC3339 text.
	CreatedAt string
}
