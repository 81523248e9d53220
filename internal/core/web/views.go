package web

import (
	"encoding/json"

	"github.com/seckatie/snapmark/internal/core/db"
)

type createBookmarkRequest struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// bookmarkView is the API shape of a bookmark. Screenshot and
// EnrichmentData serialize as null until enrichment fills them.
type bookmarkView struct {
	ID             int64           `json:"id"`
	URL            string          `json:"url"`
	Title          string          `json:"title"`
	Screenshot     *string         `json:"screenshot"`
	EnrichmentData json.RawMessage `json:"enrichment_data"`
	CreatedAt      string          `json:"created_at"`
}

func toBookmarkView(b db.Bookmark) bookmarkView {
	return bookmarkView{
		ID:             b.ID,
		URL:            b.URL,
		Title:          b.Title,
		Screenshot:     b.Screenshot,
		EnrichmentData: b.EnrichmentData,
		CreatedAt:      b.CreatedAt,
	}
}

func toBookmarkViews(in []db.Bookmark) []bookmarkView {
	out := make([]bookmarkView, 0, len(in))
	for _, b := range in {
		out = append(out, toBookmarkView(b))
	}
	return out
}
