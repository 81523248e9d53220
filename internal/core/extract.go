package core

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Post is the structured content scraped from a LinkedIn post page.
type Post struct {
	Author   string
	Headline string
	Text     string
	Date     string
	// ImageURLs holds the src of each scanned image element in document
	// order. An element without a usable src keeps its slot as "".
	ImageURLs []string
}

// Enrichment is the payload stored in a bookmark's enrichment_data.
type Enrichment struct {
	Author   string   `json:"author"`
	Headline string   `json:"headline"`
	Text     string   `json:"text"`
	Date     string   `json:"date"`
	Images   []string `json:"images"`
}

// ExtractImageSources scans a rendered post document for at most maxImages
// post image elements and returns their sources in document order.
func ExtractImageSources(document string, maxImages int) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	srcs := []string{}
	doc.Find(imageSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(srcs) >= maxImages {
			return false
		}
		srcs = append(srcs, imageSource(s))
		return true
	})
	return srcs, nil
}

func imageSource(s *goquery.Selection) string {
	for _, attr := range []string{"src", "data-delayed-url"} {
		v := strings.TrimSpace(s.AttrOr(attr, ""))
		if v != "" && !strings.HasPrefix(v, "data:") {
			return v
		}
	}
	return ""
}

// firstLine keeps the first line of s, trimmed. LinkedIn renders
// screen-reader labels such as "View Jane Doe’s profile" on a line of their
// own, so this drops them.
func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// selectorList joins alternative selectors into one. The first match in
// document order wins.
func selectorList(selectors []string) string {
	return strings.Join(selectors, ", ")
}
