package core

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// resolveURL resolves ref against base. Data and javascript URIs, and refs
// that do not parse, resolve to "".
func resolveURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}

	// Skip data URIs and javascript:
	if strings.HasPrefix(ref, "data:") || strings.HasPrefix(ref, "javascript:") {
		return ""
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		return ""
	}

	if base == nil {
		if !refURL.IsAbs() {
			return ""
		}
		return refURL.String()
	}
	return base.ResolveReference(refURL).String()
}

// fetchResource fetches urlStr with the given cookies attached and returns
// the body. Bodies larger than maxSize are rejected; maxSize <= 0 means no
// limit.
func fetchResource(ctx context.Context, client *http.Client, urlStr string, cookies []*http.Cookie, maxSize int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", UserAgent)
	for _, c := range cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	if maxSize > 0 {
		reader = io.LimitReader(resp.Body, maxSize+1)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return nil, fmt.Errorf("resource exceeds %d bytes", maxSize)
	}

	return data, nil
}
