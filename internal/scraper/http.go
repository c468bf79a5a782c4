package scraper

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
)

const maxBodyBytes = 20 << 20

// HTTPScraper fetches pages with a plain GET. It does not run JavaScript; use
// BrowserScraper for pages that render client side. PDF responses are converted to text.
type HTTPScraper struct {
	client    *http.Client
	userAgent string
}

func NewHTTPScraper(client *http.Client) *HTTPScraper {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPScraper{client: client, userAgent: "ragchat-ingest/1.0"}
}

func (s *HTTPScraper) Scrape(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body %s: %w", url, err)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch {
	case mediaType == "application/pdf" || strings.HasSuffix(strings.ToLower(req.URL.Path), ".pdf"):
		text, err := extractPDF(body)
		if err != nil {
			return "", fmt.Errorf("read pdf %s: %w", url, err)
		}
		return text, nil
	case mediaType == "text/plain":
		return sanitizeUTF8(strings.TrimSpace(string(body))), nil
	default:
		return ExtractText(string(body)), nil
	}
}
