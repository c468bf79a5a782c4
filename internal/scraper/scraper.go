// Package scraper turns source URLs into plain text for ingestion.
package scraper

import (
	"fmt"

	"github.com/josinaldojr/ragchat/internal/rag"
)

// New returns the scraper named by kind: "browser" (headless Chrome) or "http".
func New(kind string, headless bool) (rag.Scraper, error) {
	switch kind {
	case "", "browser":
		return NewBrowserScraper(headless), nil
	case "http":
		return NewHTTPScraper(nil), nil
	default:
		return nil, fmt.Errorf("unknown scraper %q", kind)
	}
}

var (
	_ rag.Scraper = (*HTTPScraper)(nil)
	_ rag.Scraper = (*BrowserScraper)(nil)
)
