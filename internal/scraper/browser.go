package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserScraper loads each page in headless Chrome, waits for the DOM, and
// takes body.innerHTML so client-rendered content is included.
type BrowserScraper struct {
	headless bool
	timeout  time.Duration
}

func NewBrowserScraper(headless bool) *BrowserScraper {
	return &BrowserScraper{headless: headless, timeout: 60 * time.Second}
}

func (s *BrowserScraper) Scrape(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.headless),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancel := context.WithTimeout(browserCtx, s.timeout)
	defer cancel()

	var body string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.InnerHTML("body", &body, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", url, err)
	}

	return ExtractText(body), nil
}
