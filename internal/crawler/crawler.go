// Package crawler fetches web pages registered as knowledge sources and
// reduces them to plain text suitable for chunking.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	userAgent      = "Mozilla/5.0 (compatible; RAGBot/1.0)"
	requestTimeout = 20 * time.Second
	workerCount    = 10

	// minTextLength filters boilerplate-only pages; maxTextLength bounds
	// what one page can contribute to the index.
	minTextLength = 150
	maxTextLength = 15000
)

// Page is one successfully crawled URL.
type Page struct {
	URL  string
	Text string
}

type Crawler struct {
	client *http.Client
}

func New() *Crawler {
	return &Crawler{
		client: &http.Client{Timeout: requestTimeout},
	}
}

// FetchAll crawls urls with a bounded worker pool. Failures and pages with
// too little text are logged and skipped; the result preserves no
// particular order.
func (c *Crawler) FetchAll(ctx context.Context, urls []string) []Page {
	jobs := make(chan string)
	results := make(chan Page)

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range jobs {
				text, err := c.Fetch(ctx, u)
				if err != nil {
					slog.Warn("crawl failed", "url", u, "error", err)
					continue
				}
				if text == "" {
					continue
				}
				results <- Page{URL: u, Text: text}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, u := range urls {
			select {
			case jobs <- u:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var pages []Page
	for p := range results {
		pages = append(pages, p)
	}
	return pages
}

// Fetch downloads one page and extracts its visible text. Pages with fewer
// than 150 characters of text yield an empty string; longer pages are
// truncated to 15000 characters.
func (c *Crawler) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", url, err)
	}

	text := extractText(doc)
	if len([]rune(text)) < minTextLength {
		slog.Debug("page below text threshold", "url", url, "length", len(text))
		return "", nil
	}
	runes := []rune(text)
	if len(runes) > maxTextLength {
		text = string(runes[:maxTextLength])
	}
	return text, nil
}

// extractText strips chrome elements before flattening the body to text,
// collapsing runs of whitespace along the way.
func extractText(doc *goquery.Document) string {
	doc.Find("script, style, nav, footer, header").Each(func(_ int, s *goquery.Selection) {
		s.Remove()
	})

	raw := doc.Find("body").Text()
	if raw == "" {
		raw = doc.Text()
	}
	return strings.Join(strings.Fields(raw), " ")
}
