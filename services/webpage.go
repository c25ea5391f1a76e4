package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// WebImporter fetches a page and reduces it to importable plain text.
type WebImporter struct {
	client *http.Client
}

func NewWebImporter(timeout time.Duration) *WebImporter {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &WebImporter{
		client: &http.Client{Timeout: timeout},
	}
}

// PageContent is the importable view of one fetched page.
type PageContent struct {
	URL   string
	Title string
	Text  string
}

// Fetch downloads the page and extracts its title and visible text.
func (w *WebImporter) Fetch(ctx context.Context, pageURL string) (*PageContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; engage-kb-importer/1.0)")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch failed: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	// Strip non-content elements before reading text
	doc.Find("script, style, noscript, iframe, nav, footer, header").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if title == "" {
		title = pageURL
	}

	text := normalizeExtractedText(doc.Find("body").Text())
	if text == "" {
		return nil, fmt.Errorf("no textual content on page")
	}

	return &PageContent{
		URL:   pageURL,
		Title: title,
		Text:  text,
	}, nil
}
