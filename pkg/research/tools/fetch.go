package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
)

const defaultMaxChars = 12000

// Page is the readable text extracted from a web page.
type Page struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Fetcher downloads pages and extracts their main content with readability.
type Fetcher struct {
	UserAgent string
	MaxChars  int
	client    *http.Client
}

func NewFetcher(client *http.Client, maxChars int) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	return &Fetcher{UserAgent: "deep-research/1.0", MaxChars: maxChars, client: client}
}

// Fetch returns the readable text of link, truncated to MaxChars.
func (f *Fetcher) Fetch(ctx context.Context, link string) (Page, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Page{}, fmt.Errorf("invalid url %q", link)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Page{}, err
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("failed to fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("fetch %s: http %d", u, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return Page{}, fmt.Errorf("fetch %s: unsupported content type %q", u, ct)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, 5<<20), u)
	if err != nil {
		return Page{}, fmt.Errorf("failed to extract content from %s: %w", u, err)
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return Page{}, errors.New("no readable content")
	}
	if len(text) > f.MaxChars {
		text = text[:f.MaxChars]
	}
	return Page{URL: u.String(), Title: strings.TrimSpace(article.Title), Text: text}, nil
}
