package tools

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const arxivEndpoint = "https://export.arxiv.org/api/query"

// ArxivEntry holds one arXiv feed entry.
type ArxivEntry struct {
	Title     string      `xml:"title"`
	Summary   string      `xml:"summary"`
	Published string      `xml:"published"`
	Link      []ArxivLink `xml:"link"`
}

type ArxivLink struct {
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
	Rel  string `xml:"rel,attr"`
}

// ArxivFeed is the Atom feed returned by the arXiv API.
type ArxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entry   []ArxivEntry `xml:"entry"`
}

// Arxiv searches arXiv papers. It needs no API key.
type Arxiv struct {
	Endpoint string
	client   *http.Client
}

func NewArxiv(client *http.Client) *Arxiv {
	if client == nil {
		client = http.DefaultClient
	}
	return &Arxiv{Endpoint: arxivEndpoint, client: client}
}

func (a *Arxiv) Search(ctx context.Context, query string, limit int) ([]Snippet, error) {
	limit = clampLimit(limit)

	params := url.Values{}
	params.Add("search_query", "all:"+query)
	params.Add("max_results", strconv.Itoa(limit))
	params.Add("start", "0")
	apiURL := a.Endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.Error("arXiv API returned non-200 status code", "status", resp.StatusCode, "body", string(bodyBytes))
		return nil, fmt.Errorf("arXiv API returned non-200 status code: %d", resp.StatusCode)
	}

	var feed ArxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal XML: %w", err)
	}

	results := make([]Snippet, 0, len(feed.Entry))
	for _, entry := range feed.Entry {
		results = append(results, Snippet{
			Title:   collapseSpace(entry.Title),
			URL:     entry.pageURL(),
			Content: fmt.Sprintf("Published: %s\n%s", entry.Published, collapseSpace(entry.Summary)),
		})
	}
	if len(results) == 0 {
		return nil, ErrNoResults
	}
	return results, nil
}

// pageURL prefers the abstract page and falls back to the PDF link.
func (e ArxivEntry) pageURL() string {
	var pdf string
	for _, link := range e.Link {
		switch {
		case link.Rel == "alternate":
			return link.Href
		case link.Type == "application/pdf":
			pdf = link.Href
		}
	}
	return pdf
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
