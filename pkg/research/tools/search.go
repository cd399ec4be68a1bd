package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrNoResults is returned when a backend answers but has nothing for the query.
var ErrNoResults = errors.New("no search results")

// Snippet is a single hit returned by a search backend.
type Snippet struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Provider is a web search backend.
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]Snippet, error)
}

type ProviderName string

const (
	TavilyProvider ProviderName = "tavily"
	BraveProvider  ProviderName = "brave"
	ArxivProvider  ProviderName = "arxiv"
)

// NewProvider builds the named backend with an HTTP client bounded by timeout.
func NewProvider(name ProviderName, apiKey string, timeout time.Duration) (Provider, error) {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	switch ProviderName(strings.ToLower(string(name))) {
	case TavilyProvider, "":
		return NewTavily(apiKey, client), nil
	case BraveProvider:
		return NewBrave(apiKey, client), nil
	case ArxivProvider:
		return NewArxiv(client), nil
	default:
		return nil, fmt.Errorf("unsupported search provider %q", name)
	}
}

// doWithBackoff sends the request built by newReq and retries on 429, doubling
// the delay each time up to maxBackoff.
func doWithBackoff(ctx context.Context, client *http.Client, newReq func() (*http.Request, error)) (*http.Response, error) {
	delay := initialBackoff
	for attempt := 0; ; attempt++ {
		req, err := newReq()
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= maxRetries {
			return resp, nil
		}
		resp.Body.Close()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay < maxBackoff {
			delay *= 2
		}
	}
}

const (
	maxRetries = 4
	maxBackoff = 16 * time.Second
)

var initialBackoff = time.Second

func clampLimit(limit int) int {
	if limit <= 0 {
		return 5
	}
	if limit > 20 {
		return 20
	}
	return limit
}
