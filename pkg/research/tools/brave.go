package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// Brave uses the Brave Search API. The key goes in X-Subscription-Token.
type Brave struct {
	APIKey   string
	Endpoint string
	client   *http.Client
}

func NewBrave(apiKey string, client *http.Client) *Brave {
	if client == nil {
		client = http.DefaultClient
	}
	return &Brave{APIKey: apiKey, Endpoint: braveEndpoint, client: client}
}

func (b *Brave) Search(ctx context.Context, query string, limit int) ([]Snippet, error) {
	if strings.TrimSpace(b.APIKey) == "" {
		return nil, errors.New("brave: API key is missing")
	}
	limit = clampLimit(limit)

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(limit))
	endpoint := b.Endpoint + "?" + params.Encode()

	resp, err := doWithBackoff(ctx, b.client, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Subscription-Token", b.APIKey)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("brave request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave http %d", resp.StatusCode)
	}

	var payload struct {
		Web struct {
			Results []struct {
				Title         string   `json:"title"`
				URL           string   `json:"url"`
				Description   string   `json:"description"`
				ExtraSnippets []string `json:"extra_snippets"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("brave: failed to decode response: %w", err)
	}

	results := make([]Snippet, 0, len(payload.Web.Results))
	for _, r := range payload.Web.Results {
		content := r.Description
		if len(r.ExtraSnippets) > 0 {
			content += "\n" + strings.Join(r.ExtraSnippets, "\n")
		}
		results = append(results, Snippet{Title: r.Title, URL: r.URL, Content: content})
		if len(results) >= limit {
			break
		}
	}
	if len(results) == 0 {
		return nil, ErrNoResults
	}
	return results, nil
}
