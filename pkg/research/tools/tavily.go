package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// Tavily calls the Tavily search API.
type Tavily struct {
	APIKey   string
	Endpoint string
	// Depth is Tavily's search_depth parameter (basic or advanced).
	Depth  string
	client *http.Client
}

func NewTavily(apiKey string, client *http.Client) *Tavily {
	if client == nil {
		client = http.DefaultClient
	}
	return &Tavily{APIKey: apiKey, Endpoint: tavilyEndpoint, Depth: "advanced", client: client}
}

func (t *Tavily) Search(ctx context.Context, query string, limit int) ([]Snippet, error) {
	if strings.TrimSpace(t.APIKey) == "" {
		return nil, errors.New("tavily: API key is missing")
	}
	limit = clampLimit(limit)

	payload, err := json.Marshal(map[string]any{
		"query":        query,
		"search_depth": t.Depth,
		"max_results":  limit,
	})
	if err != nil {
		return nil, err
	}

	resp, err := doWithBackoff(ctx, t.client, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+t.APIKey)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("tavily request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tavily http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var response struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("tavily: failed to decode response: %w", err)
	}

	results := make([]Snippet, 0, len(response.Results))
	for _, r := range response.Results {
		results = append(results, Snippet{Title: r.Title, URL: r.URL, Content: r.Content})
		if len(results) >= limit {
			break
		}
	}
	if len(results) == 0 {
		return nil, ErrNoResults
	}
	return results, nil
}
