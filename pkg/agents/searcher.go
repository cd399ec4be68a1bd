package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/mikeboe/deep-research/pkg/research/tools"
	"github.com/tmc/langchaingo/llms"
	"golang.org/x/sync/errgroup"
)

// PageFetcher returns the readable text of a page.
type PageFetcher interface {
	Fetch(ctx context.Context, link string) (tools.Page, error)
}

// contextProfile is how much web material one search gathers.
type contextProfile struct {
	snippets int
	pages    int
}

var contextProfiles = map[research.SearchContextSize]contextProfile{
	research.SearchContextLow:    {snippets: 3},
	research.SearchContextMedium: {snippets: 5},
	research.SearchContextHigh:   {snippets: 8, pages: 3},
}

// Searcher runs one web search and condenses the hits into a dense summary.
type Searcher struct {
	caller
	provider tools.Provider
	fetcher  PageFetcher
	profile  contextProfile
}

// NewSearcher builds a searcher. fetcher may be nil, in which case only the
// backend's snippets are summarised.
func NewSearcher(llm llms.Model, provider tools.Provider, fetcher PageFetcher, size research.SearchContextSize, opts Options) *Searcher {
	profile, ok := contextProfiles[size]
	if !ok {
		profile = contextProfiles[research.SearchContextHigh]
	}
	return &Searcher{
		caller:   newCaller("searcher", llm, opts),
		provider: provider,
		fetcher:  fetcher,
		profile:  profile,
	}
}

func (s *Searcher) Submit(ctx context.Context, task research.SearchTask) (research.SearchResult, error) {
	snippets, err := s.provider.Search(ctx, task.Query, s.profile.snippets)
	if err != nil {
		return research.SearchResult{}, fmt.Errorf("search %q: %w", task.Query, err)
	}
	if len(snippets) == 0 {
		return research.SearchResult{}, fmt.Errorf("search %q: %w", task.Query, tools.ErrNoResults)
	}

	pages := s.fetchPages(ctx, snippets)

	summary, err := s.generateText(ctx, searcherPrompt, searchInput(task, snippets, pages))
	if err != nil {
		return research.SearchResult{}, fmt.Errorf("summarising %q: %w", task.Query, err)
	}

	sources := make([]research.Source, 0, len(snippets))
	for _, sn := range snippets {
		sources = append(sources, research.Source{Title: sn.Title, URL: sn.URL})
	}

	s.logger.Info("Search summarised", "query", task.Query, "snippets", len(snippets), "pages", len(pages))
	return research.SearchResult{Task: task, Summary: summary, Sources: sources}, nil
}

// fetchPages loads the top pages in parallel. Pages that fail to load are
// skipped; the snippets still stand in for them.
func (s *Searcher) fetchPages(ctx context.Context, snippets []tools.Snippet) []tools.Page {
	n := min(s.profile.pages, len(snippets))
	if s.fetcher == nil || n == 0 {
		return nil
	}

	slots := make([]*tools.Page, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		link := snippets[i].URL
		g.Go(func() error {
			page, err := s.fetcher.Fetch(gctx, link)
			if err != nil {
				s.logger.Debug("Page fetch failed", "url", link, "error", err)
				return nil
			}
			slots[i] = &page
			return nil
		})
	}
	_ = g.Wait()

	pages := make([]tools.Page, 0, n)
	for _, p := range slots {
		if p != nil {
			pages = append(pages, *p)
		}
	}
	return pages
}

func searchInput(task research.SearchTask, snippets []tools.Snippet, pages []tools.Page) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Search term: %s\nReason for searching: %s\n\n# Search results\n", task.Query, task.Reason)
	for i, sn := range snippets {
		fmt.Fprintf(&b, "\n## [%d] %s\nURL: %s\n%s\n", i+1, sn.Title, sn.URL, sn.Content)
	}
	if len(pages) > 0 {
		b.WriteString("\n# Page contents\n")
		for _, p := range pages {
			fmt.Fprintf(&b, "\n## %s\nURL: %s\n%s\n", p.Title, p.URL, p.Text)
		}
	}
	return b.String()
}
