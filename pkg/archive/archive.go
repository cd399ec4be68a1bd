// Package archive keeps the search findings of finished sessions in a vector
// store so later sessions and MCP clients can look them up semantically.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/mikeboe/deep-research/pkg/vectorstore"
	"github.com/tmc/langchaingo/textsplitter"
)

// Metadata keys written with every chunk.
const (
	KeySessionID = "session_id"
	KeyQuery     = "query"
	KeySearch    = "search"
	KeySources   = "sources"
	KeyChunk     = "chunk"
)

const defaultTopK = 5

type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type Store interface {
	AddDocuments(ctx context.Context, docs []vectorstore.Document) error
	SimilaritySearch(ctx context.Context, embedding []float32, topK int, filter map[string]interface{}) ([]vectorstore.SimilaritySearchResult, error)
	DeleteByMetadata(ctx context.Context, filter map[string]interface{}) (int64, error)
}

// Finding is one archived chunk returned by Search.
type Finding struct {
	SessionID string   `json:"session_id"`
	Query     string   `json:"query"`
	Search    string   `json:"search"`
	Content   string   `json:"content"`
	Sources   []string `json:"sources,omitempty"`
	Score     float64  `json:"score"`
}

type Archive struct {
	store    Store
	embedder Embedder
	splitter textsplitter.TextSplitter
	logger   *slog.Logger
}

func New(store Store, embedder Embedder, chunkSize, chunkOverlap int, logger *slog.Logger) *Archive {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archive{
		store:    store,
		embedder: embedder,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
		logger: logger,
	}
}

// Save replaces the archived findings of sessionID with results and returns
// the number of chunks stored.
func (a *Archive) Save(ctx context.Context, sessionID, query string, results []research.SearchResult) (int, error) {
	if sessionID == "" {
		return 0, errors.New("archive: session id is required")
	}

	var docs []vectorstore.Document
	for _, res := range results {
		chunks, err := a.splitter.SplitText(res.Summary)
		if err != nil {
			return 0, fmt.Errorf("failed to split summary for %q: %w", res.Task.Query, err)
		}
		sources := sourceURLs(res.Sources)
		for i, chunk := range chunks {
			if strings.TrimSpace(chunk) == "" {
				continue
			}
			docs = append(docs, vectorstore.Document{
				Content: chunk,
				Metadata: map[string]interface{}{
					KeySessionID: sessionID,
					KeyQuery:     query,
					KeySearch:    res.Task.Query,
					KeySources:   sources,
					KeyChunk:     i,
				},
			})
		}
	}

	if len(docs) > 0 {
		texts := make([]string, len(docs))
		for i, d := range docs {
			texts[i] = d.Content
		}
		vectors, err := a.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("failed to embed findings: %w", err)
		}
		if len(vectors) != len(docs) {
			return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(docs))
		}
		for i := range docs {
			docs[i].Embedding = vectors[i]
		}
	}

	if _, err := a.store.DeleteByMetadata(ctx, map[string]interface{}{KeySessionID: sessionID}); err != nil {
		return 0, fmt.Errorf("failed to clear previous findings: %w", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}
	if err := a.store.AddDocuments(ctx, docs); err != nil {
		return 0, fmt.Errorf("failed to store findings: %w", err)
	}
	a.logger.Info("Archived findings", "session", sessionID, "results", len(results), "chunks", len(docs))
	return len(docs), nil
}

// Search returns the k findings closest to query. sessionID, when set,
// restricts the search to one session.
func (a *Archive) Search(ctx context.Context, query string, k int, sessionID string) ([]Finding, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("archive: query is required")
	}
	if k <= 0 {
		k = defaultTopK
	}

	vec, err := a.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var filter map[string]interface{}
	if sessionID != "" {
		filter = map[string]interface{}{KeySessionID: sessionID}
	}
	hits, err := a.store.SimilaritySearch(ctx, vec, k, filter)
	if err != nil {
		return nil, err
	}

	findings := make([]Finding, 0, len(hits))
	for _, h := range hits {
		md := h.Document.Metadata
		findings = append(findings, Finding{
			SessionID: stringValue(md[KeySessionID]),
			Query:     stringValue(md[KeyQuery]),
			Search:    stringValue(md[KeySearch]),
			Content:   h.Document.Content,
			Sources:   stringList(md[KeySources]),
			Score:     h.Score,
		})
	}
	return findings, nil
}

// Format renders findings as plain text for tool responses.
func Format(findings []Finding) string {
	if len(findings) == 0 {
		return "No archived findings matched."
	}
	var sb strings.Builder
	for i, f := range findings {
		fmt.Fprintf(&sb, "[%d] %s (score %.2f, session %s)\n%s\n", i+1, f.Search, f.Score, f.SessionID, f.Content)
		for _, s := range f.Sources {
			sb.WriteString("  - " + s + "\n")
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func sourceURLs(sources []research.Source) []string {
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		if s.URL != "" {
			out = append(out, s.URL)
		}
	}
	return out
}

func stringValue(v interface{}) string {
	s, _ := v.(string)
	return s
}

// stringList accepts both []string (fresh documents) and []interface{}
// (documents decoded from JSONB).
func stringList(v interface{}) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
