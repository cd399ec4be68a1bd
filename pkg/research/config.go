package research

import (
	"fmt"
	"strings"
)

// SearchContextSize controls how much material each search gathers.
type SearchContextSize string

const (
	SearchContextLow    SearchContextSize = "low"
	SearchContextMedium SearchContextSize = "medium"
	SearchContextHigh   SearchContextSize = "high"
)

// ParseSearchContextSize maps a config string onto a SearchContextSize,
// falling back to high.
func ParseSearchContextSize(s string) SearchContextSize {
	switch SearchContextSize(strings.ToLower(strings.TrimSpace(s))) {
	case SearchContextLow:
		return SearchContextLow
	case SearchContextMedium:
		return SearchContextMedium
	default:
		return SearchContextHigh
	}
}

// Config holds the tuning constants of a research run.
type Config struct {
	MaxIterations         int
	InitialSearches       int
	RefinementSearchesMin int
	RefinementSearchesMax int
	MaxConcurrentSearches int // <= 0 means no limit
	PassMinAverage        float64
	PassMinScore          int
	SearchContext         SearchContextSize
	SkipToken             string

	// Pass overrides the threshold predicate built from PassMinAverage and PassMinScore.
	Pass PassPredicate
}

// DefaultConfig returns the stock settings: 3 rounds, 7 initial searches,
// 3-5 refinement searches, pass at average >= 7 with no score below 5.
func DefaultConfig() Config {
	return Config{
		MaxIterations:         3,
		InitialSearches:       7,
		RefinementSearchesMin: 3,
		RefinementSearchesMax: 5,
		PassMinAverage:        7,
		PassMinScore:          5,
		SearchContext:         SearchContextHigh,
		SkipToken:             DefaultSkipToken,
	}
}

// Validate rejects settings the loop cannot run with.
func (c Config) Validate() error {
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max iterations must be > 0, got %d", c.MaxIterations)
	}
	if c.InitialSearches <= 0 {
		return fmt.Errorf("initial searches must be > 0, got %d", c.InitialSearches)
	}
	if c.RefinementSearchesMin <= 0 || c.RefinementSearchesMax < c.RefinementSearchesMin {
		return fmt.Errorf("invalid refinement search range %d-%d", c.RefinementSearchesMin, c.RefinementSearchesMax)
	}
	if c.Pass == nil && (c.PassMinScore < MinScore || c.PassMinScore > MaxScore) {
		return fmt.Errorf("pass min score must be within %d-%d, got %d", MinScore, MaxScore, c.PassMinScore)
	}
	return nil
}

func (c Config) predicate() PassPredicate {
	if c.Pass != nil {
		return c.Pass
	}
	return ThresholdPredicate(c.PassMinAverage, c.PassMinScore)
}
