// Package agents implements the LLM-backed roles of the research pipeline on
// top of langchaingo models.
package agents

import (
	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/mikeboe/deep-research/pkg/research/tools"
	"github.com/tmc/langchaingo/llms"
)

// Models selects which model serves which role. Fast handles the clarifier
// and the per-search summaries; Reasoning handles planning, writing and
// evaluation.
type Models struct {
	Reasoning llms.Model
	Fast      llms.Model
}

// Build wires one agent per role. The deliverer is left for the caller.
func Build(models Models, provider tools.Provider, fetcher PageFetcher, cfg research.Config, reportLimit int, opts Options) research.Agents {
	fast := models.Fast
	if fast == nil {
		fast = models.Reasoning
	}
	return research.Agents{
		Clarifier:     NewClarifier(fast, opts),
		Planner:       NewPlanner(models.Reasoning, cfg.InitialSearches, opts),
		RefinePlanner: NewRefinementPlanner(models.Reasoning, cfg.RefinementSearchesMin, cfg.RefinementSearchesMax, opts),
		Searcher:      NewSearcher(fast, provider, fetcher, cfg.SearchContext, opts),
		Writer:        NewWriter(models.Reasoning, opts),
		Evaluator:     NewEvaluator(models.Reasoning, reportLimit, opts),
	}
}
