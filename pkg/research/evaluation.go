package research

import "fmt"

const (
	MinScore = 1
	MaxScore = 10
)

// Scores are the five quality dimensions the evaluator grades, each 1-10.
type Scores struct {
	Completeness int `json:"completeness"`
	Depth        int `json:"depth"`
	Accuracy     int `json:"accuracy"`
	Structure    int `json:"structure"`
	Insight      int `json:"insight"`
}

// Values returns the scores in a fixed dimension order.
func (s Scores) Values() [5]int {
	return [5]int{s.Completeness, s.Depth, s.Accuracy, s.Structure, s.Insight}
}

func (s Scores) Average() float64 {
	sum := 0
	for _, v := range s.Values() {
		sum += v
	}
	return float64(sum) / 5
}

func (s Scores) Min() int {
	vals := s.Values()
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// Clamp forces every score into [MinScore, MaxScore].
func (s Scores) Clamp() Scores {
	c := func(v int) int {
		if v < MinScore {
			return MinScore
		}
		if v > MaxScore {
			return MaxScore
		}
		return v
	}
	return Scores{
		Completeness: c(s.Completeness),
		Depth:        c(s.Depth),
		Accuracy:     c(s.Accuracy),
		Structure:    c(s.Structure),
		Insight:      c(s.Insight),
	}
}

func (s Scores) String() string {
	return fmt.Sprintf("Completeness: %d/10 | Depth: %d/10 | Accuracy: %d/10 | Structure: %d/10 | Insight: %d/10",
		s.Completeness, s.Depth, s.Accuracy, s.Structure, s.Insight)
}

// Evaluation is the evaluator's verdict on one draft.
//
// Passed is derived by the engine from Scores with its PassPredicate.
// ModelVerdict is what the model itself claimed and is informational only.
type Evaluation struct {
	Scores               Scores   `json:"scores"`
	Summary              string   `json:"summary"`
	Passed               bool     `json:"passed"`
	ModelVerdict         bool     `json:"model_verdict"`
	Gaps                 []string `json:"gaps,omitempty"`
	SuggestedQueries     []string `json:"suggested_queries,omitempty"`
	RevisionInstructions string   `json:"revision_instructions,omitempty"`
}

// PassPredicate decides whether a set of scores clears the quality bar.
type PassPredicate func(Scores) bool

// ThresholdPredicate passes when the average is at least minAverage and no
// single dimension is below minScore.
func ThresholdPredicate(minAverage float64, minScore int) PassPredicate {
	return func(s Scores) bool {
		return s.Average() >= minAverage && s.Min() >= minScore
	}
}
