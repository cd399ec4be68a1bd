package research

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultSkipToken is the answer that bypasses clarification.
const DefaultSkipToken = "skip"

var ErrEmptyQuery = errors.New("research query is empty")

// Query is the research question plus optional clarification answers.
type Query struct {
	Original      string `json:"original"`
	Clarification string `json:"clarification,omitempty"`
}

// NewQuery builds a Query from the raw question and the user's answers to the
// clarifying questions. Answers equal to skipToken (case-insensitive) or blank
// leave the query unmodified.
func NewQuery(original, answers, skipToken string) (Query, error) {
	original = strings.TrimSpace(original)
	if original == "" {
		return Query{}, ErrEmptyQuery
	}
	if skipToken == "" {
		skipToken = DefaultSkipToken
	}

	answers = strings.TrimSpace(answers)
	if answers == "" || strings.EqualFold(answers, skipToken) {
		return Query{Original: original}, nil
	}
	return Query{Original: original, Clarification: answers}, nil
}

// Skipped reports whether no clarification was attached.
func (q Query) Skipped() bool {
	return q.Clarification == ""
}

// Text is the enriched query every downstream role reads.
func (q Query) Text() string {
	if q.Clarification == "" {
		return q.Original
	}
	return fmt.Sprintf("Original query: %s\n\nAdditional context from user:\n%s", q.Original, q.Clarification)
}
