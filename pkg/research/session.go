package research

// Session is the state of one research request. It is owned by a single
// Engine.Run call and discarded when the call returns.
type Session struct {
	ID          string         `json:"id"`
	Query       Query          `json:"query"`
	Phase       Phase          `json:"phase"`
	Iteration   int            `json:"iteration"`
	Refinements int            `json:"refinements"`
	Results     []SearchResult `json:"results"`
	Report      Report         `json:"report"`
	Evaluation  *Evaluation    `json:"evaluation,omitempty"`
	Evaluations []Evaluation   `json:"evaluations"`
}

// Outcome is what a finished run hands back to its caller.
type Outcome struct {
	Session
	// DeliveryErr is set when the report was produced but could not be delivered.
	DeliveryErr error `json:"-"`
}

func (s *Session) appendResults(results []SearchResult) {
	s.Results = append(s.Results, results...)
}

func (s *Session) snapshot() Session {
	out := *s
	out.Results = append([]SearchResult(nil), s.Results...)
	out.Evaluations = append([]Evaluation(nil), s.Evaluations...)
	if s.Evaluation != nil {
		ev := *s.Evaluation
		out.Evaluation = &ev
	}
	return out
}
