package research

// Phase is a step of the research state machine.
type Phase string

const (
	PhaseClarifying Phase = "clarifying"
	PhasePlanning   Phase = "planning"
	PhaseSearching  Phase = "searching"
	PhaseWriting    Phase = "writing"
	PhaseEvaluating Phase = "evaluating"
	PhaseRefining   Phase = "refining"
	PhaseDelivering Phase = "delivering"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// EventType classifies progress events.
type EventType string

const (
	EventPhase          EventType = "phase"
	EventStatus         EventType = "status"
	EventPlan           EventType = "plan"
	EventSearchDone     EventType = "search_done"
	EventSearchFailed   EventType = "search_failed"
	EventDraft          EventType = "draft"
	EventEvaluation     EventType = "evaluation"
	EventDeliveryFailed EventType = "delivery_failed"
	EventReport         EventType = "report"
	EventFollowUp       EventType = "follow_up"
	EventError          EventType = "error"
)

// Event is a progress update emitted while a session runs.
type Event struct {
	SessionID  string       `json:"session_id"`
	Type       EventType    `json:"type"`
	Phase      Phase        `json:"phase"`
	Iteration  int          `json:"iteration"`
	Message    string       `json:"message,omitempty"`
	Task       *SearchTask  `json:"task,omitempty"`
	Plan       []SearchTask `json:"plan,omitempty"`
	Evaluation *Evaluation  `json:"evaluation,omitempty"`
	Report     *Report      `json:"report,omitempty"`
	FollowUps  []string     `json:"follow_ups,omitempty"`
	Results    int          `json:"results"`
}

// Observer receives progress events. The engine serializes calls, so an
// observer never runs concurrently with itself for the same session.
type Observer func(Event)

// Observers fans one event out to several observers, skipping nil ones.
func Observers(obs ...Observer) Observer {
	return func(e Event) {
		for _, o := range obs {
			if o != nil {
				o(e)
			}
		}
	}
}
