package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mikeboe/deep-research/pkg/research"
)

// progressPrinter writes the engine's status messages to w as they arrive.
func progressPrinter(w io.Writer) research.Observer {
	return func(ev research.Event) {
		switch ev.Type {
		case research.EventPhase, research.EventStatus, research.EventPlan, research.EventDraft:
			if ev.Message != "" {
				fmt.Fprintln(w, ev.Message)
			}
		case research.EventSearchDone:
			if ev.Task != nil {
				fmt.Fprintf(w, "  ✓ %s\n", ev.Task.Query)
			}
		case research.EventSearchFailed:
			if ev.Task != nil {
				fmt.Fprintf(w, "  ✗ %s (%s)\n", ev.Task.Query, ev.Message)
			}
		case research.EventEvaluation:
			fmt.Fprintln(w, ev.Message)
			if ev.Evaluation != nil {
				verdict := "needs work"
				if ev.Evaluation.Passed {
					verdict = "passed"
				}
				fmt.Fprintf(w, "Verdict: %s\n", verdict)
			}
		case research.EventDeliveryFailed:
			fmt.Fprintf(w, "Delivery failed: %s\n", ev.Message)
		case research.EventError:
			fmt.Fprintf(w, "Error: %s\n", strings.TrimSpace(ev.Message))
		}
	}
}
