package main

import (
	"bytes"
	"testing"

	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/stretchr/testify/assert"
)

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	obs := progressPrinter(&buf)

	task := research.SearchTask{Query: "grid storage costs"}
	obs(research.Event{Type: research.EventPhase, Message: "Planning research strategy..."})
	obs(research.Event{Type: research.EventPhase})
	obs(research.Event{Type: research.EventSearchDone, Task: &task})
	obs(research.Event{Type: research.EventSearchFailed, Task: &task, Message: "timeout"})
	obs(research.Event{Type: research.EventEvaluation, Message: "Evaluation scores: ...", Evaluation: &research.Evaluation{Passed: true}})
	obs(research.Event{Type: research.EventReport, Report: &research.Report{Markdown: "# hidden"}})

	assert.Equal(t, "Planning research strategy...\n"+
		"  ✓ grid storage costs\n"+
		"  ✗ grid storage costs (timeout)\n"+
		"Evaluation scores: ...\n"+
		"Verdict: passed\n", buf.String())
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	o := &research.Outcome{Session: research.Session{Report: research.Report{
		ShortSummary:      "Cheaper every year.",
		Markdown:          "# Storage\n\nBody",
		FollowUpQuestions: []string{"Recycling?"},
	}}}

	printReport(&buf, o)

	out := buf.String()
	assert.Contains(t, out, "Cheaper every year.\n\n# Storage\n\nBody\n")
	assert.Contains(t, out, "Follow-up questions:\n  - Recycling?\n")
	assert.NotContains(t, out, "could not be emailed")
}
