package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderHTML(t *testing.T) {
	md := "# Fusion <2030>\n\n| Year | Event |\n|---|---|\n| 2022 | Ignition |\n\n- **bold** point\n"

	doc, err := RenderHTML("Fusion <2030>", md)
	require.NoError(t, err)

	assert.Contains(t, doc, "<title>Fusion &lt;2030&gt;</title>")
	assert.Contains(t, doc, "<table>")
	assert.Contains(t, doc, "<td>Ignition</td>")
	assert.Contains(t, doc, "<strong>bold</strong>")
	assert.Contains(t, doc, `<h1 id=`)
}

func TestSubject(t *testing.T) {
	tests := []struct {
		name    string
		md      string
		summary string
		want    string
	}{
		{"First heading", "intro\n\n## The State of Fusion\n# Later", "", "The State of Fusion"},
		{"Summary sentence", "no headings here", "Fusion is close. Or not.", "Fusion is close"},
		{"Fallback", "", "  ", "Research report"},
		{"Empty heading skipped", "#\n# Real title", "", "Real title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Subject(tt.md, tt.summary, defaultSubject))
		})
	}
}

type captureMailer struct {
	sent []Message
	err  error
}

func (m *captureMailer) Send(_ context.Context, msg Message) error {
	m.sent = append(m.sent, msg)
	return m.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEmailDeliverer(t *testing.T) {
	mailer := &captureMailer{}
	d := NewEmailDeliverer(mailer, "bot@example.com", "me@example.com", quietLogger())

	report := research.Report{ShortSummary: "s", Markdown: "# Findings\n\nText."}
	require.NoError(t, d.Deliver(context.Background(), research.Query{Original: "q"}, report))

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "bot@example.com", msg.From)
	assert.Equal(t, "me@example.com", msg.To)
	assert.Equal(t, "Findings", msg.Subject)
	assert.Equal(t, report.Markdown, msg.Text)
	assert.Contains(t, msg.HTML, "<p>Text.</p>")
}

func TestEmailDelivererWrapsSendError(t *testing.T) {
	boom := errors.New("rejected")
	d := NewEmailDeliverer(&captureMailer{err: boom}, "a@x", "b@x", quietLogger())

	err := d.Deliver(context.Background(), research.Query{Original: "q"}, research.Report{Markdown: "x"})
	assert.ErrorIs(t, err, boom)
}

func TestSendGridMailer(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer sg-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m := NewSendGridMailer("sg-key", "Deep Research")
	m.host = srv.URL

	err := m.Send(context.Background(), Message{From: "bot@example.com", To: "me@example.com", Subject: "Hi", Text: "t", HTML: "<p>t</p>"})
	require.NoError(t, err)
	assert.Equal(t, "Hi", got["subject"])
	assert.Equal(t, "bot@example.com", got["from"].(map[string]any)["email"])
}

func TestSendGridMailerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"errors":[{"message":"bad key"}]}`)
	}))
	defer srv.Close()

	m := NewSendGridMailer("bad", "")
	m.host = srv.URL

	assert.Error(t, m.Send(context.Background(), Message{From: "a@x", To: "b@x"}))

	assert.Error(t, m.Send(context.Background(), Message{To: "b@x"}))
}

func TestLogMailer(t *testing.T) {
	assert.NoError(t, LogMailer{Logger: quietLogger()}.Send(context.Background(), Message{To: "x"}))
}
