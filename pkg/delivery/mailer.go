package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Message is one outgoing email.
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

const sendGridHost = "https://api.sendgrid.com"

// SendGridMailer sends mail through the SendGrid v3 API.
type SendGridMailer struct {
	apiKey   string
	host     string
	fromName string
}

func NewSendGridMailer(apiKey, fromName string) *SendGridMailer {
	return &SendGridMailer{apiKey: apiKey, host: sendGridHost, fromName: fromName}
}

func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	if msg.From == "" || msg.To == "" {
		return errors.New("sender and recipient are required")
	}

	from := mail.NewEmail(m.fromName, msg.From)
	to := mail.NewEmail("", msg.To)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Text, msg.HTML)

	request := sendgrid.GetRequest(m.apiKey, "/v3/mail/send", m.host)
	request.Method = "POST"
	request.Body = mail.GetRequestBody(message)

	resp, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return fmt.Errorf("sendgrid request failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// LogMailer only logs what it would send. It stands in when no email
// provider is configured.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) Send(_ context.Context, msg Message) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Email delivery not configured, skipping send", "to", msg.To, "subject", msg.Subject, "html_bytes", len(msg.HTML))
	return nil
}
