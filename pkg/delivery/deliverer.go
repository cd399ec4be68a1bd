package delivery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mikeboe/deep-research/pkg/research"
)

const defaultSubject = "Research report"

// EmailDeliverer renders a report and mails it to a fixed recipient.
type EmailDeliverer struct {
	mailer Mailer
	from   string
	to     string
	logger *slog.Logger
}

func NewEmailDeliverer(mailer Mailer, from, to string, logger *slog.Logger) *EmailDeliverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailDeliverer{mailer: mailer, from: from, to: to, logger: logger}
}

func (d *EmailDeliverer) Deliver(ctx context.Context, q research.Query, r research.Report) error {
	subject := Subject(r.Markdown, r.ShortSummary, defaultSubject)

	body, err := RenderHTML(subject, r.Markdown)
	if err != nil {
		return err
	}

	msg := Message{
		From:    d.from,
		To:      d.to,
		Subject: subject,
		Text:    r.Markdown,
		HTML:    body,
	}
	if err := d.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send report for %q: %w", q.Original, err)
	}

	d.logger.Info("Report delivered", "to", d.to, "subject", subject)
	return nil
}
