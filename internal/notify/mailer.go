package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/resend/resend-go/v2"
)

// Message is one outbound email.
type Message struct {
	From    string
	To      []string
	Subject string
	HTML    string
}

// Mailer delivers email and returns the provider's message id.
type Mailer interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// ResendMailer delivers through the Resend API.
type ResendMailer struct {
	client *resend.Client
}

func NewResendMailer(apiKey string) *ResendMailer {
	return &ResendMailer{client: resend.NewClient(apiKey)}
}

func (m *ResendMailer) Send(ctx context.Context, msg Message) (string, error) {
	resp, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		return "", fmt.Errorf("resend: %w", err)
	}
	return resp.Id, nil
}

// LogMailer logs messages instead of sending them. Used when no API key is
// configured.
type LogMailer struct {
	logger *slog.Logger
	seq    atomic.Uint64
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg Message) (string, error) {
	id := fmt.Sprintf("log-%d", m.seq.Add(1))
	m.logger.Info("notify: email not sent (no mail provider configured)",
		"id", id, "to", msg.To, "subject", msg.Subject, "bytes", len(msg.HTML))
	return id, nil
}
