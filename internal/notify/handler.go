// Package notify sends the booking emails: a confirmation to the customer
// and a notification to the shop. It consumes consultation events from the
// event bus; email failures are logged and never affect the booking.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alfredjeanlab/lensdesk/internal/events"
)

const (
	DefaultFrom      = "VisionCare Lens Shop <onboarding@resend.dev>"
	customerSubject  = "Consultation Confirmation - VisionCare Lens Shop"
	adminSubjectForm = "New Consultation Request from %s"
)

// Config addresses the notifications.
type Config struct {
	From       string // sender for both emails
	AdminEmail string // shop inbox; empty skips the admin notification
}

// Result reports the provider ids of the emails that were sent.
type Result struct {
	CustomerEmailID string   `json:"customer_email_id,omitempty"`
	AdminEmailID    string   `json:"admin_email_id,omitempty"`
	Errors          []string `json:"errors,omitempty"`
}

// Handler turns consultation events into emails.
type Handler struct {
	mailer Mailer
	cfg    Config
	logger *slog.Logger
}

// NewHandler creates a notification handler that delivers through mailer.
func NewHandler(mailer Mailer, cfg Config, logger *slog.Logger) *Handler {
	if cfg.From == "" {
		cfg.From = DefaultFrom
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{mailer: mailer, cfg: cfg, logger: logger}
}

// HandleConsultation sends both emails for a new booking concurrently.
func (h *Handler) HandleConsultation(ctx context.Context, ev events.ConsultationCreated) Result {
	var res Result
	c := ev.Customer
	if c == nil || c.Email == "" {
		h.logger.Warn("notify: consultation event without customer email")
		return res
	}

	var (
		g                   errgroup.Group
		customerErr, admErr error
	)
	g.Go(func() error {
		html, err := CustomerConfirmation(c)
		if err != nil {
			customerErr = err
			return nil
		}
		res.CustomerEmailID, customerErr = h.mailer.Send(ctx, Message{
			From: h.cfg.From, To: []string{c.Email}, Subject: customerSubject, HTML: html,
		})
		return nil
	})
	if h.cfg.AdminEmail != "" {
		g.Go(func() error {
			html, err := AdminNotification(c)
			if err != nil {
				admErr = err
				return nil
			}
			res.AdminEmailID, admErr = h.mailer.Send(ctx, Message{
				From: h.cfg.From, To: []string{h.cfg.AdminEmail}, Subject: fmt.Sprintf(adminSubjectForm, c.Name), HTML: html,
			})
			return nil
		})
	} else {
		h.logger.Warn("notify: admin email not configured, skipping admin notification")
	}
	_ = g.Wait()

	if customerErr != nil {
		h.logger.Error("notify: customer confirmation failed", "to", c.Email, "err", customerErr)
		res.Errors = append(res.Errors, customerErr.Error())
	}
	if admErr != nil {
		h.logger.Error("notify: admin notification failed", "err", admErr)
		res.Errors = append(res.Errors, admErr.Error())
	}
	h.logger.Info("notify: booking emails processed",
		"customer", c.ID, "customer_email_id", res.CustomerEmailID, "admin_email_id", res.AdminEmailID)
	return res
}

// StartSubscriber listens for new consultations on the event bus and sends
// their emails. It blocks until ctx is cancelled.
func (h *Handler) StartSubscriber(ctx context.Context, sub events.Subscriber) error {
	ch, cancel, err := sub.Subscribe(events.TopicConsultationCreated)
	if err != nil {
		return fmt.Errorf("notify: subscribe: %w", err)
	}
	defer cancel()

	h.logger.Info("notify: subscriber started")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("notify: subscriber stopping")
			return nil
		case raw, ok := <-ch:
			if !ok {
				h.logger.Info("notify: subscription channel closed")
				return nil
			}

			var event events.ConsultationCreated
			if err := json.Unmarshal(raw, &event); err != nil {
				h.logger.Warn("notify: bad event payload", "err", err)
				continue
			}
			h.HandleConsultation(ctx, event)
		}
	}
}
