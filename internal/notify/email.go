// Package notify sends transactional email. Delivery is best effort:
// failures are logged and never propagate to the request that caused them.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// EmailSender delivers a single message.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is an email to be sent.
type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	Body    string // plain text
	HTML    string // optional
}

// SendGridConfig holds configuration for SendGrid.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// SendGridSender sends email through the SendGrid v3 API.
type SendGridSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
}

// NewSendGridSender returns a sender, or nil when no API key is set.
func NewSendGridSender(cfg SendGridConfig) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if cfg.FromName == "" {
		cfg.FromName = "CureLink"
	}
	return &SendGridSender{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
	}
}

// Send implements EmailSender.
func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.client == nil {
		return errors.New("notify: sendgrid client not configured")
	}
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(msg.ToName, msg.To)
	html := msg.HTML
	if html == "" {
		html = msg.Body
	}
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, html)

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("notify: sendgrid returned status %d", resp.StatusCode)
	}
	return nil
}

// NopSender drops every message.
type NopSender struct{}

// Send implements EmailSender.
func (NopSender) Send(ctx context.Context, msg EmailMessage) error {
	log.Ctx(ctx).Debug().Str("component", "notify").Str("subject", msg.Subject).Msg("email disabled; message dropped")
	return nil
}

// Deliver sends msg with a bounded timeout and logs a failure instead of
// returning it. A nil sender or empty recipient is a no-op.
func Deliver(ctx context.Context, sender EmailSender, msg EmailMessage) {
	if sender == nil || msg.To == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := sender.Send(ctx, msg); err != nil {
		log.Warn().Str("component", "notify").Err(err).Str("subject", msg.Subject).Msg("email delivery failed")
	}
}
