// Package services – PaymentService
//
// PaymentService creates processor payment intents, records them as local
// transactions, and reconciles transaction and appointment state from
// processor webhooks.
//
// Idempotency: CreateIntent honors a client Idempotency-Key. The first
// completed request records (user, scope, key) -> transaction; a replay
// inside the TTL returns the same client secret without calling the
// processor again.
//
// Webhooks are de-duplicated by event id and applied in one database
// transaction, so a redelivered event never reapplies state.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-telehealth-backend/internal/domain"
	"github.com/tbourn/go-telehealth-backend/internal/notify"
	"github.com/tbourn/go-telehealth-backend/internal/payments"
	"github.com/tbourn/go-telehealth-backend/internal/repo"
)

// ScopeCreateIntent namespaces Idempotency-Key records for CreateIntent.
const ScopeCreateIntent = "payments.create-intent"

// IntentCreator creates processor intents; satisfied by
// *payments.StripeClient.
type IntentCreator interface {
	CreateIntent(ctx context.Context, p payments.IntentParams) (*payments.Intent, error)
}

// CreateIntentInput is the create-intent payload.
type CreateIntentInput struct {
	Amount         float64
	AppointmentID  string
	IdempotencyKey string
}

// IntentResult is returned to the client to confirm the payment.
type IntentResult struct {
	ClientSecret string `json:"clientSecret"`
	TxID         string `json:"txId"`
	Replayed     bool   `json:"-"`
}

// WebhookResult describes how an event was handled.
type WebhookResult struct {
	EventID   string
	Type      string
	Duplicate bool
	Applied   bool
}

// PaymentService implements payments.
type PaymentService struct {
	DB               *gorm.DB
	Processor        IntentCreator
	Currency         string
	WebhookSecret    string
	WebhookTolerance time.Duration
	Dedupe           payments.Deduper
	Mailer           notify.EmailSender
	IdempotencyTTL   time.Duration
	Metrics          *Metrics

	now func() time.Time
}

func (s *PaymentService) tracer() trace.Tracer {
	return otel.Tracer("services/PaymentService")
}

func (s *PaymentService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// HasReplay reports whether a completed request exists for key. It backs
// the idempotency middleware's lookup.
func (s *PaymentService) HasReplay(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
	_, err := repo.GetIdempotency(ctx, s.DB, userID, scope, key, now)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CreateIntent creates a processor intent for userID and records a pending
// transaction.
func (s *PaymentService) CreateIntent(ctx context.Context, userID string, in CreateIntentInput) (*IntentResult, error) {
	ctx, span := s.tracer().Start(ctx, "CreateIntent",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Float64("payment.amount", in.Amount),
			attribute.Bool("idempotency.key_present", in.IdempotencyKey != ""),
		),
	)
	defer span.End()

	if in.Amount <= 0 {
		return nil, ErrMissingAmount
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if res, err := s.replay(ctx, userID, key); err != nil || res != nil {
			return res, err
		}
	}

	var apptID *string
	if id := strings.TrimSpace(in.AppointmentID); id != "" {
		a, err := repo.GetAppointment(ctx, s.DB, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, invalid("appointment not found")
			}
			return nil, err
		}
		if a.PatientID != userID {
			return nil, ErrForbidden
		}
		apptID = &a.ID
	}

	if s.Processor == nil {
		return nil, ErrPaymentsDisabled
	}
	currency := s.Currency
	if currency == "" {
		currency = "usd"
	}
	params := payments.IntentParams{
		Amount:         in.Amount,
		Currency:       currency,
		UserID:         userID,
		IdempotencyKey: key,
	}
	if apptID != nil {
		params.AppointmentID = *apptID
	}
	intent, err := s.Processor.CreateIntent(ctx, params)
	if err != nil {
		if errors.Is(err, payments.ErrNotConfigured) {
			return nil, ErrPaymentsDisabled
		}
		return nil, err
	}

	tx := &domain.Transaction{
		UserID:        userID,
		Amount:        in.Amount,
		Currency:      currency,
		Provider:      domain.ProviderStripe,
		ProviderID:    intent.ID,
		AppointmentID: apptID,
		Status:        domain.TxPending,
		ClientSecret:  intent.ClientSecret,
	}
	if err := repo.CreateTransaction(ctx, s.DB, tx); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("transaction.id", tx.ID))

	if key != "" {
		ttl := s.IdempotencyTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		_, err := repo.CreateIdempotency(ctx, s.DB, userID, ScopeCreateIntent, key, tx.ID, http.StatusOK, ttl)
		if errors.Is(err, repo.ErrDuplicate) {
			// A concurrent request with the same key finished first; the
			// processor deduplicated on the same key, so answer with its record.
			if res, rerr := s.replay(ctx, userID, key); rerr == nil && res != nil {
				return res, nil
			}
		} else if err != nil {
			log.Warn().Str("component", "payments").Err(err).Msg("record idempotency key")
		}
	}

	return &IntentResult{ClientSecret: intent.ClientSecret, TxID: tx.ID}, nil
}

func (s *PaymentService) replay(ctx context.Context, userID, key string) (*IntentResult, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, userID, ScopeCreateIntent, key, s.clock().UTC())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	tx, err := repo.GetTransaction(ctx, s.DB, rec.ResourceID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &IntentResult{ClientSecret: tx.ClientSecret, TxID: tx.ID, Replayed: true}, nil
}

// HandleWebhook verifies, de-duplicates, and applies a processor event.
//
// Errors: payments.ErrInvalidSignature and payments.ErrInvalidPayload are
// client errors; anything else is a server failure the processor should
// retry.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	ctx, span := s.tracer().Start(ctx, "HandleWebhook")
	defer span.End()

	if s.WebhookSecret != "" {
		if err := payments.VerifySignature(s.WebhookSecret, payload, signature, s.WebhookTolerance, s.clock()); err != nil {
			s.Metrics.webhook("unknown", "invalid_signature")
			return nil, err
		}
	}
	evt, err := payments.ParseEvent(payload)
	if err != nil {
		s.Metrics.webhook("unknown", "invalid_payload")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("webhook.event_id", evt.ID),
		attribute.String("webhook.type", evt.Type),
	)
	res := &WebhookResult{EventID: evt.ID, Type: evt.Type}

	claimed := false
	if s.Dedupe != nil && evt.ID != "" {
		first, err := s.Dedupe.Claim(ctx, evt.ID, evt.Type)
		switch {
		case err != nil:
			// Status writes are idempotent, so a dedupe outage only costs a
			// repeated write.
			log.Warn().Str("component", "payments").Err(err).Str("event_id", evt.ID).Msg("webhook dedupe unavailable")
		case !first:
			res.Duplicate = true
			s.Metrics.webhook(evt.Type, "duplicate")
			return res, nil
		default:
			claimed = true
		}
	}

	var tx *domain.Transaction
	switch evt.Type {
	case payments.EventIntentSucceeded:
		tx, err = s.reconcile(ctx, evt.Data.Object.ID, domain.TxSucceeded, domain.PaymentPaid)
	case payments.EventIntentFailed:
		tx, err = s.reconcile(ctx, evt.Data.Object.ID, domain.TxFailed, "")
	default:
		s.Metrics.webhook(evt.Type, "ignored")
		return res, nil
	}
	if err != nil {
		if claimed {
			if rerr := s.Dedupe.Release(ctx, evt.ID); rerr != nil {
				log.Warn().Str("component", "payments").Err(rerr).Str("event_id", evt.ID).Msg("release webhook claim")
			}
		}
		s.Metrics.webhook(evt.Type, "error")
		return nil, fmt.Errorf("apply %s: %w", evt.Type, err)
	}
	if tx == nil {
		s.Metrics.webhook(evt.Type, "unknown_intent")
		return res, nil
	}

	res.Applied = true
	s.Metrics.webhook(evt.Type, "applied")
	if evt.Type == payments.EventIntentSucceeded {
		s.sendReceipt(ctx, tx)
	}
	return res, nil
}

// reconcile updates the transaction matched by providerID and, when
// apptPayment is set, its linked appointment, in one DB transaction. It
// returns nil without error for an unknown providerID.
func (s *PaymentService) reconcile(ctx context.Context, providerID, txStatus, apptPayment string) (*domain.Transaction, error) {
	if providerID == "" {
		return nil, nil
	}
	var found *domain.Transaction
	err := s.DB.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		t, err := repo.GetTransactionByProviderID(ctx, db, domain.ProviderStripe, providerID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil
			}
			return err
		}
		if err := repo.SetTransactionStatus(ctx, db, t.ID, txStatus); err != nil {
			return err
		}
		if apptPayment != "" && t.AppointmentID != nil {
			err := repo.UpdateAppointment(ctx, db, *t.AppointmentID, map[string]any{"payment_status": apptPayment})
			if err != nil && !errors.Is(err, repo.ErrNotFound) {
				return err
			}
		}
		t.Status = txStatus
		found = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (s *PaymentService) sendReceipt(ctx context.Context, tx *domain.Transaction) {
	u, err := repo.GetUser(ctx, s.DB, tx.UserID)
	if err != nil {
		return
	}
	notify.Deliver(ctx, s.Mailer, notify.PaymentReceived(
		notify.Party{Name: u.Name, Email: u.Email}, tx.Amount, tx.Currency,
	))
}

// ListTransactions returns the caller's transactions, newest first.
func (s *PaymentService) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	ctx, span := s.tracer().Start(ctx, "ListTransactions",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	items, err := repo.ListTransactionsByUser(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Transaction{}
	}
	return items, nil
}
