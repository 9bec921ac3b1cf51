// Package payments talks to the card processor: it creates payment intents,
// verifies webhook signatures and de-duplicates webhook deliveries.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var stripeTracer = otel.Tracer("payments/stripe")

// ErrNotConfigured is returned when no secret key is set.
var ErrNotConfigured = errors.New("payments: stripe is not configured")

// IntentParams describes a payment intent to create.
type IntentParams struct {
	Amount         float64 // major units, e.g. dollars
	Currency       string
	UserID         string
	AppointmentID  string
	IdempotencyKey string
}

// Intent is the subset of Stripe's PaymentIntent the backend keeps.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// StripeClient creates payment intents through Stripe's REST API.
type StripeClient struct {
	secretKey  string
	baseURL    string
	apiVersion string
	httpClient *http.Client
}

// NewStripeClient returns a client for the given secret key.
func NewStripeClient(secretKey string) *StripeClient {
	return &StripeClient{
		secretKey:  strings.TrimSpace(secretKey),
		baseURL:    "https://api.stripe.com",
		apiVersion: "2024-06-20",
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// WithBaseURL overrides the Stripe API base URL (for testing).
func (s *StripeClient) WithBaseURL(baseURL string) *StripeClient {
	if baseURL != "" {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
	return s
}

// Enabled reports whether a secret key is configured.
func (s *StripeClient) Enabled() bool { return s != nil && s.secretKey != "" }

// ToMinorUnits converts a major-unit amount to cents, rounding half away
// from zero.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// CreateIntent creates a payment intent for p.
func (s *StripeClient) CreateIntent(ctx context.Context, p IntentParams) (*Intent, error) {
	if !s.Enabled() {
		return nil, ErrNotConfigured
	}
	ctx, span := stripeTracer.Start(ctx, "stripe.create_payment_intent")
	defer span.End()

	cents := ToMinorUnits(p.Amount)
	currency := strings.ToLower(strings.TrimSpace(p.Currency))
	if currency == "" {
		currency = "usd"
	}
	span.SetAttributes(
		attribute.Int64("payments.amount_cents", cents),
		attribute.String("payments.currency", currency),
	)

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(cents, 10))
	form.Set("currency", currency)
	form.Set("automatic_payment_methods[enabled]", "true")
	form.Set("metadata[user]", p.UserID)
	if p.AppointmentID != "" {
		form.Set("metadata[appointmentId]", p.AppointmentID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("payments: stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Stripe-Version", s.apiVersion)
	if p.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", p.IdempotencyKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payments: stripe http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("payments: stripe api status %d: %s", resp.StatusCode, readStripeError(resp.Body))
	}

	var intent Intent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return nil, fmt.Errorf("payments: stripe decode: %w", err)
	}
	if intent.ID == "" || intent.ClientSecret == "" {
		return nil, errors.New("payments: stripe response missing intent id or client secret")
	}
	span.SetAttributes(attribute.String("payments.intent_id", intent.ID))
	return &intent, nil
}

// stripeErrorResponse represents a Stripe API error.
type stripeErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func readStripeError(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil {
		return "unknown error"
	}
	var e stripeErrorResponse
	if json.Unmarshal(data, &e) == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return strings.TrimSpace(string(data))
}
