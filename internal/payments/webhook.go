package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Webhook event types handled by the backend.
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
)

var (
	// ErrInvalidSignature is returned for a missing, malformed, stale or
	// mismatching Stripe-Signature header.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrInvalidPayload is returned when the webhook body is not an event.
	ErrInvalidPayload = errors.New("invalid webhook payload")
)

// Event is a Stripe webhook event envelope.
type Event struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object EventObject `json:"object"`
	} `json:"data"`
}

// EventObject is the payment_intent object carried by intent events.
type EventObject struct {
	ID       string            `json:"id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
}

// ParseEvent decodes a webhook body.
func ParseEvent(payload []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, ErrInvalidPayload
	}
	if evt.Type == "" {
		return nil, ErrInvalidPayload
	}
	return &evt, nil
}

// VerifySignature checks a Stripe-Signature header of the form
// t=<unix>,v1=<hex>[,v1=<hex>...] against HMAC-SHA256(secret, "<t>.<payload>").
// The timestamp must be within tolerance of now.
func VerifySignature(secret string, payload []byte, header string, tolerance time.Duration, now time.Time) error {
	if header == "" {
		return ErrInvalidSignature
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return ErrInvalidSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(ts, 0))
		if age < 0 {
			age = -age
		}
		if age > tolerance {
			return ErrInvalidSignature
		}
	}

	expected := Sign(secret, timestamp, payload)
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// Sign returns the hex v1 signature for timestamp and payload.
func Sign(secret, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
