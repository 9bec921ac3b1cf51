// Payment HTTP handlers.
//
// create-intent honors Idempotency-Key: a replay returns the original
// client secret with Idempotency-Replayed: true. The webhook endpoint is
// unauthenticated; it trusts the processor signature instead.
package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-telehealth-backend/internal/http/middleware"
	"github.com/tbourn/go-telehealth-backend/internal/services"
)

// maxWebhookBytes caps webhook bodies; processor events are small.
const maxWebhookBytes = 256 << 10

// CreateIntentRequest creates a payment intent.
type CreateIntentRequest struct {
	// Amount in major currency units.
	Amount        float64 `json:"amount"        example:"30"`
	AppointmentID string  `json:"appointmentId,omitempty" example:"0b6f0a9a-6c1b-4a7e-9d55-3a8f2e2a1c11"`
}

// WebhookAck acknowledges a processor event.
type WebhookAck struct {
	Received  bool `json:"received"            example:"true"`
	Duplicate bool `json:"duplicate,omitempty" example:"false"`
}

// CreateIntent godoc
// @ID          createPaymentIntent
// @Summary     Create a payment intent
// @Description Creates a processor intent and a pending transaction. Send Idempotency-Key to make retries safe.
// @Tags        Payments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string                        false  "Client idempotency key"
// @Param       body             body    handlers.CreateIntentRequest  true   "Intent"
// @Success     200  {object}  services.IntentResult
// @Header      200  {string}  Idempotency-Replayed  "true when served from a previous request"
// @Failure     400  {object}  handlers.ErrorResponse  "Missing amount or unknown appointment"
// @Failure     403  {object}  handlers.ErrorResponse  "Not the appointment's patient"
// @Failure     500  {object}  handlers.ErrorResponse  "Processor failure"
// @Failure     503  {object}  handlers.ErrorResponse  "Payments not configured"
// @Router      /payments/create-intent [post]
func (h *Handlers) CreateIntent(c *gin.Context) {
	var req CreateIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	key, _ := middleware.GetIdempotencyKey(c)

	res, err := h.payments.CreateIntent(c.Request.Context(), userID(c), services.CreateIntentInput{
		Amount:         req.Amount,
		AppointmentID:  req.AppointmentID,
		IdempotencyKey: key,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	if res.Replayed {
		c.Header(middleware.HeaderIdempotencyReplayed, "true")
	}
	ok(c, http.StatusOK, res)
}

// PaymentWebhook godoc
// @ID          paymentWebhook
// @Summary     Processor webhook
// @Description Verifies Stripe-Signature, de-duplicates by event id and reconciles the transaction and appointment.
// @Tags        Payments
// @Accept      json
// @Produce     json
// @Param       Stripe-Signature  header  string  false  "t=<unix>,v1=<hex hmac>"
// @Success     200  {object}  handlers.WebhookAck
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid signature or payload"
// @Failure     500  {object}  handlers.ErrorResponse  "Reconcile failed; the processor retries"
// @Router      /payments/webhook [post]
func (h *Handlers) PaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes+1))
	if err != nil || len(payload) > maxWebhookBytes {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable webhook body")
		return
	}
	res, err := h.payments.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		failErr(c, err)
		return
	}
	middleware.LoggerFrom(c).Info().
		Str("event_id", res.EventID).
		Str("event_type", res.Type).
		Bool("duplicate", res.Duplicate).
		Bool("applied", res.Applied).
		Msg("webhook handled")
	ok(c, http.StatusOK, WebhookAck{Received: true, Duplicate: res.Duplicate})
}

// ListTransactions godoc
// @ID          listTransactions
// @Summary     List my transactions
// @Tags        Payments
// @Produce     json
// @Security    BearerAuth
// @Success     200  {array}   domain.Transaction
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /payments/transactions [get]
func (h *Handlers) ListTransactions(c *gin.Context) {
	items, err := h.payments.ListTransactions(c.Request.Context(), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}
