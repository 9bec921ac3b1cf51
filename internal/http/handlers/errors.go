// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP
// responses (via the `fail()` helper in this package), and the translation of
// service errors into those codes. Clients branch on the code; the message is
// for humans.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "model_busy",
//	  "message": "Gemini is currently busy. Please try again."
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-telehealth-backend/internal/analysis"
	"github.com/tbourn/go-telehealth-backend/internal/http/middleware"
	"github.com/tbourn/go-telehealth-backend/internal/payments"
	"github.com/tbourn/go-telehealth-backend/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeValidation       = "validation_failed"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"
	ErrCodeUnavailable      = "service_unavailable"

	// Domain-specific:
	ErrCodeInvalidSignature = "invalid_signature"
	ErrCodeUpstreamFetch    = "upstream_fetch_failed"
	ErrCodeConversion       = "conversion_failed"
	ErrCodeEncoding         = "encoding_failed"
	ErrCodeAnalysisFailed   = "analysis_failed"
	ErrCodeModelBusy        = "model_busy"
)

const msgModelBusy = "Gemini is currently busy. Please try again."

// failErr maps a service error onto the envelope. Unknown errors become 500
// internal_error without leaking their text.
func failErr(c *gin.Context, err error) {
	var ve *services.ValidationError
	var me *services.ModelError

	switch {
	case errors.As(err, &ve):
		fail(c, http.StatusBadRequest, ErrCodeValidation, ve.Message)
	case errors.Is(err, services.ErrInvalidCredentials):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "Invalid credentials")
	case errors.Is(err, services.ErrForbidden):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "Access denied")
	case errors.Is(err, services.ErrSeedDisabled):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "Not allowed in production")
	case errors.Is(err, services.ErrAppointmentNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "Appointment not found")
	case errors.Is(err, services.ErrDoctorNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "Doctor not found")
	case errors.Is(err, services.ErrReportNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "Report not found")
	case errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "User not found")
	case errors.Is(err, payments.ErrInvalidSignature):
		fail(c, http.StatusBadRequest, ErrCodeInvalidSignature, "Webhook signature verification failed")
	case errors.Is(err, payments.ErrInvalidPayload):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid webhook payload")
	case errors.Is(err, services.ErrPaymentsDisabled):
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "Payments are not configured")
	case errors.Is(err, services.ErrModelBusy):
		fail(c, http.StatusServiceUnavailable, ErrCodeModelBusy, msgModelBusy)
	case errors.Is(err, analysis.ErrFetch):
		failDetail(c, http.StatusInternalServerError, ErrCodeUpstreamFetch, "Could not fetch the report file", err.Error())
	case errors.Is(err, analysis.ErrConversion):
		failDetail(c, http.StatusInternalServerError, ErrCodeConversion, "Could not convert the PDF", err.Error())
	case errors.Is(err, analysis.ErrEncoding):
		failDetail(c, http.StatusInternalServerError, ErrCodeEncoding, "Could not encode the report", err.Error())
	case errors.As(err, &me):
		failDetail(c, http.StatusInternalServerError, ErrCodeAnalysisFailed, "AI analysis failed", me.Error())
	default:
		middleware.LoggerFrom(c).Error().Err(err).Msg("unhandled service error")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "Server error")
	}
}
