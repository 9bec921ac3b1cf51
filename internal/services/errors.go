// Package services defines the business logic for accounts, appointments,
// the doctor directory, reports and their analysis, payments, messaging, and
// development seeding.
//
// This file centralizes service-level error values so that they can be
// consistently returned by service methods and checked by callers with
// errors.Is. Translation into HTTP status codes is performed by the handler
// layer.
package services

import (
	"errors"
)

// ErrValidation matches every *ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError is a client input error whose message is safe to show.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(msg string) error { return &ValidationError{Message: msg} }

// Account errors.
var (
	// ErrInvalidCredentials is returned by Login for an unknown email or a
	// wrong password; the two cases are indistinguishable on purpose.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailTaken is returned by Register when the email is registered.
	ErrEmailTaken = &ValidationError{Message: "Email already registered"}

	ErrUserNotFound = errors.New("user not found")
)

// Authorization errors.
var (
	// ErrForbidden indicates the caller is authenticated but not allowed to
	// act on the resource.
	ErrForbidden = errors.New("forbidden")

	// ErrSeedDisabled is returned by SeedService in production.
	ErrSeedDisabled = errors.New("seeding is disabled in production")
)

// Resource errors.
var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrReportNotFound      = errors.New("report not found")

	// ErrProfileExists is returned when a doctor already has a profile.
	ErrProfileExists = &ValidationError{Message: "Profile already exists"}
)

// Analysis errors.
var (
	// ErrModelBusy is returned when the model stayed overloaded for every
	// attempt.
	ErrModelBusy = errors.New("model busy")

	// ErrAnalysisFailed matches every *ModelError.
	ErrAnalysisFailed = errors.New("analysis failed")
)

// ModelError wraps a non-overload failure of the analysis model. Its text is
// surfaced to clients as the error detail.
type ModelError struct {
	Err error
}

func (e *ModelError) Error() string { return e.Err.Error() }
func (e *ModelError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrAnalysisFailed) match any ModelError.
func (e *ModelError) Is(target error) bool { return target == ErrAnalysisFailed }

// Payment errors.
var (
	ErrMissingAmount = &ValidationError{Message: "Missing amount"}

	// ErrPaymentsDisabled is returned when no processor is configured.
	ErrPaymentsDisabled = errors.New("payments are not configured")
)

// Messaging errors.
var (
	ErrEmptyMessage = &ValidationError{Message: "text is required"}
	ErrTooLong      = &ValidationError{Message: "message too long"}
)
