// Package services – AppointmentService
//
// AppointmentService books, reschedules, and cancels appointments between a
// patient and a doctor, and tracks their payment status. Participants are
// notified by email on a best-effort basis.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-telehealth-backend/internal/domain"
	"github.com/tbourn/go-telehealth-backend/internal/notify"
	"github.com/tbourn/go-telehealth-backend/internal/repo"
)

// Accepted appointment date layouts, most specific first.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseDate parses an appointment date. Values without a zone are UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, invalid("invalid date")
}

// CreateAppointmentInput is the booking payload.
type CreateAppointmentInput struct {
	DoctorID string
	Date     string
	Reason   string
}

// AppointmentService implements appointment scheduling.
type AppointmentService struct {
	DB     *gorm.DB
	Mailer notify.EmailSender
}

func (s *AppointmentService) tracer() trace.Tracer {
	return otel.Tracer("services/AppointmentService")
}

// Create books an appointment for patientID with the doctor user in.DoctorID.
func (s *AppointmentService) Create(ctx context.Context, patientID string, in CreateAppointmentInput) (*domain.Appointment, error) {
	ctx, span := s.tracer().Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("user.id", patientID),
			attribute.String("doctor.id", in.DoctorID),
		),
	)
	defer span.End()

	doctorID := strings.TrimSpace(in.DoctorID)
	if doctorID == "" || strings.TrimSpace(in.Date) == "" {
		return nil, invalid("doctor and date are required")
	}
	date, err := ParseDate(in.Date)
	if err != nil {
		return nil, err
	}
	if doctorID == patientID {
		return nil, invalid("cannot book an appointment with yourself")
	}

	doctor, err := repo.GetUser(ctx, s.DB, doctorID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, invalid("doctor not found")
		}
		return nil, err
	}
	if doctor.Role != domain.RoleDoctor {
		return nil, invalid("doctor not found")
	}

	a, err := repo.CreateAppointment(ctx, s.DB, patientID, doctorID, date, strings.TrimSpace(in.Reason))
	if err != nil {
		return nil, err
	}

	if patient, perr := repo.GetUser(ctx, s.DB, patientID); perr == nil {
		notify.Deliver(ctx, s.Mailer, notify.AppointmentRequested(
			notify.Party{Name: doctor.Name, Email: doctor.Email},
			notify.Party{Name: patient.Name, Email: patient.Email},
			a.Date, a.Reason,
		))
	}
	return repo.GetAppointment(ctx, s.DB, a.ID)
}

// ListMine returns appointments where userID is the patient or the doctor,
// ordered by date ascending.
func (s *AppointmentService) ListMine(ctx context.Context, userID string) ([]domain.Appointment, error) {
	ctx, span := s.tracer().Start(ctx, "ListMine",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	items, err := repo.ListAppointmentsForUser(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Appointment{}
	}
	return items, nil
}

// Reschedule moves an appointment and resets its status to requested,
// whatever the previous status was. Only the patient or the doctor may
// reschedule.
func (s *AppointmentService) Reschedule(ctx context.Context, userID, id, date string) (*domain.Appointment, error) {
	ctx, span := s.tracer().Start(ctx, "Reschedule",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("appointment.id", id),
		),
	)
	defer span.End()

	if strings.TrimSpace(date) == "" {
		return nil, invalid("date is required")
	}
	when, err := ParseDate(date)
	if err != nil {
		return nil, err
	}

	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.PatientID != userID && a.DoctorID != userID {
		return nil, ErrForbidden
	}

	err = repo.UpdateAppointment(ctx, s.DB, id, map[string]any{
		"date":   when,
		"status": domain.AppointmentRequested,
	})
	if err != nil {
		return nil, err
	}
	return repo.GetAppointment(ctx, s.DB, id)
}

// Cancel marks an appointment cancelled. Only the patient or an admin may
// cancel. Cancelling an already cancelled appointment succeeds without
// changes.
func (s *AppointmentService) Cancel(ctx context.Context, userID, role, id string) error {
	ctx, span := s.tracer().Start(ctx, "Cancel",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("appointment.id", id),
		),
	)
	defer span.End()

	a, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if a.PatientID != userID && role != domain.RoleAdmin {
		return ErrForbidden
	}
	if a.Status == domain.AppointmentCancelled {
		return nil
	}
	if err := repo.UpdateAppointment(ctx, s.DB, id, map[string]any{"status": domain.AppointmentCancelled}); err != nil {
		return err
	}

	// The doctor hears about it; the patient either cancelled or was told by
	// an admin.
	if a.Doctor != nil && a.Patient != nil {
		by := notify.Party{Name: a.Patient.Name, Email: a.Patient.Email}
		if userID != a.PatientID {
			by = notify.Party{Name: "an administrator"}
		}
		notify.Deliver(ctx, s.Mailer, notify.AppointmentCancelled(
			notify.Party{Name: a.Doctor.Name, Email: a.Doctor.Email}, by, a.Date,
		))
	}
	return nil
}

// UpdatePayment sets the payment status. Participants and admins only.
func (s *AppointmentService) UpdatePayment(ctx context.Context, userID, role, id, status string) (*domain.Appointment, error) {
	ctx, span := s.tracer().Start(ctx, "UpdatePayment",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("appointment.id", id),
			attribute.String("payment.status", status),
		),
	)
	defer span.End()

	status = strings.ToLower(strings.TrimSpace(status))
	switch status {
	case domain.PaymentUnpaid, domain.PaymentPaid, domain.PaymentRefunded, domain.PaymentFailed:
	default:
		return nil, invalid("status must be one of: unpaid, paid, refunded, failed")
	}

	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.PatientID != userID && a.DoctorID != userID && role != domain.RoleAdmin {
		return nil, ErrForbidden
	}
	if err := repo.UpdateAppointment(ctx, s.DB, id, map[string]any{"payment_status": status}); err != nil {
		return nil, err
	}
	return repo.GetAppointment(ctx, s.DB, id)
}

func (s *AppointmentService) load(ctx context.Context, id string) (*domain.Appointment, error) {
	a, err := repo.GetAppointment(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return a, nil
}
