// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Appointment model.
//
// Status transitions are not validated here; services own those rules.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-telehealth-backend/internal/domain"
)

// CreateAppointment inserts a requested, unpaid appointment.
func CreateAppointment(ctx context.Context, db *gorm.DB, patientID, doctorID string, date time.Time, reason string) (*domain.Appointment, error) {
	now := time.Now().UTC()
	a := &domain.Appointment{
		ID:            uuid.NewString(),
		PatientID:     patientID,
		DoctorID:      doctorID,
		Date:          date.UTC(),
		Status:        domain.AppointmentRequested,
		PaymentStatus: domain.PaymentUnpaid,
		Reason:        reason,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := db.WithContext(ctx).Omit(clause.Associations).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

// GetAppointment fetches an appointment with patient and doctor summaries.
func GetAppointment(ctx context.Context, db *gorm.DB, id string) (*domain.Appointment, error) {
	var a domain.Appointment
	err := db.WithContext(ctx).
		Preload("Patient").
		Preload("Doctor").
		Where("id = ?", id).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAppointmentsForUser returns appointments where userID is either the
// patient or the doctor, ordered by date ascending.
func ListAppointmentsForUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.Appointment, error) {
	var out []domain.Appointment
	err := db.WithContext(ctx).
		Preload("Patient").
		Preload("Doctor").
		Where("patient_id = ? OR doctor_id = ?", userID, userID).
		Order("date ASC, id ASC").
		Find(&out).Error
	return out, err
}

// UpdateAppointment applies the given column updates. It returns ErrNotFound
// when no row matches id.
func UpdateAppointment(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	fields["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.Appointment{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
