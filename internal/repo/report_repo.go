// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Report model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-telehealth-backend/internal/domain"
)

// CreateReport inserts report metadata. ID and timestamps are filled in when empty.
func CreateReport(ctx context.Context, db *gorm.DB, r *domain.Report) error {
	now := time.Now().UTC()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.UploadedAt.IsZero() {
		r.UploadedAt = now
	}
	r.CreatedAt, r.UpdatedAt = now, now
	return db.WithContext(ctx).Create(r).Error
}

// GetReport fetches a report by id or returns ErrNotFound.
func GetReport(ctx context.Context, db *gorm.DB, id string) (*domain.Report, error) {
	var r domain.Report
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// ListReportsByPatient returns a patient's reports, newest first.
func ListReportsByPatient(ctx context.Context, db *gorm.DB, patientID string) ([]domain.Report, error) {
	var out []domain.Report
	err := db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

// SetReportAnalysis overwrites the analysis text and stamps analyzed_at in a
// single UPDATE.
func SetReportAnalysis(ctx context.Context, db *gorm.DB, id, text string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Report{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"analysis":    text,
			"analyzed_at": at.UTC(),
			"updated_at":  at.UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
