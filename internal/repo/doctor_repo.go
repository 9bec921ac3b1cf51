// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for doctor
// profiles and their ratings.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-telehealth-backend/internal/domain"
)

// CreateDoctorProfile inserts a profile for userID. A second profile for the
// same user maps to ErrDuplicate.
func CreateDoctorProfile(ctx context.Context, db *gorm.DB, p *domain.DoctorProfile) error {
	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt, p.UpdatedAt = now, now
	if err := db.WithContext(ctx).Omit(clause.Associations).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetDoctorProfile loads a profile with its user summary and ratings.
func GetDoctorProfile(ctx context.Context, db *gorm.DB, id string) (*domain.DoctorProfile, error) {
	var p domain.DoctorProfile
	err := db.WithContext(ctx).
		Preload("User").
		Preload("Ratings", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at ASC") }).
		Where("id = ?", id).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetDoctorProfileByUser fetches the profile owned by userID.
func GetDoctorProfileByUser(ctx context.Context, db *gorm.DB, userID string) (*domain.DoctorProfile, error) {
	var p domain.DoctorProfile
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// ListDoctorProfiles returns every profile with its user summary, ordered by
// creation time.
func ListDoctorProfiles(ctx context.Context, db *gorm.DB) ([]domain.DoctorProfile, error) {
	var out []domain.DoctorProfile
	err := db.WithContext(ctx).
		Preload("User").
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// SetDoctorVerified flips the verified flag of a profile.
func SetDoctorVerified(ctx context.Context, db *gorm.DB, id string, verified bool) error {
	res := db.WithContext(ctx).
		Model(&domain.DoctorProfile{}).
		Where("id = ?", id).
		Updates(map[string]any{"verified": verified, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertRating records patientID's score for doctorID, replacing a previous
// rating by the same patient.
func UpsertRating(ctx context.Context, db *gorm.DB, doctorID, patientID string, score int, comment string) (*domain.DoctorRating, error) {
	now := time.Now().UTC()
	r := &domain.DoctorRating{
		ID:        uuid.NewString(),
		DoctorID:  doctorID,
		PatientID: patientID,
		Score:     score,
		Comment:   comment,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "doctor_id"}, {Name: "patient_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "comment", "updated_at"}),
	}).Create(r).Error
	if err != nil {
		return nil, err
	}
	return r, nil
}
