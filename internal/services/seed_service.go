// Package services – SeedService
//
// SeedService creates a small, fixed data set for local development: a
// patient, a doctor with a profile, one appointment and one report. Every
// step is find-or-create, so seeding twice changes nothing.
package services

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"github.com/tbourn/go-telehealth-backend/internal/auth"
	"github.com/tbourn/go-telehealth-backend/internal/domain"
	"github.com/tbourn/go-telehealth-backend/internal/repo"
)

// Seed account credentials.
const (
	SeedPatientEmail = "patient@example.com"
	SeedDoctorEmail  = "doctor@example.com"
	SeedPassword     = "password123"
)

// SeedService implements the development seed.
type SeedService struct {
	DB         *gorm.DB
	Tokens     TokenIssuer
	BcryptCost int
	Production bool
}

// Seed creates missing seed data and returns a token for the seed patient.
func (s *SeedService) Seed(ctx context.Context) (*AuthResult, error) {
	ctx, span := otel.Tracer("services/SeedService").Start(ctx, "Seed")
	defer span.End()

	if s.Production {
		return nil, ErrSeedDisabled
	}

	var patient *domain.User
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		patient, err = s.findOrCreateUser(ctx, tx, "Test Patient", SeedPatientEmail, domain.RolePatient)
		if err != nil {
			return err
		}
		doc, err := s.findOrCreateUser(ctx, tx, "Dr. Alice", SeedDoctorEmail, domain.RoleDoctor)
		if err != nil {
			return err
		}

		if _, err := repo.GetDoctorProfileByUser(ctx, tx, doc.ID); errors.Is(err, repo.ErrNotFound) {
			p := &domain.DoctorProfile{
				UserID:         doc.ID,
				Specialization: "General Medicine",
				Experience:     5,
				Fees:           30,
				Bio:            "Seeded doctor",
			}
			if err := repo.CreateDoctorProfile(ctx, tx, p); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		var n int64
		if err := tx.Model(&domain.Appointment{}).Where("patient_id = ?", patient.ID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			when := time.Now().UTC().Add(24 * time.Hour)
			if _, err := repo.CreateAppointment(ctx, tx, patient.ID, doc.ID, when, ""); err != nil {
				return err
			}
		}

		if err := tx.Model(&domain.Report{}).Where("patient_id = ?", patient.ID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			r := &domain.Report{
				PatientID: patient.ID,
				FileName:  "seed-report.pdf",
				URL:       "https://example.com/seed-report.pdf",
				FileType:  "application/pdf",
				Storage:   "external",
			}
			if err := repo.CreateReport(ctx, tx, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	tok, err := s.Tokens.Issue(patient.ID, patient.Role)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: tok, User: patient}, nil
}

func (s *SeedService) findOrCreateUser(ctx context.Context, db *gorm.DB, name, email, role string) (*domain.User, error) {
	u, err := repo.GetUserByEmail(ctx, db, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	hash, err := auth.HashPassword(SeedPassword, s.BcryptCost)
	if err != nil {
		return nil, err
	}
	return repo.CreateUser(ctx, db, name, email, hash, role)
}
