// Package services – DoctorService
//
// DoctorService owns the public doctor directory: profile creation by
// doctors, admin verification, patient ratings, and free-text ranking of
// the directory through search.Index.
package services

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-telehealth-backend/internal/domain"
	"github.com/tbourn/go-telehealth-backend/internal/repo"
	"github.com/tbourn/go-telehealth-backend/internal/search"
)

// Words ignored when ranking the directory.
var directoryStopwords = []string{"dr", "doctor", "and", "the", "of", "in", "for"}

// ProfileInput is the doctor profile payload.
type ProfileInput struct {
	Specialization string
	Experience     int
	Fees           float64
	Bio            string
}

// DoctorService implements the doctor directory.
type DoctorService struct {
	DB *gorm.DB
}

func (s *DoctorService) tracer() trace.Tracer {
	return otel.Tracer("services/DoctorService")
}

// List returns all profiles ordered by creation. With a non-blank query the
// profiles are ranked by relevance instead and non-matching ones omitted.
// limit <= 0 means no limit.
func (s *DoctorService) List(ctx context.Context, query string, limit int) ([]domain.DoctorProfile, error) {
	ctx, span := s.tracer().Start(ctx, "List",
		trace.WithAttributes(
			attribute.String("query", query),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	all, err := repo.ListDoctorProfiles(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	if all == nil {
		all = []domain.DoctorProfile{}
	}

	if strings.TrimSpace(query) != "" {
		byID := make(map[string]domain.DoctorProfile, len(all))
		docs := make([]search.Document, 0, len(all))
		for _, p := range all {
			byID[p.ID] = p
			docs = append(docs, search.Document{ID: p.ID, Text: directoryText(p)})
		}
		idx := search.NewIndex(docs, search.WithStopwords(directoryStopwords))
		hits := idx.TopK(query, limit)
		ranked := make([]domain.DoctorProfile, 0, len(hits))
		for _, h := range hits {
			ranked = append(ranked, byID[h.ID])
		}
		span.SetAttributes(attribute.Int("results", len(ranked)))
		return ranked, nil
	}

	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func directoryText(p domain.DoctorProfile) string {
	parts := []string{p.Specialization, p.Bio}
	if p.User != nil {
		parts = append(parts, p.User.Name)
	}
	return strings.Join(parts, " ")
}

// Get returns a profile with its user summary and ratings.
func (s *DoctorService) Get(ctx context.Context, id string) (*domain.DoctorProfile, error) {
	ctx, span := s.tracer().Start(ctx, "Get",
		trace.WithAttributes(attribute.String("doctor.id", id)),
	)
	defer span.End()

	p, err := repo.GetDoctorProfile(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return p, nil
}

// CreateProfile creates the profile of doctor userID.
func (s *DoctorService) CreateProfile(ctx context.Context, userID string, in ProfileInput) (*domain.DoctorProfile, error) {
	ctx, span := s.tracer().Start(ctx, "CreateProfile",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	if in.Experience < 0 || in.Fees < 0 {
		return nil, invalid("experience and fees must not be negative")
	}

	p := &domain.DoctorProfile{
		UserID:         userID,
		Specialization: strings.TrimSpace(in.Specialization),
		Experience:     in.Experience,
		Fees:           in.Fees,
		Bio:            strings.TrimSpace(in.Bio),
	}
	if err := repo.CreateDoctorProfile(ctx, s.DB, p); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrProfileExists
		}
		return nil, err
	}
	return repo.GetDoctorProfile(ctx, s.DB, p.ID)
}

// Verify marks the profile and its user verified in one transaction.
func (s *DoctorService) Verify(ctx context.Context, id string) error {
	ctx, span := s.tracer().Start(ctx, "Verify",
		trace.WithAttributes(attribute.String("doctor.id", id)),
	)
	defer span.End()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p domain.DoctorProfile
		if err := tx.Where("id = ?", id).First(&p).Error; err != nil {
			return err
		}
		if err := repo.SetDoctorVerified(ctx, tx, p.ID, true); err != nil {
			return err
		}
		return repo.SetUserVerified(ctx, tx, p.UserID, true)
	})
	if errors.Is(err, repo.ErrNotFound) {
		return ErrDoctorNotFound
	}
	return err
}

// Rate records patientID's score (1..5) for the doctor profile id and
// returns the refreshed profile.
func (s *DoctorService) Rate(ctx context.Context, patientID, id string, score int, comment string) (*domain.DoctorProfile, error) {
	ctx, span := s.tracer().Start(ctx, "Rate",
		trace.WithAttributes(
			attribute.String("user.id", patientID),
			attribute.String("doctor.id", id),
			attribute.Int("score", score),
		),
	)
	defer span.End()

	if score < 1 || score > 5 {
		return nil, invalid("score must be between 1 and 5")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if _, err := repo.UpsertRating(ctx, s.DB, id, patientID, score, strings.TrimSpace(comment)); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}
