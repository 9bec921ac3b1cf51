// Package services – ReportService
//
// ReportService validates and stores uploaded medical reports and serves
// them back to their owners. All validation happens before anything is
// written to storage.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-telehealth-backend/internal/domain"
	"github.com/tbourn/go-telehealth-backend/internal/repo"
	"github.com/tbourn/go-telehealth-backend/internal/storage"
)

// DefaultMaxUploadBytes caps a report upload when MaxBytes is unset.
const DefaultMaxUploadBytes = 10 << 20

var allowedReportExt = map[string]struct{}{
	".pdf": {}, ".jpg": {}, ".jpeg": {}, ".png": {},
}

// UploadInput describes a multipart file. Open is only called after the
// metadata checks pass.
type UploadInput struct {
	FileName    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// UploadResult is a stored report plus the backend that took it.
type UploadResult struct {
	Report *domain.Report
	Method string
}

// ReportService implements report upload and retrieval.
type ReportService struct {
	DB       *gorm.DB
	Store    storage.Store
	MaxBytes int64
	Metrics  *Metrics
}

func (s *ReportService) tracer() trace.Tracer {
	return otel.Tracer("services/ReportService")
}

func (s *ReportService) maxBytes() int64 {
	if s.MaxBytes > 0 {
		return s.MaxBytes
	}
	return DefaultMaxUploadBytes
}

// Upload validates in, stores the file, and records the report.
func (s *ReportService) Upload(ctx context.Context, patientID string, in UploadInput) (*UploadResult, error) {
	ctx, span := s.tracer().Start(ctx, "Upload",
		trace.WithAttributes(
			attribute.String("user.id", patientID),
			attribute.Int64("file.size", in.Size),
		),
	)
	defer span.End()

	if in.Open == nil || in.Size <= 0 {
		return nil, invalid("No file uploaded")
	}
	limit := s.maxBytes()
	if in.Size > limit {
		return nil, invalid(fmt.Sprintf("File too large (max %d MB)", limit>>20))
	}
	name := filepath.Base(strings.TrimSpace(in.FileName))
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := allowedReportExt[ext]; !ok {
		return nil, invalid("Only PDF, JPG, JPEG or PNG files are allowed")
	}
	declared := baseMIME(in.ContentType)
	if !isReportMIME(declared) {
		return nil, invalid("File must be an image or a PDF")
	}

	body, err := readUpload(in.Open, limit)
	if err != nil {
		return nil, err
	}
	sniffed := mimetype.Detect(body)
	if !isReportMIME(baseMIME(sniffed.String())) {
		return nil, invalid("File content is not an image or a PDF")
	}

	obj, err := s.Store.Put(ctx, storage.PutInput{
		Ext:         ext,
		ContentType: declared,
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	s.Metrics.upload(obj.Method)
	span.SetAttributes(attribute.String("storage.method", obj.Method))

	r := &domain.Report{
		PatientID:  patientID,
		FileName:   name,
		URL:        obj.URL,
		FileType:   declared,
		Size:       int64(len(body)),
		Storage:    obj.Method,
		StorageKey: obj.Key,
		UploadedAt: time.Now().UTC(),
	}
	if err := repo.CreateReport(ctx, s.DB, r); err != nil {
		return nil, err
	}
	return &UploadResult{Report: r, Method: obj.Method}, nil
}

func readUpload(open func() (io.ReadCloser, error), limit int64) ([]byte, error) {
	rc, err := open()
	if err != nil {
		return nil, invalid("No file uploaded")
	}
	defer rc.Close()
	body, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(body) == 0 {
		return nil, invalid("No file uploaded")
	}
	if int64(len(body)) > limit {
		return nil, invalid(fmt.Sprintf("File too large (max %d MB)", limit>>20))
	}
	return body, nil
}

func baseMIME(ct string) string {
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return strings.ToLower(mt)
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

func isReportMIME(mt string) bool {
	return mt == "application/pdf" || strings.HasPrefix(mt, "image/")
}

// ListMine returns the caller's reports, newest first.
func (s *ReportService) ListMine(ctx context.Context, patientID string) ([]domain.Report, error) {
	ctx, span := s.tracer().Start(ctx, "ListMine",
		trace.WithAttributes(attribute.String("user.id", patientID)),
	)
	defer span.End()

	items, err := repo.ListReportsByPatient(ctx, s.DB, patientID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Report{}
	}
	return items, nil
}

// Stats returns the count and latest update of the caller's reports, for
// conditional responses.
func (s *ReportService) Stats(ctx context.Context, patientID string) (int64, *time.Time, error) {
	return repo.ReportsStats(ctx, s.DB, patientID)
}

// Get returns a report owned by userID.
func (s *ReportService) Get(ctx context.Context, userID, id string) (*domain.Report, error) {
	ctx, span := s.tracer().Start(ctx, "Get",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("report.id", id),
		),
	)
	defer span.End()

	r, err := repo.GetReport(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	if r.PatientID != userID {
		return nil, ErrForbidden
	}
	return r, nil
}
