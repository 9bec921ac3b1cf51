// Package services – AnalysisService
//
// AnalysisService runs the AI pass over a stored report: fetch the file,
// resolve its type, rasterize page 1 of PDFs, encode the image inline, and
// ask the vision model for a summary under an explicit retry policy. Only a
// successful, non-empty answer is written back to the report.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-telehealth-backend/internal/analysis"
	"github.com/tbourn/go-telehealth-backend/internal/repo"
	"github.com/tbourn/go-telehealth-backend/internal/retry"
)

// ReportFetcher loads report bytes; satisfied by *analysis.Fetcher.
type ReportFetcher interface {
	Fetch(ctx context.Context, rawURL string) (analysis.Download, error)
}

// PageRasterizer renders the first page of a PDF; satisfied by
// *analysis.Rasterizer.
type PageRasterizer interface {
	FirstPage(ctx context.Context, pdf []byte) ([]byte, error)
}

var errNoAnalysisText = errors.New("model returned no analysis text")

// DefaultAnalysisPolicy is three attempts, a fixed 1.5s pause, and retries
// only on overload.
func DefaultAnalysisPolicy() retry.Policy {
	return retry.Fixed(3, 1500*time.Millisecond, retry.IsOverloaded)
}

// AnalysisService implements report analysis.
type AnalysisService struct {
	DB         *gorm.DB
	Fetcher    ReportFetcher
	Rasterizer PageRasterizer
	Model      analysis.VisionModel
	Policy     retry.Policy
	Prompt     string
	Metrics    *Metrics

	now func() time.Time
}

// Analyze runs the pipeline for reportID on behalf of userID and returns the
// stored analysis text.
//
// Errors: ErrReportNotFound, ErrForbidden, analysis.ErrFetch,
// analysis.ErrConversion, analysis.ErrEncoding, ErrModelBusy, or a
// *ModelError (matches ErrAnalysisFailed).
func (s *AnalysisService) Analyze(ctx context.Context, userID, reportID string) (string, error) {
	ctx, span := otel.Tracer("services/AnalysisService").Start(ctx, "Analyze",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("report.id", reportID),
		),
	)
	defer span.End()

	r, err := repo.GetReport(ctx, s.DB, reportID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrReportNotFound
		}
		return "", err
	}
	if r.PatientID != userID {
		return "", ErrForbidden
	}

	dl, err := s.Fetcher.Fetch(ctx, r.URL)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	mimeType := analysis.ResolveMIME(dl.ContentType, dl.Body, r.FileType, r.URL)
	body := dl.Body
	if mimeType == analysis.MIMEPDF {
		if s.Rasterizer == nil {
			return "", fmt.Errorf("%w: no rasterizer configured", analysis.ErrConversion)
		}
		body, err = s.Rasterizer.FirstPage(ctx, dl.Body)
		if err != nil {
			span.RecordError(err)
			return "", err
		}
		mimeType = analysis.MIMEPNG
	}
	span.SetAttributes(attribute.String("report.mime", mimeType))

	img, err := analysis.EncodeInline(mimeType, body)
	if err != nil {
		return "", err
	}

	text, err := s.callModel(ctx, reportID, img)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	now := time.Now
	if s.now != nil {
		now = s.now
	}
	if err := repo.SetReportAnalysis(ctx, s.DB, reportID, text, now()); err != nil {
		return "", err
	}
	return text, nil
}

// callModel invokes the model under the retry policy and classifies the
// final failure.
func (s *AnalysisService) callModel(ctx context.Context, reportID string, img analysis.InlineImage) (string, error) {
	if s.Model == nil {
		return "", &ModelError{Err: errors.New("analysis model is not configured")}
	}
	prompt := s.Prompt
	if prompt == "" {
		prompt = analysis.DefaultPrompt
	}

	var text string
	attempts, err := retry.Do(ctx, s.Policy, func(ctx context.Context, attempt int) error {
		start := time.Now()
		out, err := s.Model.Analyze(ctx, img, prompt)
		switch {
		case err == nil:
			s.Metrics.modelCall("ok", time.Since(start))
		case retry.IsOverloaded(err):
			s.Metrics.modelCall("overloaded", time.Since(start))
			log.Warn().Str("component", "analysis").
				Str("report_id", reportID).
				Int("attempt", attempt).
				Err(err).
				Msg("model overloaded")
		default:
			s.Metrics.modelCall("error", time.Since(start))
		}
		if err != nil {
			return err
		}
		text = out
		return nil
	})
	if err != nil {
		if retry.IsOverloaded(err) {
			return "", ErrModelBusy
		}
		log.Error().Str("component", "analysis").
			Str("report_id", reportID).
			Int("attempts", attempts).
			Err(err).
			Msg("analysis failed")
		return "", &ModelError{Err: err}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", &ModelError{Err: errNoAnalysisText}
	}
	return text, nil
}
