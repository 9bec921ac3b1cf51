// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-telehealth-backend/internal/domain"
)

// ConversationStats returns aggregate metadata for the messages exchanged
// between a and b: the total number of rows and the greatest CreatedAt.
//
// When there are no messages, the returned count is 0 and latest is nil.
//
// Return values:
//   - count:  total messages in the conversation
//   - latest: pointer to the greatest CreatedAt, or nil if no rows
//   - err:    database error, if any
func ConversationStats(ctx context.Context, db *gorm.DB, a, b string) (count int64, latest *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.ChatMessage{}).
		Where("(from_user = ? AND to_user = ?) OR (from_user = ? AND to_user = ?)", a, b, b, a)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}

// ReportsStats returns the number of reports owned by patientID and the
// greatest UpdatedAt among them, or a nil timestamp when there are none.
func ReportsStats(ctx context.Context, db *gorm.DB, patientID string) (count int64, latest *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Report{}).Where("patient_id = ?", patientID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
