// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file records processed webhook event ids.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-telehealth-backend/internal/domain"
)

// RecordWebhookEvent stores eventID and reports whether this is its first
// delivery. A repeat delivery returns (false, nil).
func RecordWebhookEvent(ctx context.Context, db *gorm.DB, eventID, eventType string) (bool, error) {
	ev := &domain.WebhookEvent{ID: eventID, Type: eventType, ReceivedAt: time.Now().UTC()}
	if err := db.WithContext(ctx).Create(ev).Error; err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ForgetWebhookEvent deletes a recorded event id so a failed delivery can be
// retried by the provider.
func ForgetWebhookEvent(ctx context.Context, db *gorm.DB, eventID string) error {
	return db.WithContext(ctx).Where("id = ?", eventID).Delete(&domain.WebhookEvent{}).Error
}
