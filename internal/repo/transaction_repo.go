// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for payment
// transactions.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-telehealth-backend/internal/domain"
)

// CreateTransaction inserts a transaction. ID and timestamps are filled in
// when empty.
func CreateTransaction(ctx context.Context, db *gorm.DB, t *domain.Transaction) error {
	now := time.Now().UTC()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt, t.UpdatedAt = now, now
	return db.WithContext(ctx).Create(t).Error
}

// GetTransaction fetches a transaction by id.
func GetTransaction(ctx context.Context, db *gorm.DB, id string) (*domain.Transaction, error) {
	var t domain.Transaction
	if err := db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTransactionByProviderID fetches the transaction correlated with a
// processor intent id.
func GetTransactionByProviderID(ctx context.Context, db *gorm.DB, provider, providerID string) (*domain.Transaction, error) {
	var t domain.Transaction
	err := db.WithContext(ctx).
		Where("provider = ? AND provider_id = ?", provider, providerID).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SetTransactionStatus updates the status of a transaction.
func SetTransactionStatus(ctx context.Context, db *gorm.DB, id, status string) error {
	res := db.WithContext(ctx).
		Model(&domain.Transaction{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTransactionsByUser returns a user's transactions, newest first.
func ListTransactionsByUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.Transaction, error) {
	var out []domain.Transaction
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}
