// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for chat messages.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-telehealth-backend/internal/domain"
)

// CreateChatMessage inserts a new message row.
func CreateChatMessage(ctx context.Context, db *gorm.DB, from, to, text string) (*domain.ChatMessage, error) {
	m := &domain.ChatMessage{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// ListConversation returns the messages exchanged between a and b in either
// direction, ordered deterministically (CreatedAt ASC, ID ASC).
func ListConversation(ctx context.Context, db *gorm.DB, a, b string) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	err := db.WithContext(ctx).
		Where("(from_user = ? AND to_user = ?) OR (from_user = ? AND to_user = ?)", a, b, b, a).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// MessageStore adapts the GORM message functions to the service's store
// interface.
type MessageStore struct {
	DB *gorm.DB
}

// NewMessageStore returns a GORM-backed message store.
func NewMessageStore(db *gorm.DB) *MessageStore { return &MessageStore{DB: db} }

// Create persists a message.
func (s *MessageStore) Create(ctx context.Context, from, to, text string) (*domain.ChatMessage, error) {
	return CreateChatMessage(ctx, s.DB, from, to, text)
}

// Conversation lists messages between a and b.
func (s *MessageStore) Conversation(ctx context.Context, a, b string) ([]domain.ChatMessage, error) {
	return ListConversation(ctx, s.DB, a, b)
}

// Stats returns count and latest timestamp of the conversation.
func (s *MessageStore) Stats(ctx context.Context, a, b string) (int64, *time.Time, error) {
	return ConversationStats(ctx, s.DB, a, b)
}
