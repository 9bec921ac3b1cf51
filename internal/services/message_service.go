// Package services – MessageService
//
// MessageService persists chat messages between two users and relays each
// stored message through the realtime hub. Storage is pluggable: the GORM
// store by default, or the Mongo store when a document database is
// configured.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include the participant identifiers.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-telehealth-backend/internal/domain"
	"github.com/tbourn/go-telehealth-backend/internal/realtime"
	"github.com/tbourn/go-telehealth-backend/internal/repo"
)

// DefaultMaxMessageRunes caps a chat message when MaxRunes is unset.
const DefaultMaxMessageRunes = 4000

// MessageStore persists chat messages. Implemented by *repo.MessageStore
// and *mongostore.MessageStore.
type MessageStore interface {
	Create(ctx context.Context, from, to, text string) (*domain.ChatMessage, error)
	Conversation(ctx context.Context, a, b string) ([]domain.ChatMessage, error)
	Stats(ctx context.Context, a, b string) (int64, *time.Time, error)
}

// Publisher fans envelopes out to subscribers; satisfied by *realtime.Hub.
type Publisher interface {
	Publish(env realtime.Envelope, participants ...string) int
}

// MessageService implements messaging.
type MessageService struct {
	Store    MessageStore
	Hub      Publisher
	Users    *gorm.DB // optional: when set, recipients must exist
	MaxRunes int
}

func (s *MessageService) tracer() trace.Tracer {
	return otel.Tracer("services/MessageService")
}

// Send validates, persists, and publishes a message from -> to.
func (s *MessageService) Send(ctx context.Context, from, to, text string) (*domain.ChatMessage, error) {
	ctx, span := s.tracer().Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("message.from", from),
			attribute.String("message.to", to),
		),
	)
	defer span.End()

	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	text = strings.TrimSpace(text)
	if from == "" || to == "" {
		return nil, invalid("sender and recipient are required")
	}
	if text == "" {
		return nil, ErrEmptyMessage
	}
	limit := s.MaxRunes
	if limit <= 0 {
		limit = DefaultMaxMessageRunes
	}
	if utf8.RuneCountInString(text) > limit {
		return nil, ErrTooLong
	}
	if s.Users != nil {
		if _, err := repo.GetUser(ctx, s.Users, to); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, invalid("recipient not found")
			}
			return nil, err
		}
	}

	msg, err := s.Store.Create(ctx, from, to, text)
	if err != nil {
		return nil, err
	}
	if s.Hub != nil {
		n := s.Hub.Publish(realtime.Envelope{Event: realtime.EventChatMessage, Data: msg}, from, to)
		span.SetAttributes(attribute.Int("realtime.delivered", n))
	}
	return msg, nil
}

// Conversation returns every message between me and other, oldest first.
func (s *MessageService) Conversation(ctx context.Context, me, other string) ([]domain.ChatMessage, error) {
	ctx, span := s.tracer().Start(ctx, "Conversation",
		trace.WithAttributes(
			attribute.String("user.id", me),
			attribute.String("peer.id", other),
		),
	)
	defer span.End()

	items, err := s.Store.Conversation(ctx, me, other)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.ChatMessage{}
	}
	return items, nil
}

// ETag returns a weak validator for the conversation between me and other.
// It changes whenever a message is added in either direction.
func (s *MessageService) ETag(ctx context.Context, me, other string) (string, error) {
	count, latest, err := s.Store.Stats(ctx, me, other)
	if err != nil {
		return "", err
	}
	var ts int64
	if latest != nil {
		ts = latest.UnixNano()
	}
	a, b := me, other
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf(`W/"conv:%s:%s:%d:%d"`, a, b, count, ts), nil
}
