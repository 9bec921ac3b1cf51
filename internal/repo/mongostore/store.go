// Package mongostore provides a MongoDB-backed chat message store. It is
// selected instead of the relational store when MONGO_URI is configured.
package mongostore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tbourn/go-telehealth-backend/internal/domain"
)

// Collection is the collection holding chat messages.
const Collection = "messages"

// Connect dials uri and pings the primary.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// MessageStore persists chat messages in a Mongo collection.
type MessageStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

// New wraps coll.
func New(coll *mongo.Collection) *MessageStore {
	return &MessageStore{coll: coll, now: func() time.Time { return time.Now().UTC() }}
}

// EnsureIndexes creates the {from,to,createdAt} index used by conversation reads.
func (s *MessageStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "from", Value: 1}, {Key: "to", Value: 1}, {Key: "createdAt", Value: 1}},
		Options: options.Index().SetName("ix_from_to_created"),
	})
	return err
}

// Create inserts a message.
func (s *MessageStore) Create(ctx context.Context, from, to, text string) (*domain.ChatMessage, error) {
	m := &domain.ChatMessage{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Text:      text,
		CreatedAt: s.now(),
	}
	if _, err := s.coll.InsertOne(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func pairFilter(a, b string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"from": a, "to": b},
		bson.M{"from": b, "to": a},
	}}
}

// Conversation returns the messages between a and b ordered by createdAt then id.
func (s *MessageStore) Conversation(ctx context.Context, a, b string) ([]domain.ChatMessage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.coll.Find(ctx, pairFilter(a, b), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []domain.ChatMessage{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats returns the message count between a and b and the newest createdAt.
func (s *MessageStore) Stats(ctx context.Context, a, b string) (int64, *time.Time, error) {
	filter := pairFilter(a, b)
	n, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, nil, err
	}
	if n == 0 {
		return 0, nil, nil
	}
	var last domain.ChatMessage
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if err := s.coll.FindOne(ctx, filter, opts).Decode(&last); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil, nil
		}
		return 0, nil, err
	}
	return n, &last.CreatedAt, nil
}
