package payments

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/tbourn/go-telehealth-backend/internal/repo"
)

// Deduper remembers processed webhook event ids.
//
// Claim returns true on the first delivery of eventID. Release forgets a
// claimed id so that a delivery whose processing failed can be retried.
type Deduper interface {
	Claim(ctx context.Context, eventID, eventType string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// RedisDeduper claims ids with SET NX and a TTL.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisDeduper returns a Redis-backed deduper. A zero ttl keeps ids for
// three days, matching Stripe's retry window.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &RedisDeduper{client: client, ttl: ttl, prefix: "webhook:stripe:"}
}

// Claim implements Deduper.
func (d *RedisDeduper) Claim(ctx context.Context, eventID, _ string) (bool, error) {
	return d.client.SetNX(ctx, d.prefix+eventID, time.Now().UTC().Format(time.RFC3339), d.ttl).Result()
}

// Release implements Deduper.
func (d *RedisDeduper) Release(ctx context.Context, eventID string) error {
	return d.client.Del(ctx, d.prefix+eventID).Err()
}

// SQLDeduper claims ids by inserting into the webhook_events table.
type SQLDeduper struct {
	DB *gorm.DB
}

// Claim implements Deduper.
func (d SQLDeduper) Claim(ctx context.Context, eventID, eventType string) (bool, error) {
	return repo.RecordWebhookEvent(ctx, d.DB, eventID, eventType)
}

// Release implements Deduper.
func (d SQLDeduper) Release(ctx context.Context, eventID string) error {
	return repo.ForgetWebhookEvent(ctx, d.DB, eventID)
}
