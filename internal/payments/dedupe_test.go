package payments

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	sqlite "github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-telehealth-backend/internal/domain"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestRedisDeduper(t *testing.T) {
	client, mr := setupTestRedis(t)
	d := NewRedisDeduper(client, time.Hour)
	ctx := context.Background()

	first, err := d.Claim(ctx, "evt_1", EventIntentSucceeded)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := d.Claim(ctx, "evt_1", EventIntentSucceeded)
	require.NoError(t, err)
	assert.False(t, again)

	assert.True(t, mr.Exists("webhook:stripe:evt_1"))
	assert.Equal(t, time.Hour, mr.TTL("webhook:stripe:evt_1"))

	require.NoError(t, d.Release(ctx, "evt_1"))
	first, err = d.Claim(ctx, "evt_1", EventIntentSucceeded)
	require.NoError(t, err)
	assert.True(t, first)

	// expiry frees the id
	mr.FastForward(2 * time.Hour)
	first, err = d.Claim(ctx, "evt_1", EventIntentSucceeded)
	require.NoError(t, err)
	assert.True(t, first)
}

func TestRedisDeduper_DefaultTTL(t *testing.T) {
	client, _ := setupTestRedis(t)
	assert.Equal(t, 72*time.Hour, NewRedisDeduper(client, 0).ttl)
}

func TestRedisDeduper_ServerDown(t *testing.T) {
	client, mr := setupTestRedis(t)
	mr.Close()
	_, err := NewRedisDeduper(client, time.Minute).Claim(context.Background(), "evt", "x")
	assert.Error(t, err)
}

func TestSQLDeduper(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.WebhookEvent{}))

	d := SQLDeduper{DB: db}
	ctx := context.Background()

	first, err := d.Claim(ctx, "evt_9", EventIntentFailed)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := d.Claim(ctx, "evt_9", EventIntentFailed)
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, d.Release(ctx, "evt_9"))
	first, err = d.Claim(ctx, "evt_9", EventIntentFailed)
	require.NoError(t, err)
	assert.True(t, first)
}
