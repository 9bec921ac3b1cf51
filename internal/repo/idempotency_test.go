package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-telehealth-backend/internal/domain"
)

const scopeIntent = "payments.create-intent"

func newIdemDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	// Use a unique in-memory database per test to avoid schema leakage across tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestGetIdempotency_BlankKey_ReturnsNotFound(t *testing.T) {
	db := newIdemDB(t, &domain.Idempotency{})
	rec, err := GetIdempotency(context.Background(), db, "u1", scopeIntent, "   ", time.Now().UTC())
	if rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for blank key, got (%v, %v)", rec, err)
	}
}

func TestGetIdempotency_ExpiredOrMissing_ReturnsNotFound(t *testing.T) {
	db := newIdemDB(t, &domain.Idempotency{})
	now := time.Now().UTC()

	exp := &domain.Idempotency{
		ID:         "expired",
		UserID:     "u1",
		Scope:      scopeIntent,
		Key:        "k1",
		ResourceID: "tx1",
		Status:     200,
		CreatedAt:  now.Add(-2 * time.Hour),
		ExpiresAt:  now.Add(-time.Hour),
	}
	if err := db.Create(exp).Error; err != nil {
		t.Fatalf("seed expired: %v", err)
	}

	rec, err := GetIdempotency(context.Background(), db, "u1", scopeIntent, "k1", now)
	if rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for expired, got (%v, %v)", rec, err)
	}

	rec2, err2 := GetIdempotency(context.Background(), db, "u1", scopeIntent, "missing", now)
	if rec2 != nil || err2 != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for missing, got (%v, %v)", rec2, err2)
	}
}

func TestGetIdempotency_ScopedPerUserAndScope(t *testing.T) {
	db := newIdemDB(t, &domain.Idempotency{})
	now := time.Now().UTC()

	ok := &domain.Idempotency{
		ID: "ok", UserID: "u1", Scope: scopeIntent, Key: "k2",
		ResourceID: "tx9", Status: 201, CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}
	if err := db.Create(ok).Error; err != nil {
		t.Fatalf("seed ok: %v", err)
	}

	rec, err := GetIdempotency(context.Background(), db, "u1", scopeIntent, "k2", now)
	if err != nil {
		t.Fatalf("GetIdempotency success err: %v", err)
	}
	if rec.ResourceID != "tx9" || rec.Status != 201 {
		t.Fatalf("unexpected record: %+v", rec)
	}

	if _, err := GetIdempotency(context.Background(), db, "u2", scopeIntent, "k2", now); err != ErrNotFound {
		t.Fatalf("other user must not see the key, got %v", err)
	}
	if _, err := GetIdempotency(context.Background(), db, "u1", "other.scope", "k2", now); err != ErrNotFound {
		t.Fatalf("other scope must not see the key, got %v", err)
	}
}

func TestCreateIdempotency_SuccessAndDuplicate(t *testing.T) {
	db := newIdemDB(t, &domain.Idempotency{})

	ttl := 90 * time.Minute
	start := time.Now().UTC()

	rec, err := CreateIdempotency(context.Background(), db, "u9", scopeIntent, "k9", "tx9", 201, ttl)
	if err != nil {
		t.Fatalf("CreateIdempotency error: %v", err)
	}
	if rec.ID == "" || rec.UserID != "u9" || rec.Scope != scopeIntent || rec.Key != "k9" || rec.ResourceID != "tx9" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	// loose bound to avoid timing flakes
	if !(rec.ExpiresAt.After(start) && rec.ExpiresAt.Before(start.Add(2*time.Hour))) {
		t.Fatalf("unexpected ExpiresAt: %v", rec.ExpiresAt)
	}

	_, err2 := CreateIdempotency(context.Background(), db, "u9", scopeIntent, "k9", "txX", 201, ttl)
	if err2 != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err2)
	}
}

func TestCreateIdempotency_Error_NoTable(t *testing.T) {
	db := newIdemDB(t) // intentionally NOT migrating
	_, err := CreateIdempotency(context.Background(), db, "uX", scopeIntent, "kX", "tX", 200, time.Minute)
	if err == nil {
		t.Fatalf("expected error when table is missing")
	}
	if err == ErrDuplicate {
		t.Fatalf("expected non-duplicate error, got ErrDuplicate")
	}
}

func TestDeleteExpiredIdempotency(t *testing.T) {
	db := newIdemDB(t, &domain.Idempotency{})
	now := time.Now().UTC()
	rows := []domain.Idempotency{
		{ID: "a", UserID: "u", Scope: scopeIntent, Key: "a", ResourceID: "r", Status: 201, ExpiresAt: now.Add(-time.Minute)},
		{ID: "b", UserID: "u", Scope: scopeIntent, Key: "b", ResourceID: "r", Status: 201, ExpiresAt: now.Add(-time.Hour)},
		{ID: "c", UserID: "u", Scope: scopeIntent, Key: "c", ResourceID: "r", Status: 201, ExpiresAt: now.Add(time.Hour)},
	}
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	n, err := DeleteExpiredIdempotency(context.Background(), db, now)
	if err != nil {
		t.Fatalf("DeleteExpiredIdempotency: %v", err)
	}
	if n != 2 {
		t.Fatalf("deleted = %d; want 2", n)
	}
	var left int64
	db.Model(&domain.Idempotency{}).Count(&left)
	if left != 1 {
		t.Fatalf("remaining = %d; want 1", left)
	}
}
