package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-telehealth-backend/internal/domain"
)

func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	// Unique DB per test to avoid schema leaking across tests.
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

func TestConversationStats_Empty(t *testing.T) {
	db := newTestDB(t, &domain.ChatMessage{})
	n, latest, err := ConversationStats(context.Background(), db, "a", "b")
	if err != nil || n != 0 || latest != nil {
		t.Fatalf("expected (0, nil, nil), got (%d, %v, %v)", n, latest, err)
	}
}

func TestConversationStats_BothDirections_LatestWins(t *testing.T) {
	db := newTestDB(t, &domain.ChatMessage{})
	t0 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	seed := []domain.ChatMessage{
		{ID: "1", From: "a", To: "b", Text: "hi", CreatedAt: t0},
		{ID: "2", From: "b", To: "a", Text: "yo", CreatedAt: t0.Add(2 * time.Minute)},
		{ID: "3", From: "a", To: "c", Text: "other", CreatedAt: t0.Add(time.Hour)},
	}
	if err := db.Create(&seed).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	n, latest, err := ConversationStats(context.Background(), db, "a", "b")
	if err != nil {
		t.Fatalf("ConversationStats: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d; want 2", n)
	}
	if latest == nil || !latest.Equal(t0.Add(2*time.Minute)) {
		t.Fatalf("latest = %v; want %v", latest, t0.Add(2*time.Minute))
	}
}

func TestConversationStats_Error_NoTable(t *testing.T) {
	db := newTestDB(t)
	if _, _, err := ConversationStats(context.Background(), db, "a", "b"); err == nil {
		t.Fatalf("expected error without table")
	}
}

func TestReportsStats(t *testing.T) {
	db := newTestDB(t, &domain.Report{})
	ctx := context.Background()

	n, latest, err := ReportsStats(ctx, db, "p1")
	if err != nil || n != 0 || latest != nil {
		t.Fatalf("expected empty stats, got (%d, %v, %v)", n, latest, err)
	}

	r1 := &domain.Report{PatientID: "p1", FileName: "a.pdf", URL: "/uploads/reports/a.pdf"}
	r2 := &domain.Report{PatientID: "p1", FileName: "b.png", URL: "/uploads/reports/b.png"}
	if err := CreateReport(ctx, db, r1); err != nil {
		t.Fatalf("create r1: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := CreateReport(ctx, db, r2); err != nil {
		t.Fatalf("create r2: %v", err)
	}

	n, latest, err = ReportsStats(ctx, db, "p1")
	if err != nil {
		t.Fatalf("ReportsStats: %v", err)
	}
	if n != 2 || latest == nil || latest.Before(r1.UpdatedAt) {
		t.Fatalf("unexpected stats: n=%d latest=%v", n, latest)
	}
}
