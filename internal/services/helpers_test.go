package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-telehealth-backend/internal/auth"
	"github.com/tbourn/go-telehealth-backend/internal/domain"
	"github.com/tbourn/go-telehealth-backend/internal/notify"
	"github.com/tbourn/go-telehealth-backend/internal/repo"
)

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name, role string) *domain.User {
	t.Helper()
	email := strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.test"
	hash, err := auth.HashPassword("secret123", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u, err := repo.CreateUser(context.Background(), db, name, email, hash, role)
	if err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	return u
}

type stubTokens struct {
	err error
}

func (s stubTokens) Issue(userID, role string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "tok-" + userID + "-" + role, nil
}

type recordingMailer struct {
	mu   sync.Mutex
	msgs []notify.EmailMessage
}

func (m *recordingMailer) Send(_ context.Context, msg notify.EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
	return nil
}

func (m *recordingMailer) sent() []notify.EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notify.EmailMessage(nil), m.msgs...)
}
