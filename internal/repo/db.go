// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and PostgreSQL, and schema migrations.
package repo

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-telehealth-backend/internal/config"
	"github.com/tbourn/go-telehealth-backend/internal/domain"
)

// ErrUnsupportedDriver is returned by Open for an unknown DB_DRIVER.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// Open opens the database selected by cfg.Driver.
func Open(cfg config.DBConfig) (*gorm.DB, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		return OpenSQLite(cfg.Path)
	case "postgres":
		return OpenPostgres(cfg.URL)
	default:
		return nil, ErrUnsupportedDriver
	}
}

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	tunePool(db, 10)
	return db, nil
}

// OpenPostgres connects to PostgreSQL using a URL or key/value DSN.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("empty postgres dsn")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	tunePool(db, 25)
	return db, nil
}

// Instrument attaches OpenTelemetry spans to every query. Bound variables
// are left out of span attributes since they carry patient data.
func Instrument(db *gorm.DB) error {
	return db.Use(tracing.NewPlugin(tracing.WithoutMetrics(), tracing.WithoutQueryVariables()))
}

func tunePool(db *gorm.DB, maxOpen int) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(maxOpen)
		sqlDB.SetMaxIdleConns(maxOpen)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
}

// AutoMigrate creates or updates every table. Users go first so the
// foreign keys from profiles and appointments resolve.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.DoctorProfile{},
		&domain.DoctorRating{},
		&domain.Appointment{},
		&domain.Report{},
		&domain.Transaction{},
		&domain.ChatMessage{},
		&domain.Idempotency{},
		&domain.WebhookEvent{},
	)
}
