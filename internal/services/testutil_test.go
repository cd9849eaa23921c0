package services

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mindpal/mindpal-backend/internal/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(func() { log.Sync() })
	return log
}

// Services set ids and timestamps themselves, so the test schema skips the
// postgres column defaults the production migration installs.
var testSchema = []string{
	`CREATE TABLE note (
		id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL,
		author_id TEXT NOT NULL,
		parent_note_id TEXT,
		kind TEXT NOT NULL,
		title TEXT NOT NULL,
		content_markdown TEXT NOT NULL,
		current_version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE note_version (
		id TEXT PRIMARY KEY,
		note_id TEXT NOT NULL,
		editor_id TEXT NOT NULL,
		content_markdown TEXT NOT NULL,
		version_number INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE (note_id, version_number)
	)`,
	`CREATE TABLE split_run (
		id TEXT PRIMARY KEY,
		parent_note_id TEXT NOT NULL,
		requested_by TEXT NOT NULL,
		mode TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		categories TEXT,
		child_note_ids TEXT,
		failures TEXT,
		error TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
}

// newTestDB opens a per-test in-memory database. One open connection keeps
// concurrent writers serialized the way the production engine's row locks do.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap test db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	for _, stmt := range testSchema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create test schema: %v", err)
		}
	}
	return db
}
