package services

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kudoslab/go-kudos-backend/internal/domain"
	"github.com/kudoslab/go-kudos-backend/internal/stream"
)

// newServiceEnv spins up a throwaway SQLite database with the full schema
// plus a fresh broker, both torn down with the test.
func newServiceEnv(t *testing.T) (*gorm.DB, *stream.Broker) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("services_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	if err := db.AutoMigrate(&domain.Profile{}, &domain.Group{}, &domain.Membership{}, &domain.Compliment{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	b := stream.NewBroker()

	t.Cleanup(func() {
		b.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db, b
}

// recvSnapshot receives one value from a subscription channel or fails the
// test after a deadline.
func recvSnapshot[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, open := <-ch:
		if !open {
			t.Fatalf("subscription channel closed unexpectedly")
		}
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for snapshot")
		var zero T
		return zero
	}
}

// recvClosed asserts the subscription channel closes within the deadline.
// Buffered but unread snapshots delivered before the close are drained.
func recvClosed[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, open := <-ch:
			if !open {
				return
			}
		case <-deadline:
			t.Fatalf("subscription channel did not close")
		}
	}
}
