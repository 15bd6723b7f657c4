package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kudoslab/go-kudos-backend/internal/domain"
)

func newComplimentRepoDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("compliment_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.Compliment{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestCreateCompliment_AssignsIDAndTimestamp(t *testing.T) {
	db := newComplimentRepoDB(t)

	start := time.Now().UTC().Add(-time.Minute)
	c, err := CreateCompliment(context.Background(), db, "u1", "u2", "g1", "great talk")
	if err != nil {
		t.Fatalf("CreateCompliment: %v", err)
	}
	if c.ID == "" || c.SenderID != "u1" || c.ReceiverID != "u2" || c.GroupID != "g1" {
		t.Fatalf("unexpected fields: %+v", c)
	}
	if c.Timestamp.Before(start) {
		t.Fatalf("Timestamp seems unset: %v", c.Timestamp)
	}
}

func TestListReceived_NewestFirstZeroTimestampLast(t *testing.T) {
	db := newComplimentRepoDB(t)
	ctx := context.Background()

	t0 := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	seed := []domain.Compliment{
		{ID: "old", SenderID: "a", ReceiverID: "u1", GroupID: "g1", Message: "old", Timestamp: t0},
		{ID: "new", SenderID: "b", ReceiverID: "u1", GroupID: "g1", Message: "new", Timestamp: t0.Add(time.Hour)},
		// Zero timestamp: a write whose server time never landed sorts oldest.
		{ID: "pending", SenderID: "c", ReceiverID: "u1", GroupID: "g1", Message: "pending"},
		{ID: "othergroup", SenderID: "a", ReceiverID: "u1", GroupID: "g2", Message: "x", Timestamp: t0},
		{ID: "otheruser", SenderID: "a", ReceiverID: "u2", GroupID: "g1", Message: "x", Timestamp: t0},
	}
	for _, c := range seed {
		if err := db.Create(&c).Error; err != nil {
			t.Fatalf("seed %s: %v", c.ID, err)
		}
	}

	got, err := ListReceived(ctx, db, "u1", "g1")
	if err != nil {
		t.Fatalf("ListReceived: %v", err)
	}
	want := []string{"new", "old", "pending"}
	if len(got) != len(want) {
		t.Fatalf("expected %d rows, got %d (%+v)", len(want), len(got), got)
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: want %s got %s", i, id, got[i].ID)
		}
	}
}

func TestListSent_FiltersByAuthor(t *testing.T) {
	db := newComplimentRepoDB(t)
	ctx := context.Background()

	t0 := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	seed := []domain.Compliment{
		{ID: "mine1", SenderID: "u1", ReceiverID: "u2", GroupID: "g1", Message: "a", Timestamp: t0},
		{ID: "mine2", SenderID: "u1", ReceiverID: "u3", GroupID: "g1", Message: "b", Timestamp: t0.Add(time.Minute)},
		{ID: "reply", SenderID: "u2", ReceiverID: "u1", GroupID: "g1", Message: "c", Timestamp: t0},
	}
	for _, c := range seed {
		if err := db.Create(&c).Error; err != nil {
			t.Fatalf("seed %s: %v", c.ID, err)
		}
	}

	got, err := ListSent(ctx, db, "u1", "g1")
	if err != nil {
		t.Fatalf("ListSent: %v", err)
	}
	if len(got) != 2 || got[0].ID != "mine2" || got[1].ID != "mine1" {
		t.Fatalf("unexpected sent view: %+v", got)
	}
}
