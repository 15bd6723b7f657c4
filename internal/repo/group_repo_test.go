package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kudoslab/go-kudos-backend/internal/domain"
)

func newGroupRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("group_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// The cascade tests rely on the FK constraint being enforced.
	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestCreateGroupWithCreator_GroupAndMembershipAppearTogether(t *testing.T) {
	db := newGroupRepoDB(t, &domain.Group{}, &domain.Membership{})

	g, err := CreateGroupWithCreator(context.Background(), db, "Team Kudos", "u1", "Alex")
	if err != nil {
		t.Fatalf("CreateGroupWithCreator: %v", err)
	}
	if g.ID == "" || g.Name != "Team Kudos" || g.CreatorID != "u1" {
		t.Fatalf("unexpected Group fields: %+v", g)
	}

	m, err := GetMembership(context.Background(), db, g.ID, "u1")
	if err != nil {
		t.Fatalf("creator membership missing: %v", err)
	}
	if m.UserName != "Alex" {
		t.Fatalf("membership snapshot mismatch: %+v", m)
	}
	if !m.JoinedAt.Equal(g.CreatedAt) {
		t.Fatalf("JoinedAt %v != CreatedAt %v", m.JoinedAt, g.CreatedAt)
	}
}

func TestCreateGroupWithCreator_RollsBackWhenMembershipFails(t *testing.T) {
	// Only the groups table exists: the membership insert must fail and the
	// transaction must take the group row down with it.
	db := newGroupRepoDB(t, &domain.Group{})

	g, err := CreateGroupWithCreator(context.Background(), db, "Doomed", "u1", "Alex")
	if err == nil || g != nil {
		t.Fatalf("expected failure, got group=%v err=%v", g, err)
	}

	var n int64
	if err := db.Model(&domain.Group{}).Count(&n).Error; err != nil {
		t.Fatalf("count groups: %v", err)
	}
	if n != 0 {
		t.Fatalf("partial state leaked: %d group rows after failed create", n)
	}
}

func TestGetGroup_NotFound(t *testing.T) {
	db := newGroupRepoDB(t, &domain.Group{})

	g, err := GetGroup(context.Background(), db, "missing")
	if g != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got group=%v err=%v", g, err)
	}
}

func TestDeleteGroup_CascadesMembershipsKeepsLedger(t *testing.T) {
	db := newGroupRepoDB(t, &domain.Group{}, &domain.Membership{}, &domain.Compliment{})
	ctx := context.Background()

	g, err := CreateGroupWithCreator(ctx, db, "g", "u1", "Alex")
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if _, err := UpsertMembership(ctx, db, g.ID, "u2", "Sam"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := CreateCompliment(ctx, db, "u1", "u2", g.ID, "nice work"); err != nil {
		t.Fatalf("compliment: %v", err)
	}

	if err := DeleteGroup(ctx, db, g.ID); err != nil {
		t.Fatalf("DeleteGroup: %v", err)
	}

	var members int64
	if err := db.Model(&domain.Membership{}).Where("group_id = ?", g.ID).Count(&members).Error; err != nil {
		t.Fatalf("count memberships: %v", err)
	}
	if members != 0 {
		t.Fatalf("memberships survived the cascade: %d", members)
	}

	// The ledger outlives the group.
	got, err := ListReceived(ctx, db, "u2", g.ID)
	if err != nil {
		t.Fatalf("ListReceived: %v", err)
	}
	if len(got) != 1 || got[0].Message != "nice work" {
		t.Fatalf("ledger lost after delete: %+v", got)
	}
}

func TestDeleteGroup_NotFound(t *testing.T) {
	db := newGroupRepoDB(t, &domain.Group{})

	err := DeleteGroup(context.Background(), db, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
