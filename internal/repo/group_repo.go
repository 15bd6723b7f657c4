// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Group
// model.
//
// The one non-obvious function here is CreateGroupWithCreator, which
// commits the group row and the creator's membership row in a single
// transaction. The two rows become visible together or not at all, so no
// reader can ever observe a group with an empty roster.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kudoslab/go-kudos-backend/internal/domain"
)

// CreateGroupWithCreator inserts a new Group and the creator's Membership
// atomically. The group ID is a randomly generated UUID, CreatedAt and
// JoinedAt are set to the same UTC instant, and the creator's display name
// is snapshotted into the membership row.
//
// On success it returns the persisted Group. On failure nothing is
// partially visible and the DB error is returned.
func CreateGroupWithCreator(ctx context.Context, db *gorm.DB, name, creatorID, creatorName string) (*domain.Group, error) {
	now := time.Now().UTC()
	g := &domain.Group{
		ID:        uuid.NewString(),
		Name:      name,
		CreatorID: creatorID,
		CreatedAt: now,
	}
	m := &domain.Membership{
		GroupID:  g.ID,
		MemberID: creatorID,
		UserName: creatorName,
		JoinedAt: now,
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(g).Error; err != nil {
			return err
		}
		return tx.Create(m).Error
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// GetGroup fetches a single group by its ID. If the record does not exist,
// it returns ErrNotFound. On other DB errors, the raw error is returned.
func GetGroup(ctx context.Context, db *gorm.DB, id string) (*domain.Group, error) {
	var g domain.Group
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&g).Error
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// DeleteGroup hard-deletes a group row. Memberships are removed by the
// cascade constraint; compliments are retained (the ledger is append-only).
// Returns ErrNotFound when no row was deleted.
func DeleteGroup(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&domain.Group{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
