// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Membership model (the roster of a group).
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kudoslab/go-kudos-backend/internal/domain"
)

// UpsertMembership writes the membership row keyed by (groupID, memberID).
// Re-joining a group you already belong to overwrites the stored UserName
// snapshot and resets JoinedAt; join is user-triggered, so the reset is a
// deliberate policy.
func UpsertMembership(ctx context.Context, db *gorm.DB, groupID, memberID, userName string) (*domain.Membership, error) {
	m := &domain.Membership{
		GroupID:  groupID,
		MemberID: memberID,
		UserName: userName,
		JoinedAt: time.Now().UTC(),
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "group_id"}, {Name: "member_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_name", "joined_at"}),
		}).
		Create(m).Error
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetMembership fetches one membership row, or ErrNotFound when memberID
// does not belong to groupID.
func GetMembership(ctx context.Context, db *gorm.DB, groupID, memberID string) (*domain.Membership, error) {
	var m domain.Membership
	err := db.WithContext(ctx).
		Where("group_id = ? AND member_id = ?", groupID, memberID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMembers returns the full roster of a group in arrival order (oldest
// join first; member id breaks ties so the order is stable across reads).
// It returns an empty slice for an unknown group.
func ListMembers(ctx context.Context, db *gorm.DB, groupID string) ([]domain.Membership, error) {
	var out []domain.Membership
	err := db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("joined_at asc, member_id asc").
		Find(&out).Error
	return out, err
}
