// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Compliment model (the append-only ledger).
//
// Ordering contract: both list queries sort by timestamp descending (most
// recent first). A zero timestamp (write still in flight) is the minimal
// value and therefore sorts last, i.e. as the oldest record. Ties are
// broken by record id so the order is stable across reads.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kudoslab/go-kudos-backend/internal/domain"
)

// CreateCompliment appends one immutable record to the ledger. The record
// id is a randomly generated UUID and Timestamp is assigned here, at write
// time. Rows are never updated or deleted afterwards.
func CreateCompliment(ctx context.Context, db *gorm.DB, senderID, receiverID, groupID, message string) (*domain.Compliment, error) {
	c := &domain.Compliment{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		GroupID:    groupID,
		Message:    message,
		Timestamp:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// ListReceived returns all compliments addressed to userID within groupID,
// most recent first. It returns an empty slice when there are none.
func ListReceived(ctx context.Context, db *gorm.DB, userID, groupID string) ([]domain.Compliment, error) {
	var out []domain.Compliment
	err := db.WithContext(ctx).
		Where("receiver_id = ? AND group_id = ?", userID, groupID).
		Order("timestamp desc, id asc").
		Find(&out).Error
	return out, err
}

// ListSent returns all compliments authored by userID within groupID,
// most recent first. It returns an empty slice when there are none.
func ListSent(ctx context.Context, db *gorm.DB, userID, groupID string) ([]domain.Compliment, error) {
	var out []domain.Compliment
	err := db.WithContext(ctx).
		Where("sender_id = ? AND group_id = ?", userID, groupID).
		Order("timestamp desc, id asc").
		Find(&out).Error
	return out, err
}
