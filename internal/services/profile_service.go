// Package services – ProfileService
//
// This file implements the ProfileService, which manages the one-per-
// identity profile document. It validates and normalizes display names,
// coordinates repository writes, and exposes the live profile view. There
// is no optimistic local echo: a saved name reaches the caller through the
// subscription, after the write has committed.
package services

import (
	"context"
	"errors"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/kudoslab/go-kudos-backend/internal/domain"
	"github.com/kudoslab/go-kudos-backend/internal/repo"
	"github.com/kudoslab/go-kudos-backend/internal/stream"
)

// ProfileService provides profile-level operations: reading, saving, and
// live observation of one identity's display name.
type ProfileService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Broker fans out change notifications after committed writes.
	Broker *stream.Broker

	// NameMaxLen caps stored display names by rune length.
	NameMaxLen int
}

// NewProfileService constructs a ProfileService with sane defaults.
func NewProfileService(db *gorm.DB, b *stream.Broker) *ProfileService {
	return &ProfileService{DB: db, Broker: b, NameMaxLen: 60}
}

// Get returns the profile owned by userID, or nil when none exists yet.
// Absence is a valid state ("name not yet set"), distinct from an empty
// name, so it is not reported as an error.
func (s *ProfileService) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	p, err := repo.GetProfile(ctx, s.DB, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return p, err
}

// Save validates, normalizes, and persists the display name for userID.
// The write is a full replace. It returns ErrEmptyName when the name trims
// to empty. On success every live subscription for this identity observes
// the new value.
func (s *ProfileService) Save(ctx context.Context, userID, name string) (*domain.Profile, error) {
	name = normalizeName(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	p, err := repo.UpsertProfile(ctx, s.DB, userID, s.clip(name))
	if err != nil {
		return nil, err
	}
	s.Broker.Publish(stream.ProfileTopic(userID))
	return p, nil
}

// Subscribe returns a live view of userID's profile. The first value is
// the current state (nil when absent) and a fresh snapshot follows every
// committed save until the subscription is cancelled.
func (s *ProfileService) Subscribe(ctx context.Context, userID string) (<-chan *domain.Profile, CancelFunc, error) {
	return watch(ctx, s.Broker, stream.ProfileTopic(userID), func(ctx context.Context) (*domain.Profile, error) {
		return s.Get(ctx, userID)
	})
}

// clip truncates a display name to the configured maximum rune length.
func (s *ProfileService) clip(name string) string {
	if s.NameMaxLen > 0 && utf8.RuneCountInString(name) > s.NameMaxLen {
		return string([]rune(name)[:s.NameMaxLen])
	}
	return name
}
