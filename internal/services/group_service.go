// Package services – GroupService
//
// This file implements the GroupService, which covers group creation,
// lookup, joining, the out-of-band deletion path, and the two live views
// attached to a group: its metadata (used to detect deletion) and its
// roster. Creation commits the group together with the creator's
// membership in one transaction, so no observer ever sees a group with an
// empty roster.
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

// GroupService provides group lifecycle operations and the live roster
// and metadata views.
type GroupService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Broker fans out change notifications after committed writes.
	Broker *stream.Broker

	// NameMaxLen caps stored group names by rune length.
	NameMaxLen int
}

// NewGroupService constructs a GroupService with sane defaults.
func NewGroupService(db *gorm.DB, b *stream.Broker) *GroupService {
	return &GroupService{DB: db, Broker: b, NameMaxLen: 80}
}

// Create allocates a new group named name and atomically enrolls the
// creator as its first member, snapshotting creatorName into the
// membership row. It returns ErrEmptyName when creatorName trims to
// empty; a blank group name falls back to "New group".
func (s *GroupService) Create(ctx context.Context, name, creatorID, creatorName string) (*domain.Group, error) {
	creatorName = normalizeName(creatorName)
	if creatorName == "" {
		return nil, ErrEmptyName
	}
	name = normalizeName(name)
	if name == "" {
		name = "New group"
	}

	g, err := repo.CreateGroupWithCreator(ctx, s.DB, s.clip(name), creatorID, creatorName)
	if err != nil {
		return nil, err
	}
	s.Broker.Publish(stream.GroupTopic(g.ID))
	s.Broker.Publish(stream.RosterTopic(g.ID))
	return g, nil
}

// Lookup is a point read of a group by id. It returns ErrGroupNotFound
// when the id does not resolve.
func (s *GroupService) Lookup(ctx context.Context, groupID string) (*domain.Group, error) {
	g, err := repo.GetGroup(ctx, s.DB, groupID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGroupNotFound
	}
	return g, err
}

// Join enrolls userID in groupID under displayName. It returns
// ErrGroupNotFound (with no side effects) when the group does not exist
// and ErrEmptyName when the display name trims to empty. Joining a group
// you already belong to is an upsert: the stored name snapshot is
// overwritten and JoinedAt resets to now. The existence check and the
// membership write run in one transaction, so a group deleted in between
// surfaces as ErrGroupNotFound rather than a constraint failure.
func (s *GroupService) Join(ctx context.Context, groupID, userID, displayName string) (*domain.Membership, error) {
	displayName = normalizeName(displayName)
	if displayName == "" {
		return nil, ErrEmptyName
	}

	var m *domain.Membership
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetGroup(ctx, tx, groupID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGroupNotFound
			}
			return err
		}
		var err error
		m, err = repo.UpsertMembership(ctx, tx, groupID, userID, displayName)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Broker.Publish(stream.RosterTopic(groupID))
	return m, nil
}

// Delete removes a group out of band. Live metadata subscriptions observe
// the transition to absent, which clients treat as the group-deleted
// signal. Returns ErrGroupNotFound when the id does not resolve.
func (s *GroupService) Delete(ctx context.Context, groupID string) error {
	err := repo.DeleteGroup(ctx, s.DB, groupID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrGroupNotFound
	}
	if err != nil {
		return err
	}
	s.Broker.Publish(stream.GroupTopic(groupID))
	s.Broker.Publish(stream.RosterTopic(groupID))
	return nil
}

// Roster returns the current members of groupID in arrival order.
func (s *GroupService) Roster(ctx context.Context, groupID string) ([]domain.Membership, error) {
	return repo.ListMembers(ctx, s.DB, groupID)
}

// SubscribeRoster returns a live view of groupID's roster: the full
// current member list immediately, then again after every membership
// write, until cancelled. There is no remove path, so the roster only
// grows while the group exists.
func (s *GroupService) SubscribeRoster(ctx context.Context, groupID string) (<-chan []domain.Membership, CancelFunc, error) {
	return watch(ctx, s.Broker, stream.RosterTopic(groupID), func(ctx context.Context) ([]domain.Membership, error) {
		return repo.ListMembers(ctx, s.DB, groupID)
	})
}

// SubscribeMeta returns a live view of the group document itself, nil
// when absent. A transition from present to absent is the group-deleted
// signal consumed by the session layer.
func (s *GroupService) SubscribeMeta(ctx context.Context, groupID string) (<-chan *domain.Group, CancelFunc, error) {
	return watch(ctx, s.Broker, stream.GroupTopic(groupID), func(ctx context.Context) (*domain.Group, error) {
		g, err := repo.GetGroup(ctx, s.DB, groupID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return g, err
	})
}

// clip truncates a group name to the configured maximum rune length.
func (s *GroupService) clip(name string) string {
	if s.NameMaxLen > 0 && utf8.RuneCountInString(name) > s.NameMaxLen {
		return string([]rune(name)[:s.NameMaxLen])
	}
	return name
}
