// Handler wiring.
//
// This file declares the service contracts consumed by the HTTP layer and
// the Handlers aggregate that binds them. Handlers are transport-thin: they
// validate input, call application services, and translate results into HTTP
// responses. Business rules (membership preconditions, validation limits,
// atomic group creation) live in the services.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kudoslab/go-kudos-backend/internal/domain"
	"github.com/kudoslab/go-kudos-backend/internal/http/middleware"
	"github.com/kudoslab/go-kudos-backend/internal/stream"
)

//
// Service contracts (context-aware)
//

// ProfileService defines profile operations consumed by HTTP handlers.
//
// Implementations must be safe for concurrent use and honor the provided
// context for cancellation and timeouts.
type ProfileService interface {
	// Get returns the profile for userID, or (nil, nil) when none exists.
	Get(ctx context.Context, userID string) (*domain.Profile, error)
	// Save upserts the display name for userID.
	Save(ctx context.Context, userID, name string) (*domain.Profile, error)
	// Subscribe streams the profile document: current state immediately,
	// then a fresh snapshot after every change.
	Subscribe(ctx context.Context, userID string) (<-chan *domain.Profile, stream.CancelFunc, error)
}

// GroupService defines group lifecycle and roster operations.
type GroupService interface {
	// Create atomically creates a group with the creator as first member.
	Create(ctx context.Context, name, creatorID, creatorName string) (*domain.Group, error)
	// Lookup returns the group or ErrGroupNotFound.
	Lookup(ctx context.Context, groupID string) (*domain.Group, error)
	// Join adds userID to an existing group; joining twice is a no-op apart
	// from refreshing the name snapshot and join time.
	Join(ctx context.Context, groupID, userID, displayName string) (*domain.Membership, error)
	// Delete removes the group; memberships cascade.
	Delete(ctx context.Context, groupID string) error
	// Roster lists the members in join order.
	Roster(ctx context.Context, groupID string) ([]domain.Membership, error)
	// SubscribeRoster streams roster snapshots.
	SubscribeRoster(ctx context.Context, groupID string) (<-chan []domain.Membership, stream.CancelFunc, error)
	// SubscribeMeta streams the group document; nil means the group is gone.
	SubscribeMeta(ctx context.Context, groupID string) (<-chan *domain.Group, stream.CancelFunc, error)
}

// ComplimentService defines compliment submission and the per-member views.
type ComplimentService interface {
	// Send validates and records a compliment within a group.
	Send(ctx context.Context, senderID, receiverID, groupID, message string) (*domain.Compliment, error)
	// Received lists compliments addressed to userID, newest first.
	Received(ctx context.Context, userID, groupID string) ([]domain.Compliment, error)
	// Sent lists compliments authored by userID, newest first.
	Sent(ctx context.Context, userID, groupID string) ([]domain.Compliment, error)
	// SubscribeReceived streams the received view.
	SubscribeReceived(ctx context.Context, userID, groupID string) (<-chan []domain.Compliment, stream.CancelFunc, error)
	// SubscribeSent streams the sent view.
	SubscribeSent(ctx context.Context, userID, groupID string) (<-chan []domain.Compliment, stream.CancelFunc, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for profiles, groups, and compliments.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	profileSvc    ProfileService
	groupSvc      GroupService
	complimentSvc ComplimentService

	// AdminToken guards the destructive admin endpoints; empty disables them.
	AdminToken string

	// StreamKeepAlive is the interval between SSE keep-alive events.
	StreamKeepAlive time.Duration
	// StreamMaxDuration bounds the lifetime of one SSE connection; zero
	// means unbounded (clients reconnect on their own).
	StreamMaxDuration time.Duration
}

// New constructs a Handlers instance bound to the given services.
func New(profileSvc ProfileService, groupSvc GroupService, complimentSvc ComplimentService) *Handlers {
	return &Handlers{
		profileSvc:      profileSvc,
		groupSvc:        groupSvc,
		complimentSvc:   complimentSvc,
		StreamKeepAlive: 25 * time.Second,
	}
}

// userID returns the anonymous identity resolved by the identity middleware.
// The API group mounts that middleware as required, so handlers can rely on
// a non-empty value.
func userID(c *gin.Context) string {
	return middleware.UserID(c)
}
