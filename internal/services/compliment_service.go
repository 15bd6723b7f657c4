// Package services – ComplimentService
//
// This file implements the ComplimentService, the append-only ledger of
// anonymous messages. Send validates the payload and enforces the
// membership precondition store-side: both sender and receiver must
// currently belong to the target group, and the sender may not address
// themselves. The two live views per (user, group) — received and sent —
// partition the user's compliments in that group with no overlap.
package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/kudoslab/go-kudos-backend/internal/domain"
	"github.com/kudoslab/go-kudos-backend/internal/observability"
	"github.com/kudoslab/go-kudos-backend/internal/repo"
	"github.com/kudoslab/go-kudos-backend/internal/stream"
)

// ComplimentService provides the ledger write path and the filtered live
// views over it.
type ComplimentService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Broker fans out change notifications after committed writes.
	Broker *stream.Broker

	// MaxMessageRunes caps compliment bodies by rune length.
	MaxMessageRunes int
}

// NewComplimentService constructs a ComplimentService with sane defaults.
func NewComplimentService(db *gorm.DB, b *stream.Broker) *ComplimentService {
	return &ComplimentService{DB: db, Broker: b, MaxMessageRunes: 2000}
}

// Send appends one immutable compliment record with a server-assigned
// timestamp.
//
// Validation: ErrEmptyReceiver when receiverID is blank, ErrEmptyMessage
// when the message trims to empty, ErrMessageTooLong past the cap, and
// ErrSelfCompliment when sender and receiver coincide. Membership:
// ErrNotMember unless both sender and receiver currently hold a
// membership in groupID, ErrGroupNotFound when the group is gone. The
// membership check and the insert run in one transaction, so a group or
// membership deleted concurrently cannot slip a row into the ledger.
func (s *ComplimentService) Send(ctx context.Context, senderID, receiverID, groupID, message string) (*domain.Compliment, error) {
	ctx, span := observability.Tracer("services").Start(ctx, "compliment.send")
	defer span.End()
	span.SetAttributes(attribute.String("group_id", groupID))

	receiverID = strings.TrimSpace(receiverID)
	if receiverID == "" {
		return nil, ErrEmptyReceiver
	}
	message = normalizeMessage(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	if s.MaxMessageRunes > 0 && utf8.RuneCountInString(message) > s.MaxMessageRunes {
		return nil, ErrMessageTooLong
	}
	if senderID == receiverID {
		return nil, ErrSelfCompliment
	}

	var c *domain.Compliment
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetGroup(ctx, tx, groupID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGroupNotFound
			}
			return err
		}
		for _, member := range []string{senderID, receiverID} {
			if _, err := repo.GetMembership(ctx, tx, groupID, member); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrNotMember
				}
				return err
			}
		}
		var err error
		c, err = repo.CreateCompliment(ctx, tx, senderID, receiverID, groupID, message)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Broker.Publish(stream.LedgerTopic(groupID))
	return c, nil
}

// Received returns all compliments addressed to userID in groupID, most
// recent first.
func (s *ComplimentService) Received(ctx context.Context, userID, groupID string) ([]domain.Compliment, error) {
	return repo.ListReceived(ctx, s.DB, userID, groupID)
}

// Sent returns all compliments authored by userID in groupID, most recent
// first.
func (s *ComplimentService) Sent(ctx context.Context, userID, groupID string) ([]domain.Compliment, error) {
	return repo.ListSent(ctx, s.DB, userID, groupID)
}

// SubscribeReceived returns the live received-view for (userID, groupID):
// exactly the compliments with receiver_id = userID and group_id =
// groupID, re-delivered in full, most recent first, after every ledger
// write in the group.
func (s *ComplimentService) SubscribeReceived(ctx context.Context, userID, groupID string) (<-chan []domain.Compliment, CancelFunc, error) {
	return watch(ctx, s.Broker, stream.LedgerTopic(groupID), func(ctx context.Context) ([]domain.Compliment, error) {
		return repo.ListReceived(ctx, s.DB, userID, groupID)
	})
}

// SubscribeSent is the symmetric live view filtered by sender_id.
func (s *ComplimentService) SubscribeSent(ctx context.Context, userID, groupID string) (<-chan []domain.Compliment, CancelFunc, error) {
	return watch(ctx, s.Broker, stream.LedgerTopic(groupID), func(ctx context.Context) ([]domain.Compliment, error) {
		return repo.ListSent(ctx, s.DB, userID, groupID)
	})
}
