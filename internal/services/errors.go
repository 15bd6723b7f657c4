// Package services defines the business logic for profiles, groups, and
// the compliment ledger. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer. They are all recoverable: a failed
// one-off operation never tears down live subscriptions.
package services

import "errors"

// Validation errors (empty or malformed required fields).
var (
	// ErrEmptyName is returned when a display name trims to the empty
	// string, either on a profile save or as a join/create precondition.
	ErrEmptyName = errors.New("display name is empty")

	// ErrEmptyMessage is returned when a compliment message trims to the
	// empty string.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrMessageTooLong is returned when a compliment message exceeds the
	// configured maximum length.
	ErrMessageTooLong = errors.New("message too long")

	// ErrEmptyReceiver is returned when a compliment names no receiver.
	ErrEmptyReceiver = errors.New("receiver is empty")

	// ErrSelfCompliment is returned when sender and receiver are the same
	// identity.
	ErrSelfCompliment = errors.New("cannot send a compliment to yourself")
)

// Membership and lookup errors.
var (
	// ErrGroupNotFound indicates that the requested group id does not
	// resolve to an existing group.
	ErrGroupNotFound = errors.New("group not found")

	// ErrNotMember is returned when a compliment write names a sender or
	// receiver who does not currently hold a membership in the target
	// group.
	ErrNotMember = errors.New("not a member of this group")
)
