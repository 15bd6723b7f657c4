// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes the symbolic error code constants mapped to HTTP
// responses via the fail() helper. The codes give clients a stable,
// machine-readable taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase snake_case.
//   - Generic codes (bad_request, unauthorized, not_found, ...) mirror common
//     HTTP status semantics.
//   - Domain-specific codes (not_a_member, self_compliment, group_deleted)
//     cover business rules a status alone cannot convey.
//   - Every error response carries both an HTTP status and one of these codes.
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeNameRequired     = "name_required"
	ErrCodeMessageRequired  = "message_required"
	ErrCodeMessageTooLong   = "message_too_long"
	ErrCodeReceiverRequired = "receiver_required"
	ErrCodeSelfCompliment   = "self_compliment"
	ErrCodeNotAMember       = "not_a_member"
	ErrCodeGroupNotFound    = "group_not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
