// Package handlers implements the HTTP endpoints of the webhook receiver.
//
// This file centralizes the symbolic error codes mapped to HTTP responses via
// the fail() helper. Codes are lowercase snake_case; generic codes mirror
// common HTTP status semantics, domain-specific codes cover failures the
// status alone cannot convey.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"

	// Domain-specific:
	ErrCodeInvalidSignature = "invalid_signature"
	ErrCodeVerifyFailed     = "verify_failed"
)
