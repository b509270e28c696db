// Package services defines the business logic for key fulfillment, payment
// orders, link bypassing, and analytics. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing replies or HTTP status codes is performed at the dispatch
// and handler layers.
package services

import "errors"

// Key fulfillment errors.
var (
	// ErrUnknownService is returned when a requested service name is absent
	// from the catalog. The check happens before any network call.
	ErrUnknownService = errors.New("unknown service")

	// ErrDeliveryFailed wraps transport errors and non-2xx statuses from a
	// key-issuance or payment endpoint.
	ErrDeliveryFailed = errors.New("endpoint delivery failed")

	// ErrInvalidKeyResponse is returned when an issuance endpoint responds
	// with a missing or too-short key. The length floor guards against
	// endpoints returning error text, empty bodies, or truncated values.
	ErrInvalidKeyResponse = errors.New("invalid key in response")

	// ErrDeliveryBlocked indicates the requester refuses private messages.
	// It is recoverable: fulfillment falls back to an ephemeral disclosure.
	ErrDeliveryBlocked = errors.New("private delivery blocked")

	// ErrNoStoredKey is returned by resend when no key has been issued to the
	// requester since the process started.
	ErrNoStoredKey = errors.New("no stored key for user")
)

// Payment errors.
var (
	// ErrAuthFailed indicates the provider credential exchange was rejected.
	ErrAuthFailed = errors.New("payment provider authentication failed")

	// ErrNoApprovalLink is returned when an order-create response carries no
	// approval hyperlink in its link collection.
	ErrNoApprovalLink = errors.New("no approval link in order response")
)

// Access and throttling errors, surfaced by the dispatch layer.
var (
	// ErrUnauthorized indicates an access-gate denial. It is rendered as a
	// user-visible refusal, never as an internal failure.
	ErrUnauthorized = errors.New("not authorized")

	// ErrRateLimited indicates the requester is inside a cooldown window.
	ErrRateLimited = errors.New("rate limited")
)
