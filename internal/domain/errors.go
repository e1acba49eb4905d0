package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Relay error taxonomy. All of these are suppressed at the dispatch
// boundary: the operation becomes a no-op, the event is journaled for
// operator visibility, and nothing is reported back to the sender.

var (
	// ErrUnresolvedTarget means the target application identity has no
	// live connection.
	ErrUnresolvedTarget = errors.New("target not connected")

	// ErrUnregisteredSender means a message arrived from a connection
	// that never registered.
	ErrUnregisteredSender = errors.New("sender not registered")

	// ErrMissingLocation means a hire was attempted before the customer
	// reported a location.
	ErrMissingLocation = errors.New("customer location unknown")

	// ErrRoleMismatch means an operation was attempted by the wrong
	// role, e.g. an availability toggle from a customer.
	ErrRoleMismatch = errors.New("operation not valid for role")

	// ErrBadPayload means an envelope payload did not decode.
	ErrBadPayload = errors.New("malformed payload")

	// ErrUnknownEvent means an envelope named no known event.
	ErrUnknownEvent = errors.New("unknown event")
)
