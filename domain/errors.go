package domain

import "errors"

var (
	// ErrConnectionNotFound is returned when an operation references a
	// connection that was already reaped. Callers treat it as a no-op.
	ErrConnectionNotFound = errors.New("connection not found")

	// ErrResourceExhausted is returned when the registry is at capacity.
	// The handshake should be rejected with a retryable status.
	ErrResourceExhausted = errors.New("connection registry at capacity")

	// ErrDeliveryFailed marks a failed write to one socket. The connection
	// is presumed dead; other recipients are unaffected.
	ErrDeliveryFailed = errors.New("delivery to connection failed")

	// ErrStaleUpdate marks a presence update older than the state it
	// tried to replace. It is discarded, never applied.
	ErrStaleUpdate = errors.New("stale presence update")

	// ErrAudienceResolution means the membership collaborator could not
	// resolve an audience descriptor. The event is dropped for real time.
	ErrAudienceResolution = errors.New("audience resolution failed")

	ErrUnknownFrame = errors.New("unknown frame type")
)
