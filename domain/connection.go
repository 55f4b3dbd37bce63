package domain

import "time"

// ConnID identifies one live connection. The user component routes
// registry lookups to the right shard without a second index.
type ConnID struct {
	User uint64
	Seq  uint64
}

// WebsocketConnection is the slice of *websocket.Conn the registry needs.
type WebsocketConnection interface {
	WriteJSON(any) error
	Close() error
}

// ConnectionRegistry tracks live connections keyed by user. A user may own
// any number of concurrent connections (tabs, devices).
type ConnectionRegistry interface {
	// Register adds a connection under the user and starts its write pump.
	// Fails only with ErrResourceExhausted.
	Register(userID uint64, conn WebsocketConnection) (ConnID, error)

	// Unregister removes the connection. Idempotent.
	Unregister(id ConnID)

	// ConnectionsFor returns a point-in-time snapshot, possibly empty.
	ConnectionsFor(userID uint64) []ConnID

	// Touch records a heartbeat response. Unknown ids are a logged no-op.
	Touch(id ConnID)

	// Enqueue queues a frame for delivery on the connection's write pump.
	// A full outbound buffer fails with ErrDeliveryFailed rather than
	// blocking the caller.
	Enqueue(id ConnID, frame any) error

	// LastPong returns the last heartbeat time for a connection.
	LastPong(id ConnID) (time.Time, bool)
}
