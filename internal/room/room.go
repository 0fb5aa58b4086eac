// Package room defines the lifecycle contract shared by every room kind
// (spec.md §1): create, join, message, leave, tick, dispose. Each room
// owns its state exclusively; nothing outside the room's own tick step
// or message handler may read or write it (spec.md §5).
package room

import "context"

// Session is a single connected client bound to a room.
type Session struct {
	ID      string
	Address string
	Send    chan []byte
}

// Room is the behavior every room kind implements. The gateway routes
// inbound session traffic to a Room and drives its Tick on a fixed
// schedule; nothing else touches Room state concurrently.
type Room interface {
	ID() string
	Name() string
	Kind() string

	// Join admits a session, returning an error if the room is full,
	// locked, or the session fails an admission check (ticket, auth).
	Join(ctx context.Context, sess *Session) error

	// Leave removes a session, e.g. on disconnect.
	Leave(sess *Session)

	// HandleMessage applies one inbound message from sess. Called from
	// the gateway's per-session read goroutine in receive order; it can
	// run concurrently with Tick, so implementations guard their state
	// with their own lock.
	HandleMessage(sess *Session, msgType string, payload []byte)

	// Tick advances the room's simulation by one step. nowUnixMS is the
	// tick's logical timestamp, passed in so simulation stays
	// deterministic and testable without a wall clock.
	Tick(nowUnixMS int64)

	// Dispose releases resources (timers, recorder finalize, registry
	// unregister). Called exactly once, after the room's last tick.
	Dispose(ctx context.Context)
}
