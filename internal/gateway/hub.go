package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ufoarena/realtime-server/internal/room"
)

type hubEntry struct {
	room   room.Room
	cancel context.CancelFunc
}

// Hub is the process-wide table of live rooms a gateway can route sessions
// into. Adding a room starts its own fixed-rate tick goroutine immediately;
// room lifetime (create/dispose) is otherwise owned by whatever constructs
// rooms (cmd/server), not by the Hub itself.
type Hub struct {
	mu      sync.RWMutex
	entries map[string]hubEntry
	log     zerolog.Logger
}

// NewHub returns an empty Hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{entries: make(map[string]hubEntry), log: log}
}

// Add registers a room and starts ticking it every interval (30Hz combat,
// 10Hz conquest, per spec.md §2) until Remove is called or ctx is done.
func (h *Hub) Add(ctx context.Context, r room.Room, interval time.Duration) {
	tickCtx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.entries[r.ID()] = hubEntry{room: r, cancel: cancel}
	h.mu.Unlock()

	h.log.Info().Str("room_id", r.ID()).Str("kind", r.Kind()).Dur("interval", interval).Msg("room added to hub")
	go runRoomTicker(tickCtx, r, h.log, interval)
}

// Remove stops a room's ticker and drops it from the routing table; it
// does not dispose it — the caller still owns that.
func (h *Hub) Remove(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := h.entries[roomID]; ok {
		e.cancel()
		delete(h.entries, roomID)
	}
}

// Lookup returns the room registered under roomID, if any.
func (h *Hub) Lookup(roomID string) (room.Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.entries[roomID]
	return e.room, ok
}

// MustLookup is Lookup with an error instead of a bool, for call sites that
// have nothing sensible to do but reject the connection.
func (h *Hub) MustLookup(roomID string) (room.Room, error) {
	r, ok := h.Lookup(roomID)
	if !ok {
		return nil, fmt.Errorf("gateway: unknown room %q", roomID)
	}
	return r, nil
}

// Rooms returns a snapshot slice of every currently registered room.
func (h *Hub) Rooms() []room.Room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]room.Room, 0, len(h.entries))
	for _, e := range h.entries {
		out = append(out, e.room)
	}
	return out
}

// Shutdown stops every room's ticker and disposes them concurrently,
// returning once every Dispose call has returned. ctx is passed to each
// Dispose; Shutdown itself does not return early when ctx expires.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	entries := make([]hubEntry, 0, len(h.entries))
	for _, e := range h.entries {
		entries = append(entries, e)
	}
	h.entries = make(map[string]hubEntry)
	h.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, e := range entries {
		e := e
		e.cancel()
		g.Go(func() error {
			e.room.Dispose(gctx)
			return nil
		})
	}
	return g.Wait()
}
