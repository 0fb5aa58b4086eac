package gateway

import (
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// reconnectTicket is what a reconnect token resolves back to: enough to
// re-admit the holder to the room they were bounced from.
type reconnectTicket struct {
	RoomID  string
	Address string
}

// ReconnectRegistry issues and redeems reconnect tokens, per spec.md §4.12
// and the conquest reconnection window (spec.md §5, 600s). Combat rooms
// lock on match start and never honor reconnects; conquest rooms reconnect
// by address directly, so a token here is a convenience for clients that
// don't retain their wallet address client-side, not the only path back in.
type ReconnectRegistry struct {
	cache *gocache.Cache
}

// NewReconnectRegistry returns a registry whose tokens expire after window.
func NewReconnectRegistry(window time.Duration) *ReconnectRegistry {
	if window <= 0 {
		window = 600 * time.Second
	}
	return &ReconnectRegistry{cache: gocache.New(window, window*2)}
}

// Issue mints a fresh token bound to roomID/address, valid for this
// registry's window.
func (r *ReconnectRegistry) Issue(roomID, address string) string {
	token := uuid.NewString()
	r.cache.SetDefault(token, reconnectTicket{RoomID: roomID, Address: address})
	return token
}

// Redeem looks up a token without consuming it — a dropped connection may
// retry the same token until it expires or the session re-admits.
func (r *ReconnectRegistry) Redeem(token string) (roomID, address string, ok bool) {
	v, found := r.cache.Get(token)
	if !found {
		return "", "", false
	}
	t := v.(reconnectTicket)
	return t.RoomID, t.Address, true
}

// Revoke removes a token immediately, e.g. once a session cleanly quits.
func (r *ReconnectRegistry) Revoke(token string) {
	r.cache.Delete(token)
}
