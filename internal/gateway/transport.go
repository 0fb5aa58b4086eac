package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ufoarena/realtime-server/internal/room"
)

const (
	readDeadline    = 60 * time.Second
	writeDeadline   = 10 * time.Second
	pingInterval    = 54 * time.Second
	sendBufferSize  = 256
	inboundRateRPS  = 30 // sustained inbound messages/sec per session
	inboundRateBurst = 60
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       isAllowedOrigin,
	EnableCompression: true,
}

// isAllowedOrigin permits same-origin and localhost connections; a caller
// embedding the gateway behind a different deployment topology can widen
// this, but the default stays conservative.
func isAllowedOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // non-browser client, no Origin header to check
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if r.Host == u.Host {
		return true
	}
	return strings.HasPrefix(u.Host, "localhost:") || strings.HasPrefix(u.Host, "127.0.0.1:") ||
		u.Host == "localhost" || u.Host == "127.0.0.1"
}

// conn is one websocket-backed client attachment: the session the rooms
// see, plus the transport machinery (socket, pumps, rate limiting) the
// rooms never touch.
type conn struct {
	sess    *room.Session
	socket  *websocket.Conn
	hub     *Hub
	log     zerolog.Logger
	roomID  string
	limiter *rate.Limiter
}

// ServeWS upgrades an HTTP request to a websocket, joins the named room,
// and runs the session until the socket closes or the room rejects it.
// address is the caller's resolved wallet address (from auth middleware or
// a redeemed reconnect token, out of this package's scope); roomID names
// the target room already registered in hub. reconnects may be nil, in
// which case no reconnect token is issued on join.
func ServeWS(hub *Hub, log zerolog.Logger, w http.ResponseWriter, r *http.Request, roomID, address string, reconnects *ReconnectRegistry) {
	target, err := hub.MustLookup(roomID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	var respHeader http.Header
	if reconnects != nil && address != "" {
		respHeader = http.Header{"X-Reconnect-Token": {reconnects.Issue(roomID, address)}}
	}
	socket, err := upgrader.Upgrade(w, r, respHeader)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sess := &room.Session{ID: uuid.NewString(), Address: address, Send: make(chan []byte, sendBufferSize)}
	c := &conn{
		sess: sess, socket: socket, hub: hub, roomID: roomID,
		log:     log.With().Str("session_id", sess.ID).Str("room_id", roomID).Logger(),
		limiter: rate.NewLimiter(rate.Limit(inboundRateRPS), inboundRateBurst),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := target.Join(ctx, sess); err != nil {
		c.log.Info().Err(err).Msg("join rejected")
		_ = socket.WriteJSON(ServerMessage{Type: "join_denied", Data: map[string]string{"reason": err.Error()}})
		socket.Close()
		return
	}

	go c.writePump()
	c.readPump(target)
}

// readPump applies every inbound frame to the room in receive order, then
// leaves on socket close — the per-session FIFO delivery spec.md §4.12
// requires, since a single goroutine per session can never reorder its own
// reads.
func (c *conn) readPump(target room.Room) {
	defer func() {
		target.Leave(c.sess)
		c.socket.Close()
	}()

	c.socket.SetReadDeadline(time.Now().Add(readDeadline))
	c.socket.SetPongHandler(func(string) error {
		c.socket.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		var msg ClientMessage
		if err := c.socket.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug().Err(err).Msg("websocket read error")
			}
			return
		}
		if !c.limiter.Allow() {
			continue // silently drop; the sender is already over budget
		}
		target.HandleMessage(c.sess, msg.Type, msg.Data)
	}
}

// writePump drains the session's Send channel onto the socket and keeps
// the connection alive with periodic pings. Rooms write pre-encoded frames
// to Send; this is the only goroutine that touches the socket for writes,
// matching gorilla/websocket's single-writer requirement.
func (c *conn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.socket.Close()
	}()

	for {
		select {
		case frame, ok := <-c.sess.Send:
			c.socket.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.socket.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
