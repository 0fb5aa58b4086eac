package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ufoarena/realtime-server/internal/room"
)

// echoRoom accepts every join and echoes HandleMessage payloads back onto
// the session's Send channel, so transport tests can assert end-to-end
// delivery without depending on a real combat/conquest room.
type echoRoom struct {
	id string
}

func (e *echoRoom) ID() string   { return e.id }
func (e *echoRoom) Name() string { return e.id }
func (e *echoRoom) Kind() string { return "echo" }
func (e *echoRoom) Join(ctx context.Context, sess *room.Session) error { return nil }
func (e *echoRoom) Leave(sess *room.Session)                          {}
func (e *echoRoom) HandleMessage(sess *room.Session, msgType string, payload []byte) {
	sess.Send <- Event("echo", map[string]string{"got": msgType})
}
func (e *echoRoom) Tick(nowUnixMS int64)        {}
func (e *echoRoom) Dispose(ctx context.Context) {}

func newTestServer(t *testing.T, hub *Hub) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, zerolog.Nop(), w, r, "room-1", "0xaaa", nil)
	}))
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return srv, wsURL
}

func TestServeWSJoinsAndEchoesMessages(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hub.Add(context.Background(), &echoRoom{id: "room-1"}, time.Hour)
	_, wsURL := newTestServer(t, hub)

	c, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.WriteJSON(ClientMessage{Type: "player_ready"}))

	var reply ServerMessage
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, c.ReadJSON(&reply))
	assert.Equal(t, "echo", reply.Type)
}

func TestServeWSRejectsUnknownRoom(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, zerolog.Nop(), w, r, "does-not-exist", "0xaaa", nil)
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeWSIssuesReconnectTokenWhenRegistryProvided(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hub.Add(context.Background(), &echoRoom{id: "room-1"}, time.Hour)
	reconnects := NewReconnectRegistry(time.Minute)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, zerolog.Nop(), w, r, "room-1", "0xaaa", reconnects)
	}))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	c, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer c.Close()

	token := resp.Header.Get("X-Reconnect-Token")
	require.NotEmpty(t, token)
	roomID, addr, ok := reconnects.Redeem(token)
	require.True(t, ok)
	assert.Equal(t, "room-1", roomID)
	assert.Equal(t, "0xaaa", addr)
}

func TestIsAllowedOriginPermitsLocalhostAndRejectsForeign(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/ws", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	assert.True(t, isAllowedOrigin(req))

	req2 := httptest.NewRequest(http.MethodGet, "http://example.com/ws", nil)
	req2.Header.Set("Origin", "http://evil.example")
	assert.False(t, isAllowedOrigin(req2))

	req3 := httptest.NewRequest(http.MethodGet, "http://example.com/ws", nil)
	assert.True(t, isAllowedOrigin(req3), "no Origin header at all means a non-browser client")
}
