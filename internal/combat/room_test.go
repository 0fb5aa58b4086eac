package combat

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ufoarena/realtime-server/internal/room"
)

func newTestRoom() *Room {
	return New(zerolog.Nop(), "room-1", "arena-1", Dependencies{}, 0)
}

func TestRoomJoinLobbyThenBothTransitions(t *testing.T) {
	r := newTestRoom()
	ctx := context.Background()

	s1 := &room.Session{ID: "s1", Address: "0x0000000000000000000000000000000000000001"}
	require.NoError(t, r.Join(ctx, s1))
	assert.Equal(t, PhaseLobby, r.phase)

	s2 := &room.Session{ID: "s2", Address: "0x0000000000000000000000000000000000000002"}
	require.NoError(t, r.Join(ctx, s2))
	assert.Equal(t, PhaseLobbyBoth, r.phase)
}

func TestRoomRejectsThirdPlayer(t *testing.T) {
	r := newTestRoom()
	ctx := context.Background()
	require.NoError(t, r.Join(ctx, &room.Session{ID: "s1", Address: "0x01"}))
	require.NoError(t, r.Join(ctx, &room.Session{ID: "s2", Address: "0x02"}))
	err := r.Join(ctx, &room.Session{ID: "s3", Address: "0x03"})
	assert.Error(t, err)
}

func TestRoomStartsOnceBothReady(t *testing.T) {
	r := newTestRoom()
	ctx := context.Background()
	require.NoError(t, r.Join(ctx, &room.Session{ID: "s1", Address: "0x01"}))
	require.NoError(t, r.Join(ctx, &room.Session{ID: "s2", Address: "0x02"}))

	r.SetReady("s1", 0)
	assert.Equal(t, PhaseLobbyBoth, r.phase, "match should not start until both players are ready")

	r.SetReady("s2", 10)
	assert.Equal(t, PhasePlaying, r.phase)
}

func TestRoomLeaveDuringMatchEndsWithRemainingWinner(t *testing.T) {
	r := newTestRoom()
	ctx := context.Background()
	s1 := &room.Session{ID: "s1", Address: "0x01"}
	s2 := &room.Session{ID: "s2", Address: "0x02"}
	require.NoError(t, r.Join(ctx, s1))
	require.NoError(t, r.Join(ctx, s2))
	r.SetReady("s1", 0)
	r.SetReady("s2", 0)
	require.Equal(t, PhasePlaying, r.phase)

	r.Leave(s1)
	assert.Equal(t, PhaseEnded, r.phase)
	assert.Equal(t, "player_left", r.endReason)
	assert.Equal(t, "s2", r.winnerSID)
}

func TestRoomTickDisposesIdleLobbyAfterTimeout(t *testing.T) {
	r := newTestRoom()
	ctx := context.Background()
	require.NoError(t, r.Join(ctx, &room.Session{ID: "s1", Address: "0x01"}))

	r.Tick(nowMS() + lobbyWaitTimeout.Milliseconds() + 1)
	assert.Equal(t, PhaseDisposed, r.phase)
}

func TestRoomTickEndsMatchOnElimination(t *testing.T) {
	r := newTestRoom()
	ctx := context.Background()
	require.NoError(t, r.Join(ctx, &room.Session{ID: "s1", Address: "0x01"}))
	require.NoError(t, r.Join(ctx, &room.Session{ID: "s2", Address: "0x02"}))
	r.SetReady("s1", 0)
	r.SetReady("s2", 0)

	r.players["s1"].State.HP = 0
	r.Tick(1)
	assert.Equal(t, PhaseEnded, r.phase)
	assert.Equal(t, "elimination", r.endReason)
	assert.Equal(t, "s2", r.winnerSID)
}

func TestRoomUnconfiguredTicketsAllowsJoin(t *testing.T) {
	r := newTestRoom()
	err := r.Join(context.Background(), &room.Session{ID: "s1", Address: "0x01"})
	assert.NoError(t, err)
}
