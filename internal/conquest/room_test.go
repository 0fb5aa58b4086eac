package conquest

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ufoarena/realtime-server/internal/registry"
	"github.com/ufoarena/realtime-server/internal/room"
)

func testLogger() zerolog.Logger { return zerolog.Nop() }

func TestNewDerivesSeedFromGalaxyIDDeterministically(t *testing.T) {
	r1 := New(testLogger(), "galaxy-7", "Galaxy Seven", Dependencies{}, nil)
	r2 := New(testLogger(), "galaxy-7", "Galaxy Seven", Dependencies{}, nil)
	assert.Equal(t, r1.galaxy.Seed, r2.galaxy.Seed)
}

func TestJoinAssignsHomePlanetToNewPlayer(t *testing.T) {
	r := New(testLogger(), "galaxy-1", "Galaxy One", Dependencies{}, nil)
	sess := &room.Session{ID: "s1", Address: "0xaaa", Send: make(chan []byte, 1)}

	err := r.Join(context.Background(), sess)
	require.NoError(t, err)

	playerID, ok := r.addrToPlayer["0xaaa"]
	require.True(t, ok)
	player := r.galaxy.Players[playerID]
	require.NotNil(t, player)
	home := r.galaxy.Planets[player.HomePlanetID]
	assert.Equal(t, playerID, home.OwnerID)
	assert.Greater(t, home.Units, 0.0)
}

func TestJoinRejectsSessionWithoutAddress(t *testing.T) {
	r := New(testLogger(), "galaxy-1", "Galaxy One", Dependencies{}, nil)
	sess := &room.Session{ID: "s1", Send: make(chan []byte, 1)}
	err := r.Join(context.Background(), sess)
	assert.Error(t, err)
}

func TestJoinReconnectsExistingPlayerByAddress(t *testing.T) {
	r := New(testLogger(), "galaxy-1", "Galaxy One", Dependencies{}, nil)
	sess1 := &room.Session{ID: "s1", Address: "0xaaa", Send: make(chan []byte, 1)}
	require.NoError(t, r.Join(context.Background(), sess1))
	firstPlayerID := r.addrToPlayer["0xaaa"]
	r.Leave(sess1)
	assert.False(t, r.galaxy.Players[firstPlayerID].Online)

	sess2 := &room.Session{ID: "s2", Address: "0xaaa", Send: make(chan []byte, 1)}
	require.NoError(t, r.Join(context.Background(), sess2))

	assert.Equal(t, firstPlayerID, r.addrToPlayer["0xaaa"])
	assert.True(t, r.galaxy.Players[firstPlayerID].Online)
	assert.Len(t, r.galaxy.Players, 1, "reconnect must not create a second player slot")
}

func TestLeaveMarksPlayerOfflineWithoutEvictingGalaxyState(t *testing.T) {
	r := New(testLogger(), "galaxy-1", "Galaxy One", Dependencies{}, nil)
	sess := &room.Session{ID: "s1", Address: "0xaaa", Send: make(chan []byte, 1)}
	require.NoError(t, r.Join(context.Background(), sess))
	playerID := r.addrToPlayer["0xaaa"]

	r.Leave(sess)

	_, stillSession := r.sessions[sess.ID]
	assert.False(t, stillSession)
	assert.Contains(t, r.galaxy.Players, playerID)
	assert.False(t, r.galaxy.Players[playerID].Online)
}

func TestTickMarksDirtyPlanetOnOwnershipChange(t *testing.T) {
	r := New(testLogger(), "galaxy-1", "Galaxy One", Dependencies{}, nil)
	var anyID int
	for id := range r.galaxy.Planets {
		anyID = id
		break
	}
	r.Tick(0)
	r.DrainDirty()

	r.galaxy.Planets[anyID].OwnerID = "p1"
	r.Tick(100)

	dirty := r.DrainDirty()
	assert.Contains(t, dirty, anyID)
}

func TestDrainDirtyClearsAfterReturning(t *testing.T) {
	r := New(testLogger(), "galaxy-1", "Galaxy One", Dependencies{}, nil)
	r.dirtyPlanets[1] = true
	first := r.DrainDirty()
	assert.NotEmpty(t, first)
	second := r.DrainDirty()
	assert.Empty(t, second)
}

func TestRevealZoneForCentersOnHomePlanet(t *testing.T) {
	r := New(testLogger(), "galaxy-1", "Galaxy One", Dependencies{}, nil)
	sess := &room.Session{ID: "s1", Address: "0xaaa", Send: make(chan []byte, 1)}
	require.NoError(t, r.Join(context.Background(), sess))
	player := r.galaxy.Players[r.addrToPlayer["0xaaa"]]

	zone := r.RevealZoneFor(player)
	home := r.galaxy.Planets[player.HomePlanetID]
	assert.Equal(t, home.Static.X, zone.X)
	assert.Equal(t, home.Static.Y, zone.Y)
	assert.True(t, zone.Permanent)
}

func TestSaveNowDebouncesRapidCalls(t *testing.T) {
	dir := t.TempDir()
	reg := registry.New()
	r := New(testLogger(), "galaxy-1", "Galaxy One", Dependencies{Registry: reg, SaveDir: dir}, nil)

	r.SaveNow()
	firstSaveAt := r.lastSaveAt
	r.SaveNow()
	assert.Equal(t, firstSaveAt, r.lastSaveAt, "a second call within the debounce window should not re-save")
}

func TestHandleMessageBuildPlacesBuildingAndRepliesSuccess(t *testing.T) {
	r := New(testLogger(), "galaxy-1", "Galaxy One", Dependencies{}, nil)
	sess := &room.Session{ID: "s1", Address: "0xaaa", Send: make(chan []byte, 4)}
	require.NoError(t, r.Join(context.Background(), sess))
	homeID := r.galaxy.Players[r.addrToPlayer["0xaaa"]].HomePlanetID

	payload, err := json.Marshal(buildPayload{PlanetID: homeID, Slot: 0, BuildingType: BuildingMine})
	require.NoError(t, err)
	r.HandleMessage(sess, "build", payload)

	assert.Equal(t, 1, r.galaxy.Planets[homeID].Buildings[BuildingMine])
	select {
	case frame := <-sess.Send:
		assert.Contains(t, string(frame), "build_result")
		assert.Contains(t, string(frame), `"success":true`)
	default:
		t.Fatal("expected a build_result event")
	}
}

func TestHandleMessageBuildOnUnownedPlanetRepliesFailure(t *testing.T) {
	r := New(testLogger(), "galaxy-1", "Galaxy One", Dependencies{}, nil)
	sess := &room.Session{ID: "s1", Address: "0xaaa", Send: make(chan []byte, 4)}
	require.NoError(t, r.Join(context.Background(), sess))

	var otherID int
	homeID := r.galaxy.Players[r.addrToPlayer["0xaaa"]].HomePlanetID
	for id := range r.galaxy.Planets {
		if id != homeID {
			otherID = id
			break
		}
	}

	payload, err := json.Marshal(buildPayload{PlanetID: otherID, Slot: 0, BuildingType: BuildingMine})
	require.NoError(t, err)
	r.HandleMessage(sess, "build", payload)

	select {
	case frame := <-sess.Send:
		assert.Contains(t, string(frame), `"success":false`)
	default:
		t.Fatal("expected a build_result event")
	}
}

func TestHandleMessageToggleGenFlipsShieldOnOwnedPlanetWithGenerator(t *testing.T) {
	r := New(testLogger(), "galaxy-1", "Galaxy One", Dependencies{}, nil)
	sess := &room.Session{ID: "s1", Address: "0xaaa", Send: make(chan []byte, 4)}
	require.NoError(t, r.Join(context.Background(), sess))
	homeID := r.galaxy.Players[r.addrToPlayer["0xaaa"]].HomePlanetID
	r.galaxy.Planets[homeID].Buildings[BuildingShieldGen] = 1

	payload, err := json.Marshal(toggleGenPayload{PlanetID: homeID})
	require.NoError(t, err)
	r.HandleMessage(sess, "toggle_gen", payload)

	assert.True(t, r.galaxy.Planets[homeID].Shield)
}

func TestHandleMessageLaunchAttackConsumesUnitsFromOwnedPlanet(t *testing.T) {
	r := New(testLogger(), "galaxy-1", "Galaxy One", Dependencies{}, nil)
	sess := &room.Session{ID: "s1", Address: "0xaaa", Send: make(chan []byte, 4)}
	require.NoError(t, r.Join(context.Background(), sess))
	homeID := r.galaxy.Players[r.addrToPlayer["0xaaa"]].HomePlanetID
	r.galaxy.Planets[homeID].Units = 1000

	var targetID int
	for id := range r.galaxy.Planets {
		if id != homeID {
			targetID = id
			break
		}
	}

	payload, err := json.Marshal(launchAttackPayload{FromID: homeID, ToID: targetID, Percent: 50})
	require.NoError(t, err)
	r.HandleMessage(sess, "launch_attack", payload)

	assert.Equal(t, 500.0, r.galaxy.Planets[homeID].Units)
	assert.Len(t, r.galaxy.Attacks, 1)
}

func TestHandleMessageAbilityShieldPulseEmitsAbilityUsed(t *testing.T) {
	r := New(testLogger(), "galaxy-1", "Galaxy One", Dependencies{}, nil)
	sess := &room.Session{ID: "s1", Address: "0xaaa", Send: make(chan []byte, 4)}
	require.NoError(t, r.Join(context.Background(), sess))
	homeID := r.galaxy.Players[r.addrToPlayer["0xaaa"]].HomePlanetID
	r.galaxy.Planets[homeID].Units = 200

	payload, err := json.Marshal(abilityPayload{AbilityID: "shield_pulse", TargetPlanetID: homeID})
	require.NoError(t, err)
	r.HandleMessage(sess, "ability", payload)

	assert.True(t, r.galaxy.Planets[homeID].Shield)

	var sawResult, sawUsed bool
	for i := 0; i < 2; i++ {
		select {
		case frame := <-sess.Send:
			s := string(frame)
			sawResult = sawResult || strings.Contains(s, "ability_result")
			sawUsed = sawUsed || strings.Contains(s, "ability_used")
		default:
		}
	}
	assert.True(t, sawResult)
	assert.True(t, sawUsed)
}

func TestHandleMessageIgnoresUnknownSession(t *testing.T) {
	r := New(testLogger(), "galaxy-1", "Galaxy One", Dependencies{}, nil)
	sess := &room.Session{ID: "ghost", Address: "0xzzz", Send: make(chan []byte, 1)}
	payload, err := json.Marshal(toggleGenPayload{PlanetID: 1})
	require.NoError(t, err)
	assert.NotPanics(t, func() { r.HandleMessage(sess, "toggle_gen", payload) })
}

func TestDisposeUnregistersRoom(t *testing.T) {
	reg := registry.New()
	r := New(testLogger(), "galaxy-1", "Galaxy One", Dependencies{Registry: reg}, nil)
	reg.SetPlayerCount("galaxy-1", 1)

	r.Dispose(context.Background())

	snap := reg.Snapshot()
	assert.Equal(t, 0, snap.TotalRooms)
}
