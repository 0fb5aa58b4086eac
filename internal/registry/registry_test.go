package registry

import "testing"

func TestJoinLeaveRoundTrips(t *testing.T) {
	r := New()
	r.Register("room-1", KindCombat)
	r.SetPlayerCount("room-1", 1)
	r.SetPlayerCount("room-1", 2)
	r.SetPlayerCount("room-1", 1)
	r.SetPlayerCount("room-1", 0)

	snap := r.Snapshot()
	if snap.TotalRooms != 1 {
		t.Fatalf("expected 1 total room, got %d", snap.TotalRooms)
	}
	if snap.ActiveRooms != 0 || snap.WaitingRooms != 0 {
		t.Fatalf("expected room to be idle after full round trip, got %+v", snap)
	}
}

func TestPresenceExcludedFromTotals(t *testing.T) {
	r := New()
	r.Register("presence-1", KindPresence)
	r.SetPlayerCount("presence-1", 5)
	r.Register("combat-1", KindCombat)
	r.SetPlayerCount("combat-1", 2)

	snap := r.Snapshot()
	if snap.TotalRooms != 1 {
		t.Fatalf("expected presence room excluded from TotalRooms, got %d", snap.TotalRooms)
	}
	if snap.PresencePlayers != 5 {
		t.Fatalf("expected 5 presence players, got %d", snap.PresencePlayers)
	}
	if snap.ActiveRooms != 1 {
		t.Fatalf("expected 1 active room, got %d", snap.ActiveRooms)
	}
}

func TestUnregisterRemovesRoom(t *testing.T) {
	r := New()
	r.Register("room-1", KindConquest)
	r.SetPlayerCount("room-1", 3)
	r.Unregister("room-1")

	snap := r.Snapshot()
	if snap.TotalRooms != 0 {
		t.Fatalf("expected 0 rooms after unregister, got %d", snap.TotalRooms)
	}
}

func TestWaitingVsActiveBoundary(t *testing.T) {
	r := New()
	r.Register("w", KindCombat)
	r.SetPlayerCount("w", 1)
	r.Register("a", KindCombat)
	r.SetPlayerCount("a", 2)

	snap := r.Snapshot()
	if snap.WaitingRooms != 1 || snap.ActiveRooms != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}
