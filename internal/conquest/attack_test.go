package conquest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ufoarena/realtime-server/internal/galaxy"
)

func newTestGalaxyWithTwoPlanets() *Galaxy {
	home := NewPlanet(galaxy.Planet{ID: 1, X: 0, Y: 0, Radius: 50, ParentID: -1})
	target := NewPlanet(galaxy.Planet{ID: 2, X: 500, Y: 0, Radius: 50, ParentID: -1})
	home.OwnerID = "p1"
	home.Units = 1000
	target.OwnerID = "p2"
	target.Units = 10
	return &Galaxy{
		Planets: map[int]*Planet{1: home, 2: target},
		Players: map[string]*Player{
			"p1": {ID: "p1", HomePlanetID: 1, Alive: true},
			"p2": {ID: "p2", HomePlanetID: 2, Alive: true},
		},
		Attacks: make(map[string]*Attack),
	}
}

func TestLaunchAttackConsumesUnitsFromSource(t *testing.T) {
	g := newTestGalaxyWithTwoPlanets()
	a, err := g.LaunchAttack("p1", 1, 2, 50, false)
	require.NoError(t, err)
	assert.Equal(t, 500.0, g.Planets[1].Units)
	assert.Equal(t, 500.0, a.Units)
	assert.Equal(t, ShipFighter, a.ShipClass)
}

func TestLaunchAttackRejectsNonOwner(t *testing.T) {
	g := newTestGalaxyWithTwoPlanets()
	_, err := g.LaunchAttack("p2", 1, 2, 50, false)
	assert.Error(t, err)
}

func TestLaunchAttackRejectsUnderOneUnit(t *testing.T) {
	g := newTestGalaxyWithTwoPlanets()
	g.Planets[1].Units = 1
	_, err := g.LaunchAttack("p1", 1, 2, 50, false)
	assert.Error(t, err)
}

func TestDistanceDecayedUnitsHoldsBelowThreshold(t *testing.T) {
	a := &Attack{StartUnits: 100, Traveled: distanceDecayStart - 1}
	assert.Equal(t, 100.0, distanceDecayedUnits(a))
}

func TestDistanceDecayedUnitsAppliesLossPastThreshold(t *testing.T) {
	a := &Attack{StartUnits: 100, Traveled: distanceDecayStart + 300, ShipClass: ShipPod}
	got := distanceDecayedUnits(a)
	assert.Less(t, got, 100.0)
	assert.GreaterOrEqual(t, got, 0.0)
}

func TestApplyShieldReducesAttackAndConsumesGenerator(t *testing.T) {
	g := newTestGalaxyWithTwoPlanets()
	target := g.Planets[2]
	target.Shield = true
	target.Units = 40
	target.Buildings[BuildingShieldGen] = 1

	a := &Attack{OwnerID: "p1", X: target.Static.X, Y: target.Static.Y, Units: 100}
	g.applyShield(a, target)

	assert.Equal(t, 60.0, a.Units)
	assert.False(t, target.Shield)
	assert.Equal(t, 0, target.Buildings[BuildingShieldGen])
}

func TestApplyShieldIgnoresSameOwnerAttack(t *testing.T) {
	g := newTestGalaxyWithTwoPlanets()
	target := g.Planets[2]
	target.Shield = true
	target.OwnerID = "p1"

	a := &Attack{OwnerID: "p1", X: target.Static.X, Y: target.Static.Y, Units: 100}
	g.applyShield(a, target)
	assert.Equal(t, 100.0, a.Units)
	assert.True(t, target.Shield)
}

func TestResolveArrivalReinforcesSameOwner(t *testing.T) {
	g := newTestGalaxyWithTwoPlanets()
	target := g.Planets[2]
	target.OwnerID = "p1"
	target.Units = 10
	target.MaxUnits = 100

	a := &Attack{OwnerID: "p1", Units: 50}
	g.resolveArrival(a, target)
	assert.Equal(t, 60.0, target.Units)
}

func TestResolveArrivalQueuesBattleForDifferentOwner(t *testing.T) {
	g := newTestGalaxyWithTwoPlanets()
	target := g.Planets[2]

	a := &Attack{OwnerID: "p1", Units: 50}
	g.resolveArrival(a, target)

	require.NotNil(t, g.pendingBattles)
	b, ok := g.pendingBattles[target.Static.ID]
	require.True(t, ok)
	assert.Equal(t, "p1", b.attackerID)
	assert.Equal(t, 50.0, b.attackers)
}

func TestResolveArrivalBlitzSkipsBattleQueue(t *testing.T) {
	g := newTestGalaxyWithTwoPlanets()
	target := g.Planets[2]
	target.Units = 10

	a := &Attack{OwnerID: "p1", Units: 50, Blitz: true}
	g.resolveArrival(a, target)

	assert.Empty(t, g.pendingBattles)
	assert.Equal(t, "p1", target.OwnerID)
}
