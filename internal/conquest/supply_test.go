package conquest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ufoarena/realtime-server/internal/galaxy"
)

func TestRecalcSupplyConnectsChainedPlanets(t *testing.T) {
	home := NewPlanet(galaxy.Planet{ID: 1, X: 0, Y: 0, ParentID: -1})
	mid := NewPlanet(galaxy.Planet{ID: 2, X: 700, Y: 0, ParentID: -1})
	far := NewPlanet(galaxy.Planet{ID: 3, X: 1400, Y: 0, ParentID: -1})
	for _, p := range []*Planet{home, mid, far} {
		p.OwnerID = "p1"
	}
	g := &Galaxy{
		Planets: map[int]*Planet{1: home, 2: mid, 3: far},
		Players: map[string]*Player{"p1": {ID: "p1", HomePlanetID: 1, Alive: true}},
	}

	g.recalcSupply()

	assert.True(t, home.Connected)
	assert.True(t, mid.Connected)
	assert.True(t, far.Connected, "far is reachable only via the mid relay")
}

func TestRecalcSupplyLeavesUnreachablePlanetDisconnected(t *testing.T) {
	home := NewPlanet(galaxy.Planet{ID: 1, X: 0, Y: 0, ParentID: -1})
	isolated := NewPlanet(galaxy.Planet{ID: 2, X: 5000, Y: 0, ParentID: -1})
	home.OwnerID, isolated.OwnerID = "p1", "p1"
	g := &Galaxy{
		Planets: map[int]*Planet{1: home, 2: isolated},
		Players: map[string]*Player{"p1": {ID: "p1", HomePlanetID: 1, Alive: true}},
	}

	g.recalcSupply()

	assert.True(t, home.Connected)
	assert.False(t, isolated.Connected)
}

func TestRecalcSupplyEliminatesPlayerWhoLostHome(t *testing.T) {
	lostHome := NewPlanet(galaxy.Planet{ID: 1, X: 0, Y: 0, ParentID: -1})
	lostHome.OwnerID = "enemy"
	g := &Galaxy{
		Planets: map[int]*Planet{1: lostHome},
		Players: map[string]*Player{"p1": {ID: "p1", HomePlanetID: 1, Alive: true}},
	}

	g.recalcSupply()

	assert.False(t, g.Players["p1"].Alive)
}

func TestRecalcSupplySkipsAlreadyDeadPlayers(t *testing.T) {
	g := &Galaxy{
		Planets: map[int]*Planet{},
		Players: map[string]*Player{"p1": {ID: "p1", HomePlanetID: 999, Alive: false}},
	}
	assert.NotPanics(t, func() { g.recalcSupply() })
	assert.False(t, g.Players["p1"].Alive)
}

func TestRecountPlayerTotals(t *testing.T) {
	a := NewPlanet(testStaticPlanet(1))
	b := NewPlanet(testStaticPlanet(2))
	a.OwnerID, b.OwnerID = "p1", "p1"
	a.Units, b.Units = 30, 70
	g := &Galaxy{
		Planets: map[int]*Planet{1: a, 2: b},
		Players: map[string]*Player{"p1": {ID: "p1"}},
	}

	g.recountPlayerTotals()

	assert.Equal(t, 100.0, g.Players["p1"].TotalUnits)
	assert.Equal(t, 2, g.Players["p1"].PlanetCount)
}
