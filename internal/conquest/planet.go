// Package conquest implements the persistent galaxy simulation
// (spec.md §4.9): orbits, mining, growth, stability, supply, attacks,
// battles, turrets, and AI, plus its room orchestrator (§4.11).
package conquest

import "github.com/ufoarena/realtime-server/internal/galaxy"

// Building kinds a planet may host.
const (
	BuildingMine      = "mine"
	BuildingFactory   = "factory"
	BuildingShieldGen = "shield_gen"
	BuildingTurret    = "turret"
)

// Empire-size thresholds gating growth/stability penalties.
const (
	EmpireUnitsThreshold  = 2000
	EmpireSlowThreshold   = 8
	EmpireDecayThreshold  = 20
)

// Planet is the dynamic gameplay state stamped onto a static
// galaxy.Planet shell. Static geometry never changes after
// generation; everything here does.
type Planet struct {
	Static galaxy.Planet

	OwnerID     string
	Units       float64
	MaxUnits    float64
	Stability   float64
	Connected   bool
	Shield      bool
	Buildings   map[string]int
	OrbitAngle  float64 // current orbit angle, advanced each tick for moons

	NextTurretFireAt int64
	HomeOfPlayerID   string // "" unless this planet is some player's home
}

// NewPlanet wraps a generated static shell into dynamic gameplay
// state, neutral and unowned.
func NewPlanet(static galaxy.Planet) *Planet {
	return &Planet{
		Static:     static,
		MaxUnits:   maxUnitsForSize(static.Size),
		Stability:  0,
		OrbitAngle: static.OrbitAngle0,
		Buildings:  make(map[string]int),
	}
}

func maxUnitsForSize(size galaxy.Size) float64 {
	switch size {
	case galaxy.SizeAsteroid:
		return 500
	case galaxy.SizeSmall:
		return 1500
	case galaxy.SizeMedium:
		return 4000
	case galaxy.SizeLarge:
		return 9000
	case galaxy.SizeGasGiant:
		return 20000
	default:
		return 1000
	}
}

// FactoryCount returns the number of factory buildings, used to
// extend the unit cap.
func (p *Planet) FactoryCount() int { return p.Buildings[BuildingFactory] }

// MineCount returns the number of mining buildings.
func (p *Planet) MineCount() int { return p.Buildings[BuildingMine] }

// TurretCount returns the number of turret buildings.
func (p *Planet) TurretCount() int { return p.Buildings[BuildingTurret] }
