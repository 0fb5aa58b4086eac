package conquest

import (
	"math"

	"github.com/ufoarena/realtime-server/internal/galaxy"
)

const (
	tickRateHz      = 10
	tickIntervalSec = 1.0 / tickRateHz

	supplyRecalcIntervalMS = 2000
	homeDistanceFalloff    = 200.0
	stabilityRampUpPerSec  = 5.0
	stabilityRampDownPerSec = 2.0
	disconnectedStabilityCap = 20.0
	supplyEdgeRange         = 800.0
)

// Galaxy is the full simulated world state for one conquest room.
type Galaxy struct {
	Seed    uint32
	Planets map[int]*Planet
	Players map[string]*Player
	Attacks map[string]*Attack

	pendingBattles battleTable
	missiles       map[string]*Missile
	missileSeq     int
	nextAttackSeq  int
	lastSupplyAt   int64
}

// NewGalaxy builds dynamic planet state from generated static
// geometry.
func NewGalaxy(seed uint32) *Galaxy {
	statics := galaxy.Generate(seed)
	planets := make(map[int]*Planet, len(statics))
	for _, s := range statics {
		planets[s.ID] = NewPlanet(s)
	}
	return &Galaxy{Seed: seed, Planets: planets, Players: make(map[string]*Player), Attacks: make(map[string]*Attack)}
}

// Tick advances the galaxy one step, in the order spec.md §4.9
// specifies: moons, mining, growth, stability, attacks, turret
// acquisition/missiles, battle resolution, supply recalc (throttled),
// AI (throttled per player).
func (g *Galaxy) Tick(nowMS int64) {
	g.updateMoons()
	g.updateMiningAndGrowth()
	g.updateStability()
	g.updateAttacks(nowMS)
	g.updateTurrets(nowMS)
	g.resolveBattles(nowMS)
	if nowMS-g.lastSupplyAt >= supplyRecalcIntervalMS {
		g.recalcSupply()
		g.lastSupplyAt = nowMS
	}
	g.runAI(nowMS)
}

func (g *Galaxy) updateMoons() {
	for _, p := range g.Planets {
		if !p.Static.IsMoon || p.Static.OrbitSpeed == 0 {
			continue
		}
		p.OrbitAngle += p.Static.OrbitSpeed * tickIntervalSec
		if p.OrbitAngle > 2*math.Pi {
			p.OrbitAngle -= 2 * math.Pi
		}
		parent, ok := g.Planets[p.Static.ParentID]
		if !ok {
			continue
		}
		p.Static.X = parent.Static.X + math.Cos(p.OrbitAngle)*p.Static.OrbitRadius
		p.Static.Y = parent.Static.Y + math.Sin(p.OrbitAngle)*p.Static.OrbitRadius
	}
}

// difficultyGrowth returns the owning player's growth multiplier, or
// 1.0 for neutral/unknown planets.
func (g *Galaxy) difficultyGrowth(ownerID string) float64 {
	player, ok := g.Players[ownerID]
	if !ok || !player.IsAI {
		return 1.0
	}
	return difficultySettings[player.Difficulty].GrowthMultiplier
}

func (g *Galaxy) updateMiningAndGrowth() {
	for _, p := range g.Planets {
		if p.OwnerID == "" || p.Static.IsSun || p.Static.IsBlackHole {
			continue
		}
		growth := baseGrowthRate(p.Static.Size) * g.difficultyGrowth(p.OwnerID)
		growth *= 1 + 0.25*float64(p.MineCount())

		if player, ok := g.Players[p.OwnerID]; ok && player.TotalUnits >= EmpireUnitsThreshold {
			growth = applyEmpirePenalties(growth, p, player)
		}

		p.Units += growth
		cap := p.MaxUnits + 200*float64(p.FactoryCount())
		if p.Units > cap {
			p.Units = cap
		}
		if p.Units < 0 {
			p.Units = 0
		}
		if p.Units == 0 {
			p.OwnerID = ""
		}
	}
}

func baseGrowthRate(size galaxy.Size) float64 {
	switch size {
	case galaxy.SizeAsteroid:
		return 2
	case galaxy.SizeSmall:
		return 5
	case galaxy.SizeMedium:
		return 10
	case galaxy.SizeLarge:
		return 18
	case galaxy.SizeGasGiant:
		return 30
	default:
		return 5
	}
}

// applyEmpirePenalties implements spec.md §4.9's empire-size throttle,
// applied once a player's total units cross EmpireUnitsThreshold.
func applyEmpirePenalties(growth float64, p *Planet, player *Player) float64 {
	if p.Stability < 30 {
		growth = -1
	} else if p.Stability < 70 {
		growth *= 0.3
	}
	if excess := player.PlanetCount - EmpireSlowThreshold; excess > 0 {
		factor := 1 - float64(excess)*0.08
		if factor < 0.1 {
			factor = 0.1
		}
		growth *= factor
	}
	if player.PlanetCount > EmpireDecayThreshold {
		growth -= 0.5
	}
	if !p.Connected && growth < -0.5 {
		growth = -0.5
	} else if !p.Connected {
		growth = math.Min(growth, -0.5)
	}
	return growth
}

func (g *Galaxy) updateStability() {
	home := g.homePositions()
	for _, p := range g.Planets {
		if p.OwnerID == "" {
			continue
		}
		target := g.stabilityTarget(p, home)
		if p.Stability < target {
			p.Stability += stabilityRampUpPerSec * tickIntervalSec
			if p.Stability > target {
				p.Stability = target
			}
		} else if p.Stability > target {
			p.Stability -= stabilityRampDownPerSec * tickIntervalSec
			if p.Stability < target {
				p.Stability = target
			}
		}
		if p.Stability <= 0 {
			p.Stability = 0
			p.Units *= 0.3
			releaseGeneratorSlot(p)
			p.OwnerID = ""
		}
	}
}

type homePos struct{ X, Y float64 }

func (g *Galaxy) homePositions() map[string]homePos {
	out := make(map[string]homePos, len(g.Players))
	for id, pl := range g.Players {
		if home, ok := g.Planets[pl.HomePlanetID]; ok {
			out[id] = homePos{X: home.Static.X, Y: home.Static.Y}
		}
	}
	return out
}

// stabilityBaseline is the target a planet ramps toward when fully
// connected, at zero distance from home, with no empire penalty.
const stabilityBaseline = 100.0

func (g *Galaxy) stabilityTarget(p *Planet, homes map[string]homePos) float64 {
	home, ok := homes[p.OwnerID]
	distTerm := 0.0
	if ok {
		dist := math.Hypot(p.Static.X-home.X, p.Static.Y-home.Y)
		distTerm = -(dist / homeDistanceFalloff) * 3
	}
	empireTerm := 0.0
	if player, ok := g.Players[p.OwnerID]; ok {
		if excess := player.PlanetCount - EmpireSlowThreshold; excess > 0 {
			empireTerm = -3 * float64(excess)
		}
	}
	target := stabilityBaseline + distTerm + empireTerm
	if !p.Connected && target > disconnectedStabilityCap {
		target = disconnectedStabilityCap
	}
	return target
}

func releaseGeneratorSlot(p *Planet) {
	p.Shield = false
}
