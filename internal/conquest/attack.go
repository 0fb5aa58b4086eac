package conquest

import (
	"fmt"
	"math"
)

// Ship classes, by launched unit count thresholds.
const (
	ShipPod        = "pod"
	ShipCargo      = "cargo"
	ShipFighter    = "fighter"
	ShipStartrek   = "startrek"
	ShipMothership = "mothership"
)

const (
	attackLinearSpeed      = 90.0  // units/s
	attackMaxAngularVel    = 5.0   // rad/s
	attackArrivalPad       = 5.0
	distanceDecayStart     = 2000.0
	distanceDecayPer30     = 1.0 // lossPer30 scaling factor placeholder, see classLossPer30
)

var classLossPer30 = map[string]float64{
	ShipPod:        0.5,
	ShipCargo:      0.4,
	ShipFighter:    0.3,
	ShipStartrek:   0.2,
	ShipMothership: 0.1,
}

// Attack is one in-flight fleet moving from a source planet toward a
// target.
type Attack struct {
	ID             string
	OwnerID        string
	FromPlanetID   int
	TargetPlanetID int
	ShipClass      string

	X, Y       float64
	VX, VY     float64
	StartUnits float64
	Units      float64
	Traveled   float64
	Dead       bool

	// Blitz skips the siege-timer battle queue: arrival against a
	// different owner resolves immediately instead of accumulating
	// toward resolveBattles.
	Blitz bool
}

func classifyShip(units float64) string {
	switch {
	case units < 50:
		return ShipPod
	case units < 200:
		return ShipCargo
	case units < 600:
		return ShipFighter
	case units < 2000:
		return ShipStartrek
	default:
		return ShipMothership
	}
}

// LaunchAttack consumes floor(from.units * percent/100) units from the
// source planet (rejecting launches under 1 unit) and spawns an
// Attack aimed at target. blitz marks the attack to resolve instantly
// on arrival instead of entering the siege queue.
func (g *Galaxy) LaunchAttack(ownerID string, fromID, targetID int, percent float64, blitz bool) (*Attack, error) {
	from, ok := g.Planets[fromID]
	if !ok || from.OwnerID != ownerID {
		return nil, fmt.Errorf("conquest: launch source %d not owned by %s", fromID, ownerID)
	}
	target, ok := g.Planets[targetID]
	if !ok {
		return nil, fmt.Errorf("conquest: unknown target %d", targetID)
	}

	units := math.Floor(from.Units * percent / 100)
	if units < 1 {
		return nil, fmt.Errorf("conquest: launch of %d units rejected", int(units))
	}
	from.Units -= units

	g.nextAttackSeq++
	dx, dy := target.Static.X-from.Static.X, target.Static.Y-from.Static.Y
	dist := math.Hypot(dx, dy)
	vx, vy := 0.0, 0.0
	if dist > 0 {
		vx, vy = dx/dist*attackLinearSpeed, dy/dist*attackLinearSpeed
	}

	a := &Attack{
		ID:             fmt.Sprintf("atk_%d", g.nextAttackSeq),
		OwnerID:        ownerID,
		FromPlanetID:   fromID,
		TargetPlanetID: targetID,
		ShipClass:      classifyShip(units),
		X:              from.Static.X,
		Y:              from.Static.Y,
		VX:             vx,
		VY:             vy,
		StartUnits:     units,
		Units:          units,
		Blitz:          blitz,
	}
	g.Attacks[a.ID] = a
	return a, nil
}

// updateAttacks steps every live attack: homing turn, linear move,
// distance decay, shield interaction, and arrival.
func (g *Galaxy) updateAttacks(nowMS int64) {
	for id, a := range g.Attacks {
		if a.Dead {
			delete(g.Attacks, id)
			continue
		}
		target, ok := g.Planets[a.TargetPlanetID]
		if !ok {
			a.Dead = true
			continue
		}

		g.homeIn(a, target)
		step := tickIntervalSec
		dx, dy := a.VX*step, a.VY*step
		a.X += dx
		a.Y += dy
		a.Traveled += math.Hypot(dx, dy)

		a.Units = distanceDecayedUnits(a)
		if a.Units <= 0 {
			a.Dead = true
			continue
		}

		g.applyShield(a, target)
		if a.Units <= 0 {
			a.Dead = true
			continue
		}

		distToTarget := math.Hypot(target.Static.X-a.X, target.Static.Y-a.Y)
		if distToTarget <= target.Static.Radius+attackArrivalPad {
			g.resolveArrival(a, target)
			a.Dead = true
		}
	}
}

func (g *Galaxy) homeIn(a *Attack, target *Planet) {
	desiredX, desiredY := target.Static.X-a.X, target.Static.Y-a.Y
	desiredAngle := math.Atan2(desiredY, desiredX)
	currentAngle := math.Atan2(a.VY, a.VX)

	diff := angleDiff(desiredAngle, currentAngle)
	maxTurn := attackMaxAngularVel * tickIntervalSec
	if diff > maxTurn {
		diff = maxTurn
	} else if diff < -maxTurn {
		diff = -maxTurn
	}
	newAngle := currentAngle + diff
	a.VX = math.Cos(newAngle) * attackLinearSpeed
	a.VY = math.Sin(newAngle) * attackLinearSpeed
}

func angleDiff(target, current float64) float64 {
	d := target - current
	for d > math.Pi {
		d -= 2 * math.Pi
	}
	for d < -math.Pi {
		d += 2 * math.Pi
	}
	return d
}

// distanceDecayedUnits applies spec.md §4.9's distance-loss formula:
// arriving units = start - floor((traveled-2000)/30) * lossPer30.
func distanceDecayedUnits(a *Attack) float64 {
	if a.Traveled <= distanceDecayStart {
		return a.StartUnits
	}
	lossPer30 := classLossPer30[a.ShipClass]
	steps := math.Floor((a.Traveled - distanceDecayStart) / 30)
	units := a.StartUnits - steps*lossPer30
	if units < 0 {
		units = 0
	}
	return units
}

const shieldRadius = 150.0

func (g *Galaxy) applyShield(a *Attack, target *Planet) {
	if !target.Shield || target.OwnerID == a.OwnerID {
		return
	}
	dist := math.Hypot(target.Static.X-a.X, target.Static.Y-a.Y)
	if dist > shieldRadius {
		return
	}
	reduction := math.Min(a.Units, target.Units)
	a.Units -= reduction
	target.Shield = false
	removeFirstBuilding(target, BuildingShieldGen)
}

func removeFirstBuilding(p *Planet, kind string) {
	if p.Buildings[kind] > 0 {
		p.Buildings[kind]--
	}
}

// resolveArrival handles reinforcement (same owner), an immediate
// blitz resolution, or spawns/merges a siege battle (different owner,
// non-blitz).
func (g *Galaxy) resolveArrival(a *Attack, target *Planet) {
	if target.OwnerID == a.OwnerID {
		target.Units += a.Units
		if target.Units > target.MaxUnits {
			target.Units = target.MaxUnits
		}
		return
	}
	if a.Blitz {
		g.applyBattleOutcome(target, &battle{planetID: target.Static.ID, attackerID: a.OwnerID, attackers: a.Units})
		return
	}
	g.queueBattle(a, target)
}
