package conquest

import "fmt"

// maxBuildingSlots approximates spec.md's ordered 3-slot building
// array over this package's count-map Buildings representation: a
// planet may host at most 3 buildings total, of any mix of kinds.
const maxBuildingSlots = 3

var buildableKinds = map[string]bool{
	BuildingMine:      true,
	BuildingFactory:   true,
	BuildingShieldGen: true,
	BuildingTurret:    true,
}

// Build places a building of buildingType on a planet the caller owns,
// rejecting unknown kinds and planets already at maxBuildingSlots. slot
// is accepted for wire-shape parity but unused beyond bounds-checking,
// since Buildings tracks per-kind counts rather than ordered slots.
func (g *Galaxy) Build(ownerID string, planetID, slot int, buildingType string) error {
	p, ok := g.Planets[planetID]
	if !ok || p.OwnerID != ownerID {
		return fmt.Errorf("conquest: planet %d not owned by %s", planetID, ownerID)
	}
	if !buildableKinds[buildingType] {
		return fmt.Errorf("conquest: unknown building type %q", buildingType)
	}
	if slot < 0 || slot >= maxBuildingSlots {
		return fmt.Errorf("conquest: slot %d out of range", slot)
	}
	total := 0
	for _, n := range p.Buildings {
		total += n
	}
	if total >= maxBuildingSlots {
		return fmt.Errorf("conquest: planet %d has no free building slot", planetID)
	}
	p.Buildings[buildingType]++
	return nil
}

// ToggleGen flips a planet's shield generator. This package already
// ties "generating" to the shield_gen building's active state
// (manageGenerators activates it automatically for AI players,
// releaseGeneratorSlot deactivates it when stability collapses);
// ToggleGen is the player-driven entry point onto that same flag.
func (g *Galaxy) ToggleGen(ownerID string, planetID int) error {
	p, ok := g.Planets[planetID]
	if !ok || p.OwnerID != ownerID {
		return fmt.Errorf("conquest: planet %d not owned by %s", planetID, ownerID)
	}
	if p.Buildings[BuildingShieldGen] <= 0 {
		return fmt.Errorf("conquest: planet %d has no shield generator to toggle", planetID)
	}
	p.Shield = !p.Shield
	return nil
}

const shieldPulseCost = 50.0

var abilityKinds = map[string]bool{
	"shield_pulse": true,
}

// Ability executes a player-triggered special action against a planet
// the caller owns. shield_pulse is the one ability implemented here:
// an instant, unit-costed shield activation, independent of whether a
// shield_gen building is present.
func (g *Galaxy) Ability(ownerID, abilityID string, targetPlanetID int) error {
	if !abilityKinds[abilityID] {
		return fmt.Errorf("conquest: unknown ability %q", abilityID)
	}
	p, ok := g.Planets[targetPlanetID]
	if !ok || p.OwnerID != ownerID {
		return fmt.Errorf("conquest: planet %d not owned by %s", targetPlanetID, ownerID)
	}
	if p.Units < shieldPulseCost {
		return fmt.Errorf("conquest: planet %d lacks units for %s", targetPlanetID, abilityID)
	}
	p.Units -= shieldPulseCost
	p.Shield = true
	return nil
}
