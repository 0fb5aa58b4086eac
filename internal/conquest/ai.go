package conquest

import (
	"math"
	"sort"
)

const (
	aiScoreRange      = 600.0
	aiSendPercent     = 50.0
	aiEnemyMarginMult = 1.2
	aiHomeBonus       = 2.0
	aiTopActions      = 2
)

type aiAction struct {
	fromID, targetID int
	score            float64
}

// runAI drives every AI-controlled player whose difficulty interval
// has elapsed: manage generators, score candidate attacks, and
// execute the top actions.
func (g *Galaxy) runAI(nowMS int64) {
	for _, player := range g.Players {
		if !player.IsAI || !player.Alive {
			continue
		}
		interval := difficultySettings[player.Difficulty].AIIntervalMS
		if interval <= 0 {
			interval = 4000
		}
		if nowMS-player.LastAIActionAt < interval {
			continue
		}
		player.LastAIActionAt = nowMS

		g.manageGenerators(player)
		actions := g.scoreActions(player)
		for i := 0; i < aiTopActions && i < len(actions); i++ {
			g.LaunchAttack(player.ID, actions[i].fromID, actions[i].targetID, aiSendPercent, false)
		}
	}
}

// manageGenerators enables shields on the AI's own planets,
// highest-radius first, for any that have a shield_gen building but
// no active shield.
func (g *Galaxy) manageGenerators(player *Player) {
	owned := g.ownedPlanetsSlice(player.ID)
	sort.Slice(owned, func(i, j int) bool { return owned[i].Static.Radius > owned[j].Static.Radius })
	for _, p := range owned {
		if p.Buildings[BuildingShieldGen] > 0 && !p.Shield {
			p.Shield = true
		}
	}
}

func (g *Galaxy) ownedPlanetsSlice(playerID string) []*Planet {
	var out []*Planet
	for _, p := range g.Planets {
		if p.OwnerID == playerID {
			out = append(out, p)
		}
	}
	return out
}

// scoreActions scores every (mine, target) pair within aiScoreRange,
// per spec.md §4.9, and returns them sorted best-first.
func (g *Galaxy) scoreActions(player *Player) []aiAction {
	mines := g.ownedPlanetsSlice(player.ID)
	var actions []aiAction

	for _, mine := range mines {
		if mine.Units < 10 {
			continue
		}
		for _, target := range g.Planets {
			if target.Static.ID == mine.Static.ID {
				continue
			}
			dist := math.Hypot(mine.Static.X-target.Static.X, mine.Static.Y-target.Static.Y)
			if dist > aiScoreRange {
				continue
			}
			score, ok := g.scoreTarget(player, mine, target)
			if !ok {
				continue
			}
			actions = append(actions, aiAction{fromID: mine.Static.ID, targetID: target.Static.ID, score: score})
		}
	}

	sort.Slice(actions, func(i, j int) bool { return actions[i].score > actions[j].score })
	return actions
}

func (g *Galaxy) scoreTarget(player *Player, mine, target *Planet) (float64, bool) {
	if target.OwnerID == "" {
		if target.MaxUnits <= 0 {
			return 0, false
		}
		return 1 - target.Units/target.MaxUnits, true
	}
	if target.OwnerID == player.ID {
		return 0, false
	}

	sendUnits := math.Floor(mine.Units * aiSendPercent / 100)
	defense := target.Units * DefenseMultiplier
	if sendUnits <= defense*aiEnemyMarginMult {
		return 0, false
	}
	score := sendUnits - defense
	if enemy, ok := g.Players[target.OwnerID]; ok && enemy.HomePlanetID == target.Static.ID {
		score *= aiHomeBonus
	}
	return score, true
}
