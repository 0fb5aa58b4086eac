package conquest

import "math"

// recalcSupply runs the BFS described in spec.md §4.9: for each alive
// player, starting from their home planet, a planet is "connected" iff
// reachable over the player's own planets with edges where the
// Euclidean distance is at most supplyEdgeRange. A player whose home
// is no longer their own is eliminated.
func (g *Galaxy) recalcSupply() {
	for _, p := range g.Planets {
		p.Connected = false
	}

	for _, player := range g.Players {
		if !player.Alive {
			continue
		}
		home, ok := g.Planets[player.HomePlanetID]
		if !ok || home.OwnerID != player.ID {
			player.Alive = false
			continue
		}

		owned := g.ownedPlanets(player.ID)
		reached := bfsReachable(home, owned)
		for id := range reached {
			g.Planets[id].Connected = true
		}
	}

	g.recountPlayerTotals()
}

func (g *Galaxy) ownedPlanets(playerID string) map[int]*Planet {
	out := make(map[int]*Planet)
	for id, p := range g.Planets {
		if p.OwnerID == playerID {
			out[id] = p
		}
	}
	return out
}

func bfsReachable(home *Planet, owned map[int]*Planet) map[int]bool {
	visited := map[int]bool{home.Static.ID: true}
	queue := []*Planet{home}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for id, other := range owned {
			if visited[id] {
				continue
			}
			dist := math.Hypot(cur.Static.X-other.Static.X, cur.Static.Y-other.Static.Y)
			if dist <= supplyEdgeRange {
				visited[id] = true
				queue = append(queue, other)
			}
		}
	}
	return visited
}

func (g *Galaxy) recountPlayerTotals() {
	totals := make(map[string]float64)
	counts := make(map[string]int)
	for _, p := range g.Planets {
		if p.OwnerID == "" {
			continue
		}
		totals[p.OwnerID] += p.Units
		counts[p.OwnerID]++
	}
	for id, player := range g.Players {
		player.TotalUnits = totals[id]
		player.PlanetCount = counts[id]
	}
}
