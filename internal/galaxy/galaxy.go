// Package galaxy is a pure seed -> planet-set generator for the conquest
// room. Generate must be deterministic: the same seed always yields the
// same planets in the same order, since the client regenerates the same
// galaxy locally instead of receiving the full static geometry over the
// wire.
package galaxy

import (
	"math"
	"sort"

	"github.com/ufoarena/realtime-server/internal/rng"
)

// Size tiers, matching spec.md §4.2's fixed distribution totalling 900.
type Size int

const (
	SizeAsteroid Size = iota
	SizeSmall
	SizeMedium
	SizeLarge
	SizeGasGiant
)

// sizeSpec describes one size tier's population and geometry.
type sizeSpec struct {
	size       Size
	count      int
	radius     float64
	moonChance int // moons per planet of this size, deterministic count
}

// Total planet population across all size tiers, per spec.md §8 scenario 4.
const TotalPlanets = 900

var tiers = []sizeSpec{
	{SizeAsteroid, 250, 40, 0},
	{SizeSmall, 300, 70, 0},
	{SizeMedium, 200, 110, 1},
	{SizeLarge, 120, 160, 2},
	{SizeGasGiant, 30, 240, 3},
}

const (
	worldMin          = -50000.0
	worldMax          = 50000.0
	sunRadius         = 800.0
	sunNoSpawnRadius  = 2200.0
	minPairwiseDist   = 180.0
	maxRejectAttempts = 60
	blackHoleMinDist  = 20000.0
	blackHoleMaxDist  = 45000.0
)

var depositTypes = []string{"iron", "titanium", "crystal", "antimatter", "helium3", "rareearth"}

// depositCountBySize is the number K of deposit types drawn for a planet of
// this size, taken from the front of a shuffled depositTypes list.
var depositCountBySize = map[Size]int{
	SizeAsteroid: 1,
	SizeSmall:    1,
	SizeMedium:   2,
	SizeLarge:    3,
	SizeGasGiant: 4,
}

// Deposit is a mineable resource vein on a planet.
type Deposit struct {
	Type   string
	Amount int
}

// Planet is the static geometry produced by Generate. Dynamic gameplay
// fields (ownership, units, buildings) live in internal/conquest.Planet and
// are stamped onto this static shell by the room orchestrator.
type Planet struct {
	ID          int
	X, Y        float64
	Radius      float64
	Size        Size
	IsMoon      bool
	ParentID    int // -1 when not a moon
	OrbitRadius float64
	OrbitSpeed  float64
	OrbitAngle0 float64
	IsSun       bool
	IsBlackHole bool
	Deposits    []Deposit
}

// Generate is a pure function: Generate(seed) == Generate(seed) always.
// Planets and their moons are stamped in a fixed order (tier by tier, then
// moons immediately following their parent) so id assignment matches any
// client-side regeneration.
func Generate(seed uint32) []Planet {
	r := rng.New(seed)
	planets := make([]Planet, 0, TotalPlanets+64)
	placed := make([][2]float64, 0, TotalPlanets)
	nextID := 0

	placeOne := func() (float64, float64, bool) {
		for attempt := 0; attempt < maxRejectAttempts; attempt++ {
			x := r.Float(worldMin, worldMax)
			y := r.Float(worldMin, worldMax)
			if math.Hypot(x, y) < sunNoSpawnRadius {
				continue
			}
			ok := true
			for _, p := range placed {
				if math.Hypot(x-p[0], y-p[1]) < minPairwiseDist {
					ok = false
					break
				}
			}
			if ok {
				return x, y, true
			}
		}
		return 0, 0, false
	}

	for _, tier := range tiers {
		for i := 0; i < tier.count; i++ {
			x, y, ok := placeOne()
			if !ok {
				// World is saturated; stop placing this tier rather than
				// looping forever. The client-side generator hits the same
				// wall under the same seed.
				break
			}
			placed = append(placed, [2]float64{x, y})

			id := nextID
			nextID++
			planets = append(planets, Planet{
				ID:       id,
				X:        x,
				Y:        y,
				Radius:   tier.radius,
				Size:     tier.size,
				ParentID: -1,
				Deposits: drawDeposits(r, tier.size),
			})

			for m := 0; m < tier.moonChance; m++ {
				moonID := nextID
				nextID++
				planets = append(planets, Planet{
					ID:          moonID,
					X:           x,
					Y:           y,
					Radius:      tier.radius * 0.3,
					Size:        SizeAsteroid,
					IsMoon:      true,
					ParentID:    id,
					OrbitRadius: tier.radius * (2.5 + float64(m)),
					OrbitSpeed:  r.Float(0.002, 0.01),
					OrbitAngle0: r.Float(0, 2*math.Pi),
					Deposits:    drawDeposits(r, SizeAsteroid),
				})
			}
		}
	}

	// Sun, stamped after every other planet and moon.
	sunID := nextID
	nextID++
	planets = append(planets, Planet{ID: sunID, X: 0, Y: 0, Radius: sunRadius, IsSun: true, ParentID: -1})

	// Exactly one black hole, at a random angle/distance from the sun,
	// clamped to world bounds.
	angle := r.Float(0, 2*math.Pi)
	dist := r.Float(blackHoleMinDist, blackHoleMaxDist)
	bx := clamp(math.Cos(angle)*dist, worldMin, worldMax)
	by := clamp(math.Sin(angle)*dist, worldMin, worldMax)
	planets = append(planets, Planet{ID: nextID, X: bx, Y: by, Radius: 600, IsBlackHole: true, ParentID: -1})

	return planets
}

func drawDeposits(r *rng.RNG, size Size) []Deposit {
	types := append([]string(nil), depositTypes...)
	rng.Shuffle(r, types)
	k := depositCountBySize[size]
	if k > len(types) {
		k = len(types)
	}
	deposits := make([]Deposit, 0, k)
	for i := 0; i < k; i++ {
		deposits = append(deposits, Deposit{Type: types[i], Amount: r.IntInclusive(100, 1000)})
	}
	return deposits
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CountBySize returns the realized count of planets per size tier,
// excluding moons, the sun, and the black hole. Used to verify the
// generator matches the configured distribution exactly.
func CountBySize(planets []Planet) map[Size]int {
	counts := make(map[Size]int)
	for _, p := range planets {
		if p.IsMoon || p.IsSun || p.IsBlackHole {
			continue
		}
		counts[p.Size]++
	}
	return counts
}

// eligibleStart reports whether a planet is a valid starting-planet
// candidate: unowned (the caller filters ownership), small/medium,
// non-moon, non-sun, non-black-hole.
func eligibleStart(p Planet) bool {
	if p.IsMoon || p.IsSun || p.IsBlackHole {
		return false
	}
	return p.Size == SizeSmall || p.Size == SizeMedium
}

// minHomeDistance is the minimum distance a candidate starting planet must
// keep from every already-assigned home.
const minHomeDistance = 2500.0

// outerRingFraction controls the "top 20% farthest from the sun" rule for
// the very first player.
const outerRingFraction = 0.20

// PickStartingPlanet implements spec.md §4.2's pickStartingPlanet. homes is
// the set of already-assigned home planet ids.
func PickStartingPlanet(planets []Planet, homes []int, r *rng.RNG) (Planet, bool) {
	homeSet := make(map[int]bool, len(homes))
	homePos := make([][2]float64, 0, len(homes))
	byID := make(map[int]Planet, len(planets))
	for _, p := range planets {
		byID[p.ID] = p
	}
	for _, h := range homes {
		homeSet[h] = true
		if p, ok := byID[h]; ok {
			homePos = append(homePos, [2]float64{p.X, p.Y})
		}
	}

	var candidates []Planet
	for _, p := range planets {
		if !eligibleStart(p) || homeSet[p.ID] {
			continue
		}
		farEnough := true
		for _, hp := range homePos {
			if math.Hypot(p.X-hp[0], p.Y-hp[1]) < minHomeDistance {
				farEnough = false
				break
			}
		}
		if farEnough {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return Planet{}, false
	}

	if len(homes) == 0 {
		// First player: uniform pick among the top 20% farthest from the sun.
		sortByDistDesc(candidates)
		cut := int(math.Ceil(float64(len(candidates)) * outerRingFraction))
		if cut < 1 {
			cut = 1
		}
		pool := candidates[:cut]
		return pool[r.IntInclusive(0, len(pool)-1)], true
	}

	// Subsequent players: score by "neighbor sweet spot" + outer-ring bonus,
	// pick uniformly among the top 10% by score.
	type scored struct {
		p     Planet
		score float64
	}
	scoredList := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		closest := math.MaxFloat64
		for _, hp := range homePos {
			d := math.Hypot(c.X-hp[0], c.Y-hp[1])
			if d < closest {
				closest = d
			}
		}
		score := sweetSpotScore(closest) + outerRingBonus(c)
		scoredList = append(scoredList, scored{c, score})
	}
	sortByScoreDesc(scoredList, func(s scored) float64 { return s.score })
	cut := int(math.Ceil(float64(len(scoredList)) * 0.10))
	if cut < 1 {
		cut = 1
	}
	pool := scoredList[:cut]
	pick := pool[r.IntInclusive(0, len(pool)-1)]
	return pick.p, true
}

// sweetSpotScore peaks when the distance to the closest existing home falls
// within [1500, 3000].
func sweetSpotScore(closestHomeDist float64) float64 {
	const lo, hi = 1500.0, 3000.0
	if closestHomeDist >= lo && closestHomeDist <= hi {
		return 100
	}
	if closestHomeDist < lo {
		return 100 * (closestHomeDist / lo)
	}
	over := closestHomeDist - hi
	return math.Max(0, 100-over/50)
}

func outerRingBonus(p Planet) float64 {
	d := math.Hypot(p.X, p.Y)
	maxD := math.Hypot(worldMax, worldMax)
	return 30 * (d / maxD)
}

func sortByDistDesc(planets []Planet) {
	sort.Slice(planets, func(i, j int) bool {
		return math.Hypot(planets[i].X, planets[i].Y) > math.Hypot(planets[j].X, planets[j].Y)
	})
}

func sortByScoreDesc[T any](list []T, score func(T) float64) {
	sort.Slice(list, func(i, j int) bool { return score(list[i]) > score(list[j]) })
}
