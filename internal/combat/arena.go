// Package combat implements the 1v1 authoritative arena simulation
// (spec.md §4.8): projectile physics, the stone obstacle, hitboxes,
// damage, armor regen, hit validation, rate limits and broadcast
// throttling.
package combat

import "math"

// Arena dimensions, in world units.
const (
	ArenaWidth  = 1600
	ArenaHeight = 900
)

// Stone is a compound collider of six circles approximating the
// central obstacle, in normalized (0..1) arena coordinates.
type stoneCircle struct {
	cx, cy, r float64 // cx,cy normalized [0,1]; r normalized to ArenaWidth
}

var stoneCircles = []stoneCircle{
	{cx: 0.50, cy: 0.50, r: 0.085},
	{cx: 0.46, cy: 0.44, r: 0.060},
	{cx: 0.54, cy: 0.44, r: 0.060},
	{cx: 0.46, cy: 0.56, r: 0.060},
	{cx: 0.54, cy: 0.56, r: 0.060},
	{cx: 0.50, cy: 0.38, r: 0.050},
}

// Stone is the arena's central obstacle, instantiated once per match.
type Stone struct {
	circles []struct{ X, Y, R float64 }
}

// NewStone builds the stone collider scaled to the arena dimensions.
func NewStone() *Stone {
	s := &Stone{}
	for _, c := range stoneCircles {
		s.circles = append(s.circles, struct{ X, Y, R float64 }{
			X: c.cx * ArenaWidth,
			Y: c.cy * ArenaHeight,
			R: c.r * ArenaWidth,
		})
	}
	return s
}

// Penetration returns the deepest-penetrating circle's push-out vector
// for a point at (x, y) with the given probe radius, or ok=false if
// the point doesn't overlap any stone circle.
func (s *Stone) Penetration(x, y, probeRadius float64) (pushX, pushY float64, ok bool) {
	deepest := -math.MaxFloat64
	for _, c := range s.circles {
		dx, dy := x-c.X, y-c.Y
		dist := math.Hypot(dx, dy)
		overlap := (c.R + probeRadius) - dist
		if overlap > deepest {
			deepest = overlap
			if overlap > 0 {
				ok = true
				if dist < 1e-9 {
					pushX, pushY = 1, 0
				} else {
					pushX, pushY = dx/dist, dy/dist
				}
			}
		}
	}
	return pushX, pushY, ok
}

// Resolve pushes (x, y) out of the stone along the deepest penetrating
// circle's normal, returning the corrected position.
func (s *Stone) Resolve(x, y, probeRadius float64) (float64, float64) {
	deepest, best := 0.0, -1
	for i, c := range s.circles {
		if overlap := (c.R + probeRadius) - math.Hypot(x-c.X, y-c.Y); overlap > deepest {
			deepest, best = overlap, i
		}
	}
	if best < 0 {
		return x, y
	}
	c := s.circles[best]
	dx, dy := x-c.X, y-c.Y
	dist := math.Hypot(dx, dy)
	need := c.R + probeRadius
	if dist < 1e-9 {
		return x + need, y
	}
	return c.X + dx*need/dist, c.Y + dy*need/dist
}

// BisectFirstContact finds the first point along the segment (x0,y0)
// -> (x1,y1) where probeRadius touches the stone, backed off by
// epsilon, using binary search. Returns the original destination if no
// contact is found.
func (s *Stone) BisectFirstContact(x0, y0, x1, y1, probeRadius, epsilon float64) (float64, float64, bool) {
	_, _, hitsEnd := s.Penetration(x1, y1, probeRadius)
	if !hitsEnd {
		return x1, y1, false
	}
	lo, hi := 0.0, 1.0
	for i := 0; i < 24; i++ {
		mid := (lo + hi) / 2
		mx := x0 + (x1-x0)*mid
		my := y0 + (y1-y0)*mid
		if _, _, hit := s.Penetration(mx, my, probeRadius); hit {
			hi = mid
		} else {
			lo = mid
		}
	}
	t := math.Max(0, lo-epsilon/math.Hypot(x1-x0, y1-y0))
	return x0 + (x1-x0)*t, y0 + (y1-y0)*t, true
}

// PlayerHitbox models the two offset circles (top dome + lower body)
// the spec requires hit tests against.
type PlayerHitbox struct {
	TopOffsetY, TopRadius     float64
	LowerOffsetY, LowerRadius float64
}

// DefaultHitbox matches the teacher-scale ship collision radii,
// generalized to two vertically offset circles per player.
var DefaultHitbox = PlayerHitbox{
	TopOffsetY: -14, TopRadius: 16,
	LowerOffsetY: 14, LowerRadius: 20,
}

// Hits reports whether a point at (px, py) overlaps either circle of a
// hitbox centered at (cx, cy).
func (h PlayerHitbox) Hits(cx, cy, px, py, pointRadius float64) bool {
	topDist := math.Hypot(px-cx, py-(cy+h.TopOffsetY))
	if topDist <= h.TopRadius+pointRadius {
		return true
	}
	lowerDist := math.Hypot(px-cx, py-(cy+h.LowerOffsetY))
	return lowerDist <= h.LowerRadius+pointRadius
}
