package combat

import "math"

// BroadcastGate decides whether a continuous-stream field update is
// worth forwarding to peers, per spec.md §4.8's throttling rules.
type BroadcastGate struct {
	lastX, lastY   float64
	lastVX, lastVY float64
	lastAngle      float64
	lastSentAt     int64
	initialized    bool
}

const (
	positionThreshold   = 8.0
	velocityThreshold   = 1.0
	heartbeatIntervalMS = 400
	arrowAngleThreshold = 0.12
)

// AllowPosition reports whether a position/velocity update should be
// forwarded, updating its internal baseline when it does.
func (g *BroadcastGate) AllowPosition(x, y, vx, vy float64, now int64) bool {
	if !g.initialized {
		g.setBaseline(x, y, vx, vy, 0, now)
		return true
	}
	dist := math.Hypot(x-g.lastX, y-g.lastY)
	velDelta := math.Hypot(vx-g.lastVX, vy-g.lastVY)
	heartbeat := now-g.lastSentAt > heartbeatIntervalMS
	if dist > positionThreshold || velDelta > velocityThreshold || heartbeat {
		g.setBaseline(x, y, vx, vy, g.lastAngle, now)
		return true
	}
	return false
}

// AllowArrowPosition adds an angle threshold on top of the position
// rule, for the arrow's continuous in-flight stream.
func (g *BroadcastGate) AllowArrowPosition(x, y, vx, vy, angle float64, now int64) bool {
	if !g.initialized {
		g.setBaseline(x, y, vx, vy, angle, now)
		return true
	}
	dist := math.Hypot(x-g.lastX, y-g.lastY)
	velDelta := math.Hypot(vx-g.lastVX, vy-g.lastVY)
	angleDelta := math.Abs(angle - g.lastAngle)
	heartbeat := now-g.lastSentAt > heartbeatIntervalMS
	if dist > positionThreshold || velDelta > velocityThreshold || angleDelta > arrowAngleThreshold || heartbeat {
		g.setBaseline(x, y, vx, vy, angle, now)
		return true
	}
	return false
}

func (g *BroadcastGate) setBaseline(x, y, vx, vy, angle float64, now int64) {
	g.lastX, g.lastY, g.lastVX, g.lastVY, g.lastAngle = x, y, vx, vy, angle
	g.lastSentAt = now
	g.initialized = true
}

// StatsGate throttles stats broadcasts to a 1.5s heartbeat, forwarding
// sooner only when hp/armor/maxHp/maxArmor/paralysis meaningfully
// changed.
type StatsGate struct {
	lastHP, lastArmor, lastMaxHP, lastMaxArmor int
	lastParalyzed                              bool
	lastSentAt                                 int64
	initialized                                bool
}

const statsHeartbeatMS = 1500

// Allow reports whether a stats update should be forwarded.
func (g *StatsGate) Allow(hp, armor, maxHP, maxArmor int, paralyzed bool, now int64) bool {
	if !g.initialized {
		g.setBaseline(hp, armor, maxHP, maxArmor, paralyzed, now)
		return true
	}
	changed := hp != g.lastHP || armor != g.lastArmor || maxHP != g.lastMaxHP ||
		maxArmor != g.lastMaxArmor || paralyzed != g.lastParalyzed
	heartbeat := now-g.lastSentAt > statsHeartbeatMS
	if changed || heartbeat {
		g.setBaseline(hp, armor, maxHP, maxArmor, paralyzed, now)
		return true
	}
	return false
}

func (g *StatsGate) setBaseline(hp, armor, maxHP, maxArmor int, paralyzed bool, now int64) {
	g.lastHP, g.lastArmor, g.lastMaxHP, g.lastMaxArmor, g.lastParalyzed = hp, armor, maxHP, maxArmor, paralyzed
	g.lastSentAt = now
	g.initialized = true
}
