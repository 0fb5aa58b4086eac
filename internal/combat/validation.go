package combat

// AcceptanceWindowMS bounds how long after a fire event a matching hit
// packet is still accepted, per weapon (spec.md §4.8). "mine" and
// "spike" are secondary weapon aliases the orchestrator also routes
// through this table.
var AcceptanceWindowMS = map[string]int64{
	"bullet": 3500,
	"heavy":  5200,
	"arrow":  3500,
	"mine":   12000,
	"spike":  1500,
	"tnt":    8000,
}

// FireEvent is a recorded weapon discharge, kept until it ages out of
// its acceptance window.
type FireEvent struct {
	ID       string
	Weapon   string
	ShooterSID string
	FiredAt  int64
}

// ValidateHit checks the three conditions spec.md §4.8 requires before
// a hit is accepted: match active, target is the other session in a
// 2-player room, and a matching fire event exists within its
// acceptance window.
func ValidateHit(matchActive bool, shooterSID, targetSID, otherSID string, weapon string, fireEvent *FireEvent, now int64) bool {
	if !matchActive {
		return false
	}
	if targetSID != otherSID || targetSID == shooterSID {
		return false
	}
	if fireEvent == nil || fireEvent.ShooterSID != shooterSID || fireEvent.Weapon != weapon {
		return false
	}
	window, ok := AcceptanceWindowMS[weapon]
	if !ok {
		return false
	}
	return now-fireEvent.FiredAt <= window
}

// RateLimiter tracks per-session cooldowns for high-impact actions and
// the throttled-but-not-rate-limited packet types.
type RateLimiter struct {
	lastAction    map[string]int64 // session -> last high-impact action time
	lockoutUntil  map[string]int64
	lastStats     map[string]int64
	lastHit       map[string]int64
}

// NewRateLimiter returns an empty limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		lastAction:   make(map[string]int64),
		lockoutUntil: make(map[string]int64),
		lastStats:    make(map[string]int64),
		lastHit:      make(map[string]int64),
	}
}

const (
	highImpactCooldownMS = 1000
	lockoutPenaltyMS     = 2000
	statsThrottleMS      = 180
	hitThrottleMS        = 140
)

var highImpactActions = map[string]bool{
	"dash": true, "click": true, "bullet": true, "arrow": true,
	"heavy": true, "mine": true, "line": true, "tnt": true,
}

// AllowHighImpact reports whether sess may perform a high-impact
// action now, arming a lockout penalty on violation.
func (r *RateLimiter) AllowHighImpact(sess string, action string, now int64) bool {
	if !highImpactActions[action] {
		return true
	}
	if until, locked := r.lockoutUntil[sess]; locked && now < until {
		return false
	}
	if last, ok := r.lastAction[sess]; ok && now-last < highImpactCooldownMS {
		r.lockoutUntil[sess] = now + lockoutPenaltyMS
		return false
	}
	r.lastAction[sess] = now
	return true
}

// AllowStats throttles stats packets to one per statsThrottleMS.
func (r *RateLimiter) AllowStats(sess string, now int64) bool {
	if last, ok := r.lastStats[sess]; ok && now-last < statsThrottleMS {
		return false
	}
	r.lastStats[sess] = now
	return true
}

// AllowHit throttles hit packets to one per hitThrottleMS.
func (r *RateLimiter) AllowHit(sess string, now int64) bool {
	if last, ok := r.lastHit[sess]; ok && now-last < hitThrottleMS {
		return false
	}
	r.lastHit[sess] = now
	return true
}
