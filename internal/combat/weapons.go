package combat

import "math"

// WeaponKind enumerates the projectile families spec.md §4.8 defines.
type WeaponKind int

const (
	WeaponArrow WeaponKind = iota
	WeaponBullet
	WeaponHeavy
	WeaponTNT
)

// Base damage multipliers, keyed by weapon kind.
var baseDamageMultiplier = map[WeaponKind]float64{
	WeaponArrow:  2.0,
	WeaponBullet: 0.5,
	WeaponHeavy:  2.0,
	WeaponTNT:    2.5,
}

var critDamageMultiplier = map[WeaponKind]float64{
	WeaponArrow:  3.0,
	WeaponBullet: 2.0,
	WeaponHeavy:  3.0,
	// TNT cannot crit.
}

// Gravity applied to heavy projectiles, units/s^2.
const heavyGravity = 600.0

// VarianceMin and VarianceMax bound the uniform roll applied on top of
// base damage.
const (
	VarianceMin = 0.5
	VarianceMax = 1.0
)

// MaxDamage is the hard clamp on any single hit.
const MaxDamage = 300

// weaponKindByName maps a wire weapon/projType string to the internal
// damage-model kind it rolls against. "mine" and "spike" are the
// secondary aliases validation.go's acceptance-window table already
// carries: mine behaves like a sticky area charge (TNT's profile),
// spike like a fast direct hit (arrow's profile).
var weaponKindByName = map[string]WeaponKind{
	"arrow":  WeaponArrow,
	"bullet": WeaponBullet,
	"heavy":  WeaponHeavy,
	"tnt":    WeaponTNT,
	"mine":   WeaponTNT,
	"spike":  WeaponArrow,
}

// arrowVisualOnlyRange is how far, in arena units, an arrow keeps
// traveling after its damage-enabled flag is cleared.
const arrowVisualOnlyRange = 150.0

// Projectile is a single live arrow/bullet/heavy/TNT instance.
type Projectile struct {
	ID         string
	Kind       WeaponKind
	OwnerSID   string
	X, Y       float64
	VX, VY     float64
	Bounces    int
	MaxBounces int
	Dead       bool
	Stuck      bool
	StuckSID   string
	SpawnedAt  int64
	FuseAt     int64 // TNT: absolute ms timestamp the fuse expires

	// DamageEnabled gates hit acceptance against this projectile's fire
	// event. Every weapon starts damage-enabled; an arrow clears it
	// after its first stone bounce and keeps flying on TravelBudget
	// instead of being destroyed outright.
	DamageEnabled bool
	TravelBudget  float64 // remaining travel distance once damage-disabled; 0 = not yet spent

	PosGate BroadcastGate // throttles this projectile's position broadcast stream
}

// NewArrow spawns an arrow at the shooter's position aimed at a
// target. Arrows bounce once off the stone, then continue as
// visual-only for a short remaining range.
func NewArrow(id, ownerSID string, x, y, vx, vy float64, now int64) *Projectile {
	return &Projectile{ID: id, Kind: WeaponArrow, OwnerSID: ownerSID, X: x, Y: y, VX: vx, VY: vy, MaxBounces: 1, SpawnedAt: now, DamageEnabled: true}
}

// NewBullet spawns a bullet with up to 3 damped stone bounces.
func NewBullet(id, ownerSID string, x, y, vx, vy float64, now int64) *Projectile {
	return &Projectile{ID: id, Kind: WeaponBullet, OwnerSID: ownerSID, X: x, Y: y, VX: vx, VY: vy, MaxBounces: 3, SpawnedAt: now, DamageEnabled: true}
}

// NewHeavy spawns a heavy projectile subject to gravity.
func NewHeavy(id, ownerSID string, x, y, vx, vy float64, now int64) *Projectile {
	return &Projectile{ID: id, Kind: WeaponHeavy, OwnerSID: ownerSID, X: x, Y: y, VX: vx, VY: vy, SpawnedAt: now, DamageEnabled: true}
}

// NewTNT spawns a TNT charge that falls straight down and expires
// after 8s unless it sticks to a target, in which case a 3s fuse
// starts at the stick moment.
func NewTNT(id, ownerSID string, x, y float64, now int64) *Projectile {
	return &Projectile{ID: id, Kind: WeaponTNT, OwnerSID: ownerSID, X: x, Y: y, VX: 0, VY: 220, SpawnedAt: now, DamageEnabled: true}
}

const (
	tntFuseMS   = 3000
	tntExpireMS = 8000
	bounceDamp  = 0.7
)

// Step advances a projectile by dt seconds against the given stone,
// handling bounces and gravity. Returns true if the projectile should
// be removed this tick.
func (p *Projectile) Step(dt float64, st *Stone, now int64) bool {
	if p.Dead {
		return true
	}

	if p.Kind == WeaponTNT {
		if p.Stuck {
			return now >= p.FuseAt
		}
		p.Y += p.VY * dt
		if now-p.SpawnedAt >= tntExpireMS || p.Y > ArenaHeight {
			return true
		}
		return false
	}

	if p.Kind == WeaponHeavy {
		p.VY += heavyGravity * dt
	}

	nx, ny := p.X+p.VX*dt, p.Y+p.VY*dt
	if p.Kind == WeaponArrow || p.Kind == WeaponBullet {
		if cx, cy, hit := st.BisectFirstContact(p.X, p.Y, nx, ny, 3, 1.0); hit {
			if p.Bounces >= p.MaxBounces {
				return true
			}
			p.Bounces++
			if p.Kind == WeaponArrow {
				// The arrow's one bounce is spent: it keeps flying as a
				// visual-only hazard over a short budget and is destroyed
				// on its next stone contact.
				p.DamageEnabled = false
				p.TravelBudget = arrowVisualOnlyRange
			}
			nrmX, nrmY, _ := st.Penetration(cx, cy, 3)
			dot := p.VX*nrmX + p.VY*nrmY
			p.VX = (p.VX - 2*dot*nrmX) * bounceDamp
			p.VY = (p.VY - 2*dot*nrmY) * bounceDamp
			nx, ny = cx, cy
		}
	}

	if !p.DamageEnabled && p.TravelBudget > 0 {
		p.TravelBudget -= math.Hypot(nx-p.X, ny-p.Y)
		if p.TravelBudget <= 0 {
			return true
		}
	}

	p.X, p.Y = nx, ny

	if p.X < 0 || p.X > ArenaWidth || p.Y < 0 || p.Y > ArenaHeight {
		return true
	}
	return false
}

// Stick attaches a TNT charge to a target session, starting its fuse.
func (p *Projectile) Stick(targetSID string, now int64) {
	if p.Kind != WeaponTNT || p.Stuck {
		return
	}
	p.Stuck = true
	p.StuckSID = targetSID
	p.FuseAt = now + tntFuseMS
}

// RollDamage computes final clamped damage for a hit: base × variance,
// rounded and clamped to [0, MaxDamage]. variance must already be in
// [VarianceMin, VarianceMax].
func RollDamage(kind WeaponKind, baseDmg int, isCrit bool, variance float64) (int, bool) {
	if kind == WeaponTNT {
		isCrit = false
	}
	mult := baseDamageMultiplier[kind]
	if isCrit {
		if cm, ok := critDamageMultiplier[kind]; ok {
			mult = cm
		}
	}
	dmg := float64(baseDmg) * mult * variance
	rounded := math.Round(dmg)
	if rounded < 0 {
		rounded = 0
	}
	if rounded > MaxDamage {
		rounded = MaxDamage
	}
	return int(rounded), isCrit
}
