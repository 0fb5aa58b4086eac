package combat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProjectileStepOutOfBoundsDies(t *testing.T) {
	st := NewStone()
	p := NewBullet("p1", "s1", -10, 10, -50, 0, 0)
	dead := p.Step(0.1, st, 100)
	assert.True(t, dead)
}

func TestTNTFusesAfterSticking(t *testing.T) {
	p := NewTNT("t1", "s1", 100, 100, 0)
	p.Stick("s2", 1000)
	assert.False(t, p.Step(0.1, NewStone(), 2000))
	assert.True(t, p.Step(0.1, NewStone(), 4001))
}

func TestTNTExpiresWithoutSticking(t *testing.T) {
	p := NewTNT("t1", "s1", 100, 100, 0)
	assert.True(t, p.Step(0.1, NewStone(), 9000))
}

func TestBulletBouncesThenDies(t *testing.T) {
	st := NewStone()
	// Aim directly at the stone center from outside it.
	p := NewBullet("b1", "s1", ArenaWidth*0.5, 0, 0, 400, 0)
	bounced := false
	for i := 0; i < 50; i++ {
		if p.Step(0.05, st, int64(i)*50) {
			break
		}
		if p.Bounces > 0 {
			bounced = true
		}
	}
	assert.True(t, bounced, "bullet fired into the stone should register at least one bounce")
}

func TestRollDamageNeverNegative(t *testing.T) {
	dmg, _ := RollDamage(WeaponBullet, 0, false, VarianceMin)
	assert.GreaterOrEqual(t, dmg, 0)
}
