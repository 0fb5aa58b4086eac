package combat

// CombatantState is the subset of a session's combat-relevant fields
// the damage and regen rules operate on.
type CombatantState struct {
	HP, MaxHP       int
	Armor, MaxArmor int
	LastDamageAt    int64
	LastArmorRegen  int64
	Paralyzed       bool
}

// ApplyDamage absorbs damage by armor first, remainder to HP, clamping
// HP at 0. Adapted from the teacher's shields-then-hull order, applied
// here to armor-then-HP. Returns the amount actually applied.
func ApplyDamage(c *CombatantState, damage int, now int64) int {
	if c == nil || damage <= 0 {
		return 0
	}

	applied := 0
	if c.Armor > 0 {
		absorbed := damage
		if absorbed > c.Armor {
			absorbed = c.Armor
		}
		c.Armor -= absorbed
		damage -= absorbed
		applied += absorbed
	}

	if damage > 0 {
		if damage > c.HP {
			damage = c.HP
		}
		c.HP -= damage
		applied += damage
	}

	if c.HP < 0 {
		c.HP = 0
	}
	c.LastDamageAt = now
	return applied
}

// RegenPolicy bounds how much a client-reported stats packet may raise
// armor/HP, per spec.md §4.8.
type RegenPolicy struct {
	Enforced        bool
	MaxRegenPerTick int // armor cap when enforcement is on (1 or 2, by NFT count)
	RegenInterval   int64

	UnenforcedArmorCap int // small fixed cap when enforcement is off
	UnenforcedHPCap    int // healthpack-sized cap
}

// DefaultUnenforcedPolicy mirrors the spec's "small fixed cap" /
// "healthpack-sized" language when on-chain enforcement is off.
var DefaultUnenforcedPolicy = RegenPolicy{UnenforcedArmorCap: 5, UnenforcedHPCap: 15}

// ApplyArmorRegen validates a client-proposed armor value against the
// regen rule and returns the armor value that should actually be
// stored. A proposed increase that violates the cadence or per-tick
// cap is dropped back to the previous value.
func ApplyArmorRegen(c *CombatantState, proposedArmor int, policy RegenPolicy, now int64) int {
	if proposedArmor <= c.Armor {
		return proposedArmor // decreases always pass through
	}

	delta := proposedArmor - c.Armor
	if !policy.Enforced {
		if delta > policy.UnenforcedArmorCap {
			return c.Armor
		}
		return proposedArmor
	}

	if delta > policy.MaxRegenPerTick {
		return c.Armor
	}
	if now-c.LastDamageAt < policy.RegenInterval {
		return c.Armor
	}
	if now-c.LastArmorRegen < policy.RegenInterval {
		return c.Armor
	}
	c.LastArmorRegen = now
	if proposedArmor > c.MaxArmor {
		return c.MaxArmor
	}
	return proposedArmor
}

// ApplyHPRegen clamps an unenforced-mode HP increase to the
// healthpack-sized cap; enforcement-on mode never lets clients raise
// HP directly.
func ApplyHPRegen(c *CombatantState, proposedHP int, policy RegenPolicy) int {
	if proposedHP <= c.HP {
		return proposedHP
	}
	if policy.Enforced {
		return c.HP
	}
	delta := proposedHP - c.HP
	if delta > policy.UnenforcedHPCap {
		proposedHP = c.HP + policy.UnenforcedHPCap
	}
	if proposedHP > c.MaxHP {
		proposedHP = c.MaxHP
	}
	return proposedHP
}
