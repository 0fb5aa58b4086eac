package combat

import (
	crand "crypto/rand"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/ufoarena/realtime-server/internal/gateway"
	"github.com/ufoarena/realtime-server/internal/nftbonus"
	"github.com/ufoarena/realtime-server/internal/profile"
	"github.com/ufoarena/realtime-server/internal/registry"
	"github.com/ufoarena/realtime-server/internal/replay"
	"github.com/ufoarena/realtime-server/internal/room"
	"github.com/ufoarena/realtime-server/internal/ticket"
)

// Phase is the combat room's lifecycle state, per spec.md §4.10.
type Phase int

const (
	PhaseLobby Phase = iota
	PhaseLobbyBoth
	PhasePlaying
	PhaseEnded
	PhaseDisposed
)

const (
	lobbyWaitTimeout = 90 * time.Second
	readyWaitTimeout = 35 * time.Second
	matchDuration    = 90 * time.Second
	endedGrace       = 5 * time.Second
	profileTimeout   = 1200 * time.Millisecond
	tickRate         = 30
	tickInterval     = time.Second / tickRate
)

// Fallback offensive stats used when on-chain stat enforcement is off
// or unavailable; enforced rooms overwrite these from ticket.Stats at
// Join.
const (
	defaultBaseDamage = 10
	defaultCritChance = 0.1

	armorRegenIntervalMS = 2000
)

// Dependencies bundles the cross-cutting services a combat room uses.
// Any field may be nil; the room degrades gracefully when a dependency
// is absent.
type Dependencies struct {
	Tickets    *ticket.Service
	NFTBonus   *nftbonus.Service
	Profiles   *profile.Service
	Replays    *replay.Store
	Registry   *registry.Registry
	TicketReq  bool
	FunRoom    bool
	Tournament *SeriesTracker
}

type playerSlot struct {
	Sess          *room.Session
	Address       string
	TicketTokenID uint64
	Ready         bool
	State         CombatantState
	RateLimiter   *RateLimiter
	PosGate       BroadcastGate
	StatsGate     StatsGate
	LastFire      *FireEvent

	// Offensive stats RollDamage rolls against for this player's hits,
	// and the per-tick armor regen cap NFT holding unlocks.
	Dmg            int
	CritChance     float64
	ArmorRegenRate int
}

// Room is the 1v1 authoritative combat arena orchestrator (spec.md
// §4.8, §4.10).
type Room struct {
	mu sync.Mutex

	id, name string
	deps     Dependencies
	log      zerolog.Logger

	phase       Phase
	players     map[string]*playerSlot
	order       []string // join order, for "the other player" lookups
	stone       *Stone
	projectiles map[string]*Projectile

	createdAtMS     int64
	lobbyDeadline   int64
	readyDeadline   int64
	matchDeadline   int64
	endedAt         int64
	winnerSID       string
	endReason       string
	settlementDone  bool

	recorder *replay.Recorder
}

// New constructs a combat room. nowUnixMS is the room's creation time.
func New(log zerolog.Logger, id, name string, deps Dependencies, nowUnixMS int64) *Room {
	r := &Room{
		id: id, name: name, deps: deps,
		log:         log.With().Str("room_id", id).Str("room_kind", "combat").Logger(),
		phase:       PhaseLobby,
		players:     make(map[string]*playerSlot),
		stone:       NewStone(),
		projectiles: make(map[string]*Projectile),
		createdAtMS: nowUnixMS,
	}
	if deps.Registry != nil {
		deps.Registry.Register(id, registry.KindCombat)
	}
	if deps.Replays != nil {
		r.recorder = replay.NewRecorder(log, deps.Replays, id, name, nowUnixMS, 1500*time.Millisecond)
	}
	return r
}

func (r *Room) ID() string   { return r.id }
func (r *Room) Name() string { return r.name }
func (r *Room) Kind() string { return "combat" }

// Join validates the joining address, runs the ticket gate, applies
// starting stats, and arms the appropriate lobby timer, in the order
// spec.md §4.10 specifies.
func (r *Room) Join(ctx context.Context, sess *room.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.players) >= 2 || r.phase >= PhasePlaying {
		return fmt.Errorf("combat room %s: full or locked", r.id)
	}
	if sess.Address == "" {
		return fmt.Errorf("combat room %s: address required", r.id)
	}

	now := nowMS()
	addr := common.HexToAddress(sess.Address)
	var tokenID uint64
	if r.deps.Tickets != nil {
		check := r.deps.Tickets.CheckJoin(ctx, addr, nil)
		if !check.OK {
			return fmt.Errorf("combat room %s: ticket check failed: %s", r.id, check.Reason)
		}
		tokenID = check.TokenID
	}

	state := CombatantState{HP: 100, MaxHP: 100, Armor: 0, MaxArmor: 100}
	dmg, critChance, armorRegenRate := defaultBaseDamage, defaultCritChance, 1
	statsEnforced := r.deps.Tickets != nil && r.deps.TicketReq
	if statsEnforced {
		if stats, err := r.deps.Tickets.StatsOf(ctx, tokenID); err == nil {
			state.MaxHP, state.MaxArmor = stats.MaxHP, stats.MaxArmor
			state.HP, state.Armor = stats.MaxHP, 0
			dmg, critChance = stats.Dmg, stats.CritChance
		}
	} else if r.deps.Profiles != nil {
		pctx, cancel := context.WithTimeout(ctx, profileTimeout)
		defer cancel()
		r.deps.Profiles.Fetch(pctx, sess.Address)
	}
	if r.deps.NFTBonus != nil {
		if b, err := r.deps.NFTBonus.BonusFor(ctx, addr); err == nil {
			state.MaxHP += b.MaxHPDelta
			state.HP = state.MaxHP
			dmg += b.DmgDelta
			critChance += float64(b.CritDelta) / 100
			armorRegenRate = b.ArmorRegenRate
		}
	}

	slot := &playerSlot{
		Sess: sess, Address: sess.Address, TicketTokenID: tokenID,
		State: state, RateLimiter: NewRateLimiter(),
		Dmg: dmg, CritChance: critChance, ArmorRegenRate: armorRegenRate,
	}
	r.players[sess.ID] = slot
	r.order = append(r.order, sess.ID)

	if r.deps.Registry != nil {
		r.deps.Registry.SetPlayerCount(r.id, len(r.players))
	}
	if r.recorder != nil {
		r.recorder.RecordJoin(sess.ID, replay.PlayerRecord{Address: sess.Address, TicketTokenID: tokenID})
	}

	switch len(r.players) {
	case 1:
		r.phase = PhaseLobby
		r.lobbyDeadline = now + lobbyWaitTimeout.Milliseconds()
	case 2:
		r.phase = PhaseLobbyBoth
		r.readyDeadline = now + readyWaitTimeout.Milliseconds()
	}
	return nil
}

// SetReady marks sess ready; when both players are ready the match
// locks and starts.
func (r *Room) SetReady(sessID string, now int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, ok := r.players[sessID]
	if !ok || r.phase != PhaseLobbyBoth {
		return
	}
	slot.Ready = true
	for _, id := range r.order {
		if p, ok := r.players[id]; !ok || !p.Ready {
			return
		}
	}
	r.phase = PhasePlaying
	r.matchDeadline = now + matchDuration.Milliseconds()
	if r.recorder != nil {
		r.recorder.StartMatch(r.matchDeadline)
	}
}

func (r *Room) otherSID(sid string) string {
	for _, id := range r.order {
		if id != sid {
			return id
		}
	}
	return ""
}

// Leave removes a session. If the match is active, the remaining
// session is declared the winner and settlement is queued before the
// leaver's ticket reference is cleared.
func (r *Room) Leave(sess *room.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, ok := r.players[sess.ID]
	if !ok {
		return
	}

	if r.phase == PhasePlaying {
		winner := r.otherSID(sess.ID)
		r.endMatchLocked("player_left", winner, nowMS())
		r.queueSettlementLocked(slot, winner)
	}

	delete(r.players, sess.ID)
	if r.deps.Registry != nil {
		r.deps.Registry.SetPlayerCount(r.id, len(r.players))
	}
}

// HandleMessage applies one inbound gameplay message. "ready" and
// "player_input" frames are applied immediately under the room mutex;
// they are not queued for the next Tick. Other message types are
// ignored.
func (r *Room) HandleMessage(sess *room.Session, msgType string, payload []byte) {
	switch msgType {
	case "ready":
		r.SetReady(sess.ID, nowMS())
	case "player_input":
		r.ApplyPlayerInput(sess.ID, payload, nowMS())
	}
}

// playerInputPayload is the typed decoding of a "player_input" frame's
// data field, per spec.md §6 (`player_input {type, timestamp, ...typed
// fields}`). Fields unused by a given Type are simply left zero.
type playerInputPayload struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`

	// fire
	Weapon string  `json:"weapon"`
	X, Y   float64 `json:"x,omitempty"`
	VX, VY float64 `json:"vx,omitempty"`

	// hit
	ProjType       string `json:"projType"`
	TargetPlayerID string `json:"targetPlayerId"`

	// stats
	HP        int  `json:"hp"`
	Armor     int  `json:"armor"`
	MaxHP     int  `json:"maxHp"`
	MaxArmor  int  `json:"maxArmor"`
	Paralyzed bool `json:"paralyzed"`
}

// ApplyPlayerInput decodes and dispatches one player_input frame,
// recording it (accepted or not) so replay inputs reflect every
// packet a client actually sent, per spec.md §4.6/§8.
func (r *Room) ApplyPlayerInput(sessID string, payload []byte, now int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var in playerInputPayload
	accepted := false
	if err := json.Unmarshal(payload, &in); err == nil {
		switch in.Type {
		case "fire":
			accepted = r.applyFireLocked(sessID, in, now)
		case "hit":
			accepted = r.applyHitLocked(sessID, in, now)
		case "stats":
			accepted = r.applyStatsLocked(sessID, in, now)
		case "position":
			accepted = r.applyPositionLocked(sessID, in, now)
		}
	}
	if r.recorder != nil {
		r.recorder.RecordInput(sessID, now, "player_input", json.RawMessage(payload), accepted)
	}
}

func (r *Room) applyFireLocked(sessID string, in playerInputPayload, now int64) bool {
	if r.phase != PhasePlaying {
		return false
	}
	slot, ok := r.players[sessID]
	if !ok {
		return false
	}
	weapon := in.Weapon
	if _, known := AcceptanceWindowMS[weapon]; !known {
		return false
	}
	if !slot.RateLimiter.AllowHighImpact(sessID, weapon, now) {
		return false
	}

	fireID := fmt.Sprintf("%s-%s-%d", sessID, weapon, now)
	slot.LastFire = &FireEvent{ID: fireID, Weapon: weapon, ShooterSID: sessID, FiredAt: now}

	var p *Projectile
	switch weapon {
	case "arrow":
		p = NewArrow(fireID, sessID, in.X, in.Y, in.VX, in.VY, now)
	case "bullet":
		p = NewBullet(fireID, sessID, in.X, in.Y, in.VX, in.VY, now)
	case "heavy":
		p = NewHeavy(fireID, sessID, in.X, in.Y, in.VX, in.VY, now)
	case "tnt":
		p = NewTNT(fireID, sessID, in.X, in.Y, now)
	}
	if p != nil {
		r.projectiles[fireID] = p
	}

	r.broadcastEventLocked("player_input", map[string]any{
		"type": "fire", "shooterSid": sessID, "projType": weapon, "x": in.X, "y": in.Y,
	})
	return true
}

func (r *Room) applyHitLocked(sessID string, in playerInputPayload, now int64) bool {
	shooter, ok := r.players[sessID]
	if !ok {
		return false
	}
	if !shooter.RateLimiter.AllowHit(sessID, now) {
		return false
	}
	if _, ok := r.players[in.TargetPlayerID]; !ok {
		return false
	}
	if !ValidateHit(r.phase == PhasePlaying, sessID, in.TargetPlayerID, r.otherSID(sessID), in.ProjType, shooter.LastFire, now) {
		return false
	}
	if fe := shooter.LastFire; fe != nil {
		if p, live := r.projectiles[fe.ID]; live && !p.DamageEnabled {
			return false // visual-only arrow past its first bounce can't score
		}
	}

	kind, known := weaponKindByName[in.ProjType]
	if !known {
		return false
	}
	target := r.players[in.TargetPlayerID]
	variance := VarianceMin + cryptoUnit()*(VarianceMax-VarianceMin)
	isCrit := cryptoUnit() < shooter.CritChance
	dmg, isCrit := RollDamage(kind, shooter.Dmg, isCrit, variance)
	ApplyDamage(&target.State, dmg, now)

	if target.StatsGate.Allow(target.State.HP, target.State.Armor, target.State.MaxHP, target.State.MaxArmor, target.State.Paralyzed, now) {
		r.broadcastEventLocked("player_input", map[string]any{
			"type": "hit", "shooterSid": sessID, "targetPlayerId": in.TargetPlayerID,
			"projType": in.ProjType, "damage": dmg, "isCrit": isCrit,
		})
	}
	return true
}

func (r *Room) applyStatsLocked(sessID string, in playerInputPayload, now int64) bool {
	slot, ok := r.players[sessID]
	if !ok {
		return false
	}
	if !slot.RateLimiter.AllowStats(sessID, now) {
		return false
	}

	policy := r.regenPolicyFor(slot)
	slot.State.Armor = ApplyArmorRegen(&slot.State, in.Armor, policy, now)
	slot.State.HP = ApplyHPRegen(&slot.State, in.HP, policy)

	if slot.StatsGate.Allow(slot.State.HP, slot.State.Armor, slot.State.MaxHP, slot.State.MaxArmor, slot.State.Paralyzed, now) {
		r.broadcastEventLocked("player_input", map[string]any{
			"type": "stats", "sid": sessID, "hp": slot.State.HP, "armor": slot.State.Armor,
		})
	}
	return true
}

func (r *Room) applyPositionLocked(sessID string, in playerInputPayload, now int64) bool {
	if r.phase != PhasePlaying {
		return false
	}
	slot, ok := r.players[sessID]
	if !ok {
		return false
	}
	if slot.PosGate.AllowPosition(in.X, in.Y, in.VX, in.VY, now) {
		r.broadcastEventLocked("player_input", map[string]any{
			"type": "position", "sid": sessID, "x": in.X, "y": in.Y, "vx": in.VX, "vy": in.VY,
		})
	}
	return true
}

// broadcastProjectilePositionLocked forwards a live projectile's
// position on its own throttled stream: arrow_position for arrows
// (angle-gated), projectile_position for everything else.
func (r *Room) broadcastProjectilePositionLocked(p *Projectile, now int64) {
	if p.Kind == WeaponArrow {
		angle := math.Atan2(p.VY, p.VX)
		if !p.PosGate.AllowArrowPosition(p.X, p.Y, p.VX, p.VY, angle, now) {
			return
		}
		r.broadcastEventLocked("player_input", map[string]any{
			"type": "arrow_position", "id": p.ID, "x": p.X, "y": p.Y, "vx": p.VX, "vy": p.VY, "angle": angle,
		})
		return
	}
	if !p.PosGate.AllowPosition(p.X, p.Y, p.VX, p.VY, now) {
		return
	}
	r.broadcastEventLocked("player_input", map[string]any{
		"type": "projectile_position", "id": p.ID, "x": p.X, "y": p.Y, "vx": p.VX, "vy": p.VY,
	})
}

func (r *Room) regenPolicyFor(slot *playerSlot) RegenPolicy {
	if !r.deps.TicketReq || r.deps.Tickets == nil {
		return DefaultUnenforcedPolicy
	}
	return RegenPolicy{Enforced: true, MaxRegenPerTick: slot.ArmorRegenRate, RegenInterval: armorRegenIntervalMS}
}

// broadcastEventLocked pushes a discrete event onto every joined
// session's send channel, dropping it for a session whose outbound
// buffer is already full rather than blocking the room's tick.
func (r *Room) broadcastEventLocked(msgType string, data any) {
	frame := gateway.Event(msgType, data)
	for _, id := range r.order {
		p, ok := r.players[id]
		if !ok {
			continue
		}
		select {
		case p.Sess.Send <- frame:
		default:
		}
	}
}

// cryptoUnit returns a uniform value in [0, 1) drawn from a
// cryptographically strong source, per spec.md §4.8's requirement
// that crit rolls and damage variance not be predictable from a
// client-observable seed.
func cryptoUnit() float64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0.5
	}
	return float64(binary.BigEndian.Uint64(b[:])>>11) / (1 << 53)
}

// Tick advances the simulation: steps live projectiles, checks timeout
// and win conditions, and throttles a recorder snapshot.
func (r *Room) Tick(nowUnixMS int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase == PhasePlaying {
		dt := 1.0 / tickRate
		for id, p := range r.projectiles {
			dead := p.Step(dt, r.stone, nowUnixMS)
			r.broadcastProjectilePositionLocked(p, nowUnixMS)
			if dead {
				delete(r.projectiles, id)
			}
		}
		if nowUnixMS >= r.matchDeadline {
			r.endMatchLocked("timeout", r.leaderByHPLocked(), nowUnixMS)
		}
		for id, p := range r.players {
			if p.State.HP <= 0 {
				r.endMatchLocked("elimination", r.otherSID(id), nowUnixMS)
				break
			}
		}
	} else if r.phase == PhaseLobby && nowUnixMS >= r.lobbyDeadline {
		r.phase = PhaseDisposed
	} else if r.phase == PhaseLobbyBoth && nowUnixMS >= r.readyDeadline {
		r.phase = PhaseDisposed
	} else if r.phase == PhaseEnded && nowUnixMS-r.endedAt >= endedGrace.Milliseconds() {
		r.phase = PhaseDisposed
	}

	if r.recorder != nil {
		snap := make(map[string]replay.PlayerState, len(r.players))
		for id, p := range r.players {
			snap[id] = replay.PlayerState{HP: p.State.HP, Armor: p.State.Armor}
		}
		r.recorder.MaybeSnapshot(nowUnixMS, snap, false)
	}
}

func (r *Room) leaderByHPLocked() string {
	best, bestHP := "", -1
	for id, p := range r.players {
		if p.State.HP > bestHP {
			best, bestHP = id, p.State.HP
		}
	}
	return best
}

func (r *Room) endMatchLocked(reason, winnerSID string, now int64) {
	if r.phase == PhaseEnded || r.phase == PhaseDisposed {
		return
	}
	r.phase = PhaseEnded
	r.endReason = reason
	r.winnerSID = winnerSID
	r.endedAt = now
	if r.recorder != nil {
		r.recorder.EndMatch(reason, winnerSID)
	}
	if !r.deps.FunRoom && winnerSID != "" {
		if loser := r.otherSID(winnerSID); loser != "" {
			if slot, ok := r.players[loser]; ok {
				r.queueSettlementLocked(slot, winnerSID)
			}
		}
	}
	if r.deps.Tournament != nil && winnerSID != "" {
		if w, ok := r.players[winnerSID]; ok {
			r.deps.Tournament.RecordWin(w.Address)
		}
	}
}

func (r *Room) queueSettlementLocked(loser *playerSlot, winnerSID string) {
	if r.settlementDone || r.deps.Tickets == nil {
		return
	}
	r.settlementDone = true
	winnerAddr := ""
	if w, ok := r.players[winnerSID]; ok {
		winnerAddr = w.Address
	}
	if r.recorder != nil {
		r.recorder.SetSettlement(replay.Settlement{LoserTokenID: loser.TicketTokenID, WinnerAddress: winnerAddr})
	}
	go func(tokenID uint64, addr string) {
		hash := r.deps.Tickets.ResolveMatchBurnAndPayout(tokenID, common.HexToAddress(addr))
		if r.recorder == nil {
			return
		}
		r.recorder.SetSettlement(replay.Settlement{TxHash: hash.Hex()})
	}(loser.TicketTokenID, winnerAddr)
}

// Dispose unregisters the room and finalizes its recorder exactly
// once.
func (r *Room) Dispose(ctx context.Context) {
	r.mu.Lock()
	id := r.id
	rec := r.recorder
	r.mu.Unlock()

	if r.deps.Registry != nil {
		r.deps.Registry.Unregister(id)
	}
	if rec != nil {
		rec.Finalize(ctx)
	}
}

func nowMS() int64 { return time.Now().UnixMilli() }
