package conquest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ufoarena/realtime-server/internal/galaxy"
	"github.com/ufoarena/realtime-server/internal/gateway"
	"github.com/ufoarena/realtime-server/internal/registry"
	"github.com/ufoarena/realtime-server/internal/replay"
	"github.com/ufoarena/realtime-server/internal/rng"
	"github.com/ufoarena/realtime-server/internal/room"
)

const (
	autosaveInterval       = 15 * time.Second
	debouncedSaveMinGap    = 2 * time.Second
	dirtySweepTicks        = 10 // 1s at 10Hz
	reconnectWindow        = 600 * time.Second
	revealZoneRadius       = 1500.0
)

// Dependencies bundles the orchestrator's cross-cutting services.
type Dependencies struct {
	Registry *registry.Registry
	SaveDir  string
	Replays  *replay.Store
}

// RevealZone is the single permanent circle each joining/reconnecting
// player is sent, centered on their home.
type RevealZone struct {
	X, Y, Radius float64
	Permanent    bool
}

// Room is the conquest galaxy orchestrator (spec.md §4.9, §4.11).
type Room struct {
	mu sync.Mutex

	id, name string
	deps     Dependencies
	log      zerolog.Logger

	galaxy *Galaxy

	sessions     map[string]*room.Session // sessionID -> session
	addrToPlayer map[string]string        // address -> playerID

	dirtyPlanets map[int]bool
	lastOwners   map[int]string // planet ownership as of the end of the previous Tick
	tickCount    int
	lastSaveAt   time.Time
	lastAutosave time.Time

	recorder *replay.Recorder
}

// New creates a conquest room, deriving its seed from galaxyID unless
// explicitSeed is supplied, then attempting to load and overlay any
// persisted state.
func New(log zerolog.Logger, galaxyID, name string, deps Dependencies, explicitSeed *uint32) *Room {
	seed := DeriveSeed(galaxyID, explicitSeed)
	g := NewGalaxy(seed)

	r := &Room{
		id: galaxyID, name: name, deps: deps,
		log:          log.With().Str("room_id", galaxyID).Str("room_kind", "conquest").Logger(),
		galaxy:       g,
		sessions:     make(map[string]*room.Session),
		addrToPlayer: make(map[string]string),
		dirtyPlanets: make(map[int]bool),
	}

	if deps.SaveDir != "" {
		if sf, err := LoadSave(deps.SaveDir, galaxyID); err == nil {
			g.ApplyOverlay(sf)
			for id, pl := range g.Players {
				r.addrToPlayer[pl.Address] = id
			}
		}
	}
	if deps.Registry != nil {
		deps.Registry.Register(galaxyID, registry.KindConquest)
	}
	if deps.Replays != nil {
		r.recorder = replay.NewRecorder(log, deps.Replays, galaxyID, name, time.Now().UnixMilli(), 5*time.Second)
	}
	return r
}

func (r *Room) ID() string   { return r.id }
func (r *Room) Name() string { return r.name }
func (r *Room) Kind() string { return "conquest" }

// Join reconnects an existing player by address, or picks a new home
// planet and creates a fresh player slot.
func (r *Room) Join(ctx context.Context, sess *room.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sess.Address == "" {
		return fmt.Errorf("conquest room %s: address required", r.id)
	}

	r.sessions[sess.ID] = sess
	if r.recorder != nil {
		r.recorder.RecordJoin(sess.ID, replay.PlayerRecord{Address: sess.Address})
	}

	if playerID, ok := r.addrToPlayer[sess.Address]; ok {
		player := r.galaxy.Players[playerID]
		player.Alive = true
		player.Online = true
		r.sendRevealZone(player)
		return nil
	}

	homes := r.existingHomePlanetIDs()
	picked, ok := galaxy.PickStartingPlanet(staticSlice(r.galaxy.Planets, homes), homes, rng.New(r.galaxy.Seed+uint32(len(homes))))
	if !ok {
		return fmt.Errorf("conquest room %s: no eligible home planet", r.id)
	}
	candidate := &picked

	playerID := sess.ID
	player := &Player{
		ID: playerID, Address: sess.Address, Name: sess.Address,
		HomePlanetID: candidate.ID, Alive: true, Online: true,
	}
	r.galaxy.Players[playerID] = player
	r.addrToPlayer[sess.Address] = playerID

	home := r.galaxy.Planets[candidate.ID]
	home.OwnerID = playerID
	home.Units = home.MaxUnits * 0.1
	home.HomeOfPlayerID = playerID
	r.dirtyPlanets[candidate.ID] = true

	r.sendRevealZone(player)
	return nil
}

func (r *Room) existingHomePlanetIDs() []int {
	out := make([]int, 0, len(r.galaxy.Players))
	for _, pl := range r.galaxy.Players {
		out = append(out, pl.HomePlanetID)
	}
	return out
}

// staticSlice returns the static data of every unowned planet plus the
// existing homes, which PickStartingPlanet needs for its distance rule.
func staticSlice(planets map[int]*Planet, homes []int) []galaxy.Planet {
	isHome := make(map[int]bool, len(homes))
	for _, id := range homes {
		isHome[id] = true
	}
	out := make([]galaxy.Planet, 0, len(planets))
	for id, p := range planets {
		if p.OwnerID != "" && !isHome[id] {
			continue
		}
		out = append(out, p.Static)
	}
	return out
}

// sendRevealZone marks the single permanent reveal event a join or
// reconnect triggers (see RevealZoneFor). It only sets RevealSent; no
// event is written to the session here.
func (r *Room) sendRevealZone(player *Player) {
	if player.RevealSent {
		return
	}
	player.RevealSent = true
}

// RevealZoneFor returns the reveal zone a session's player should
// receive on join/reconnect.
func (r *Room) RevealZoneFor(player *Player) RevealZone {
	home := r.galaxy.Planets[player.HomePlanetID]
	return RevealZone{X: home.Static.X, Y: home.Static.Y, Radius: revealZoneRadius, Permanent: true}
}

// Leave marks a session's player offline without evicting galaxy
// state. The player slot has no expiry: a later Join with the same
// address re-binds to it at any time, and reconnectWindow is not
// applied here.
func (r *Room) Leave(sess *room.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sess.ID)
	if playerID, ok := r.addrToPlayer[sess.Address]; ok {
		if player, ok := r.galaxy.Players[playerID]; ok {
			player.Online = false
			player.RevealSent = false
		}
	}
}

// launchAttackPayload is the inbound launch_attack wire shape.
type launchAttackPayload struct {
	FromID  int     `json:"fromId"`
	ToID    int     `json:"toId"`
	Percent float64 `json:"percent"`
	Blitz   bool    `json:"blitz"`
}

// buildPayload is the inbound build wire shape.
type buildPayload struct {
	PlanetID     int    `json:"planetId"`
	Slot         int    `json:"slot"`
	BuildingType string `json:"buildingType"`
}

// toggleGenPayload is the inbound toggle_gen wire shape.
type toggleGenPayload struct {
	PlanetID int `json:"planetId"`
}

// abilityPayload is the inbound ability wire shape.
type abilityPayload struct {
	AbilityID      string `json:"abilityId"`
	TargetPlanetID int    `json:"targetPlanetId"`
}

// HandleMessage routes a player's galaxy-economy command to the
// simulation, recording it (accepted or not) and replying with a
// result event the way spec.md §7's AuthzFailure handling expects:
// denials never disconnect the client.
func (r *Room) HandleMessage(sess *room.Session, msgType string, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	playerID, ok := r.addrToPlayer[sess.Address]
	if !ok {
		return
	}

	now := time.Now().UnixMilli()
	var err error

	switch msgType {
	case "launch_attack":
		var in launchAttackPayload
		if err = json.Unmarshal(payload, &in); err == nil {
			_, err = r.galaxy.LaunchAttack(playerID, in.FromID, in.ToID, in.Percent, in.Blitz)
			if err == nil {
				r.dirtyPlanets[in.FromID] = true
			} else {
				r.sendEventLocked(sess, "error", map[string]any{"message": err.Error()})
			}
		}
	case "build":
		var in buildPayload
		if err = json.Unmarshal(payload, &in); err == nil {
			err = r.galaxy.Build(playerID, in.PlanetID, in.Slot, in.BuildingType)
			r.sendResultLocked(sess, "build_result", in.PlanetID, err)
			if err == nil {
				r.dirtyPlanets[in.PlanetID] = true
			}
		}
	case "toggle_gen":
		var in toggleGenPayload
		if err = json.Unmarshal(payload, &in); err == nil {
			err = r.galaxy.ToggleGen(playerID, in.PlanetID)
			if err == nil {
				r.dirtyPlanets[in.PlanetID] = true
			} else {
				r.sendEventLocked(sess, "error", map[string]any{"message": err.Error()})
			}
		}
	case "ability":
		var in abilityPayload
		if err = json.Unmarshal(payload, &in); err == nil {
			err = r.galaxy.Ability(playerID, in.AbilityID, in.TargetPlanetID)
			r.sendResultLocked(sess, "ability_result", in.TargetPlanetID, err)
			if err == nil {
				r.dirtyPlanets[in.TargetPlanetID] = true
				r.sendEventLocked(sess, "ability_used", map[string]any{"abilityId": in.AbilityID, "targetPlanetId": in.TargetPlanetID})
			}
		}
	default:
		return
	}

	if r.recorder != nil {
		r.recorder.RecordInput(sess.ID, now, msgType, json.RawMessage(payload), err == nil)
	}
}

// sendResultLocked replies to the originating session with a
// success/failure result event, per spec.md §7's AuthzFailure design:
// a rejected build/ability never disconnects the client, it just gets
// build_result/ability_result {success:false}.
func (r *Room) sendResultLocked(sess *room.Session, msgType string, planetID int, err error) {
	data := map[string]any{"success": err == nil, "planetId": planetID}
	if err != nil {
		data["message"] = err.Error()
	}
	r.sendEventLocked(sess, msgType, data)
}

// sendEventLocked delivers a discrete event to a single session,
// non-blocking so a stalled client read never stalls the simulation
// tick.
func (r *Room) sendEventLocked(sess *room.Session, msgType string, data any) {
	if sess.Send == nil {
		return
	}
	select {
	case sess.Send <- gateway.Event(msgType, data):
	default:
	}
}

// Tick advances the galaxy simulation, tracks dirty planets, and runs
// the periodic autosave. Debounced saves happen only through SaveNow.
// Ownership is diffed against the end of the previous Tick, so a change
// made between ticks is marked dirty as well as one made by the sim.
func (r *Room) Tick(nowUnixMS int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.galaxy.Tick(nowUnixMS)
	r.markDirtyFromDiff(r.lastOwners)
	r.lastOwners = r.snapshotOwnership()

	r.tickCount++
	if r.tickCount%dirtySweepTicks == 0 {
		r.fullDirtySweep()
	}

	if r.deps.SaveDir != "" && time.Since(r.lastAutosave) >= autosaveInterval {
		r.saveLocked()
		r.lastAutosave = time.Now()
	}
}

func (r *Room) snapshotOwnership() map[int]string {
	out := make(map[int]string, len(r.galaxy.Planets))
	for id, p := range r.galaxy.Planets {
		out[id] = p.OwnerID
	}
	return out
}

func (r *Room) markDirtyFromDiff(before map[int]string) {
	for id, p := range r.galaxy.Planets {
		if before[id] != p.OwnerID {
			r.dirtyPlanets[id] = true
		}
	}
}

func (r *Room) fullDirtySweep() {
	for id := range r.galaxy.Planets {
		r.dirtyPlanets[id] = true
	}
}

// DrainDirty returns and clears the set of planets that need syncing
// to clients.
func (r *Room) DrainDirty() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int, 0, len(r.dirtyPlanets))
	for id := range r.dirtyPlanets {
		ids = append(ids, id)
	}
	r.dirtyPlanets = make(map[int]bool)
	return ids
}

// SaveNow triggers a debounced save; a no-op if the last save was less
// than debouncedSaveMinGap ago.
func (r *Room) SaveNow() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastSaveAt) < debouncedSaveMinGap {
		return
	}
	r.saveLocked()
}

func (r *Room) saveLocked() {
	sf := r.galaxy.ToSaveFile()
	if err := SaveAtomic(r.deps.SaveDir, r.id, sf); err != nil {
		r.log.Warn().Err(err).Msg("conquest save failed")
		return
	}
	r.lastSaveAt = time.Now()
}

// Dispose saves one final time, finalizes the replay recorder, and
// unregisters the room.
func (r *Room) Dispose(ctx context.Context) {
	r.mu.Lock()
	if r.deps.SaveDir != "" {
		r.saveLocked()
	}
	id := r.id
	rec := r.recorder
	r.mu.Unlock()

	if rec != nil {
		rec.Finalize(ctx)
	}
	if r.deps.Registry != nil {
		r.deps.Registry.Unregister(id)
	}
}
