package replay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Hard caps on the recorder's in-memory lists, per spec.md §4.6 — without
// them a long-running or spammed match can balloon memory.
const (
	MaxInputs    = 20000
	MaxSnapshots = 2000
)

// Header identifies the recorded match.
type Header struct {
	Version   int    `json:"version"`
	ID        string `json:"id"`
	RoomID    string `json:"roomId"`
	RoomName  string `json:"roomName"`
	CreatedAt int64  `json:"createdAt"`
}

// MatchPhase tracks the match lifecycle timestamps and outcome.
type MatchPhase struct {
	Started     bool   `json:"started"`
	PlannedEnd  int64  `json:"plannedEnd,omitempty"`
	Ended       bool   `json:"ended"`
	EndReason   string `json:"endReason,omitempty"`
	WinnerSID   string `json:"winnerSid,omitempty"`
}

// PlayerRecord is the per-session identity snapshot captured on join.
type PlayerRecord struct {
	Address        string `json:"address"`
	ProfilePicture string `json:"profilePicture,omitempty"`
	TicketTokenID  uint64 `json:"ticketTokenId,omitempty"`
}

// InputRecord is one recorded client packet, verbatim.
type InputRecord struct {
	SessionID string      `json:"sessionId"`
	At        int64       `json:"at"`
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Accepted  bool        `json:"accepted"`
}

// Snapshot is a periodic positional/HP summary.
type Snapshot struct {
	At      int64                  `json:"at"`
	Players map[string]PlayerState `json:"players"`
}

// PlayerState is the minimal per-player state captured in a snapshot.
type PlayerState struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	HP    int     `json:"hp"`
	Armor int     `json:"armor"`
}

// Settlement is the post-match on-chain audit block. SetSettlement merges
// over the existing block so asynchronous tx-hash updates don't clobber
// earlier captured fields.
type Settlement struct {
	LoserTokenID  uint64 `json:"loserTokenId,omitempty"`
	WinnerAddress string `json:"winnerAddress,omitempty"`
	TxHash        string `json:"txHash,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Record is the full replay document, persisted by Store.
type Record struct {
	Header      Header                  `json:"header"`
	Match       MatchPhase              `json:"match"`
	Players     map[string]PlayerRecord `json:"players"`
	Inputs      []InputRecord           `json:"inputs"`
	Snapshots   []Snapshot              `json:"snapshots"`
	Settlement  Settlement              `json:"settlement"`
}

// Recorder is the Match Recorder described in spec.md §4.6: an in-room
// log of joins, inputs, periodic snapshots, and settlement metadata,
// flushed to the Replay Store on dispose. Inputs and snapshots are capped;
// once a list is full, new entries are dropped and older ones are kept.
type Recorder struct {
	mu   sync.Mutex
	rec  Record
	last time.Time

	snapshotInterval time.Duration
	store            *Store
	log              zerolog.Logger
	finalized        bool
}

// NewRecorder starts a new recording for roomID/roomName, created at
// createdAtUnixMS.
func NewRecorder(log zerolog.Logger, store *Store, roomID, roomName string, createdAtUnixMS int64, snapshotInterval time.Duration) *Recorder {
	if snapshotInterval <= 0 {
		snapshotInterval = 1500 * time.Millisecond
	}
	return &Recorder{
		rec: Record{
			Header: Header{
				Version:   1,
				ID:        fmt.Sprintf("%s_%d", roomID, createdAtUnixMS),
				RoomID:    roomID,
				RoomName:  roomName,
				CreatedAt: createdAtUnixMS,
			},
			Players: make(map[string]PlayerRecord),
		},
		snapshotInterval: snapshotInterval,
		store:            store,
		log:              log.With().Str("component", "match_recorder").Str("room_id", roomID).Logger(),
	}
}

// RecordJoin appends a player's identity snapshot.
func (r *Recorder) RecordJoin(sessionID string, p PlayerRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rec.Players[sessionID] = p
}

// RecordLeave marks a leave event as an input-stream entry so the ordering
// relative to other packets is preserved in the audit trail.
func (r *Recorder) RecordLeave(sessionID string, atUnixMS int64) {
	r.appendInput(InputRecord{SessionID: sessionID, At: atUnixMS, Type: "leave", Accepted: true})
}

// RecordInput appends a client packet, accepted or not. Silently drops
// once the list holds MaxInputs entries.
func (r *Recorder) RecordInput(sessionID string, atUnixMS int64, msgType string, payload interface{}, accepted bool) {
	r.appendInput(InputRecord{SessionID: sessionID, At: atUnixMS, Type: msgType, Payload: payload, Accepted: accepted})
}

func (r *Recorder) appendInput(in InputRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.rec.Inputs) >= MaxInputs {
		return
	}
	r.rec.Inputs = append(r.rec.Inputs, in)
}

// MaybeSnapshot appends a snapshot if forced or if snapshotInterval has
// elapsed since the last one. Hard-capped at MaxSnapshots.
func (r *Recorder) MaybeSnapshot(atUnixMS int64, players map[string]PlayerState, force bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.UnixMilli(atUnixMS)
	if !force && !r.last.IsZero() && now.Sub(r.last) < r.snapshotInterval {
		return
	}
	if len(r.rec.Snapshots) >= MaxSnapshots {
		return
	}
	r.rec.Snapshots = append(r.rec.Snapshots, Snapshot{At: atUnixMS, Players: players})
	r.last = now
}

// StartMatch marks the match as started with a planned end time.
func (r *Recorder) StartMatch(plannedEndUnixMS int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rec.Match.Started = true
	r.rec.Match.PlannedEnd = plannedEndUnixMS
}

// EndMatch marks the match as ended with a reason and winner.
func (r *Recorder) EndMatch(reason, winnerSID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rec.Match.Ended = true
	r.rec.Match.EndReason = reason
	r.rec.Match.WinnerSID = winnerSID
}

// SetSettlement merges fields over the existing settlement block so a
// later async tx-hash update doesn't clobber earlier fields.
func (r *Recorder) SetSettlement(partial Settlement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if partial.LoserTokenID != 0 {
		r.rec.Settlement.LoserTokenID = partial.LoserTokenID
	}
	if partial.WinnerAddress != "" {
		r.rec.Settlement.WinnerAddress = partial.WinnerAddress
	}
	if partial.TxHash != "" {
		r.rec.Settlement.TxHash = partial.TxHash
	}
	if partial.Error != "" {
		r.rec.Settlement.Error = partial.Error
	}
}

// Snapshot returns a copy of the current record, for tests and debugging.
func (r *Recorder) Snapshot() Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rec
}

// Finalize writes the record to the Replay Store exactly once. Errors are
// stored in the settlement block's error field and never propagated —
// spec.md §4.6.
func (r *Recorder) Finalize(ctx context.Context) {
	r.mu.Lock()
	if r.finalized {
		r.mu.Unlock()
		return
	}
	r.finalized = true
	rec := r.rec
	r.mu.Unlock()

	if r.store == nil {
		return
	}
	if err := r.store.WriteJSON(ctx, rec.Header.ID, rec); err != nil {
		r.log.Warn().Err(err).Msg("replay finalize failed")
		r.mu.Lock()
		r.rec.Settlement.Error = err.Error()
		r.mu.Unlock()
	}
}
