package combat

import "sync"

// SeriesTracker scores a best-of-N ladder across repeated 1v1 matches
// between the same two addresses, mirroring the teacher's tournament mode
// without its team/galaxy-reset machinery — a combat room is a single
// match, not a persistent galaxy, so there is nothing to reset between
// games beyond spinning up a fresh Room.
//
// A room is handed a *SeriesTracker only when the caller wants a match to
// count toward a series; a nil tracker (the default) leaves 1v1 semantics
// untouched.
type SeriesTracker struct {
	mu     sync.Mutex
	bestOf int
	wins   map[string]int
}

// NewSeriesTracker returns a tracker for a best-of-bestOf series. bestOf
// is clamped to at least 1.
func NewSeriesTracker(bestOf int) *SeriesTracker {
	if bestOf < 1 {
		bestOf = 1
	}
	return &SeriesTracker{bestOf: bestOf, wins: make(map[string]int)}
}

// RecordWin credits one game win to winnerAddr and reports that address's
// running total plus whether the series is now decided.
func (t *SeriesTracker) RecordWin(winnerAddr string) (wins int, seriesOver bool) {
	if winnerAddr == "" {
		return 0, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.wins[winnerAddr]++
	wins = t.wins[winnerAddr]
	needed := t.bestOf/2 + 1
	return wins, wins >= needed
}

// Score returns a snapshot of games won per address.
func (t *SeriesTracker) Score() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.wins))
	for addr, n := range t.wins {
		out[addr] = n
	}
	return out
}
