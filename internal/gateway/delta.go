package gateway

import "reflect"

// Delta compares a session's last-sent snapshot of named fields against the
// current values and returns only what changed, per spec.md §4.12's
// change-by-change state-sync encoding. Keys present in prev but absent
// from cur are reported as removed (e.g. a planet or player leaving view).
//
// Both maps are shallow: field name -> value. Equality is reflect.DeepEqual,
// which is adequate at state-sync scale (a few dozen scalar/struct fields
// per tick) and avoids hand-rolling a comparator per field type.
func Delta(prev, cur map[string]any) (changed map[string]any, removed []string) {
	for k, v := range cur {
		old, ok := prev[k]
		if !ok || !reflect.DeepEqual(old, v) {
			if changed == nil {
				changed = make(map[string]any, len(cur))
			}
			changed[k] = v
		}
	}
	for k := range prev {
		if _, ok := cur[k]; !ok {
			removed = append(removed, k)
		}
	}
	return changed, removed
}

// Snapshot tracks the last state-sync delta sent for one (session, track)
// pair so repeated calls only ever encode what changed since the previous
// call. It is not safe for concurrent use; callers serialize through their
// own tick or message-handling goroutine, per the room concurrency model.
type Snapshot struct {
	last map[string]any
}

// NewSnapshot returns a Snapshot with nothing sent yet, so its first Diff
// call always returns a full frame.
func NewSnapshot() *Snapshot {
	return &Snapshot{last: make(map[string]any)}
}

// Diff computes this snapshot's delta against cur and updates the baseline.
// The first call against a fresh Snapshot naturally contains every field
// since last starts empty, matching the initial full sync an admitted
// session needs.
func (s *Snapshot) Diff(msgType string, cur map[string]any) StateSync {
	changed, removed := Delta(s.last, cur)
	full := len(s.last) == 0
	s.last = cur
	return StateSync{Type: msgType, Full: full, Changed: changed, Removed: removed}
}
