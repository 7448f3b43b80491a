// Package scheduler owns the single in-memory set of pending and active
// alerts and drives broadcast switchover decisions from it.
package scheduler

import (
	"sort"
	"time"

	"github.com/lokutor-ai/cap-dab-gateway/internal/capxml"
)

// BroadcastState is the scheduler's edge-tracked output state.
type BroadcastState string

const (
	Quiet   BroadcastState = "Quiet"
	Warning BroadcastState = "Warning"
)

// State is the scheduler's owned data: a pending set sorted by
// effective time and an active set sorted by expiry, per spec's data
// model. It is not safe for concurrent use; the scheduler's single tick
// loop is its only mutator.
type State struct {
	pending []capxml.AlertEvent
	active  []capxml.AlertEvent

	LastBroadcastState BroadcastState
	TTSCursor          string
}

// Pending returns a copy of the pending set, ordered by effective time.
func (s *State) Pending() []capxml.AlertEvent { return append([]capxml.AlertEvent(nil), s.pending...) }

// Active returns a copy of the active set, ordered by expiry time.
func (s *State) Active() []capxml.AlertEvent { return append([]capxml.AlertEvent(nil), s.active...) }

func (s *State) addPending(ev capxml.AlertEvent) {
	s.pending = append(s.pending, ev)
	sort.Slice(s.pending, func(i, j int) bool { return s.pending[i].Effective.Before(s.pending[j].Effective) })
}

func (s *State) addActive(ev capxml.AlertEvent) {
	s.active = append(s.active, ev)
	sort.Slice(s.active, func(i, j int) bool { return s.active[i].Expires.Before(s.active[j].Expires) })
}

// expireActive removes every active alert whose expiry has passed and
// returns how many were removed.
func (s *State) expireActive(now time.Time) int {
	kept := s.active[:0]
	removed := 0
	for _, a := range s.active {
		if !a.Expires.After(now) {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	s.active = kept
	return removed
}

// promotePending moves every pending alert whose effective time has
// arrived into active, returning how many were promoted.
func (s *State) promotePending(now time.Time) int {
	kept := s.pending[:0]
	promoted := 0
	for _, p := range s.pending {
		if !p.Effective.After(now) {
			s.addActive(p)
			promoted++
			continue
		}
		kept = append(kept, p)
	}
	s.pending = kept
	return promoted
}

// cancel removes every alert matching one of refs from both sets,
// reporting how many matches were found.
func (s *State) cancel(refs []capxml.Reference) int {
	matched := 0
	s.active = filterOutMatched(s.active, refs, &matched)
	s.pending = filterOutMatched(s.pending, refs, &matched)
	return matched
}

func filterOutMatched(set []capxml.AlertEvent, refs []capxml.Reference, matched *int) []capxml.AlertEvent {
	kept := set[:0]
	for _, ev := range set {
		removed := false
		for _, r := range refs {
			if r.Matches(ev) {
				removed = true
				*matched++
				break
			}
		}
		if !removed {
			kept = append(kept, ev)
		}
	}
	return kept
}

// isEmpty reports whether both sets are empty.
func (s *State) isEmpty() bool { return len(s.pending) == 0 && len(s.active) == 0 }
