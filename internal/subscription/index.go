// Package subscription defines the read-only boundary onto the external
// subscription store (spec.md §1: "the subscription store CRUD API" is out
// of scope; the core only ever reads). A small in-memory Index is provided
// as the reference adapter this module's own tests run against.
package subscription

import (
	"sync"

	"github.com/entur/ukur/internal/model"
)

// Index answers "which subscriptions care about this stop", the lookup the
// ET matching engine needs in spec.md §4.E step 6. A real deployment backs
// this with the subscription store's own index (by origin and destination
// stop); here it is provided by an in-memory adapter good enough to drive
// this module's tests.
type Index interface {
	// CandidatesForStop returns every subscription whose FromStopPoints or
	// ToStopPoints contains stop.
	CandidatesForStop(stop string) []model.Subscription

	// All returns every subscription, used for the whole-line/vehicle
	// delivery pass (spec.md §4.E step 8) which is independent of stop.
	All() []model.Subscription
}

// MemoryIndex is a simple in-memory Index, rebuildable from a flat slice of
// subscriptions. It keeps a stop->subscription-ids map so
// CandidatesForStop is O(1) lookup + small slice copy, not a full scan.
type MemoryIndex struct {
	mu     sync.RWMutex
	byID   map[string]model.Subscription
	byStop map[string][]string
}

// NewMemoryIndex builds an index from subs.
func NewMemoryIndex(subs []model.Subscription) *MemoryIndex {
	idx := &MemoryIndex{
		byID:   make(map[string]model.Subscription, len(subs)),
		byStop: make(map[string][]string),
	}
	for _, s := range subs {
		idx.byID[s.ID] = s
		for _, stop := range s.FromStopPoints {
			idx.byStop[stop] = append(idx.byStop[stop], s.ID)
		}
		for _, stop := range s.ToStopPoints {
			idx.byStop[stop] = append(idx.byStop[stop], s.ID)
		}
	}
	return idx
}

// CandidatesForStop implements Index.
func (idx *MemoryIndex) CandidatesForStop(stop string) []model.Subscription {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ids := idx.byStop[stop]
	seen := make(map[string]struct{}, len(ids))
	out := make([]model.Subscription, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, idx.byID[id])
	}
	return out
}

// All implements Index.
func (idx *MemoryIndex) All() []model.Subscription {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]model.Subscription, 0, len(idx.byID))
	for _, s := range idx.byID {
		out = append(out, s)
	}
	return out
}
