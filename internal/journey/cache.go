// Package journey is the boundary onto the live-journey cache (spec.md
// §4.E step 2, and §1's Non-goals: "No persistence of journeys beyond an
// in-memory live-journey cache (external collaborator)"). The matching
// engine's only obligation is to hand every non-freight journey to it; a
// reference in-memory adapter is provided for this module's own tests and
// for a minimal standalone deployment.
package journey

import (
	"sync"
	"time"

	"github.com/entur/ukur/internal/siri"
)

// Cache receives every EstimatedVehicleJourney the matching engine
// processes, keeping whatever live view a real deployment needs.
type Cache interface {
	// Update records j as the latest known state of its vehicle journey.
	Update(j siri.EstimatedVehicleJourney)
}

// Flusher is implemented by caches that can evict entries that have not
// been updated recently. The FlushOldJourneys trigger (spec.md §4.C)
// calls this on whatever concrete Cache main wires in; it is a separate
// interface from Cache because not every Cache implementation needs to
// support eviction (e.g. a pass-through adapter onto an external store
// that manages its own expiry).
type Flusher interface {
	// EvictBefore removes every entry last updated before cutoff and
	// reports how many were removed.
	EvictBefore(cutoff time.Time) int
}

type entry struct {
	journey    siri.EstimatedVehicleJourney
	lastUpdate time.Time
}

// MemoryCache is an in-memory Cache, safe for concurrent use, keyed by the
// (LineRef, VehicleRef) pair that identifies one journey across updates.
type MemoryCache struct {
	mu   sync.RWMutex
	byID map[string]entry

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{byID: make(map[string]entry)}
}

func key(lineRef, vehicleRef string) string {
	return lineRef + "|" + vehicleRef
}

func (c *MemoryCache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Update implements Cache.
func (c *MemoryCache) Update(j siri.EstimatedVehicleJourney) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[key(j.LineRef, j.VehicleRef)] = entry{journey: j, lastUpdate: c.now()}
}

// EvictBefore implements Flusher.
func (c *MemoryCache) EvictBefore(cutoff time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.byID {
		if e.lastUpdate.Before(cutoff) {
			delete(c.byID, k)
			removed++
		}
	}
	return removed
}

// Get returns the most recently recorded journey for (lineRef, vehicleRef),
// used by this module's own tests and diagnostics.
func (c *MemoryCache) Get(lineRef, vehicleRef string) (siri.EstimatedVehicleJourney, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byID[key(lineRef, vehicleRef)]
	return e.journey, ok
}

// Len reports how many distinct journeys are currently cached.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}
