// Package stopplace resolves a quay id (NSR:Quay:...) to its parent stop
// place id (NSR:StopPlace:...), the mapping the ET matching engine uses to
// duplicate per-quay StopData under the stop place key (spec.md §4.E step
// 5). The mapping itself comes from periodic Tiamat refreshes (component
// the spec calls the "Tiamat Stop Registry Refresh"); this package only
// holds the current snapshot and answers lookups against it.
package stopplace

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Resolver answers quay-to-parent-stop-place lookups.
type Resolver interface {
	// ParentOf returns the stop place id for quay, or "" if quay has no
	// known parent (e.g. the mapping hasn't been refreshed yet, or quay
	// is itself already a stop place ref).
	ParentOf(quay string) string
}

// MappingProcessor hands a freshly fetched Tiamat payload to whatever
// updates the live mapping. The wire format of that payload is Tiamat's own
// concern, not this module's (spec.md explicitly treats Tiamat's stop
// registry export format as opaque input); a MappingProcessor is the seam
// where a real deployment plugs in Tiamat's own decoder.
type MappingProcessor interface {
	Process(payload []byte) error
}

// MapResolver is a Resolver backed by a plain map, safe for concurrent use.
// The Tiamat refresh workflow calls Replace after every successful fetch;
// readers never block on a refresh in progress.
type MapResolver struct {
	mu     sync.RWMutex
	parent map[string]string
}

// NewMapResolver returns an empty MapResolver.
func NewMapResolver() *MapResolver {
	return &MapResolver{parent: make(map[string]string)}
}

// ParentOf implements Resolver.
func (r *MapResolver) ParentOf(quay string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.parent[quay]
}

// Replace atomically swaps in a freshly computed quay->stop-place mapping.
func (r *MapResolver) Replace(mapping map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parent = mapping
}

// Size reports how many quays currently resolve to a parent, for metrics
// and liveness reporting.
func (r *MapResolver) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.parent)
}

// JSONMappingProcessor is the reference MappingProcessor: it treats the
// Tiamat export as a flat JSON object mapping quay id to stop place id.
// A real deployment against Tiamat's actual NeTEx/JSON export would supply
// its own MappingProcessor; this one is enough to drive this module's own
// refresh workflow and tests end to end.
type JSONMappingProcessor struct {
	resolver *MapResolver
}

// NewJSONMappingProcessor builds a processor that updates resolver.
func NewJSONMappingProcessor(resolver *MapResolver) *JSONMappingProcessor {
	return &JSONMappingProcessor{resolver: resolver}
}

// Process implements MappingProcessor.
func (p *JSONMappingProcessor) Process(payload []byte) error {
	var mapping map[string]string
	if err := json.Unmarshal(payload, &mapping); err != nil {
		return fmt.Errorf("stopplace: decode mapping: %w", err)
	}
	p.resolver.Replace(mapping)
	return nil
}
