// Package inflight implements the Inflight Registry (spec.md §4.B): an
// advisory, per-replica counter of running workflow invocations. It is the
// Trigger Scheduler's signal to avoid piling up work within one replica;
// cluster-wide de-duplication is the Cluster Coordinator's job, not this
// package's.
package inflight

import "sync"

// Registry counts in-flight invocations per named workflow.
type Registry struct {
	mu     sync.Mutex
	counts map[string]int
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{counts: make(map[string]int)}
}

// IsIdle returns true exactly when zero invocations of workflowName are
// currently executing in this process.
func (r *Registry) IsIdle(workflowName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[workflowName] == 0
}

// Enter records the start of one invocation of workflowName and returns a
// function that must be called (typically via defer) when it finishes.
func (r *Registry) Enter(workflowName string) func() {
	r.mu.Lock()
	r.counts[workflowName]++
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			r.counts[workflowName]--
			r.mu.Unlock()
		})
	}
}
