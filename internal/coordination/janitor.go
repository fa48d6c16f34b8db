package coordination

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/entur/ukur/internal/store"
)

// LeaseJanitor periodically sweeps lock/* entries for leases a crashed
// replica left behind past their ExpiresAt, so stale metadata does not
// accumulate in the shared map forever. Adapted from the teacher's
// coordination/janitor.go (LockJanitor.clean), dropping the durable-epoch
// fencing check that doesn't apply here (this module has no durable SQL
// store; Redis TTLs already self-expire leases, so this is a belt-and-
// braces cleanup of metadata rather than a correctness requirement).
type LeaseJanitor struct {
	coordinator store.Coordinator
	interval    time.Duration
}

// NewLeaseJanitor builds a janitor that sweeps every interval.
func NewLeaseJanitor(c store.Coordinator, interval time.Duration) *LeaseJanitor {
	return &LeaseJanitor{coordinator: c, interval: interval}
}

// Start runs the sweep loop until ctx is cancelled.
func (j *LeaseJanitor) Start(ctx context.Context) {
	go j.loop(ctx)
}

func (j *LeaseJanitor) loop(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.clean(ctx)
		}
	}
}

func (j *LeaseJanitor) clean(ctx context.Context) {
	keys, err := j.coordinator.ScanLeases(ctx, "lock/*")
	if err != nil {
		log.Printf("[coordination] janitor: scan failed: %v", err)
		return
	}

	for _, key := range keys {
		val, err := j.coordinator.GetLeaseOwner(ctx, key)
		if err != nil || val == "" {
			continue
		}

		var meta LockMetadata
		if err := json.Unmarshal([]byte(val), &meta); err != nil {
			log.Printf("[coordination] janitor: malformed lock metadata at %s: %v", key, err)
			continue
		}

		if time.Now().After(meta.ExpiresAt.Add(5 * time.Second)) {
			log.Printf("[coordination] janitor: reclaiming stale lease %s (owner=%s, expired %s)", key, meta.OwnerNode, meta.ExpiresAt)
			if err := j.coordinator.ReleaseLease(ctx, key, val); err != nil {
				log.Printf("[coordination] janitor: failed to release stale lease %s: %v", key, err)
			}
		}
	}
}
