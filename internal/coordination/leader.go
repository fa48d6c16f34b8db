// Package coordination implements the Cluster Coordinator (spec.md §4.A):
// per-named-trigger leader election over a shared distributed map. It is
// adapted from the teacher's control_plane/coordination/leader.go, which
// elects exactly one global leader; this module generalizes that into one
// independent election per trigger name, since spec.md requires
// isLeader(triggerName) rather than isLeader().
package coordination

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/entur/ukur/internal/model"
	"github.com/entur/ukur/internal/observability"
	"github.com/entur/ukur/internal/store"
)

// LockMetadata is the value stored under each lock/<trigger> key, used by
// the lease janitor to tell a live lease from one abandoned by a crashed
// replica. Carried over from the teacher's LockMetadata verbatim.
type LockMetadata struct {
	OwnerNode string    `json:"owner_node"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// election is the per-trigger leadership state. One exists per trigger name
// registered with the Coordinator.
type election struct {
	mu           sync.RWMutex
	triggerName  string
	lockKey      string
	ttl          time.Duration
	isLeader     bool
	currentValue string

	leaderCtx    context.Context
	leaderCancel context.CancelFunc
}

// Coordinator elects, for each named trigger, a single leader across all
// replicas sharing the same store.Coordinator. isLeader(triggerName) is
// authoritative only while the lease is held: a replica that crashes,
// pauses or loses its lease does not report true again until the lease
// protocol re-elects it (spec.md §4.A).
type Coordinator struct {
	coordinator store.Coordinator
	nodeID      string
	ttl         time.Duration

	mu        sync.Mutex
	elections map[string]*election
}

// New creates a Coordinator backed by the given shared distributed map
// lease primitive. ttl governs both the lease duration and, indirectly, the
// renewal cadence (renewed at ttl/3, matching the teacher's loop).
func New(coordinator store.Coordinator, nodeID string, ttl time.Duration) *Coordinator {
	return &Coordinator{
		coordinator: coordinator,
		nodeID:      nodeID,
		ttl:         ttl,
		elections:   make(map[string]*election),
	}
}

// Register starts the election loop for triggerName, if not already
// running, and returns immediately. ctx governs the loop's lifetime; on
// cancellation the replica releases the lease if held.
func (c *Coordinator) Register(ctx context.Context, triggerName string) {
	c.mu.Lock()
	if _, ok := c.elections[triggerName]; ok {
		c.mu.Unlock()
		return
	}
	e := &election{
		triggerName: triggerName,
		lockKey:     model.LockKey(triggerName),
		ttl:         c.ttl,
	}
	c.elections[triggerName] = e
	c.mu.Unlock()

	go c.loop(ctx, e)
}

// IsLeader reports whether this replica currently holds leadership for
// triggerName. Unregistered triggers are never leader.
func (c *Coordinator) IsLeader(triggerName string) bool {
	c.mu.Lock()
	e, ok := c.elections[triggerName]
	c.mu.Unlock()
	if !ok {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isLeader
}

// FencedContext returns the context of this replica's current or most
// recent leadership term for triggerName; it is cancelled the instant that
// leadership is lost, so in-flight leader-gated work can observe the
// TransientLeadership condition from spec.md §7 via ctx.Err(). If
// triggerName is unregistered, or this replica has never held its
// leadership, it returns context.Background(), which is never cancelled.
func (c *Coordinator) FencedContext(triggerName string) context.Context {
	c.mu.Lock()
	e, ok := c.elections[triggerName]
	c.mu.Unlock()
	if !ok {
		return context.Background()
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.leaderCtx == nil {
		return context.Background()
	}
	return e.leaderCtx
}

func (c *Coordinator) loop(ctx context.Context, e *election) {
	interval := e.ttl / 3
	minInterval := interval
	maxInterval := 10 * e.ttl

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if c.currentlyLeader(e) {
				c.release(e)
				c.stepDown(e, "shutdown")
			}
			return
		case <-timer.C:
			err := c.tick(ctx, e)
			if err != nil {
				interval *= 2
				if interval > maxInterval {
					interval = maxInterval
				}
				log.Printf("[coordination] trigger=%s error encountered, backing off for %v: %v", e.triggerName, interval, err)
			} else {
				interval = minInterval
			}
			timer.Reset(interval)
		}
	}
}

func (c *Coordinator) currentlyLeader(e *election) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isLeader
}

func (c *Coordinator) tick(ctx context.Context, e *election) error {
	if c.currentlyLeader(e) {
		renewed, err := c.renew(ctx, e)
		if err != nil {
			return err
		}
		if !renewed {
			c.stepDown(e, "lease_lost")
		}
		return nil
	}

	acquired, err := c.acquire(ctx, e)
	if err != nil {
		return err
	}
	if acquired {
		c.becomeLeader(e)
	}
	return nil
}

func (c *Coordinator) acquire(ctx context.Context, e *election) (bool, error) {
	now := time.Now()
	meta := LockMetadata{
		OwnerNode: c.nodeID,
		CreatedAt: now,
		ExpiresAt: now.Add(e.ttl),
	}
	valBytes, err := json.Marshal(meta)
	if err != nil {
		return false, err
	}
	val := string(valBytes)

	acquired, err := c.coordinator.AcquireLease(ctx, e.lockKey, val, e.ttl)
	if err != nil {
		return false, fmt.Errorf("coordination: acquire %s: %w", e.triggerName, err)
	}
	if acquired {
		e.mu.Lock()
		e.currentValue = val
		e.mu.Unlock()
	}
	return acquired, nil
}

func (c *Coordinator) renew(ctx context.Context, e *election) (bool, error) {
	e.mu.RLock()
	val := e.currentValue
	e.mu.RUnlock()
	if val == "" {
		return false, nil
	}

	renewed, err := c.coordinator.RenewLease(ctx, e.lockKey, val, e.ttl)
	if err != nil {
		return false, fmt.Errorf("coordination: renew %s: %w", e.triggerName, err)
	}
	return renewed, nil
}

func (c *Coordinator) release(e *election) {
	e.mu.RLock()
	val := e.currentValue
	e.mu.RUnlock()
	if val == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = c.coordinator.ReleaseLease(ctx, e.lockKey, val)
}

func (c *Coordinator) becomeLeader(e *election) {
	e.mu.Lock()
	e.isLeader = true
	ctx, cancel := context.WithCancel(context.Background())
	e.leaderCtx = ctx
	e.leaderCancel = cancel
	e.mu.Unlock()

	log.Printf("[coordination] trigger=%s node=%s acquired leadership", e.triggerName, c.nodeID)
	observability.LeadershipTransitions.WithLabelValues(e.triggerName, "acquired").Inc()
	observability.LeaderStatus.WithLabelValues(e.triggerName).Set(1)
}

func (c *Coordinator) stepDown(e *election, reason string) {
	e.mu.Lock()
	if !e.isLeader {
		e.mu.Unlock()
		return
	}
	e.isLeader = false
	if e.leaderCancel != nil {
		e.leaderCancel()
	}
	e.mu.Unlock()

	log.Printf("[coordination] trigger=%s node=%s lost leadership (%s)", e.triggerName, c.nodeID, reason)
	observability.LeadershipTransitions.WithLabelValues(e.triggerName, "lost").Inc()
	observability.LeaderStatus.WithLabelValues(e.triggerName).Set(0)
}
