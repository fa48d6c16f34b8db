// Package store implements the shared distributed map described in
// spec.md §3/§9: a key/value store with put-if-absent, get and set,
// plus the lease primitive the Cluster Coordinator builds leader
// election on top of. It is adapted from the teacher's
// control_plane/store/redis.go (RedisStore.AcquireLock/RenewLock/
// ReleaseLock and friends), generalized from a single hardcoded lock key
// to an arbitrary key per caller.
package store

import (
	"context"
	"time"
)

// Map is the shared distributed map: put-if-absent, get, set. It backs
// RequestorId (put-if-absent) and the AnsharLastReceived-<kind> liveness
// keys (plain set/get, last-writer-wins).
type Map interface {
	// PutIfAbsent writes value under key only if no value exists yet, and
	// returns the value that ends up stored (the caller's value on a
	// successful write, the pre-existing value otherwise). This is how
	// RequestorId is decided process-wide: first writer wins, every
	// replica reads back the winner.
	PutIfAbsent(ctx context.Context, key, value string) (string, error)

	// Get returns the current value for key, or ("", false) if absent.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set unconditionally overwrites key's value. Last writer wins.
	Set(ctx context.Context, key, value string) error
}

// Coordinator is the lease primitive the Cluster Coordinator (internal/
// coordination) uses for per-trigger leader election: single-writer-per-key
// with bounded failover via TTL.
type Coordinator interface {
	// AcquireLease attempts to take the lease for key, storing value.
	// Returns true if this caller now holds it.
	AcquireLease(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// RenewLease extends the TTL of key's lease if it is still held with
	// exactly this value (compare-and-swap semantics). Returns false
	// (without error) if the lease has been taken over by someone else.
	RenewLease(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// ReleaseLease drops the lease if it is still held with this value.
	ReleaseLease(ctx context.Context, key, value string) error

	// GetLeaseOwner returns the raw value currently stored for key, or ""
	// if the lease is free. Used by the lease janitor to inspect stale
	// metadata.
	GetLeaseOwner(ctx context.Context, key string) (string, error)

	// ScanLeases returns every key matching pattern (e.g. "lock/*"), used
	// by the lease janitor to sweep expired leases left behind by a
	// crashed replica.
	ScanLeases(ctx context.Context, pattern string) ([]string, error)
}
