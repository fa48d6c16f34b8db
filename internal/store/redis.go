package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMap implements both Map and Coordinator on top of a single Redis
// client, the way the teacher's RedisStore implements both control_plane/
// store.Store and store.Coordinator on one connection.
type RedisMap struct {
	client *redis.Client
}

// NewRedisMap dials addr and verifies connectivity before returning.
func NewRedisMap(addr, password string, db int) (*RedisMap, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisMap{client: client}, nil
}

// PutIfAbsent implements Map.
func (m *RedisMap) PutIfAbsent(ctx context.Context, key, value string) (string, error) {
	ok, err := m.client.SetNX(ctx, key, value, 0).Result()
	if err != nil {
		return "", err
	}
	if ok {
		return value, nil
	}
	existing, err := m.client.Get(ctx, key).Result()
	if err != nil {
		return "", err
	}
	return existing, nil
}

// Get implements Map.
func (m *RedisMap) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := m.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set implements Map.
func (m *RedisMap) Set(ctx context.Context, key, value string) error {
	return m.client.Set(ctx, key, value, 0).Err()
}

// renewLeaseScript performs a compare-and-extend: only the holder of value
// may extend the TTL. Adapted verbatim from the teacher's RedisStore.RenewLock.
const renewLeaseScript = `
local val = redis.call("get", KEYS[1])
if not val then
	return -1
end
if val == ARGV[1] then
	return redis.call("pexpire", KEYS[1], tonumber(ARGV[2]))
else
	return -2
end
`

// releaseLeaseScript only deletes the key if it is still held by value.
const releaseLeaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// AcquireLease implements Coordinator using SET NX PX, the same primitive
// the teacher's AcquireLock uses.
func (m *RedisMap) AcquireLease(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := m.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// RenewLease implements Coordinator.
func (m *RedisMap) RenewLease(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	res, err := m.client.Eval(ctx, renewLeaseScript, []string{key}, value, int64(ttl/time.Millisecond)).Result()
	if err != nil {
		return false, err
	}
	n, ok := res.(int64)
	if !ok {
		return false, errors.New("store: unexpected renew script result")
	}
	return n == 1, nil
}

// ReleaseLease implements Coordinator.
func (m *RedisMap) ReleaseLease(ctx context.Context, key, value string) error {
	_, err := m.client.Eval(ctx, releaseLeaseScript, []string{key}, value).Result()
	return err
}

// GetLeaseOwner implements Coordinator.
func (m *RedisMap) GetLeaseOwner(ctx context.Context, key string) (string, error) {
	val, err := m.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

// ScanLeases implements Coordinator using Redis SCAN, the same cursor-based
// walk the teacher's ScanLocks performs instead of the blocking KEYS command.
func (m *RedisMap) ScanLeases(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := m.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
