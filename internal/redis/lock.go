// Package redis holds the Redis-backed stores: driver position
// mirroring and the short-lived driver lock used during dispatch.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockStore hands out short-lived driver locks across dispatcher
// instances. The lock narrows the matching race window; booking
// correctness rests on the database transaction.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// AcquireDriverLock attempts to acquire a dispatch lock for the driver.
// Returns true if the lock was acquired, false if already held.
func (s *LockStore) AcquireDriverLock(ctx context.Context, driverID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, driverLockKey(driverID), "1", ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// ReleaseDriverLock releases the dispatch lock for the driver.
func (s *LockStore) ReleaseDriverLock(ctx context.Context, driverID string) error {
	return s.client.Del(ctx, driverLockKey(driverID)).Err()
}

func driverLockKey(driverID string) string {
	return fmt.Sprintf("dispatch:lock:driver:%s", driverID)
}
