package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a case lock taken by a DistributedLocker.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes transitions on one case across ddt replicas
// sharing an export store. Keys are case ids.
type DistributedLocker interface {
	// Lock blocks until the case is held or ctx ends. The lock expires after
	// ttl if the returned UnlockFunc is never called.
	Lock(ctx context.Context, caseID string, ttl time.Duration) (UnlockFunc, error)
}

// LockerFunc adapts a function to DistributedLocker.
type LockerFunc func(ctx context.Context, caseID string, ttl time.Duration) (UnlockFunc, error)

// Lock calls f.
func (f LockerFunc) Lock(ctx context.Context, caseID string, ttl time.Duration) (UnlockFunc, error) {
	return f(ctx, caseID, ttl)
}
