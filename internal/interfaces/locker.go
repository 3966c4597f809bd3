package interfaces

import (
	"context"
	"time"
)

// Locker is a best-effort mutual exclusion keyed by string.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
