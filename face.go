package quota

import (
	"context"
	"time"
)

// Spender decides whether units of a key's budget may be spent.
type Spender interface {
	CanSpend(ctx context.Context, key Key, units int64) (bool, error)
	Spend(ctx context.Context, key Key, units int64, opts ...SpendOption) (Decision, error)
}

// Version is an opaque store-assigned token that changes on every write.
type Version string

// Counter is a snapshot of one key's record in the store.
type Counter struct {
	Value   int64
	Version Version
	TTL     time.Duration // remaining lifetime; 0 when the store cannot tell
}

// Store is the shared, versioned key-value store a Limiter spends against.
// Implementations must be safe for concurrent use and expire records on
// their own; the limiter never deletes.
type Store interface {
	// VersionedRead returns the live counter at key, or false if absent.
	VersionedRead(ctx context.Context, key string) (Counter, bool, error)

	// InsertIfAbsent creates the counter with value and ttl. It reports
	// true only if this call created the record.
	InsertIfAbsent(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error)

	// CompareAndSwap sets the counter to value if its version is still
	// version. A ttl <= 0 keeps the remaining lifetime; otherwise it is reset.
	CompareAndSwap(ctx context.Context, key string, value int64, version Version, ttl time.Duration) (bool, error)
}
