// Package quota enforces per-key budgets over fixed refresh windows, using a
// shared key-value store as the only coordination point between processes.
//
// The primary entry point is Limiter.CanSpend:
//
//	ok, err := limiter.CanSpend(ctx, quota.NewKey("user1", "read"), 1)
//
// # Overview
//
// Each Key (a subject name plus an EventType) maps to one counter in the
// store. The first spend of a window creates the counter with a TTL equal to
// the event type's window; later spends increment it until the budget is
// reached; the store expires it and the next spend opens a new window.
//
// There are no locks. Every write is conditional:
//
//   - an absent counter is created with InsertIfAbsent, and a caller that
//     loses the creation race falls back to incrementing the winner's counter;
//   - a present counter is incremented with CompareAndSwap against the
//     version returned by the preceding read.
//
// A lost race or a failed store call consumes one attempt. When all attempts
// are used up Spend returns a *WriteConflictError (or a *StoreError if the
// last attempt failed on I/O). These are never reported as a deny.
//
// # Windows
//
// By default a compare-and-swap keeps the counter's remaining TTL, so a window
// lasts exactly Window from its first spend. WithRefreshOnSpend(true) resets
// the TTL on every spend instead, which lets a busy key extend its window.
//
// # Stores
//
//   - RedisStore: counters are Redis hashes updated by Lua scripts.
//   - MemoryStore: an in-process map with an expiry sweeper, for tests and
//     single-instance deployments.
//   - sqlstore.Store: a SQLite table, for processes sharing a database file.
//
// # Configuration
//
// Budgets can be built in code with NewBudgets or loaded from YAML with
// LoadBudgets:
//
//	prefix: quota
//	events:
//	  read:  {budget: 2, window: 1s}
//	  write: {budget: 5, window: 1s}
//
// Limiters are configured with functional options:
//
//	limiter, err := quota.New(store, budgets,
//		quota.WithPrefix("myapp"),
//		quota.WithMaxRetries(10),
//		quota.WithStoreTimeout(100*time.Millisecond),
//		quota.WithLogger(slog.Default()),
//		quota.WithMetrics(quota.NewMetrics(prometheus.DefaultRegisterer)),
//	)
package quota
