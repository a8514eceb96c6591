package quota_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mehditeymorian/quota"
	"github.com/mehditeymorian/quota/sqlstore"
	"github.com/redis/go-redis/v9"
)

const (
	eventRead  quota.EventType = "read"
	eventWrite quota.EventType = "write"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// backend is a Store plus a way to move its notion of time forward.
type backend struct {
	name    string
	store   quota.Store
	advance func(time.Duration)
}

type backendFactory struct {
	name string
	new  func(t *testing.T) backend
}

func backends() []backendFactory {
	return []backendFactory{
		{name: "memory", new: newMemoryBackend},
		{name: "redis", new: newRedisBackend},
		{name: "sqlite", new: newSQLiteBackend},
	}
}

func newMemoryBackend(t *testing.T) backend {
	clock := newFakeClock()
	store := quota.NewMemoryStore(quota.MemoryStoreConfig{Now: clock.Now, SweepInterval: -1})
	t.Cleanup(func() { store.Close() })
	return backend{name: "memory", store: store, advance: clock.Advance}
}

func newRedisBackend(t *testing.T) backend {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store, err := quota.NewRedisStore(context.Background(), rdb)
	if err != nil {
		t.Fatalf("NewRedisStore error: %v", err)
	}
	return backend{name: "redis", store: store, advance: mr.FastForward}
}

func newSQLiteBackend(t *testing.T) backend {
	clock := newFakeClock()
	store, err := sqlstore.Open(sqlstore.Config{
		DBPath: filepath.Join(t.TempDir(), "quota.db"),
		Now:    clock.Now,
	})
	if err != nil {
		t.Fatalf("sqlstore.Open error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return backend{name: "sqlite", store: store, advance: clock.Advance}
}

func mustLimiter(t *testing.T, store quota.Store, table map[quota.EventType]quota.Budget, opts ...quota.Option) *quota.Limiter {
	t.Helper()
	budgets, err := quota.NewBudgets(table)
	if err != nil {
		t.Fatalf("NewBudgets error: %v", err)
	}
	opts = append([]quota.Option{quota.WithBackoff(nil)}, opts...)
	l, err := quota.New(store, budgets, opts...)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return l
}

func mustSpend(t *testing.T, l *quota.Limiter, key quota.Key, units int64) bool {
	t.Helper()
	ok, err := l.CanSpend(context.Background(), key, units)
	if err != nil {
		t.Fatalf("CanSpend(%s, %d) err: %v", key, units, err)
	}
	return ok
}

// storeFuncs lets a test override individual store operations.
type storeFuncs struct {
	read   func(ctx context.Context, key string) (quota.Counter, bool, error)
	insert func(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error)
	cas    func(ctx context.Context, key string, value int64, version quota.Version, ttl time.Duration) (bool, error)

	mu    sync.Mutex
	calls map[string]int
}

func (s *storeFuncs) count(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[op]++
}

func (s *storeFuncs) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *storeFuncs) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *storeFuncs) VersionedRead(ctx context.Context, key string) (quota.Counter, bool, error) {
	s.count("read")
	return s.read(ctx, key)
}

func (s *storeFuncs) InsertIfAbsent(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error) {
	s.count("insert")
	return s.insert(ctx, key, value, ttl)
}

func (s *storeFuncs) CompareAndSwap(ctx context.Context, key string, value int64, version quota.Version, ttl time.Duration) (bool, error) {
	s.count("cas")
	return s.cas(ctx, key, value, version, ttl)
}

// wrap delegates every operation to inner until overridden.
func wrap(inner quota.Store) *storeFuncs {
	return &storeFuncs{
		read:   inner.VersionedRead,
		insert: inner.InsertIfAbsent,
		cas:    inner.CompareAndSwap,
	}
}
