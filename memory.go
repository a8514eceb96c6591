package quota

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	value     int64
	version   uint64
	expiresAt time.Time
}

// MemoryStore is an in-process Store. It is safe for concurrent use but not
// shared across processes; it stands in for a network store in tests and
// single-instance deployments.
type MemoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	data    map[string]*memoryEntry
	version uint64 // store-wide, so versions are never reused across windows

	done      chan struct{}
	closeOnce sync.Once
}

type MemoryStoreConfig struct {
	// Now is the clock. Default: time.Now
	Now func() time.Time

	// SweepInterval is how often expired counters are dropped. Expired
	// counters are invisible to reads either way. Default: 1 minute;
	// negative disables the sweeper.
	SweepInterval time.Duration
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(cfg MemoryStoreConfig) *MemoryStore {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = time.Minute
	}

	m := &MemoryStore{
		now:  cfg.Now,
		data: make(map[string]*memoryEntry),
		done: make(chan struct{}),
	}
	if cfg.SweepInterval > 0 {
		go m.sweepLoop(cfg.SweepInterval)
	}
	return m
}

func (m *MemoryStore) VersionedRead(ctx context.Context, key string) (Counter, bool, error) {
	if err := ctx.Err(); err != nil {
		return Counter{}, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.liveLocked(key, now)
	if !ok {
		return Counter{}, false, nil
	}
	return Counter{
		Value:   e.value,
		Version: Version(strconv.FormatUint(e.version, 10)),
		TTL:     e.expiresAt.Sub(now),
	}, true, nil
}

func (m *MemoryStore) InsertIfAbsent(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if _, ok := m.liveLocked(key, now); ok {
		return false, nil
	}
	m.version++
	m.data[key] = &memoryEntry{
		value:     value,
		version:   m.version,
		expiresAt: now.Add(ttl),
	}
	return true, nil
}

func (m *MemoryStore) CompareAndSwap(ctx context.Context, key string, value int64, version Version, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.liveLocked(key, now)
	if !ok || strconv.FormatUint(e.version, 10) != string(version) {
		return false, nil
	}
	m.version++
	e.value = value
	e.version = m.version
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	return true, nil
}

// Len returns the number of stored counters, expired ones included until
// the next sweep.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// Sweep drops expired counters and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, e := range m.data {
		if !now.Before(e.expiresAt) {
			delete(m.data, key)
			removed++
		}
	}
	return removed
}

// Close stops the sweeper.
func (m *MemoryStore) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}

func (m *MemoryStore) liveLocked(key string, now time.Time) (*memoryEntry, bool) {
	e, ok := m.data[key]
	if !ok {
		return nil, false
	}
	if !now.Before(e.expiresAt) {
		delete(m.data, key)
		return nil, false
	}
	return e, true
}

func (m *MemoryStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-m.done:
			return
		}
	}
}
