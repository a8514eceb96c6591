package quota_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mehditeymorian/quota"
)

func TestMemoryStore_Operations(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := quota.NewMemoryStore(quota.MemoryStoreConfig{Now: clock.Now, SweepInterval: -1})
	defer s.Close()

	if ok, _ := s.InsertIfAbsent(ctx, "k", 1, time.Second); !ok {
		t.Fatalf("expected first insert to win")
	}
	if ok, _ := s.InsertIfAbsent(ctx, "k", 1, time.Second); ok {
		t.Fatalf("expected second insert to lose")
	}

	c, found, err := s.VersionedRead(ctx, "k")
	if err != nil || !found || c.Value != 1 || c.TTL != time.Second {
		t.Fatalf("unexpected read %+v found=%v err=%v", c, found, err)
	}

	clock.Advance(400 * time.Millisecond)
	if ok, _ := s.CompareAndSwap(ctx, "k", 2, c.Version, 0); !ok {
		t.Fatalf("expected swap with current version")
	}
	if ok, _ := s.CompareAndSwap(ctx, "k", 3, c.Version, 0); ok {
		t.Fatalf("expected swap with stale version to fail")
	}
	c, _, _ = s.VersionedRead(ctx, "k")
	if c.Value != 2 || c.TTL != 600*time.Millisecond {
		t.Fatalf("expected value 2 with 600ms left, got %+v", c)
	}

	clock.Advance(600 * time.Millisecond)
	if _, found, _ := s.VersionedRead(ctx, "k"); found {
		t.Fatalf("expected counter to expire at its deadline")
	}
	if ok, _ := s.CompareAndSwap(ctx, "k", 3, c.Version, 0); ok {
		t.Fatalf("swap on an expired counter must fail")
	}
}

func TestMemoryStore_VersionsAreNotReused(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := quota.NewMemoryStore(quota.MemoryStoreConfig{Now: clock.Now, SweepInterval: -1})
	defer s.Close()

	s.InsertIfAbsent(ctx, "k", 1, time.Second)
	old, _, _ := s.VersionedRead(ctx, "k")

	clock.Advance(time.Second)
	s.InsertIfAbsent(ctx, "k", 1, time.Second)

	if ok, _ := s.CompareAndSwap(ctx, "k", 2, old.Version, 0); ok {
		t.Fatalf("version from an expired window must not match")
	}
}

func TestMemoryStore_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := quota.NewMemoryStore(quota.MemoryStoreConfig{Now: clock.Now, SweepInterval: -1})
	defer s.Close()

	s.InsertIfAbsent(ctx, "short", 1, time.Second)
	s.InsertIfAbsent(ctx, "long", 1, time.Minute)
	clock.Advance(2 * time.Second)

	if n := s.Sweep(); n != 1 {
		t.Fatalf("expected 1 expired counter swept, got %d", n)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 counter left, got %d", s.Len())
	}
}

func TestMemoryStore_SweepLoop(t *testing.T) {
	s := quota.NewMemoryStore(quota.MemoryStoreConfig{SweepInterval: 5 * time.Millisecond})
	defer s.Close()

	s.InsertIfAbsent(context.Background(), "k", 1, time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for s.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("sweeper did not remove the expired counter")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("second Close error: %v", err)
	}
}

func TestMemoryStore_Cancelled(t *testing.T) {
	s := quota.NewMemoryStore(quota.MemoryStoreConfig{SweepInterval: -1})
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := s.VersionedRead(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
