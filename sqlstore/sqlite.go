// Package sqlstore implements quota.Store on SQLite, for processes that share
// a database file rather than a network store.
//
// Every operation is a single statement, so SQLite's own write lock provides
// the atomicity of insert-if-absent and compare-and-swap. Expired rows are
// invisible to reads and writes; Sweep deletes them.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mehditeymorian/quota"

	_ "modernc.org/sqlite" // SQLite driver
)

// Store implements quota.Store using SQLite.
type Store struct {
	db        *sql.DB
	now       func() time.Time
	done      chan struct{}
	closeOnce sync.Once

	readStmt   *sql.Stmt
	insertStmt *sql.Stmt
	casStmt    *sql.Stmt
	sweepStmt  *sql.Stmt
}

var _ quota.Store = (*Store)(nil)

// Config configures the SQLite store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// BusyTimeout is how long to wait for the write lock.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// SweepInterval is how often expired rows are deleted. Zero or negative
	// disables the background sweep.
	SweepInterval time.Duration

	// Now is the clock. Default: time.Now
	Now func() time.Time
}

// Open creates the store, creating the schema if needed.
func Open(cfg Config) (*Store, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		cfg.DBPath, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{
		db:   db,
		now:  cfg.Now,
		done: make(chan struct{}),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	if cfg.SweepInterval > 0 {
		go s.sweepLoop(cfg.SweepInterval)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS quota_counters (
		counter_key TEXT PRIMARY KEY,
		value INTEGER NOT NULL,
		version TEXT NOT NULL,
		expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_quota_counters_expires_at ON quota_counters(expires_at);
	`)
	return err
}

func (s *Store) prepareStatements() error {
	var err error

	s.readStmt, err = s.db.Prepare(`
		SELECT value, version, expires_at FROM quota_counters
		WHERE counter_key = ? AND expires_at > ?`)
	if err != nil {
		return fmt.Errorf("read statement: %w", err)
	}

	// An expired row counts as absent, so the upsert only replaces it then.
	s.insertStmt, err = s.db.Prepare(`
		INSERT INTO quota_counters (counter_key, value, version, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(counter_key) DO UPDATE SET
			value = excluded.value,
			version = excluded.version,
			expires_at = excluded.expires_at
		WHERE quota_counters.expires_at <= ?`)
	if err != nil {
		return fmt.Errorf("insert statement: %w", err)
	}

	s.casStmt, err = s.db.Prepare(`
		UPDATE quota_counters
		SET value = ?, version = ?, expires_at = COALESCE(?, expires_at)
		WHERE counter_key = ? AND version = ? AND expires_at > ?`)
	if err != nil {
		return fmt.Errorf("compare-and-swap statement: %w", err)
	}

	s.sweepStmt, err = s.db.Prepare(`DELETE FROM quota_counters WHERE expires_at <= ?`)
	if err != nil {
		return fmt.Errorf("sweep statement: %w", err)
	}
	return nil
}

func (s *Store) VersionedRead(ctx context.Context, key string) (quota.Counter, bool, error) {
	now := s.now()

	var (
		value     int64
		version   string
		expiresAt int64
	)
	err := s.readStmt.QueryRowContext(ctx, key, now.UnixMilli()).Scan(&value, &version, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return quota.Counter{}, false, nil
	}
	if err != nil {
		return quota.Counter{}, false, fmt.Errorf("failed to read counter: %w", err)
	}

	return quota.Counter{
		Value:   value,
		Version: quota.Version(version),
		TTL:     time.UnixMilli(expiresAt).Sub(now),
	}, true, nil
}

func (s *Store) InsertIfAbsent(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, fmt.Errorf("ttl must be positive, got %v", ttl)
	}
	now := s.now()

	res, err := s.insertStmt.ExecContext(ctx,
		key, value, uuid.NewString(), now.Add(ttl).UnixMilli(), now.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to insert counter: %w", err)
	}
	return affectedOne(res)
}

func (s *Store) CompareAndSwap(ctx context.Context, key string, value int64, version quota.Version, ttl time.Duration) (bool, error) {
	now := s.now()

	var expiresAt any
	if ttl > 0 {
		expiresAt = now.Add(ttl).UnixMilli()
	}

	res, err := s.casStmt.ExecContext(ctx,
		value, uuid.NewString(), expiresAt, key, string(version), now.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to swap counter: %w", err)
	}
	return affectedOne(res)
}

// Sweep deletes expired rows and returns how many were removed.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	res, err := s.sweepStmt.ExecContext(ctx, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep counters: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Close stops the sweeper and releases the database.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		for _, stmt := range []*sql.Stmt{s.readStmt, s.insertStmt, s.casStmt, s.sweepStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		err = s.db.Close()
	})
	return err
}

func (s *Store) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			s.Sweep(ctx)
			cancel()
		case <-s.done:
			return
		}
	}
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
