// package cache provides the TTL cache used by the metadata pipeline.
//
// A Store is a namespaced byte-level key-value backend with per-entry
// expiry. Cache is the typed layer on top that namespaces keys, encodes
// JSON payloads and degrades to a miss when the backend misbehaves.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// Store is the byte-level cache backend.
//
// Get reports (nil, false, nil) for a missing or expired entry. Expired
// entries are reaped lazily on read.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// CacheError wraps a backend failure with the operation and key that hit it.
type CacheError struct {
	Op  string
	Key string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// SQLiteStore persists cache entries in a single sqlite table.
//
// Expiry is lazy: expired rows are deleted when read, and Purge removes
// the rest in bulk.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore creates the cache table if needed and returns the store.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	query := `
		CREATE TABLE IF NOT EXISTS cache_entries (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			expires_at INTEGER NOT NULL
		)
	`

	if _, err := db.Exec(query); err != nil {
		return nil, fmt.Errorf("failed to create cache table: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Get retrieves an entry, deleting and missing it when expired.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query := `SELECT value, expires_at FROM cache_entries WHERE key = ?`

	var value []byte
	var expiresAt int64
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &CacheError{Op: "get", Key: key, Err: err}
	}

	if expiresAt <= s.now().Unix() {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
			return nil, false, &CacheError{Op: "expire", Key: key, Err: err}
		}
		return nil, false, nil
	}

	return value, true, nil
}

// Set stores an entry, replacing any previous value under the key.
func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return &CacheError{Op: "set", Key: key, Err: fmt.Errorf("non-positive ttl %v", ttl)}
	}

	query := `
		INSERT INTO cache_entries (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
	`

	expiresAt := s.now().Add(ttl).Unix()
	if _, err := s.db.ExecContext(ctx, query, key, value, expiresAt); err != nil {
		return &CacheError{Op: "set", Key: key, Err: err}
	}

	return nil
}

// Delete removes an entry. Deleting a missing key is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return &CacheError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// Exists reports whether a live entry is stored under the key.
func (s *SQLiteStore) Exists(ctx context.Context, key string) (bool, error) {
	query := `SELECT expires_at FROM cache_entries WHERE key = ?`

	var expiresAt int64
	err := s.db.QueryRowContext(ctx, query, key).Scan(&expiresAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, &CacheError{Op: "exists", Key: key, Err: err}
	}

	return expiresAt > s.now().Unix(), nil
}

// Purge deletes every expired entry and returns the count removed.
func (s *SQLiteStore) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE expires_at <= ?`, s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored entries, expired rows included.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store for tests and single-shot commands.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

// Get retrieves an entry, reaping it when expired.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.After(s.now()) {
		delete(s.entries, key)
		return nil, false, nil
	}

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, true, nil
}

// Set stores an entry, replacing any previous value under the key.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return &CacheError{Op: "set", Key: key, Err: fmt.Errorf("non-positive ttl %v", ttl)}
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{value: stored, expiresAt: s.now().Add(ttl)}
	return nil
}

// Delete removes an entry.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Exists reports whether a live entry is stored under the key.
func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	return ok && entry.expiresAt.After(s.now()), nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
