// Package cache provides the in-memory TTL cache that sits in front of every dashboard read.
// Entries carry a priority tier; HIGH and CRITICAL writes also keep a longer-lived backup
// copy that can stand in for the primary once it expires.
package cache

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// BackupSuffix is appended to a key to form its backup key.
const BackupSuffix = "_backup"

// Priority is the retention tier of a cache entry.
type Priority int

const (
	// PriorityLow is for data that is cheap to refetch.
	PriorityLow Priority = iota
	// PriorityMedium is the default tier.
	PriorityMedium
	// PriorityHigh keeps a backup copy for degraded reads.
	PriorityHigh
	// PriorityCritical keeps a backup copy for degraded reads.
	PriorityCritical
)

// String returns a human-readable name for the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityMedium:
		return "Medium"
	case PriorityHigh:
		return "High"
	case PriorityCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// demote returns the next lower tier, bottoming out at PriorityLow.
func (p Priority) demote() Priority {
	if p <= PriorityLow {
		return PriorityLow
	}
	return p - 1
}

// keepsBackup reports whether writes at this tier create a backup entry.
func (p Priority) keepsBackup() bool {
	return p >= PriorityHigh
}

// Entry is one cached value.
type Entry struct {
	Key      string
	Value    interface{}
	CachedAt time.Time
	Expiry   time.Time
	Priority Priority
}

// expired reports whether the entry is no longer readable at now.
// An entry is readable strictly before its expiry instant.
func (e *Entry) expired(now time.Time) bool {
	return !now.Before(e.Expiry)
}

// Meta is the diagnostic view returned by GetWithMeta.
type Meta struct {
	Value        interface{}   `json:"value"`
	CachedAt     time.Time     `json:"cached_at"`
	Expiry       time.Time     `json:"expiry"`
	RemainingTTL time.Duration `json:"remaining_ttl"`
	Age          time.Duration `json:"age"`
	Priority     Priority      `json:"priority"`
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, mainly for tests that advance a virtual clock.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithBackupReseedTTL overrides the TTL given to a primary reseeded from its backup.
func WithBackupReseedTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.reseedTTL = ttl
	}
}

// Store is a concurrency-safe key to entry table with per-entry TTL.
type Store struct {
	mu        sync.Mutex
	entries   map[string]*Entry
	now       func() time.Time
	reseedTTL time.Duration
}

// NewStore creates an empty cache.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries:   make(map[string]*Entry),
		now:       time.Now,
		reseedTTL: BackupReseedTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set stores value under key, overwriting any existing entry.
// HIGH and CRITICAL writes also store <key>_backup with 3x the TTL and one tier lower.
func (s *Store) Set(key string, value interface{}, ttl time.Duration, priority Priority) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry := s.put(key, value, ttl, priority, now)

	if priority.keepsBackup() {
		s.put(key+BackupSuffix, value, ttl*backupTTLFactor, priority.demote(), now)
	}

	return entry
}

// SetDefault stores value at PriorityMedium.
func (s *Store) SetDefault(key string, value interface{}, ttl time.Duration) *Entry {
	return s.Set(key, value, ttl, PriorityMedium)
}

func (s *Store) put(key string, value interface{}, ttl time.Duration, priority Priority, now time.Time) *Entry {
	entry := &Entry{
		Key:      key,
		Value:    value,
		CachedAt: now,
		Expiry:   now.Add(ttl),
		Priority: priority,
	}
	s.entries[key] = entry
	return entry
}

// lookup returns the live entry for key, evicting it if expired. Caller holds mu.
func (s *Store) lookup(key string, now time.Time) (*Entry, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if entry.expired(now) {
		delete(s.entries, key)
		return nil, false
	}
	return entry, true
}

// Get returns the cached value, or false if absent or expired.
func (s *Store) Get(key string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.lookup(key, s.now())
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

// GetWithBackup reads key and, if the primary is absent, falls back to its backup.
// A backup hit reseeds the primary with a short TTL so subsequent reads are cheap.
// Once both the promoted primary and the backup have expired the read is a miss.
func (s *Store) GetWithBackup(key string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if entry, ok := s.lookup(key, now); ok {
		return entry.Value, true
	}

	backup, ok := s.lookup(key+BackupSuffix, now)
	if !ok {
		return nil, false
	}

	s.put(key, backup.Value, s.reseedTTL, backup.Priority, now)
	return backup.Value, true
}

// Has reports whether an unexpired entry exists for key.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.lookup(key, s.now())
	return ok
}

// Delete removes key. Deleting a missing key is a no-op.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
}

// GetWithMeta returns the value with its timing metadata.
func (s *Store) GetWithMeta(key string) (Meta, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.lookup(key, now)
	if !ok {
		return Meta{}, false
	}

	return Meta{
		Value:        entry.Value,
		CachedAt:     entry.CachedAt,
		Expiry:       entry.Expiry,
		RemainingTTL: entry.Expiry.Sub(now),
		Age:          now.Sub(entry.CachedAt),
		Priority:     entry.Priority,
	}, true
}

// Clear drops every entry whose key starts with prefix. An empty prefix clears everything.
// Backups share their primary's prefix and are dropped with it.
// Returns the number of entries removed.
func (s *Store) Clear(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prefix == "" {
		n := len(s.entries)
		s.entries = make(map[string]*Entry)
		return n
	}

	removed := 0
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Keys lists the stored keys in sorted order.
// Expired entries that have not been evicted yet may appear; treat the result as advisory.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of stored entries, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

// Sweep evicts every expired entry and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, entry := range s.entries {
		if entry.expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}
