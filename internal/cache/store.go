// Package cache implements the TTL-indexed directory-listing cache.
//
// The store maps canonical paths to listing payloads. Validity is
// evaluated lazily at read time; entries are immutable once stored and
// a refresh replaces the old entry atomically under the same key.
// Staleness up to the TTL window is an accepted property, not a defect.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bucketboss/bucketboss/internal/cloudpath"
	"github.com/bucketboss/bucketboss/internal/logging"
	"github.com/bucketboss/bucketboss/internal/metrics"
	"github.com/bucketboss/bucketboss/internal/provider"
	"go.uber.org/zap"
)

// DefaultTTL is used when Config.TTL is zero.
const DefaultTTL = 6 * time.Hour

// Config holds cache behavior settings.
type Config struct {
	TTL           time.Duration
	Dir           string // snapshot directory, used when Persist is set
	Persist       bool
	FlushInterval time.Duration // zero defaults to 5 minutes
}

// Entry is one cached listing.
type Entry struct {
	Listing   provider.Listing
	FetchedAt time.Time
	TTL       time.Duration
}

// Valid reports whether the entry is still live at now.
func (e Entry) Valid(now time.Time) bool {
	return now.Sub(e.FetchedAt) < e.TTL
}

// FetchFunc performs the provider fetch on a cache miss.
type FetchFunc func(ctx context.Context) (provider.Listing, error)

// Store is safe for concurrent use by the foreground loop and the
// background workers. Fetches for the same key are coalesced: exactly
// one provider call runs per missing key regardless of caller count.
type Store struct {
	cfg  Config
	file string // "" disables persistence

	mu      sync.RWMutex
	entries map[string]Entry

	group singleflight.Group
	now   func() time.Time
}

// New creates a Store. identity names the persistence snapshot (one
// file per bucket/provider identity); it is ignored when persistence
// is disabled. A corrupt or unreadable snapshot degrades to an empty
// cache, never an error.
func New(cfg Config, identity string) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Minute
	}

	s := &Store{
		cfg:     cfg,
		entries: make(map[string]Entry),
		now:     time.Now,
	}
	if cfg.Persist {
		s.file = snapshotPath(cfg.Dir, identity)
		s.load()
	}
	return s
}

// Get returns the listing for key if present and unexpired.
func (s *Store) Get(key cloudpath.Path) (provider.Listing, bool) {
	s.mu.RLock()
	e, ok := s.entries[key.Key()]
	s.mu.RUnlock()
	if !ok || !e.Valid(s.now()) {
		return provider.Listing{}, false
	}
	return e.Listing, true
}

// GetOrFetch returns the cached listing for key, or runs fetch on a
// miss. Concurrent callers for the same missing key share one fetch
// and receive the same listing or the same error. Errors are never
// cached: a later call retries. A failed fetch leaves the store
// untouched.
func (s *Store) GetOrFetch(ctx context.Context, key cloudpath.Path, fetch FetchFunc) (provider.Listing, error) {
	if l, ok := s.Get(key); ok {
		metrics.RecordCacheHit()
		return l, nil
	}
	metrics.RecordCacheMiss()

	k := key.Key()
	v, err, _ := s.group.Do(k, func() (interface{}, error) {
		// A coalesced caller may arrive after the flight leader already
		// stored the result.
		if l, ok := s.Get(key); ok {
			return l, nil
		}
		l, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		s.Put(key, l)
		return l, nil
	})
	if err != nil {
		return provider.Listing{}, err
	}
	return v.(provider.Listing), nil
}

// Put stores a listing under key with the default TTL. Used by the
// crawler to warm entries the interactive path has not requested yet.
func (s *Store) Put(key cloudpath.Path, l provider.Listing) {
	s.PutTTL(key, l, s.cfg.TTL)
}

// PutTTL stores a listing with an explicit TTL.
func (s *Store) PutTTL(key cloudpath.Path, l provider.Listing, ttl time.Duration) {
	s.mu.Lock()
	s.entries[key.Key()] = Entry{Listing: l, FetchedAt: s.now(), TTL: ttl}
	n := len(s.entries)
	s.mu.Unlock()
	metrics.SetCacheEntries(n)
}

// Invalidate removes the entry for key, if any.
func (s *Store) Invalidate(key cloudpath.Path) {
	s.mu.Lock()
	delete(s.entries, key.Key())
	n := len(s.entries)
	s.mu.Unlock()
	metrics.SetCacheEntries(n)
}

// InvalidatePrefix removes key and every descendant of it.
func (s *Store) InvalidatePrefix(key cloudpath.Path) {
	exact := key.Key()
	prefix := exact
	if !strings.HasSuffix(prefix, cloudpath.Separator) {
		prefix += cloudpath.Separator
	}
	s.mu.Lock()
	for k := range s.entries {
		if k == exact || strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
		}
	}
	n := len(s.entries)
	s.mu.Unlock()
	metrics.SetCacheEntries(n)
}

// Len returns the number of stored entries, expired ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Entries returns a copy of the live entry set, for summary rendering.
func (s *Store) Entries() map[string]Entry {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Entry, len(s.entries))
	for k, e := range s.entries {
		if e.Valid(now) {
			out[k] = e
		}
	}
	return out
}

// Run flushes the snapshot periodically until ctx is cancelled, then
// flushes one last time. No-op when persistence is disabled.
func (s *Store) Run(ctx context.Context) {
	if s.file == "" {
		return
	}
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := s.Flush(); err != nil {
				logging.Warn("cache flush on shutdown failed", zap.Error(err))
			}
			return
		case <-ticker.C:
			if err := s.Flush(); err != nil {
				logging.Warn("periodic cache flush failed", zap.Error(err))
			}
		}
	}
}
