package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bucketboss/bucketboss/internal/logging"
	"github.com/bucketboss/bucketboss/internal/metrics"
	"github.com/bucketboss/bucketboss/internal/provider"
)

// persistEntry is the on-disk form of one cache entry: the listing
// payload plus epoch-second fetch time and TTL.
type persistEntry struct {
	Payload   provider.Listing `json:"payload"`
	FetchedAt int64            `json:"fetched_at"`
	TTL       int64            `json:"ttl"`
}

func snapshotPath(dir, identity string) string {
	name := strings.NewReplacer("/", "_", string(os.PathSeparator), "_", ":", "_").Replace(identity)
	if name == "" {
		name = "default"
	}
	return filepath.Join(dir, name+".cache.json")
}

// load reads the snapshot, dropping entries that are individually
// corrupt or already expired at load time. Any failure degrades to an
// empty cache with a warning; persistence problems are never fatal.
func (s *Store) load() {
	data, err := os.ReadFile(s.file)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn("cache snapshot unreadable, starting empty",
				zap.String("file", s.file), zap.Error(err))
		}
		return
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		logging.Warn("cache snapshot corrupt, starting empty",
			zap.String("file", s.file), zap.Error(err))
		return
	}

	now := s.now()
	loaded, dropped := 0, 0
	s.mu.Lock()
	for k, msg := range raw {
		var pe persistEntry
		if err := json.Unmarshal(msg, &pe); err != nil {
			dropped++
			continue
		}
		e := Entry{
			Listing:   pe.Payload,
			FetchedAt: time.Unix(pe.FetchedAt, 0),
			TTL:       time.Duration(pe.TTL) * time.Second,
		}
		if !e.Valid(now) {
			dropped++
			continue
		}
		s.entries[k] = e
		loaded++
	}
	n := len(s.entries)
	s.mu.Unlock()
	metrics.SetCacheEntries(n)

	logging.Info("cache snapshot loaded",
		zap.String("file", s.file),
		zap.Int("entries", loaded),
		zap.Int("dropped", dropped))
}

// Flush writes the live entry set to the snapshot file. The write is
// atomic (temp file then rename) so a crash mid-flush never corrupts
// the previous snapshot.
func (s *Store) Flush() error {
	if s.file == "" {
		return nil
	}

	now := s.now()
	s.mu.RLock()
	out := make(map[string]persistEntry, len(s.entries))
	for k, e := range s.entries {
		if !e.Valid(now) {
			continue
		}
		out[k] = persistEntry{
			Payload:   e.Listing,
			FetchedAt: e.FetchedAt.Unix(),
			TTL:       int64(e.TTL / time.Second),
		}
	}
	s.mu.RUnlock()

	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode cache snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.file), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp := s.file + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cache snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.file); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename cache snapshot: %w", err)
	}

	logging.Debug("cache snapshot flushed",
		zap.String("file", s.file), zap.Int("entries", len(out)))
	return nil
}
