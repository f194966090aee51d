// Package stats collects bucket-level metadata in the background so
// shell startup never waits on it.
package stats

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bucketboss/bucketboss/internal/logging"
	"github.com/bucketboss/bucketboss/internal/provider"
)

// Record is the collected bucket metadata. Fetched stays false until
// the background fetch completes; Err is set on failure. Either way
// the rest of the session proceeds.
type Record struct {
	Bucket      string
	Region      string
	CreatedAt   time.Time
	BucketCount int
	Fetched     bool
	Err         string
}

// Collector fetches bucket stats exactly once per Start/Refresh.
type Collector struct {
	provider provider.Provider
	timeout  time.Duration

	mu  sync.Mutex
	rec Record
}

// New creates a collector. timeout bounds the single provider call.
func New(p provider.Provider, timeout time.Duration) *Collector {
	return &Collector{provider: p, timeout: timeout}
}

// Start launches the one-shot fetch in the background.
func (c *Collector) Start(ctx context.Context) {
	go c.fetch(ctx)
}

// Refresh re-fetches synchronously, replacing the record.
func (c *Collector) Refresh(ctx context.Context) Record {
	c.fetch(ctx)
	return c.Snapshot()
}

// Snapshot returns a copy of the current record; callers never see a
// torn read and never block the collector.
func (c *Collector) Snapshot() Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec
}

func (c *Collector) fetch(ctx context.Context) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	st, err := c.provider.Stat(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.rec = Record{Bucket: st.Bucket, Err: err.Error()}
		logging.Warn("bucket stats collection failed", zap.Error(err))
		return
	}
	c.rec = Record{
		Bucket:      st.Bucket,
		Region:      st.Region,
		CreatedAt:   st.CreatedAt,
		BucketCount: st.BucketCount,
		Fetched:     true,
	}
	logging.Debug("bucket stats collected",
		zap.String("bucket", st.Bucket), zap.String("region", st.Region))
}
