package stats

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bucketboss/bucketboss/internal/cloudpath"
	"github.com/bucketboss/bucketboss/internal/provider"
)

type statProvider struct {
	mu    sync.Mutex
	stats provider.BucketStats
	err   error
	calls int
	gate  chan struct{}
}

func (p *statProvider) Label() string                  { return "fake://bkt/" }
func (p *statProvider) Ping(ctx context.Context) error { return nil }

func (p *statProvider) List(ctx context.Context, path cloudpath.Path) (provider.Listing, error) {
	return provider.Listing{}, nil
}

func (p *statProvider) Stat(ctx context.Context) (provider.BucketStats, error) {
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.stats, p.err
}

func TestCollector_Success(t *testing.T) {
	created := time.Unix(1600000000, 0).UTC()
	p := &statProvider{stats: provider.BucketStats{Bucket: "bkt", Region: "eu-west-1", CreatedAt: created}}
	c := New(p, time.Second)

	rec := c.Refresh(context.Background())
	if !rec.Fetched {
		t.Fatal("record not marked fetched")
	}
	if rec.Region != "eu-west-1" || !rec.CreatedAt.Equal(created) {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Err != "" {
		t.Errorf("Err = %q, want empty", rec.Err)
	}
}

func TestCollector_FailureIsNonFatal(t *testing.T) {
	p := &statProvider{err: provider.NewError("stat", provider.KindAccessDenied, context.DeadlineExceeded)}
	c := New(p, time.Second)

	rec := c.Refresh(context.Background())
	if rec.Fetched {
		t.Error("failed fetch marked as fetched")
	}
	if rec.Err == "" {
		t.Error("error not recorded")
	}
}

func TestCollector_SnapshotBeforeFetchCompletes(t *testing.T) {
	gate := make(chan struct{})
	p := &statProvider{stats: provider.BucketStats{Bucket: "bkt"}, gate: gate}
	c := New(p, time.Second)

	c.Start(context.Background())

	// The stats surface tolerates an unavailable record instead of
	// waiting on the in-flight fetch.
	rec := c.Snapshot()
	if rec.Fetched {
		t.Error("record fetched before provider returned")
	}

	close(gate)
	deadline := time.After(2 * time.Second)
	for !c.Snapshot().Fetched {
		select {
		case <-deadline:
			t.Fatal("fetch never completed")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestCollector_FetchesOncePerStart(t *testing.T) {
	p := &statProvider{stats: provider.BucketStats{Bucket: "bkt"}}
	c := New(p, time.Second)

	c.Refresh(context.Background())
	c.Refresh(context.Background())

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls != 2 {
		t.Errorf("Stat called %d times for two explicit refreshes, want 2", p.calls)
	}
}
