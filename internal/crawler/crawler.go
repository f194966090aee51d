// Package crawler warms the listing cache ahead of user navigation.
//
// The crawl walks the directory tree breadth-first up to a configured
// depth so the directories nearest the root, the ones a user reaches
// first, are cached earliest. Listings within one depth level run on a
// bounded worker pool.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bucketboss/bucketboss/internal/cache"
	"github.com/bucketboss/bucketboss/internal/cloudpath"
	"github.com/bucketboss/bucketboss/internal/logging"
	"github.com/bucketboss/bucketboss/internal/metrics"
	"github.com/bucketboss/bucketboss/internal/provider"
	"go.uber.org/zap"
)

// Status is the crawl lifecycle state. Transitions are
// Idle -> Running -> {Done, Failed}; terminal states are final for a
// run and reset only by an explicit re-crawl. A cancelled run finishes
// Done with the interruption recorded in State.LastErr.
type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusDone
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// State is a value snapshot of crawl progress, safe to render without
// holding any crawler lock.
type State struct {
	Status   Status
	Root     string
	MaxDepth int
	Visited  int
	Frontier int
	LastErr  string
}

// ErrRunning is returned by Start while a crawl is in flight.
var ErrRunning = errors.New("crawl already running")

// Crawler owns exactly one crawl run at a time.
type Crawler struct {
	provider provider.Provider
	cache    *cache.Store
	root     cloudpath.Path
	maxDepth int
	workers  int

	mu    sync.Mutex
	state State
}

// New creates a crawler. maxDepth 0 disables crawling; workers bounds
// concurrent listings within a depth level.
func New(p provider.Provider, c *cache.Store, root cloudpath.Path, maxDepth, workers int) *Crawler {
	if workers < 1 {
		workers = 1
	}
	return &Crawler{
		provider: p,
		cache:    c,
		root:     root,
		maxDepth: maxDepth,
		workers:  workers,
		state:    State{Status: StatusIdle, Root: root.Key(), MaxDepth: maxDepth},
	}
}

// Start launches the crawl in a background goroutine. A terminal
// crawler restarts from scratch; a running one returns ErrRunning.
func (c *Crawler) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Status == StatusRunning {
		c.mu.Unlock()
		return ErrRunning
	}
	c.state = State{Status: StatusRunning, Root: c.root.Key(), MaxDepth: c.maxDepth}
	c.mu.Unlock()

	go c.run(ctx)
	return nil
}

// Status returns a copy of the current crawl state.
func (c *Crawler) Status() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

type workItem struct {
	path  cloudpath.Path
	depth int
}

func (c *Crawler) run(ctx context.Context) {
	if c.maxDepth <= 0 {
		c.finish(StatusDone)
		logging.Debug("crawl disabled", zap.Int("max_depth", c.maxDepth))
		return
	}

	logging.Info("background crawl started",
		zap.String("root", c.root.Key()),
		zap.Int("max_depth", c.maxDepth),
		zap.Int("workers", c.workers))

	visited := make(map[string]struct{})
	level := []workItem{{path: c.root, depth: 0}}
	rootFailed := false

	for len(level) > 0 {
		if ctx.Err() != nil {
			c.recordError(fmt.Errorf("crawl interrupted: %w", ctx.Err()))
			c.finish(StatusDone)
			logging.Info("background crawl cancelled", zap.Int("visited", len(visited)))
			return
		}

		var (
			nextMu sync.Mutex
			next   []workItem
		)
		g := new(errgroup.Group)
		g.SetLimit(c.workers)

		for _, item := range level {
			key := item.path.Key()
			if _, seen := visited[key]; seen {
				continue
			}
			visited[key] = struct{}{}

			item := item
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}

				listing, ok := c.cache.Get(item.path)
				if !ok {
					var err error
					listing, err = c.provider.List(ctx, item.path)
					if err != nil {
						metrics.RecordCrawlError()
						c.recordError(err)
						if item.depth == 0 {
							rootFailed = true
						}
						logging.Warn("crawl listing failed",
							zap.String("prefix", item.path.Key()), zap.Error(err))
						return nil
					}
					c.cache.Put(item.path, listing)
				}

				c.addVisited()

				if item.depth < c.maxDepth {
					children := make([]workItem, 0, len(listing.Dirs))
					for _, d := range listing.Dirs {
						if d == "" {
							continue
						}
						children = append(children, workItem{
							path:  item.path.Child(d, true),
							depth: item.depth + 1,
						})
					}
					nextMu.Lock()
					next = append(next, children...)
					nextMu.Unlock()
				}
				return nil
			})
		}
		g.Wait()

		if rootFailed {
			c.finish(StatusFailed)
			logging.Warn("background crawl failed at root")
			return
		}

		c.setFrontier(len(next))
		level = next
	}

	c.finish(StatusDone)
	st := c.Status()
	logging.Info("background crawl finished",
		zap.Int("visited", st.Visited),
		zap.Int("max_depth", st.MaxDepth))
}

func (c *Crawler) addVisited() {
	c.mu.Lock()
	c.state.Visited++
	n := c.state.Visited
	c.mu.Unlock()
	metrics.SetCrawlVisited(n)
}

func (c *Crawler) setFrontier(n int) {
	c.mu.Lock()
	c.state.Frontier = n
	c.mu.Unlock()
}

func (c *Crawler) recordError(err error) {
	c.mu.Lock()
	c.state.LastErr = err.Error()
	c.mu.Unlock()
}

func (c *Crawler) finish(status Status) {
	c.mu.Lock()
	c.state.Status = status
	c.state.Frontier = 0
	c.mu.Unlock()
}
