// Command bucketboss is an interactive shell for browsing remote
// object storage with a local listing cache and a background crawl
// that warms it.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bucketboss/bucketboss/internal/cache"
	"github.com/bucketboss/bucketboss/internal/cloudpath"
	"github.com/bucketboss/bucketboss/internal/config"
	"github.com/bucketboss/bucketboss/internal/crawler"
	"github.com/bucketboss/bucketboss/internal/logging"
	"github.com/bucketboss/bucketboss/internal/metrics"
	"github.com/bucketboss/bucketboss/internal/provider"
	"github.com/bucketboss/bucketboss/internal/provider/s3"
	"github.com/bucketboss/bucketboss/internal/shell"
	"github.com/bucketboss/bucketboss/internal/stats"
)

func main() {
	cfg := config.Load()

	root := &cobra.Command{
		Use:   "bucketboss [bucket]",
		Short: "Interactive shell for browsing S3-compatible object storage",
		Long: `bucketboss opens an interactive shell against a bucket (or, with no
bucket, against every bucket the credentials can see). Directory
listings are cached with a TTL and persisted across sessions; a
background crawl pre-warms the cache so navigation stays fast.

Configuration can also come from BUCKETBOSS_* environment variables;
flags take precedence.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				cfg.Bucket = args[0]
			}
			return run(cmd.Context(), cfg)
		},
	}

	f := root.Flags()
	f.StringVar(&cfg.Endpoint, "endpoint", cfg.Endpoint, "custom S3 endpoint URL (for MinIO, Ceph, etc.)")
	f.StringVar(&cfg.Region, "region", cfg.Region, "AWS region")
	f.StringVar(&cfg.Profile, "profile", cfg.Profile, "shared credentials profile")
	f.StringVar(&cfg.AccessKey, "access-key", cfg.AccessKey, "static access key id")
	f.StringVar(&cfg.SecretKey, "secret-key", cfg.SecretKey, "static secret access key")
	f.BoolVar(&cfg.Unsigned, "unsigned", cfg.Unsigned, "send unsigned requests (public buckets)")
	f.IntVar(&cfg.CrawlDepth, "crawl-depth", cfg.CrawlDepth, "background crawl depth (0 disables)")
	f.IntVar(&cfg.CrawlWorkers, "crawl-workers", cfg.CrawlWorkers, "concurrent listings per crawl level")
	f.DurationVar(&cfg.CacheTTL, "ttl", cfg.CacheTTL, "listing cache entry lifetime")
	f.StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "directory for persisted cache snapshots")
	noPersist := f.Bool("no-persist", !cfg.CachePersist, "do not persist the cache across sessions")
	f.DurationVar(&cfg.ProviderTimeout, "timeout", cfg.ProviderTimeout, "per-operation provider timeout")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug|info|warn|error)")
	f.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "address for the Prometheus endpoint (empty disables)")

	cobra.OnInitialize(func() {
		cfg.CachePersist = !*noPersist
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "bucketboss:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logging.Sync()

	p, identity, err := buildProvider(ctx, cfg)
	if err != nil {
		return err
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ProviderTimeout)
	err = p.Ping(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("cannot reach %s: %w", p.Label(), err)
	}
	logging.Info("connected", zap.String("target", p.Label()))

	store := cache.New(cache.Config{
		TTL:           cfg.CacheTTL,
		Dir:           cfg.CacheDir,
		Persist:       cfg.CachePersist,
		FlushInterval: cfg.FlushInterval,
	}, identity)

	// Background workers stop when the shell exits, not only on a
	// signal, so the final flush sees no concurrent crawl writes.
	workCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	go store.Run(workCtx)

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr)
	}

	collector := stats.New(p, cfg.ProviderTimeout)
	collector.Start(workCtx)

	cr := crawler.New(p, store, cloudpath.Root(cfg.Bucket), cfg.CrawlDepth, cfg.CrawlWorkers)
	if err := cr.Start(workCtx); err != nil {
		logging.Warn("background crawl not started", zap.Error(err))
	}

	err = shell.New(p, store, cr, collector, cfg).Run(workCtx)
	stopWorkers()

	if cfg.CachePersist {
		if ferr := store.Flush(); ferr != nil {
			logging.Warn("final cache flush failed", zap.Error(ferr))
		}
	}
	return err
}

// buildProvider picks single-bucket or cross-bucket mode and returns
// the identity string that names the persisted cache snapshot.
func buildProvider(ctx context.Context, cfg *config.Config) (provider.Provider, string, error) {
	opts := s3.Options{
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		Endpoint:  cfg.Endpoint,
		Profile:   cfg.Profile,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Unsigned:  cfg.Unsigned,
	}

	if cfg.Bucket == "" {
		p, err := s3.NewMultiBucket(ctx, opts)
		if err != nil {
			return nil, "", fmt.Errorf("init provider: %w", err)
		}
		return p, "all-buckets", nil
	}

	p, err := s3.New(ctx, opts)
	if err != nil {
		return nil, "", fmt.Errorf("init provider: %w", err)
	}
	return p, cfg.Bucket, nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logging.Info("metrics listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logging.Warn("metrics server stopped", zap.Error(err))
	}
}
