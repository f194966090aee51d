package s3

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/bucketboss/bucketboss/internal/cloudpath"
	"github.com/bucketboss/bucketboss/internal/metrics"
	"github.com/bucketboss/bucketboss/internal/provider"
)

// MultiBucket browses across every bucket the credentials can see:
// buckets appear as directories at the root and everything below
// delegates to a per-bucket delimited listing. The session bucket is
// empty, so canonical keys carry the bucket as their first segment.
type MultiBucket struct {
	client *s3.Client
}

// NewMultiBucket creates a cross-bucket provider. Requires credentials
// with list-buckets permission.
func NewMultiBucket(ctx context.Context, opts Options) (*MultiBucket, error) {
	client, err := newClient(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &MultiBucket{client: client}, nil
}

// Label returns the prompt prefix.
func (p *MultiBucket) Label() string {
	return "s3://"
}

// Ping verifies bucket enumeration works; without it multi-bucket mode
// has nothing to show.
func (p *MultiBucket) Ping(ctx context.Context) error {
	start := time.Now()
	_, err := p.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	metrics.RecordProviderOp("list_buckets", time.Since(start), err)
	return classify("list_buckets", err)
}

// List returns bucket names at the root and delegates below it.
func (p *MultiBucket) List(ctx context.Context, path cloudpath.Path) (provider.Listing, error) {
	if path.IsRoot() {
		start := time.Now()
		out, err := p.client.ListBuckets(ctx, &s3.ListBucketsInput{})
		metrics.RecordProviderOp("list_buckets", time.Since(start), err)
		if err != nil {
			return provider.Listing{}, classify("list_buckets", err)
		}
		var listing provider.Listing
		for _, b := range out.Buckets {
			if name := aws.ToString(b.Name); name != "" {
				listing.Dirs = append(listing.Dirs, name)
			}
		}
		sort.Strings(listing.Dirs)
		return listing, nil
	}

	bucket, sub := splitBucket(path)
	return listPrefix(ctx, p.client, bucket, sub.Prefix())
}

// Stat reports how many buckets the credentials can see.
func (p *MultiBucket) Stat(ctx context.Context) (provider.BucketStats, error) {
	start := time.Now()
	out, err := p.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	metrics.RecordProviderOp("stat", time.Since(start), err)
	if err != nil {
		return provider.BucketStats{}, classify("stat", err)
	}
	return provider.BucketStats{BucketCount: len(out.Buckets)}, nil
}

// GetObject delegates to the bucket named by the first path segment.
func (p *MultiBucket) GetObject(ctx context.Context, path cloudpath.Path) (io.ReadCloser, error) {
	sp, err := p.single(path)
	if err != nil {
		return nil, err
	}
	_, sub := splitBucket(path)
	return sp.GetObject(ctx, sub)
}

// ReadRange delegates to the bucket named by the first path segment.
func (p *MultiBucket) ReadRange(ctx context.Context, path cloudpath.Path, n int64) ([]byte, error) {
	sp, err := p.single(path)
	if err != nil {
		return nil, err
	}
	_, sub := splitBucket(path)
	return sp.ReadRange(ctx, sub, n)
}

// HeadObject delegates to the bucket named by the first path segment.
func (p *MultiBucket) HeadObject(ctx context.Context, path cloudpath.Path) (provider.ObjectMeta, error) {
	sp, err := p.single(path)
	if err != nil {
		return provider.ObjectMeta{}, err
	}
	_, sub := splitBucket(path)
	return sp.HeadObject(ctx, sub)
}

// PutObject delegates to the bucket named by the first path segment.
func (p *MultiBucket) PutObject(ctx context.Context, path cloudpath.Path, body io.Reader, size int64) error {
	sp, err := p.single(path)
	if err != nil {
		return err
	}
	_, sub := splitBucket(path)
	return sp.PutObject(ctx, sub, body, size)
}

func (p *MultiBucket) single(path cloudpath.Path) (*Provider, error) {
	if path.IsRoot() {
		return nil, fmt.Errorf("path %q names no bucket", path.Key())
	}
	bucket, _ := splitBucket(path)
	return &Provider{client: p.client, bucket: bucket}, nil
}

// splitBucket peels the leading segment off a cross-bucket path,
// returning the bucket name and the in-bucket remainder.
func splitBucket(path cloudpath.Path) (string, cloudpath.Path) {
	if len(path.Segments) == 0 {
		return "", path
	}
	rest := make([]string, len(path.Segments)-1)
	copy(rest, path.Segments[1:])
	return path.Segments[0], cloudpath.Path{
		Bucket:   path.Segments[0],
		Segments: rest,
		Dir:      path.Dir,
	}
}
