package s3

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/bucketboss/bucketboss/internal/cloudpath"
	"github.com/bucketboss/bucketboss/internal/metrics"
	"github.com/bucketboss/bucketboss/internal/provider"
)

// Provider lists and reads a single bucket via the S3 API.
type Provider struct {
	client *s3.Client
	bucket string
}

// New creates a single-bucket S3 provider.
func New(ctx context.Context, opts Options) (*Provider, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("bucket name required")
	}
	client, err := newClient(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Provider{client: client, bucket: opts.Bucket}, nil
}

// Label returns the prompt prefix.
func (p *Provider) Label() string {
	return "s3://" + p.bucket + "/"
}

// Ping checks the bucket exists and is accessible.
func (p *Provider) Ping(ctx context.Context) error {
	start := time.Now()
	_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(p.bucket)})
	metrics.RecordProviderOp("head_bucket", time.Since(start), err)
	return classify("head_bucket", err)
}

// List enumerates the immediate children under path using a delimited
// listing: CommonPrefixes become directories, Contents become files.
func (p *Provider) List(ctx context.Context, path cloudpath.Path) (provider.Listing, error) {
	return listPrefix(ctx, p.client, p.bucket, path.Prefix())
}

func listPrefix(ctx context.Context, client *s3.Client, bucket, prefix string) (provider.Listing, error) {
	start := time.Now()
	var listing provider.Listing

	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String(cloudpath.Separator),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			metrics.RecordProviderOp("list", time.Since(start), err)
			return provider.Listing{}, classify("list", err)
		}

		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), cloudpath.Separator)
			if name != "" {
				listing.Dirs = append(listing.Dirs, name)
			}
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == prefix {
				// The zero-byte marker object some tools create for the
				// directory itself.
				continue
			}
			name := strings.TrimPrefix(key, prefix)
			if name == "" {
				continue
			}
			listing.Files = append(listing.Files, provider.Object{
				Name:         name,
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
				Ext:          provider.Ext(name),
			})
		}
	}

	sort.Strings(listing.Dirs)
	listing.SortFiles("name")
	metrics.RecordProviderOp("list", time.Since(start), nil)
	return listing, nil
}

// Stat fetches the bucket region and, when list-buckets permission is
// available, its creation date.
func (p *Provider) Stat(ctx context.Context) (provider.BucketStats, error) {
	start := time.Now()
	stats := provider.BucketStats{Bucket: p.bucket}

	loc, err := p.client.GetBucketLocation(ctx, &s3.GetBucketLocationInput{
		Bucket: aws.String(p.bucket),
	})
	if err != nil {
		metrics.RecordProviderOp("stat", time.Since(start), err)
		return stats, classify("stat", err)
	}
	stats.Region = string(loc.LocationConstraint)
	if stats.Region == "" {
		// GetBucketLocation reports us-east-1 as an empty constraint.
		stats.Region = "us-east-1"
	}

	// Creation date only appears in ListBuckets; missing permission is
	// not an error, the date just stays zero.
	if out, err := p.client.ListBuckets(ctx, &s3.ListBucketsInput{}); err == nil {
		for _, b := range out.Buckets {
			if aws.ToString(b.Name) == p.bucket {
				stats.CreatedAt = aws.ToTime(b.CreationDate)
				break
			}
		}
	}

	metrics.RecordProviderOp("stat", time.Since(start), nil)
	return stats, nil
}

// GetObject returns the object body for streaming.
func (p *Provider) GetObject(ctx context.Context, path cloudpath.Path) (io.ReadCloser, error) {
	start := time.Now()
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(path.Prefix()),
	})
	metrics.RecordProviderOp("get", time.Since(start), err)
	if err != nil {
		return nil, classify("get", err)
	}
	return out.Body, nil
}

// ReadRange reads the first n bytes of an object.
func (p *Provider) ReadRange(ctx context.Context, path cloudpath.Path, n int64) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("range size must be positive, got %d", n)
	}
	start := time.Now()
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(path.Prefix()),
		Range:  aws.String(fmt.Sprintf("bytes=0-%d", n-1)),
	})
	metrics.RecordProviderOp("get_range", time.Since(start), err)
	if err != nil {
		return nil, classify("get", err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// HeadObject fetches per-object metadata.
func (p *Provider) HeadObject(ctx context.Context, path cloudpath.Path) (provider.ObjectMeta, error) {
	start := time.Now()
	out, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(path.Prefix()),
	})
	metrics.RecordProviderOp("head", time.Since(start), err)
	if err != nil {
		return provider.ObjectMeta{}, classify("head", err)
	}
	meta := provider.ObjectMeta{
		Size:         aws.ToInt64(out.ContentLength),
		LastModified: aws.ToTime(out.LastModified),
		ContentType:  aws.ToString(out.ContentType),
	}
	if meta.ContentType == "" {
		meta.ContentType = "application/octet-stream"
	}
	return meta, nil
}

// PutObject uploads body to the given path.
func (p *Provider) PutObject(ctx context.Context, path cloudpath.Path, body io.Reader, size int64) error {
	start := time.Now()
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(path.Prefix()),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	metrics.RecordProviderOp("put", time.Since(start), err)
	return classify("put", err)
}
