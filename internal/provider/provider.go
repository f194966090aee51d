// Package provider defines the storage capability surface consumed by
// the shell core. Implementations live in subpackages (one per
// backend); the core holds only the interfaces defined here.
package provider

import (
	"context"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/bucketboss/bucketboss/internal/cloudpath"
)

// Object is one file entry in a listing.
type Object struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	Ext          string    `json:"ext,omitempty"`
}

// Listing is the set of immediate children under a prefix: child
// directory names and file entries. Order is not significant; providers
// return both name-sorted for stable rendering.
type Listing struct {
	Dirs  []string `json:"dirs"`
	Files []Object `json:"files"`
}

// Empty reports whether the listing has no entries.
func (l Listing) Empty() bool {
	return len(l.Dirs) == 0 && len(l.Files) == 0
}

// SortFiles orders files by the given key: "name", "date" (newest
// first) or "size" (largest first). Unknown keys sort by name.
func (l Listing) SortFiles(key string) {
	switch key {
	case "date":
		sort.SliceStable(l.Files, func(i, j int) bool {
			return l.Files[i].LastModified.After(l.Files[j].LastModified)
		})
	case "size":
		sort.SliceStable(l.Files, func(i, j int) bool {
			return l.Files[i].Size > l.Files[j].Size
		})
	default:
		sort.SliceStable(l.Files, func(i, j int) bool {
			return l.Files[i].Name < l.Files[j].Name
		})
	}
}

// BucketStats is cheap bucket-level metadata.
type BucketStats struct {
	Bucket      string
	Region      string
	CreatedAt   time.Time
	BucketCount int // multi-bucket sessions only
}

// ObjectMeta is per-object metadata from a head call.
type ObjectMeta struct {
	Size         int64
	LastModified time.Time
	ContentType  string
}

// Provider is the capability every storage backend must expose. The
// core stays correct against any implementation, including slow,
// rate-limited or intermittently failing ones; callers bound every
// call with a context deadline.
type Provider interface {
	// Label returns the prompt prefix, e.g. "s3://bucket/".
	Label() string

	// Ping verifies the target is reachable and readable.
	Ping(ctx context.Context) error

	// List enumerates the immediate children under a directory path.
	List(ctx context.Context, path cloudpath.Path) (Listing, error)

	// Stat fetches bucket-level metadata.
	Stat(ctx context.Context) (BucketStats, error)
}

// ObjectReader is implemented by providers that can read object bodies.
// The shell detects it via type assertion; a listing-only provider
// still browses.
type ObjectReader interface {
	GetObject(ctx context.Context, path cloudpath.Path) (io.ReadCloser, error)
	ReadRange(ctx context.Context, path cloudpath.Path, n int64) ([]byte, error)
	HeadObject(ctx context.Context, path cloudpath.Path) (ObjectMeta, error)
}

// ObjectWriter is implemented by providers that can write objects.
type ObjectWriter interface {
	PutObject(ctx context.Context, path cloudpath.Path, body io.Reader, size int64) error
}

// Ext returns the lowercased filename extension including the dot,
// or "" when there is none.
func Ext(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return ""
	}
	return strings.ToLower(name[i:])
}
