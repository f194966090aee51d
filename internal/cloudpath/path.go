// Package cloudpath canonicalizes object-store paths.
//
// A Path is the normalized, bucket-qualified representation of a
// location. Its Key is the sole key used by the listing cache, so every
// component that talks about "where" goes through this package.
package cloudpath

import (
	"errors"
	"fmt"
	"strings"
)

// Separator is the path separator for all providers.
const Separator = "/"

// scheme prefixes accepted as fully qualified input.
const uriScheme = "s3://"

// ErrInvalidPath is returned when an input cannot be canonicalized,
// e.g. ".." that would escape the bucket root.
var ErrInvalidPath = errors.New("invalid path")

// Path is a canonical location: a bucket, an ordered list of non-empty
// segments, and whether the location names a directory. Values are
// immutable; methods return copies.
type Path struct {
	Bucket   string
	Segments []string
	Dir      bool
}

// Root returns the root directory of a bucket. An empty bucket names
// the cross-bucket root of a multi-bucket session.
func Root(bucket string) Path {
	return Path{Bucket: bucket, Dir: true}
}

// Key renders the canonical cache-key string. The bucket is always
// part of the key so entries from different buckets never collide.
// Directories carry a trailing separator.
func (p Path) Key() string {
	var b strings.Builder
	b.WriteString(p.Bucket)
	b.WriteString(Separator)
	b.WriteString(strings.Join(p.Segments, Separator))
	if p.Dir && len(p.Segments) > 0 {
		b.WriteString(Separator)
	}
	return b.String()
}

// Prefix renders the provider-facing key prefix, without the bucket.
// The root prefix is the empty string.
func (p Path) Prefix() string {
	if len(p.Segments) == 0 {
		return ""
	}
	s := strings.Join(p.Segments, Separator)
	if p.Dir {
		s += Separator
	}
	return s
}

// IsRoot reports whether p is a bucket (or session) root.
func (p Path) IsRoot() bool {
	return len(p.Segments) == 0
}

// Base returns the last segment, or "" at the root.
func (p Path) Base() string {
	if len(p.Segments) == 0 {
		return ""
	}
	return p.Segments[len(p.Segments)-1]
}

// Parent returns the containing directory. The root is its own parent.
func (p Path) Parent() Path {
	if len(p.Segments) == 0 {
		return Root(p.Bucket)
	}
	segs := make([]string, len(p.Segments)-1)
	copy(segs, p.Segments[:len(p.Segments)-1])
	return Path{Bucket: p.Bucket, Segments: segs, Dir: true}
}

// Child returns the path for a named entry inside directory p.
func (p Path) Child(name string, dir bool) Path {
	segs := make([]string, len(p.Segments), len(p.Segments)+1)
	copy(segs, p.Segments)
	segs = append(segs, name)
	return Path{Bucket: p.Bucket, Segments: segs, Dir: dir}
}

// Equal reports whether two paths canonicalize to the same location.
func (p Path) Equal(q Path) bool {
	return p.Key() == q.Key() && p.Dir == q.Dir
}

func (p Path) String() string {
	s := Separator + strings.Join(p.Segments, Separator)
	if p.Dir && len(p.Segments) > 0 {
		s += Separator
	}
	return s
}

// Resolve canonicalizes input relative to current. Input starting with
// the separator (or a fully qualified s3:// URI) is absolute from the
// bucket root, anything else is relative. "." is dropped, ".." pops a
// segment and fails with ErrInvalidPath at the root, consecutive
// separators collapse. The result is a directory iff the input ends
// with a separator, dirMode is set, or the result is a root.
//
// Resolve is pure: no I/O, no side effects, safe from any goroutine.
func Resolve(current Path, input string, dirMode bool) (Path, error) {
	bucket := current.Bucket

	if rest, ok := strings.CutPrefix(input, uriScheme); ok {
		b, path, _ := strings.Cut(rest, Separator)
		bucket = b
		current = Root(b)
		input = Separator + path
	}

	if input == "" {
		out := clone(current)
		out.Dir = current.Dir || dirMode
		return out, nil
	}

	var segs []string
	if !strings.HasPrefix(input, Separator) {
		segs = append(segs, current.Segments...)
	}

	for _, part := range strings.Split(input, Separator) {
		switch part {
		case "", ".":
			// empty parts collapse repeated separators
		case "..":
			if len(segs) == 0 {
				return Path{}, fmt.Errorf("%w: %q escapes the bucket root", ErrInvalidPath, input)
			}
			segs = segs[:len(segs)-1]
		default:
			if strings.ContainsRune(part, 0) {
				return Path{}, fmt.Errorf("%w: segment contains NUL", ErrInvalidPath)
			}
			segs = append(segs, part)
		}
	}

	dir := dirMode || strings.HasSuffix(input, Separator) || len(segs) == 0
	return Path{Bucket: bucket, Segments: segs, Dir: dir}, nil
}

func clone(p Path) Path {
	segs := make([]string, len(p.Segments))
	copy(segs, p.Segments)
	return Path{Bucket: p.Bucket, Segments: segs, Dir: p.Dir}
}
