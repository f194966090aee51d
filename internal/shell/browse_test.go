package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/bucketboss/bucketboss/internal/cache"
	"github.com/bucketboss/bucketboss/internal/cloudpath"
	"github.com/bucketboss/bucketboss/internal/config"
	"github.com/bucketboss/bucketboss/internal/provider"
)

// fakeProvider serves listings and object metadata from static maps
// keyed by canonical path keys.
type fakeProvider struct {
	tree  map[string]provider.Listing
	meta  map[string]provider.ObjectMeta
	fail  map[string]error
	calls map[string]int
}

func newBrowseFake(tree map[string]provider.Listing) *fakeProvider {
	return &fakeProvider{
		tree:  tree,
		meta:  make(map[string]provider.ObjectMeta),
		fail:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *fakeProvider) Label() string                  { return "fake://bkt/" }
func (f *fakeProvider) Ping(ctx context.Context) error { return nil }

func (f *fakeProvider) List(ctx context.Context, p cloudpath.Path) (provider.Listing, error) {
	key := p.Key()
	f.calls[key]++
	if err, ok := f.fail[key]; ok {
		return provider.Listing{}, err
	}
	l, ok := f.tree[key]
	if !ok {
		return provider.Listing{}, provider.NewError("list", provider.KindNotFound, errors.New("no such prefix"))
	}
	return l, nil
}

func (f *fakeProvider) Stat(ctx context.Context) (provider.BucketStats, error) {
	return provider.BucketStats{Bucket: "bkt"}, nil
}

func (f *fakeProvider) GetObject(ctx context.Context, p cloudpath.Path) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("body")), nil
}

func (f *fakeProvider) ReadRange(ctx context.Context, p cloudpath.Path, n int64) ([]byte, error) {
	return []byte("body"), nil
}

func (f *fakeProvider) HeadObject(ctx context.Context, p cloudpath.Path) (provider.ObjectMeta, error) {
	m, ok := f.meta[p.Key()]
	if !ok {
		return provider.ObjectMeta{}, provider.NewError("head", provider.KindNotFound, errors.New("no such key"))
	}
	return m, nil
}

func file(name string, size int64) provider.Object {
	return provider.Object{
		Name:         name,
		Size:         size,
		LastModified: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Ext:          provider.Ext(name),
	}
}

// browseTree is three levels deep with files at every level.
func browseTree() map[string]provider.Listing {
	return map[string]provider.Listing{
		"bkt/": {
			Dirs:  []string{"data", "logs"},
			Files: []provider.Object{file("readme.md", 10)},
		},
		"bkt/data/": {
			Dirs:  []string{"deep"},
			Files: []provider.Object{file("a.csv", 100)},
		},
		"bkt/data/deep/": {
			Files: []provider.Object{file("b.csv", 1000)},
		},
		"bkt/logs/": {
			Files: []provider.Object{file("x.log", 5)},
		},
	}
}

func newTestShell(fp provider.Provider) (*Shell, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &Shell{
		provider: fp,
		cache:    cache.New(cache.Config{TTL: time.Minute}, "test"),
		cfg:      &config.Config{},
		cwd:      cloudpath.Root("bkt"),
		out:      out,
	}, out
}

func TestTree_DepthBound(t *testing.T) {
	fp := newBrowseFake(browseTree())
	s, out := newTestShell(fp)

	if err := s.cmdTree(context.Background(), []string{"--depth", "1"}); err != nil {
		t.Fatalf("tree: %v", err)
	}
	got := out.String()
	for _, want := range []string{"data", "logs", "readme.md", "└──"} {
		if !strings.Contains(got, want) {
			t.Errorf("tree output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "a.csv") {
		t.Errorf("tree descended past depth 1:\n%s", got)
	}
	if !strings.Contains(got, "2 directories, 1 files") {
		t.Errorf("tree summary wrong:\n%s", got)
	}
	if fp.calls["bkt/data/"] != 0 {
		t.Error("depth-1 tree listed a subdirectory")
	}
}

func TestTree_RendersNestedLevels(t *testing.T) {
	fp := newBrowseFake(browseTree())
	s, out := newTestShell(fp)

	if err := s.cmdTree(context.Background(), []string{"--depth", "2"}); err != nil {
		t.Fatalf("tree: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "a.csv") || !strings.Contains(got, "x.log") {
		t.Errorf("depth-2 tree missing second level:\n%s", got)
	}
	if strings.Contains(got, "b.csv") {
		t.Errorf("depth-2 tree descended to third level:\n%s", got)
	}
	if !strings.Contains(got, "3 directories, 3 files") {
		t.Errorf("tree summary wrong:\n%s", got)
	}
}

func TestFind_MatchesAcrossLevels(t *testing.T) {
	fp := newBrowseFake(browseTree())
	s, out := newTestShell(fp)

	if err := s.cmdFind(context.Background(), []string{"*.csv"}); err != nil {
		t.Fatalf("find: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "data/a.csv") || !strings.Contains(got, "data/deep/b.csv") {
		t.Errorf("find missing matches:\n%s", got)
	}
	if !strings.Contains(got, "found 2 match(es) out of 4 objects scanned") {
		t.Errorf("find summary wrong:\n%s", got)
	}
}

func TestFind_DepthBound(t *testing.T) {
	fp := newBrowseFake(browseTree())
	s, out := newTestShell(fp)

	if err := s.cmdFind(context.Background(), []string{"*.csv", "--depth", "1"}); err != nil {
		t.Fatalf("find: %v", err)
	}
	got := out.String()
	if strings.Contains(got, "b.csv") {
		t.Errorf("find descended past depth 1:\n%s", got)
	}
	if !strings.Contains(got, "found 1 match(es)") {
		t.Errorf("find summary wrong:\n%s", got)
	}
}

func TestFind_SkipsUnreadableSubdir(t *testing.T) {
	fp := newBrowseFake(browseTree())
	fp.fail["bkt/data/"] = provider.NewError("list", provider.KindAccessDenied, errors.New("denied"))
	s, out := newTestShell(fp)

	if err := s.cmdFind(context.Background(), []string{"*"}); err != nil {
		t.Fatalf("find should not abort on a denied subdirectory: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "skipped") {
		t.Errorf("denied subdirectory not reported:\n%s", got)
	}
	if !strings.Contains(got, "x.log") {
		t.Errorf("sibling of denied subdirectory not scanned:\n%s", got)
	}
}

func TestDu_AggregatesPerChild(t *testing.T) {
	fp := newBrowseFake(browseTree())
	s, out := newTestShell(fp)

	// Depth 2 reaches data/deep, so b.csv counts toward data/.
	if err := s.cmdDu(context.Background(), []string{"--depth", "2"}); err != nil {
		t.Fatalf("du: %v", err)
	}
	got := out.String()
	for _, want := range [][]string{
		{".", "10 B", "1 objects"},
		{"data/", "1.1 KiB", "2 objects"},
		{"logs/", "5 B", "1 objects"},
		{"total", "1.1 KiB", "4 objects"},
	} {
		if !duLineMatches(got, want) {
			t.Errorf("du output missing line with %v:\n%s", want, got)
		}
	}
}

// duLineMatches reports whether some output line contains every field.
func duLineMatches(output string, fields []string) bool {
	for _, line := range strings.Split(output, "\n") {
		ok := true
		for _, f := range fields {
			if !strings.Contains(line, f) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func TestDu_DefaultDepthStopsAtChildren(t *testing.T) {
	fp := newBrowseFake(browseTree())
	s, out := newTestShell(fp)

	if err := s.cmdDu(context.Background(), nil); err != nil {
		t.Fatalf("du: %v", err)
	}
	got := out.String()
	// Depth 1 sees data/a.csv but not data/deep/b.csv.
	if !duLineMatches(got, []string{"data/", "100 B", "1 objects"}) {
		t.Errorf("du depth 1 child total wrong:\n%s", got)
	}
	if fp.calls["bkt/data/deep/"] != 0 {
		t.Error("du depth 1 listed a grandchild directory")
	}
}

func TestInfo_RendersMetadata(t *testing.T) {
	fp := newBrowseFake(browseTree())
	fp.meta["bkt/report.txt"] = provider.ObjectMeta{
		Size:         1536,
		LastModified: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		ContentType:  "text/plain",
	}
	s, out := newTestShell(fp)

	if err := s.cmdInfo(context.Background(), []string{"report.txt"}); err != nil {
		t.Fatalf("info: %v", err)
	}
	got := out.String()
	for _, want := range []string{
		"fake://bkt/report.txt",
		"1.5 KiB (1536 bytes)",
		"2026-03-01",
		"text/plain",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("info output missing %q:\n%s", want, got)
		}
	}
}

func TestBrowse_ListingsComeFromCache(t *testing.T) {
	fp := newBrowseFake(browseTree())
	s, _ := newTestShell(fp)

	ctx := context.Background()
	if err := s.cmdTree(ctx, []string{"--depth", "2"}); err != nil {
		t.Fatalf("tree: %v", err)
	}
	if err := s.cmdFind(ctx, []string{"*.csv", "--depth", "1"}); err != nil {
		t.Fatalf("find: %v", err)
	}
	// tree warmed root, data/ and logs/; find reuses them.
	for _, key := range []string{"bkt/", "bkt/data/", "bkt/logs/"} {
		if fp.calls[key] != 1 {
			t.Errorf("prefix %q listed %d times, want 1 (cache reuse)", key, fp.calls[key])
		}
	}
}
