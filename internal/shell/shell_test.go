package shell

import (
	"reflect"
	"testing"
	"time"

	"github.com/bucketboss/bucketboss/internal/cache"
	"github.com/bucketboss/bucketboss/internal/cloudpath"
	"github.com/bucketboss/bucketboss/internal/provider"
)

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"ls", []string{"ls"}},
		{"ls -l data/", []string{"ls", "-l", "data/"}},
		{"cat 'my file.txt'", []string{"cat", "my file.txt"}},
		{`cat "my file.txt"`, []string{"cat", "my file.txt"}},
		{`put local "remote dir/"`, []string{"put", "local", "remote dir/"}},
		{"cd ''", []string{"cd", ""}},
		{"a  \t b", []string{"a", "b"}},
	}
	for _, tt := range tests {
		got, err := splitArgs(tt.line)
		if err != nil {
			t.Fatalf("splitArgs(%q): %v", tt.line, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitArgs(%q) = %#v, want %#v", tt.line, got, tt.want)
		}
	}
}

func TestSplitArgs_UnterminatedQuote(t *testing.T) {
	if _, err := splitArgs("cat 'oops"); err == nil {
		t.Fatal("expected error for unterminated quote")
	}
}

func TestHumanSize(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 << 20, "5.0 MiB"},
		{3 << 30, "3.0 GiB"},
	}
	for _, tt := range tests {
		if got := humanSize(tt.n); got != tt.want {
			t.Errorf("humanSize(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestCompleter_CachedPaths(t *testing.T) {
	store := cache.New(cache.Config{TTL: time.Minute}, "test")
	root := cloudpath.Root("bkt")
	store.Put(root, provider.Listing{
		Dirs: []string{"data", "docs"},
		Files: []provider.Object{
			{Name: "readme.md"},
			{Name: "report.csv"},
		},
	})

	s := &Shell{cache: store, cwd: root}
	c := &completer{shell: s}

	line := []rune("ls d")
	got, length := c.Do(line, len(line))
	if length != 1 {
		t.Fatalf("length = %d, want 1", length)
	}
	want := []string{"ata/", "ocs/"}
	if len(got) != len(want) {
		t.Fatalf("completions = %d, want %d", len(got), len(want))
	}
	for i, w := range want {
		if string(got[i]) != w {
			t.Errorf("completion[%d] = %q, want %q", i, string(got[i]), w)
		}
	}
}

func TestCompleter_CdOnlyDirs(t *testing.T) {
	store := cache.New(cache.Config{TTL: time.Minute}, "test")
	root := cloudpath.Root("bkt")
	store.Put(root, provider.Listing{
		Dirs:  []string{"reports"},
		Files: []provider.Object{{Name: "readme.md"}},
	})

	c := &completer{shell: &Shell{cache: store, cwd: root}}
	line := []rune("cd re")
	got, _ := c.Do(line, len(line))
	if len(got) != 1 || string(got[0]) != "ports/" {
		t.Fatalf("cd completions = %v, want only reports/", got)
	}
}

func TestCompleter_UncachedDirIsSilent(t *testing.T) {
	store := cache.New(cache.Config{TTL: time.Minute}, "test")
	c := &completer{shell: &Shell{cache: store, cwd: cloudpath.Root("bkt")}}
	line := []rune("ls data/x")
	got, _ := c.Do(line, len(line))
	if got != nil {
		t.Fatalf("expected no completions for uncached prefix, got %v", got)
	}
}

func TestCompleter_CommandNames(t *testing.T) {
	c := &completer{shell: &Shell{}}
	line := []rune("pw")
	got, length := c.Do(line, len(line))
	if length != 2 {
		t.Fatalf("length = %d, want 2", length)
	}
	if len(got) != 1 || string(got[0]) != "d" {
		t.Fatalf("completions = %v, want pwd suffix", got)
	}
}
