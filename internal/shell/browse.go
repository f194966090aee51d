package shell

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/bucketboss/bucketboss/internal/cloudpath"
	"github.com/bucketboss/bucketboss/internal/provider"
)

const (
	treeDefaultDepth = 3
	findDefaultDepth = 5
	duDefaultDepth   = 1
)

// walk calls fn with the listing of dir and of every subdirectory up
// to depth levels below it. Listings come from the cache when fresh.
// A subdirectory that fails to list is reported and skipped so one
// denied prefix does not hide the rest; only a failure on dir itself
// is returned.
func (s *Shell) walk(ctx context.Context, dir cloudpath.Path, depth int, fn func(dir cloudpath.Path, l provider.Listing)) error {
	listing, err := s.listing(ctx, dir)
	if err != nil {
		return err
	}
	fn(dir, listing)
	if depth <= 0 {
		return nil
	}
	for _, d := range listing.Dirs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sub := dir.Child(d, true)
		if err := s.walk(ctx, sub, depth-1, fn); err != nil {
			if ctx.Err() != nil {
				return err
			}
			fmt.Fprintf(s.out, "%s %s: %v\n", errStyle.Render("skipped"), sub.Prefix(), err)
		}
	}
	return nil
}

// parseDepth consumes "--depth N" and at most one positional path
// argument, returning the remainder with the given defaults.
func parseDepth(args []string, def int) (pathArg string, depth int, err error) {
	depth = def
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--depth" && i+1 < len(args):
			n, err := strconv.Atoi(args[i+1])
			if err != nil || n < 0 {
				return "", 0, fmt.Errorf("invalid depth: %s", args[i+1])
			}
			depth = n
			i++
		case strings.HasPrefix(args[i], "-"):
			return "", 0, fmt.Errorf("unknown option: %s", args[i])
		case pathArg == "":
			pathArg = args[i]
		default:
			return "", 0, fmt.Errorf("unexpected argument: %s", args[i])
		}
	}
	return pathArg, depth, nil
}

func (s *Shell) cmdTree(ctx context.Context, args []string) error {
	pathArg, depth, err := parseDepth(args, treeDefaultDepth)
	if err != nil {
		return err
	}
	dir, err := cloudpath.Resolve(s.cwd, pathArg, true)
	if err != nil {
		return err
	}

	fmt.Fprintln(s.out, dirStyle.Render(s.provider.Label()+dir.Prefix()))
	dirs, files, err := s.renderTree(ctx, dir, depth, "")
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "\n%d directories, %d files\n", dirs, files)
	return nil
}

// renderTree prints one level of the tree and recurses into
// subdirectories while depth allows. An unreadable subdirectory is
// marked in place; the rest of the tree still renders.
func (s *Shell) renderTree(ctx context.Context, dir cloudpath.Path, depth int, linePrefix string) (dirCount, fileCount int, err error) {
	listing, err := s.listing(ctx, dir)
	if err != nil {
		return 0, 0, err
	}

	type entry struct {
		name  string
		isDir bool
	}
	entries := make([]entry, 0, len(listing.Dirs)+len(listing.Files))
	for _, d := range listing.Dirs {
		entries = append(entries, entry{d, true})
	}
	for _, f := range listing.Files {
		entries = append(entries, entry{f.Name, false})
	}

	for i, e := range entries {
		if ctx.Err() != nil {
			return dirCount, fileCount, ctx.Err()
		}
		connector, extension := "├── ", "│   "
		if i == len(entries)-1 {
			connector, extension = "└── ", "    "
		}

		if !e.isDir {
			fileCount++
			fmt.Fprintln(s.out, linePrefix+connector+e.name)
			continue
		}

		dirCount++
		fmt.Fprintln(s.out, linePrefix+connector+formatDirEntry(e.name))
		if depth > 1 {
			d, f, err := s.renderTree(ctx, dir.Child(e.name, true), depth-1, linePrefix+extension)
			dirCount += d
			fileCount += f
			if err != nil {
				if ctx.Err() != nil {
					return dirCount, fileCount, err
				}
				fmt.Fprintln(s.out, linePrefix+extension+mutedStyle.Render("(unreadable)"))
			}
		}
	}
	return dirCount, fileCount, nil
}

func (s *Shell) cmdFind(ctx context.Context, args []string) error {
	var pattern, pathArg string
	depth := findDefaultDepth
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--path" && i+1 < len(args):
			pathArg = args[i+1]
			i++
		case args[i] == "--depth" && i+1 < len(args):
			n, err := strconv.Atoi(args[i+1])
			if err != nil || n < 0 {
				return fmt.Errorf("invalid depth: %s", args[i+1])
			}
			depth = n
			i++
		case strings.HasPrefix(args[i], "-"):
			return fmt.Errorf("unknown option: %s", args[i])
		case pattern == "":
			pattern = args[i]
		default:
			return fmt.Errorf("usage: find <pattern> [--path prefix] [--depth N]")
		}
	}
	if pattern == "" {
		return fmt.Errorf("usage: find <pattern> [--path prefix] [--depth N]")
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	dir, err := cloudpath.Resolve(s.cwd, pathArg, true)
	if err != nil {
		return err
	}

	matches, scanned := 0, 0
	err = s.walk(ctx, dir, depth, func(d cloudpath.Path, l provider.Listing) {
		for _, f := range l.Files {
			scanned++
			if ok, _ := path.Match(pattern, f.Name); !ok {
				continue
			}
			date := ""
			if !f.LastModified.IsZero() {
				date = f.LastModified.Format("2006-01-02")
			}
			fmt.Fprintf(s.out, "  %-55s %9s  %s\n", d.Prefix()+f.Name, humanSize(f.Size), date)
			matches++
		}
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "found %d match(es) out of %d objects scanned\n", matches, scanned)
	return nil
}

func (s *Shell) cmdDu(ctx context.Context, args []string) error {
	pathArg, depth, err := parseDepth(args, duDefaultDepth)
	if err != nil {
		return err
	}
	dir, err := cloudpath.Resolve(s.cwd, pathArg, true)
	if err != nil {
		return err
	}

	// Attribute every file seen within the depth bound to the
	// immediate child of dir it lives under; "." collects files in
	// dir itself.
	base := len(dir.Segments)
	sizes := make(map[string]int64)
	counts := make(map[string]int)
	err = s.walk(ctx, dir, depth, func(d cloudpath.Path, l provider.Listing) {
		top := "."
		if len(d.Segments) > base {
			top = d.Segments[base] + cloudpath.Separator
		}
		for _, f := range l.Files {
			sizes[top] += f.Size
			counts[top]++
		}
	})
	if err != nil {
		return err
	}
	if len(sizes) == 0 {
		fmt.Fprintln(s.out, mutedStyle.Render("no objects found"))
		return nil
	}

	names := make([]string, 0, len(sizes))
	for name := range sizes {
		names = append(names, name)
	}
	sort.Strings(names)

	var total int64
	var objects int
	for _, name := range names {
		fmt.Fprintf(s.out, "%10s  %6d objects  %s\n", humanSize(sizes[name]), counts[name], name)
		total += sizes[name]
		objects += counts[name]
	}
	fmt.Fprintf(s.out, "%10s  %6d objects  total (depth %d)\n", humanSize(total), objects, depth)
	return nil
}

func (s *Shell) cmdInfo(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: info <file>")
	}
	reader, err := s.reader()
	if err != nil {
		return err
	}
	file, err := cloudpath.Resolve(s.cwd, args[0], false)
	if err != nil {
		return err
	}
	if file.Dir || file.IsRoot() {
		return fmt.Errorf("not a file: %s", args[0])
	}

	opctx, cancel := s.opCtx(ctx)
	defer cancel()
	meta, err := reader.HeadObject(opctx, file)
	if err != nil {
		return err
	}

	fmt.Fprintf(s.out, "  key:           %s\n", s.provider.Label()+file.Prefix())
	fmt.Fprintf(s.out, "  size:          %s (%d bytes)\n", humanSize(meta.Size), meta.Size)
	if !meta.LastModified.IsZero() {
		fmt.Fprintf(s.out, "  last modified: %s\n", meta.LastModified.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(s.out, "  content type:  %s\n", meta.ContentType)
	return nil
}
