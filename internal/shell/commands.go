package shell

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/bucketboss/bucketboss/internal/cloudpath"
	"github.com/bucketboss/bucketboss/internal/crawler"
	"github.com/bucketboss/bucketboss/internal/provider"
)

const (
	catSizeWarning = 1 << 20  // refuse cat above this without -f
	peekDefault    = 2048     // bytes
	peekMax        = 10 << 20 // hard ceiling for peek
)

func (s *Shell) commands() map[string]command {
	return map[string]command{
		"ls":          {s.cmdLs, "ls [-l] [--sort=name|date|size] [path]", "list objects under a prefix"},
		"cd":          {s.cmdCd, "cd <path>", "change the current prefix"},
		"pwd":         {s.cmdPwd, "pwd", "print the current location"},
		"tree":        {s.cmdTree, "tree [path] [--depth N]", "show a directory tree"},
		"find":        {s.cmdFind, "find <pattern> [--path prefix] [--depth N]", "find objects by name pattern"},
		"du":          {s.cmdDu, "du [path] [--depth N]", "show size totals per subdirectory"},
		"info":        {s.cmdInfo, "info <file>", "show full metadata for an object"},
		"cat":         {s.cmdCat, "cat [-f] <file>", "print a text object"},
		"peek":        {s.cmdPeek, "peek <file> [bytes]", "print the first bytes of an object"},
		"get":         {s.cmdGet, "get <remote> [local]", "download objects (wildcards allowed)"},
		"put":         {s.cmdPut, "put <local> [remote]", "upload a local file"},
		"stats":       {s.cmdStats, "stats", "show bucket stats and cache summary"},
		"crawlstatus": {s.cmdCrawlStatus, "crawlstatus", "show background crawl progress"},
		"recrawl":     {s.cmdRecrawl, "recrawl", "restart the background crawl"},
		"refresh":     {s.cmdRefresh, "refresh [path]", "invalidate and refetch a listing"},
		"clear":       {s.cmdClear, "clear", "clear the screen"},
		"help":        {s.cmdHelp, "help", "show this help"},
		"exit":        {s.cmdExit, "exit", "leave the shell"},
		"quit":        {s.cmdExit, "quit", "leave the shell"},
	}
}

func (s *Shell) cmdLs(ctx context.Context, args []string) error {
	detailed := false
	sortKey := "name"
	for len(args) > 0 && strings.HasPrefix(args[0], "-") {
		switch {
		case args[0] == "-l":
			detailed = true
		case strings.HasPrefix(args[0], "--sort="):
			sortKey = strings.TrimPrefix(args[0], "--sort=")
			if sortKey != "name" && sortKey != "date" && sortKey != "size" {
				return fmt.Errorf("invalid sort key %q (name|date|size)", sortKey)
			}
		default:
			return fmt.Errorf("unknown option: %s", args[0])
		}
		args = args[1:]
	}
	arg := strings.Join(args, " ")

	// A non-slash argument may name a single file.
	if arg != "" && !strings.HasSuffix(arg, cloudpath.Separator) {
		file, err := cloudpath.Resolve(s.cwd, arg, false)
		if err != nil {
			return err
		}
		listing, err := s.listing(ctx, file.Parent())
		if err == nil {
			for _, f := range listing.Files {
				if f.Name == file.Base() {
					fmt.Fprintln(s.out, formatFileEntry(f, detailed))
					return nil
				}
			}
		}
	}

	dir, err := cloudpath.Resolve(s.cwd, arg, true)
	if err != nil {
		return err
	}
	listing, err := s.listing(ctx, dir)
	if err != nil {
		return err
	}
	if listing.Empty() {
		fmt.Fprintln(s.out, mutedStyle.Render("no objects found"))
		return nil
	}

	listing.SortFiles(sortKey)
	for _, d := range listing.Dirs {
		fmt.Fprintln(s.out, formatDirEntry(d))
	}
	for _, f := range listing.Files {
		fmt.Fprintln(s.out, formatFileEntry(f, detailed))
	}
	return nil
}

func (s *Shell) cmdCd(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: cd <path>")
	}
	target, err := cloudpath.Resolve(s.cwd, args[0], true)
	if err != nil {
		return err
	}
	if target.IsRoot() {
		s.setCwd(target)
		return nil
	}

	// Verify the directory exists before moving into it.
	listing, err := s.listing(ctx, target.Parent())
	if err != nil {
		return err
	}
	name := target.Base()
	for _, d := range listing.Dirs {
		if d == name {
			s.setCwd(target)
			return nil
		}
	}
	return fmt.Errorf("directory not found: %s", args[0])
}

func (s *Shell) cmdPwd(ctx context.Context, args []string) error {
	fmt.Fprintln(s.out, s.provider.Label()+s.cwd.Prefix())
	return nil
}

func (s *Shell) cmdCat(ctx context.Context, args []string) error {
	force := false
	if len(args) > 0 && args[0] == "-f" {
		force = true
		args = args[1:]
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: cat [-f] <file>")
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

	if !force {
		if meta, err := reader.HeadObject(opctx, file); err == nil && meta.Size > catSizeWarning {
			return fmt.Errorf("file is large (%s); use 'cat -f' to print anyway or 'peek' for a preview",
				humanSize(meta.Size))
		}
	}

	body, err := reader.GetObject(opctx, file)
	if err != nil {
		return err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read object: %w", err)
	}
	if !utf8.Valid(data) {
		return fmt.Errorf("object is not valid text; try 'peek' for a hex preview")
	}
	fmt.Fprintln(s.out, string(data))
	return nil
}

func (s *Shell) cmdPeek(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: peek <file> [bytes]")
	}
	size := int64(peekDefault)
	if len(args) == 2 {
		n, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("bytes must be an integer")
		}
		if n <= 0 || n > peekMax {
			return fmt.Errorf("bytes must be between 1 and %d", peekMax)
		}
		size = n
	}
	reader, err := s.reader()
	if err != nil {
		return err
	}
	file, err := cloudpath.Resolve(s.cwd, args[0], false)
	if err != nil {
		return err
	}

	opctx, cancel := s.opCtx(ctx)
	defer cancel()
	data, err := reader.ReadRange(opctx, file, size)
	if err != nil {
		return err
	}

	fmt.Fprintln(s.out, titleStyle.Render(fmt.Sprintf("--- first %d bytes of %s ---", len(data), file.Prefix())))
	if utf8.Valid(data) {
		fmt.Fprintln(s.out, string(data))
	} else {
		fmt.Fprint(s.out, hex.Dump(data))
	}
	return nil
}

func (s *Shell) cmdGet(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: get <remote> [local]")
	}
	reader, err := s.reader()
	if err != nil {
		return err
	}
	remote := args[0]
	localBase := "."
	if len(args) == 2 {
		localBase = args[1]
	}

	if strings.ContainsAny(remote, "*?[") {
		return s.getWildcard(ctx, reader, remote, localBase)
	}

	file, err := cloudpath.Resolve(s.cwd, remote, false)
	if err != nil {
		return err
	}
	local := localBase
	if info, err := os.Stat(localBase); err == nil && info.IsDir() {
		local = filepath.Join(localBase, file.Base())
	} else if localBase == "." {
		local = file.Base()
	}
	if err := s.download(ctx, reader, file, local); err != nil {
		return err
	}
	fmt.Fprintln(s.out, okStyle.Render("downloaded ")+local)
	return nil
}

func (s *Shell) getWildcard(ctx context.Context, reader provider.ObjectReader, pattern, localBase string) error {
	dirPart, glob := "", pattern
	if i := strings.LastIndex(pattern, cloudpath.Separator); i >= 0 {
		dirPart, glob = pattern[:i+1], pattern[i+1:]
	}
	dir, err := cloudpath.Resolve(s.cwd, dirPart, true)
	if err != nil {
		return err
	}
	listing, err := s.listing(ctx, dir)
	if err != nil {
		return err
	}

	var matches []provider.Object
	for _, f := range listing.Files {
		ok, err := path.Match(glob, f.Name)
		if err != nil {
			return fmt.Errorf("bad pattern %q: %w", glob, err)
		}
		if ok {
			matches = append(matches, f)
		}
	}
	if len(matches) == 0 {
		return fmt.Errorf("no matches for pattern: %s", pattern)
	}

	if err := os.MkdirAll(localBase, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", localBase, err)
	}

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.CrawlWorkers)
	for _, f := range matches {
		f := f
		g.Go(func() error {
			file := dir.Child(f.Name, false)
			local := filepath.Join(localBase, f.Name)
			if err := s.download(ctx, reader, file, local); err != nil {
				fmt.Fprintf(s.out, "%s %s: %v\n", errStyle.Render("failed"), f.Name, err)
				return nil // keep downloading the rest
			}
			fmt.Fprintln(s.out, okStyle.Render("downloaded ")+local)
			return nil
		})
	}
	g.Wait()
	fmt.Fprintf(s.out, "downloaded %d file(s)\n", len(matches))
	return nil
}

func (s *Shell) download(ctx context.Context, reader provider.ObjectReader, file cloudpath.Path, local string) error {
	opctx, cancel := s.opCtx(ctx)
	defer cancel()

	body, err := reader.GetObject(opctx, file)
	if err != nil {
		return err
	}
	defer body.Close()

	tmp := local + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", local, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, local)
}

func (s *Shell) cmdPut(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: put <local> [remote]")
	}
	writer, err := s.writer()
	if err != nil {
		return err
	}
	local := args[0]
	remoteArg := filepath.Base(local)
	if len(args) == 2 {
		remoteArg = args[1]
		if strings.HasSuffix(remoteArg, cloudpath.Separator) {
			remoteArg += filepath.Base(local)
		}
	}
	remote, err := cloudpath.Resolve(s.cwd, remoteArg, false)
	if err != nil {
		return err
	}

	f, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("open %s: %w", local, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	opctx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := writer.PutObject(opctx, remote, f, info.Size()); err != nil {
		return err
	}

	// The parent listing no longer reflects remote state.
	s.cache.Invalidate(remote.Parent())
	fmt.Fprintf(s.out, "%s%s (%s)\n", okStyle.Render("uploaded "), remote.Prefix(), humanSize(info.Size()))
	return nil
}

func (s *Shell) cmdStats(ctx context.Context, args []string) error {
	rec := s.stats.Snapshot()
	fmt.Fprintln(s.out, titleStyle.Render("bucket stats"))
	switch {
	case rec.Err != "":
		fmt.Fprintf(s.out, "  %s %s\n", errStyle.Render("unavailable:"), rec.Err)
	case !rec.Fetched:
		fmt.Fprintln(s.out, mutedStyle.Render("  collection in progress..."))
	default:
		if rec.Bucket != "" {
			fmt.Fprintf(s.out, "  bucket:  %s\n", rec.Bucket)
		}
		if rec.Region != "" {
			fmt.Fprintf(s.out, "  region:  %s\n", rec.Region)
		}
		if !rec.CreatedAt.IsZero() {
			fmt.Fprintf(s.out, "  created: %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05 MST"))
		}
		if rec.BucketCount > 0 {
			fmt.Fprintf(s.out, "  buckets: %d\n", rec.BucketCount)
		}
	}

	entries := s.cache.Entries()
	fmt.Fprintln(s.out, titleStyle.Render("cached content"))
	if len(entries) == 0 {
		fmt.Fprintln(s.out, mutedStyle.Render("  cache is empty; browse directories to populate"))
		return nil
	}

	var files int
	var bytes int64
	extCounts := make(map[string]int)
	for _, e := range entries {
		for _, f := range e.Listing.Files {
			files++
			bytes += f.Size
			ext := f.Ext
			if ext == "" {
				ext = "<none>"
			}
			extCounts[ext]++
		}
	}
	fmt.Fprintf(s.out, "  cached prefixes: %d\n", len(entries))
	fmt.Fprintf(s.out, "  cached files:    %d (%s)\n", files, humanSize(bytes))

	type extCount struct {
		ext string
		n   int
	}
	counts := make([]extCount, 0, len(extCounts))
	for ext, n := range extCounts {
		counts = append(counts, extCount{ext, n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].n != counts[j].n {
			return counts[i].n > counts[j].n
		}
		return counts[i].ext < counts[j].ext
	})
	for _, c := range counts {
		fmt.Fprintf(s.out, "    %-12s %d\n", c.ext, c.n)
	}
	return nil
}

func (s *Shell) cmdCrawlStatus(ctx context.Context, args []string) error {
	st := s.crawler.Status()
	switch st.Status {
	case crawler.StatusIdle:
		fmt.Fprintln(s.out, "background crawl has not started")
	case crawler.StatusRunning:
		fmt.Fprintf(s.out, "crawl in progress: %d prefixes visited, %d queued (max depth %d)\n",
			st.Visited, st.Frontier, st.MaxDepth)
	case crawler.StatusDone:
		fmt.Fprintf(s.out, "crawl complete: %d prefixes visited (max depth %d)\n", st.Visited, st.MaxDepth)
	case crawler.StatusFailed:
		fmt.Fprintf(s.out, "%s %s\n", errStyle.Render("crawl failed:"), st.LastErr)
	}
	if st.LastErr != "" && st.Status != crawler.StatusFailed {
		fmt.Fprintf(s.out, "%s %s\n", mutedStyle.Render("last error:"), st.LastErr)
	}
	return nil
}

func (s *Shell) cmdRecrawl(ctx context.Context, args []string) error {
	if err := s.crawler.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "background crawl restarted")
	return nil
}

func (s *Shell) cmdRefresh(ctx context.Context, args []string) error {
	dir := s.cwd
	if len(args) == 1 {
		var err error
		dir, err = cloudpath.Resolve(s.cwd, args[0], true)
		if err != nil {
			return err
		}
	}
	s.cache.Invalidate(dir)
	if _, err := s.listing(ctx, dir); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "refreshed %s\n", s.provider.Label()+dir.Prefix())
	return nil
}

func (s *Shell) cmdClear(ctx context.Context, args []string) error {
	fmt.Fprint(s.out, "\x1b[2J\x1b[H")
	return nil
}

func (s *Shell) cmdHelp(ctx context.Context, args []string) error {
	cmds := s.commands()
	seen := make(map[string]bool)
	for _, name := range s.commandNames() {
		c := cmds[name]
		if seen[c.usage] {
			continue
		}
		seen[c.usage] = true
		fmt.Fprintf(s.out, "  %-42s %s\n", c.usage, c.help)
	}
	return nil
}

func (s *Shell) cmdExit(ctx context.Context, args []string) error {
	return errExit
}

// renderError adds a hint for error kinds the user can act on.
func renderError(err error) string {
	msg := errStyle.Render("error: ") + err.Error()
	switch provider.KindOf(err) {
	case provider.KindAccessDenied:
		msg += mutedStyle.Render("  (check credentials or bucket policy)")
	case provider.KindTimeout, provider.KindTransient:
		msg += mutedStyle.Render("  (transient; retrying may succeed)")
	}
	return msg
}
