// Package shell implements the interactive browsing loop. Every
// navigation command resolves its argument through cloudpath and reads
// listings through the cache; the network is only touched on a miss.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	"github.com/bucketboss/bucketboss/internal/cache"
	"github.com/bucketboss/bucketboss/internal/cloudpath"
	"github.com/bucketboss/bucketboss/internal/config"
	"github.com/bucketboss/bucketboss/internal/crawler"
	"github.com/bucketboss/bucketboss/internal/logging"
	"github.com/bucketboss/bucketboss/internal/provider"
	"github.com/bucketboss/bucketboss/internal/stats"
)

// errExit signals a clean loop exit from a command.
var errExit = errors.New("exit")

// Shell is the interactive session state. The command loop is
// strictly sequential; background workers only meet it through the
// cache and through read-only snapshots.
type Shell struct {
	provider provider.Provider
	cache    *cache.Store
	crawler  *crawler.Crawler
	stats    *stats.Collector
	cfg      *config.Config

	cwd cloudpath.Path
	out io.Writer
	rl  *readline.Instance
}

type command struct {
	run   func(ctx context.Context, args []string) error
	usage string
	help  string
}

// New creates a shell rooted at the session bucket (empty for
// multi-bucket browsing).
func New(p provider.Provider, store *cache.Store, cr *crawler.Crawler, sc *stats.Collector, cfg *config.Config) *Shell {
	return &Shell{
		provider: p,
		cache:    store,
		crawler:  cr,
		stats:    sc,
		cfg:      cfg,
		cwd:      cloudpath.Root(cfg.Bucket),
		out:      os.Stdout,
	}
}

// Run executes the read-eval-print loop until exit or EOF.
func (s *Shell) Run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.cfg.HistoryFile), 0o755); err != nil {
		logging.Warn("history directory unavailable", zap.Error(err))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          s.prompt(),
		HistoryFile:     s.cfg.HistoryFile,
		AutoComplete:    &completer{shell: s},
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()
	s.rl = rl

	fmt.Fprintln(s.out, "BucketBoss shell. Type 'help' or 'exit'.")

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			fmt.Fprintln(s.out, "exiting")
			return nil
		}
		if err != nil {
			return err
		}

		if err := s.dispatch(ctx, line); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			fmt.Fprintln(s.out, renderError(err))
		}
	}
}

func (s *Shell) dispatch(ctx context.Context, line string) error {
	args, err := splitArgs(line)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}

	name := strings.ToLower(args[0])
	cmd, ok := s.commands()[name]
	if !ok {
		return fmt.Errorf("unknown command: %s (try 'help')", name)
	}
	return cmd.run(ctx, args[1:])
}

func (s *Shell) prompt() string {
	return promptStyle.Render(s.provider.Label()+s.cwd.Prefix()) + "> "
}

func (s *Shell) setCwd(p cloudpath.Path) {
	s.cwd = p
	if s.rl != nil {
		s.rl.SetPrompt(s.prompt())
	}
}

// opCtx bounds one provider call with the configured timeout.
func (s *Shell) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.ProviderTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.ProviderTimeout)
}

// listing fetches the cached listing for a directory, hitting the
// provider only on a miss.
func (s *Shell) listing(ctx context.Context, dir cloudpath.Path) (provider.Listing, error) {
	opctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.cache.GetOrFetch(opctx, dir, func(fctx context.Context) (provider.Listing, error) {
		logging.Debug("fetching listing", zap.String("prefix", dir.Key()))
		return s.provider.List(fctx, dir)
	})
}

// reader returns the provider's object-read capability, if it has one.
func (s *Shell) reader() (provider.ObjectReader, error) {
	r, ok := s.provider.(provider.ObjectReader)
	if !ok {
		return nil, errors.New("this provider cannot read object contents")
	}
	return r, nil
}

func (s *Shell) writer() (provider.ObjectWriter, error) {
	w, ok := s.provider.(provider.ObjectWriter)
	if !ok {
		return nil, errors.New("this provider cannot write objects")
	}
	return w, nil
}

// splitArgs splits a command line into fields, honoring single and
// double quotes so object keys with spaces work.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		quote   rune
		has     bool
	)
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			has = true
		case r == ' ' || r == '\t':
			if has || current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
				has = false
			}
		default:
			current.WriteRune(r)
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in %q", line)
	}
	if has || current.Len() > 0 {
		args = append(args, current.String())
	}
	return args, nil
}

// commandNames returns dispatchable names sorted for help output.
func (s *Shell) commandNames() []string {
	cmds := s.commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
