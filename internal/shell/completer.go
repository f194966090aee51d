package shell

import (
	"strings"

	"github.com/bucketboss/bucketboss/internal/cloudpath"
)

// completer offers tab completion from the listing cache only; it never
// calls the provider, so completion stays instant even on a cold link.
type completer struct {
	shell *Shell
}

// Do implements readline.AutoComplete. It completes command names at
// the start of the line and cached path components afterwards.
func (c *completer) Do(line []rune, pos int) ([][]rune, int) {
	prefix := string(line[:pos])

	if !strings.ContainsAny(prefix, " \t") {
		return matches(c.shell.commandNames(), prefix), len([]rune(prefix))
	}

	i := strings.LastIndexAny(prefix, " \t")
	word := prefix[i+1:]
	cmd := strings.ToLower(strings.Fields(prefix)[0])

	dirPart, namePart := "", word
	if j := strings.LastIndex(word, cloudpath.Separator); j >= 0 {
		dirPart, namePart = word[:j+1], word[j+1:]
	}

	dir, err := cloudpath.Resolve(c.shell.cwd, dirPart, true)
	if err != nil {
		return nil, len([]rune(word))
	}
	listing, ok := c.shell.cache.Get(dir)
	if !ok {
		return nil, len([]rune(word))
	}

	candidates := make([]string, 0, len(listing.Dirs)+len(listing.Files))
	for _, d := range listing.Dirs {
		candidates = append(candidates, d+cloudpath.Separator)
	}
	if cmd != "cd" {
		for _, f := range listing.Files {
			candidates = append(candidates, f.Name)
		}
	}
	return matches(candidates, namePart), len([]rune(namePart))
}

// matches returns the completion suffixes for candidates sharing prefix.
func matches(candidates []string, prefix string) [][]rune {
	var out [][]rune
	for _, c := range candidates {
		if strings.HasPrefix(c, prefix) {
			out = append(out, []rune(c[len(prefix):]))
		}
	}
	return out
}
