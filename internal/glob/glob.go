// Package glob implements the include/exclude path matcher used to scope
// origin checkouts and destination writes.
package glob

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Glob matches workdir-relative paths against include patterns minus
// exclude patterns. Patterns use `**` for any number of segments.
// An empty include list matches nothing; exclude wins over include.
type Glob struct {
	include []string
	exclude []string
}

// New creates a Glob, validating every pattern
func New(include, exclude []string) (*Glob, error) {
	for _, p := range append(append([]string{}, include...), exclude...) {
		if p == "" {
			return nil, fmt.Errorf("empty glob pattern")
		}
		if strings.HasPrefix(p, "/") {
			return nil, fmt.Errorf("glob pattern %q must be relative", p)
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob pattern %q", p)
		}
	}
	return &Glob{
		include: append([]string(nil), include...),
		exclude: append([]string(nil), exclude...),
	}, nil
}

// All matches every file
func All() *Glob {
	g, _ := New([]string{"**"}, nil)
	return g
}

// Matches reports whether the slash-separated relative path is selected
func (g *Glob) Matches(rel string) bool {
	rel = path.Clean(strings.TrimPrefix(rel, "./"))
	for _, p := range g.exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return false
		}
	}
	for _, p := range g.include {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Include returns the include patterns
func (g *Glob) Include() []string {
	return append([]string(nil), g.include...)
}

// Exclude returns the exclude patterns
func (g *Glob) Exclude() []string {
	return append([]string(nil), g.exclude...)
}

// String renders the glob the way config files spell it
func (g *Glob) String() string {
	var sb strings.Builder
	sb.WriteString("glob(include = [")
	for i, p := range g.include {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%q", p)
	}
	sb.WriteString("]")
	if len(g.exclude) > 0 {
		sb.WriteString(", exclude = [")
		for i, p := range g.exclude {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%q", p)
		}
		sb.WriteString("]")
	}
	sb.WriteString(")")
	return sb.String()
}
