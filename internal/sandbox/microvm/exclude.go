package microvm

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// excluder hides workspace-relative paths from the guest. A pattern that
// matches a directory hides everything below it.
type excluder struct {
	cwd      string
	patterns []string
}

func newExcluder(cwd string, patterns []string) (*excluder, error) {
	e := &excluder{cwd: filepath.Clean(cwd)}
	for _, p := range patterns {
		p = strings.Trim(filepath.ToSlash(p), "/")
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
		e.patterns = append(e.patterns, p)
	}
	return e, nil
}

// Hidden reports whether hostPath lies on an excluded path.
func (e *excluder) Hidden(hostPath string) bool {
	if len(e.patterns) == 0 {
		return false
	}
	rel, err := filepath.Rel(e.cwd, filepath.Clean(hostPath))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return false
	}
	rel = filepath.ToSlash(rel)
	for {
		for _, p := range e.patterns {
			if ok, _ := doublestar.Match(p, rel); ok {
				return true
			}
		}
		i := strings.LastIndexByte(rel, '/')
		if i < 0 {
			return false
		}
		rel = rel[:i]
	}
}

// Globs returns the patterns for rg and fd exclusion.
func (e *excluder) Globs() []string {
	return e.patterns
}
