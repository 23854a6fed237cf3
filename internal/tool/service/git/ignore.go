package git

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/jbuckmccready/dotfiles/internal/tool/helper/content"
)

const ignoreFileName = ".gitignore"

// defaultSkipDirs are never descended into while collecting ignore files.
var defaultSkipDirs = []string{".git", "node_modules"}

// GitignoreReadError is returned when a .gitignore cannot be read.
type GitignoreReadError struct {
	Path  string
	Cause error
}

func (e *GitignoreReadError) Error() string {
	return fmt.Sprintf("failed to read .gitignore at %s: %v", e.Path, e.Cause)
}
func (e *GitignoreReadError) Unwrap() error { return e.Cause }

// IgnoreMatcher accumulates .gitignore patterns scoped to the directory that
// declared them.
type IgnoreMatcher struct {
	patterns []gitignore.Pattern
}

// Add parses a .gitignore body found in dir (slash separated, relative to the
// walk root, "" for the root itself).
func (m *IgnoreMatcher) Add(dir string, body []byte) {
	domain := splitPath(dir)
	for _, line := range content.SplitLines(string(body)) {
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m.patterns = append(m.patterns, gitignore.ParsePattern(line, domain))
	}
}

// ShouldIgnore checks a root-relative path against every pattern collected so far.
func (m *IgnoreMatcher) ShouldIgnore(relativePath string, isDir bool) bool {
	if len(m.patterns) == 0 {
		return false
	}
	return gitignore.NewMatcher(m.patterns).Match(splitPath(relativePath), isDir)
}

// CollectIgnoreFiles walks fsys and returns the slash separated, root
// relative paths of every .gitignore, root first. Directories ignored by an
// enclosing .gitignore, the defaults (.git, node_modules) and any name in
// extraSkip are not entered.
func CollectIgnoreFiles(fsys fs.FS, extraSkip ...string) ([]string, error) {
	skip := make(map[string]bool, len(defaultSkipDirs)+len(extraSkip))
	for _, name := range append(append([]string(nil), defaultSkipDirs...), extraSkip...) {
		skip[name] = true
	}

	var (
		matcher IgnoreMatcher
		found   []string
	)
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == "." {
				return err
			}
			// unreadable subtrees are skipped, not fatal
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != "." && (skip[d.Name()] || matcher.ShouldIgnore(p, true)) {
			return fs.SkipDir
		}

		ignorePath := path.Join(p, ignoreFileName)
		body, err := fs.ReadFile(fsys, ignorePath)
		switch {
		case err == nil:
			dir := p
			if dir == "." {
				dir = ""
			}
			matcher.Add(dir, body)
			found = append(found, ignorePath)
		case errors.Is(err, fs.ErrNotExist):
		default:
			return &GitignoreReadError{Path: ignorePath, Cause: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// splitPath splits a slash path into segments, dropping empty and "." parts.
func splitPath(p string) []string {
	var segments []string
	for _, part := range strings.Split(p, "/") {
		if part != "" && part != "." {
			segments = append(segments, part)
		}
	}
	return segments
}
