package path

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Resolver turns tool path arguments into absolute host paths. There is no
// workspace boundary here: the active sandbox decides what may be touched.
type Resolver struct {
	cwd  string
	home string
}

// NewResolver creates a resolver for paths given relative to cwd.
func NewResolver(cwd, home string) *Resolver {
	if cwd == "" {
		panic("cwd is required")
	}
	return &Resolver{cwd: filepath.Clean(cwd), home: filepath.Clean(home)}
}

// Cwd returns the working directory paths are resolved against.
func (r *Resolver) Cwd() string {
	return r.cwd
}

// CanonicaliseRoot makes root absolute and resolves symlinks. Returns an
// error if the path doesn't exist or isn't a directory.
func CanonicaliseRoot(root string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", &WorkspaceRootError{Root: absRoot, Cause: err}
	}

	resolved, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", &WorkspaceRootError{Root: absRoot, Cause: err}
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", &WorkspaceRootError{Root: resolved, Cause: err}
	}
	if !info.IsDir() {
		return "", &WorkspaceRootError{Root: resolved, Cause: fmt.Errorf("%w: %s", ErrNotADirectory, resolved)}
	}
	return resolved, nil
}

// Abs resolves p: "~" and "~/…" expand to the home directory, a leading "@"
// (the way agents often cite files) is dropped, relative paths are joined to
// the working directory. The result is cleaned.
func (r *Resolver) Abs(p string) (string, error) {
	p = strings.TrimPrefix(strings.TrimSpace(p), "@")
	switch {
	case p == "":
		return r.cwd, nil
	case p == "~" || strings.HasPrefix(p, "~/"):
		if r.home == "" || r.home == "." {
			return "", ErrHomeNotSet
		}
		return filepath.Join(r.home, strings.TrimPrefix(p, "~")), nil
	case filepath.IsAbs(p):
		return filepath.Clean(p), nil
	default:
		return filepath.Join(r.cwd, p), nil
	}
}

// Rel returns p relative to the working directory when it lies below it,
// otherwise the absolute path.
func (r *Resolver) Rel(p string) (string, error) {
	abs, err := r.Abs(p)
	if err != nil {
		return "", err
	}
	if abs == r.cwd {
		return ".", nil
	}
	if rest, ok := strings.CutPrefix(abs, r.cwd+string(filepath.Separator)); ok {
		return filepath.ToSlash(rest), nil
	}
	return abs, nil
}
