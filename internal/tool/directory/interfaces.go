package directory

import (
	"context"

	"github.com/jbuckmccready/dotfiles/internal/sandbox"
)

// findOps is the subset of sandbox.FindOps the find tool needs.
type findOps interface {
	Exists(ctx context.Context, path string) (bool, error)
	Glob(ctx context.Context, pattern, cwd string, opts sandbox.GlobOptions) ([]string, error)
}

// lsOps is the subset of sandbox.LsOps the ls tool needs.
type lsOps interface {
	Exists(ctx context.Context, path string) (bool, error)
	Stat(ctx context.Context, path string) (sandbox.FileKind, error)
	ReadDir(ctx context.Context, path string) ([]string, error)
}

// pathResolver turns tool arguments into host paths.
type pathResolver interface {
	Abs(path string) (string, error)
}
