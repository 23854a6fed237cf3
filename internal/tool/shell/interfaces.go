package shell

import (
	"context"

	"github.com/jbuckmccready/dotfiles/internal/sandbox"
)

// bashOps is the command runner of the active sandbox.
type bashOps interface {
	Exec(ctx context.Context, command, cwd string, opts sandbox.ExecOptions) (int, error)
}

// envFileReader reads .env files through the active sandbox, so hidden or
// denied files stay out of reach.
type envFileReader interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
}

// pathResolver defines workspace path resolution operations.
type pathResolver interface {
	Abs(path string) (string, error)
	Rel(path string) (string, error)
}
