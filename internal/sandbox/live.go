package sandbox

import (
	"context"

	"github.com/jbuckmccready/dotfiles/internal/tool/search"
)

// Live returns operations that dispatch to whichever provider is current at
// call time, so tools built once keep working across session restarts.
func (s *Selector) Live() Ops {
	l := liveOps{s}
	return Ops{Bash: l, Read: l, Write: l, Edit: l, Grep: l, Find: l, Ls: l}
}

type liveOps struct{ s *Selector }

func (l liveOps) Exec(ctx context.Context, command, cwd string, opts ExecOptions) (int, error) {
	return l.s.Ops().Bash.Exec(ctx, command, cwd, opts)
}

func (l liveOps) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return l.s.Ops().Read.ReadFile(ctx, path)
}

func (l liveOps) Access(ctx context.Context, path string) error {
	return l.s.Ops().Read.Access(ctx, path)
}

func (l liveOps) DetectImageMime(ctx context.Context, path string) (string, error) {
	return l.s.Ops().Read.DetectImageMime(ctx, path)
}

func (l liveOps) WriteFile(ctx context.Context, path string, data []byte) error {
	return l.s.Ops().Write.WriteFile(ctx, path, data)
}

func (l liveOps) Mkdir(ctx context.Context, dir string) error {
	return l.s.Ops().Write.Mkdir(ctx, dir)
}

func (l liveOps) Grep(ctx context.Context, p search.Params) (*search.Result, error) {
	return l.s.Ops().Grep.Grep(ctx, p)
}

func (l liveOps) Exists(ctx context.Context, path string) (bool, error) {
	return l.s.Ops().Find.Exists(ctx, path)
}

func (l liveOps) Glob(ctx context.Context, pattern, cwd string, opts GlobOptions) ([]string, error) {
	return l.s.Ops().Find.Glob(ctx, pattern, cwd, opts)
}

func (l liveOps) Stat(ctx context.Context, path string) (FileKind, error) {
	return l.s.Ops().Ls.Stat(ctx, path)
}

func (l liveOps) ReadDir(ctx context.Context, path string) ([]string, error) {
	return l.s.Ops().Ls.ReadDir(ctx, path)
}
