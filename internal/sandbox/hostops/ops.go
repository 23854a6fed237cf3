// Package hostops implements the sandbox operation set directly on the host.
// The disabled backend uses it as is; the OS-policy backend adds a Guard and
// wraps spawned commands.
package hostops

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/jbuckmccready/dotfiles/internal/logging"
	"github.com/jbuckmccready/dotfiles/internal/sandbox"
	"github.com/jbuckmccready/dotfiles/internal/tool/directory"
	"github.com/jbuckmccready/dotfiles/internal/tool/errutil"
	"github.com/jbuckmccready/dotfiles/internal/tool/fsutil"
	"github.com/jbuckmccready/dotfiles/internal/tool/helper/content"
	"github.com/jbuckmccready/dotfiles/internal/tool/search"
	"github.com/jbuckmccready/dotfiles/internal/tool/service/executor"
)

// Guard vets paths before file operations. A nil Guard allows everything.
type Guard interface {
	// CheckRead returns a policy error when path must look absent.
	CheckRead(path string) error
	// CheckWrite returns a policy error when path must not be modified.
	CheckWrite(path string) error
}

// Option configures Ops.
type Option func(*Ops)

func WithGuard(g Guard) Option {
	return func(o *Ops) { o.guard = g }
}

// WithWrap sets the function that turns a bash argv into the argv actually
// started, e.g. to run it under bwrap.
func WithWrap(wrap func(argv []string) []string) Option {
	return func(o *Ops) { o.wrap = wrap }
}

// WithEnv sets the environment of spawned commands. nil inherits the host's.
func WithEnv(env []string) Option {
	return func(o *Ops) { o.env = env }
}

func WithGrepLimits(l search.Limits) Option {
	return func(o *Ops) { o.limits = l }
}

func WithLogger(l *log.Logger) Option {
	return func(o *Ops) { o.logger = l }
}

// Ops serves every operation from the host filesystem and host processes.
type Ops struct {
	cwd    string
	exec   *executor.OSCommandExecutor
	fs     *fsutil.OSFileSystem
	guard  Guard
	wrap   func([]string) []string
	env    []string
	limits search.Limits
	logger *log.Logger
}

// New creates host Ops rooted at cwd.
func New(cwd string, exec *executor.OSCommandExecutor, fsys *fsutil.OSFileSystem, opts ...Option) *Ops {
	if exec == nil {
		panic("exec is required")
	}
	if fsys == nil {
		panic("fsys is required")
	}
	o := &Ops{cwd: cwd, exec: exec, fs: fsys}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.OrDiscard(o.logger)
	return o
}

// Bundle returns o as a sandbox.Ops value.
func (o *Ops) Bundle() sandbox.Ops {
	return sandbox.Ops{Bash: o, Read: o, Write: o, Edit: o, Grep: o, Find: o, Ls: o}
}

func (o *Ops) checkRead(p string) error {
	if o.guard == nil {
		return nil
	}
	return o.guard.CheckRead(p)
}

func (o *Ops) checkWrite(p string) error {
	if o.guard == nil {
		return nil
	}
	return o.guard.CheckWrite(p)
}

func (o *Ops) argv(command string) []string {
	argv := []string{"bash", "-c", command}
	if o.wrap != nil {
		argv = o.wrap(argv)
	}
	return argv
}

// Exec runs command through bash in its own process group. Abort and timeout
// kill the whole group.
func (o *Ops) Exec(ctx context.Context, command, cwd string, opts sandbox.ExecOptions) (int, error) {
	if info, err := os.Stat(cwd); err != nil || !info.IsDir() {
		return -1, fmt.Errorf("Working directory does not exist: %s", cwd)
	}
	o.logger.Debug("exec", "cwd", cwd, "cmd", command)
	return o.exec.Stream(ctx, o.argv(command), cwd, o.env, executor.StreamOptions{
		Stdout:  opts.OnData,
		Stderr:  opts.OnData,
		Timeout: opts.Timeout,
	})
}

func (o *Ops) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := o.checkRead(path); err != nil {
		return nil, err
	}
	data, err := o.fs.ReadFile(path)
	if err != nil {
		return nil, errutil.FromFS("open", path, err)
	}
	return data, nil
}

func (o *Ops) Access(ctx context.Context, path string) error {
	if err := o.checkRead(path); err != nil {
		return err
	}
	return errutil.FromFS("access", path, o.fs.Access(path))
}

func (o *Ops) DetectImageMime(ctx context.Context, path string) (string, error) {
	if err := o.checkRead(path); err != nil {
		return "", err
	}
	head, err := o.fs.ReadHead(path, content.ImageSniffLen)
	if err != nil {
		return "", errutil.FromFS("open", path, err)
	}
	return content.DetectImageMime(head), nil
}

func (o *Ops) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := o.checkWrite(path); err != nil {
		return err
	}
	return errutil.FromFS("write", path, o.fs.WriteFile(path, data))
}

func (o *Ops) Mkdir(ctx context.Context, dir string) error {
	if err := o.checkWrite(dir); err != nil {
		return err
	}
	return errutil.FromFS("mkdir", dir, o.fs.EnsureDirs(dir))
}

func (o *Ops) Exists(ctx context.Context, path string) (bool, error) {
	if o.checkRead(path) != nil {
		return false, nil
	}
	if _, err := o.fs.Lstat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, errutil.FromFS("stat", path, err)
	}
	return true, nil
}

// Stat follows symlinks; a dangling link reports KindSymlink.
func (o *Ops) Stat(ctx context.Context, path string) (sandbox.FileKind, error) {
	if err := o.checkRead(path); err != nil {
		return sandbox.KindOther, err
	}
	info, err := o.fs.Stat(path)
	if err != nil {
		if linfo, lerr := o.fs.Lstat(path); lerr == nil && linfo.Mode()&fs.ModeSymlink != 0 {
			return sandbox.KindSymlink, nil
		}
		return sandbox.KindOther, errutil.FromFS("stat", path, err)
	}
	switch {
	case info.IsDir():
		return sandbox.KindDir, nil
	case info.Mode().IsRegular():
		return sandbox.KindFile, nil
	}
	return sandbox.KindOther, nil
}

// ReadDir lists dir, leaving out entries the guard hides.
func (o *Ops) ReadDir(ctx context.Context, dir string) ([]string, error) {
	if err := o.checkRead(dir); err != nil {
		return nil, err
	}
	names, err := o.fs.ReadDirNames(dir)
	if err != nil {
		return nil, errutil.FromFS("scandir", dir, err)
	}
	if o.guard == nil {
		return names, nil
	}
	kept := names[:0]
	for _, n := range names {
		if o.guard.CheckRead(filepath.Join(dir, n)) == nil {
			kept = append(kept, n)
		}
	}
	return kept, nil
}

func (o *Ops) stream() executor.StreamingExec {
	return o.exec.ShellStream(o.cwd, o.env, o.wrap)
}

func (o *Ops) Grep(ctx context.Context, p search.Params) (*search.Result, error) {
	resolve := func(userPath string) string {
		if filepath.IsAbs(userPath) {
			return userPath
		}
		return filepath.Join(o.cwd, userPath)
	}
	if p.Path != "" {
		if err := o.checkRead(resolve(p.Path)); err != nil {
			return nil, err
		}
	}
	return search.NewGrepper(o.stream(), resolve, o.limits).Grep(ctx, p)
}

func (o *Ops) Glob(ctx context.Context, pattern, cwd string, opts sandbox.GlobOptions) ([]string, error) {
	if err := o.checkRead(cwd); err != nil {
		return nil, err
	}
	found, err := directory.FdGlob(ctx, o.stream(), directory.FdOptions{
		Pattern:     pattern,
		GuestCwd:    cwd,
		SearchPath:  cwd,
		Limit:       opts.Limit,
		IgnoreFiles: directory.HostIgnoreFiles(cwd, opts.Ignore),
	})
	if err != nil || o.guard == nil {
		return found, err
	}
	kept := found[:0]
	for _, p := range found {
		if o.guard.CheckRead(p) == nil {
			kept = append(kept, p)
		}
	}
	return kept, nil
}
