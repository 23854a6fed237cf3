// Package sandbox defines the operation set every isolation backend provides
// and the selector that picks one backend per agent session.
//
// Paths handed to operations are host paths. Each backend translates them
// into its own namespace, so tools never need to know where they run.
package sandbox

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jbuckmccready/dotfiles/internal/config"
	"github.com/jbuckmccready/dotfiles/internal/tool/search"
)

// FileKind is the type of a filesystem entry as reported by LsOps.Stat.
type FileKind int

const (
	KindOther FileKind = iota
	KindFile
	KindDir
	KindSymlink
)

func (k FileKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "directory"
	case KindSymlink:
		return "symlink"
	default:
		return "other"
	}
}

// ExecOptions configures BashOps.Exec.
type ExecOptions struct {
	// OnData receives combined stdout and stderr in order.
	OnData  func([]byte)
	Timeout time.Duration // 0 = none
}

// GlobOptions configures FindOps.Glob.
type GlobOptions struct {
	Limit int
	// Ignore names directories that are not searched for .gitignore files.
	Ignore []string
}

// BashOps runs shell commands.
type BashOps interface {
	// Exec runs command with cwd as working directory and returns its exit
	// code. Cancelling ctx yields errutil.ErrAborted; an elapsed timeout a
	// *errutil.TimeoutError.
	Exec(ctx context.Context, command, cwd string, opts ExecOptions) (int, error)
}

type ReadOps interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	Access(ctx context.Context, path string) error
	// DetectImageMime returns the image MIME type of path, or "" when the
	// file is not a supported image.
	DetectImageMime(ctx context.Context, path string) (string, error)
}

type WriteOps interface {
	// WriteFile creates parent directories as needed.
	WriteFile(ctx context.Context, path string, data []byte) error
	Mkdir(ctx context.Context, dir string) error
}

type EditOps interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	Access(ctx context.Context, path string) error
	WriteFile(ctx context.Context, path string, data []byte) error
}

type GrepOps interface {
	Grep(ctx context.Context, p search.Params) (*search.Result, error)
}

type FindOps interface {
	Exists(ctx context.Context, path string) (bool, error)
	// Glob returns host paths below cwd matching pattern.
	Glob(ctx context.Context, pattern, cwd string, opts GlobOptions) ([]string, error)
}

type LsOps interface {
	Exists(ctx context.Context, path string) (bool, error)
	Stat(ctx context.Context, path string) (FileKind, error)
	// ReadDir returns entry names sorted.
	ReadDir(ctx context.Context, path string) ([]string, error)
}

// Ops bundles a backend's operations.
type Ops struct {
	Bash  BashOps
	Read  ReadOps
	Write WriteOps
	Edit  EditOps
	Grep  GrepOps
	Find  FindOps
	Ls    LsOps
}

// InitContext is what a provider receives at session start.
type InitContext struct {
	Cwd    string
	Home   string
	Config *config.Config
	Logger *log.Logger
}

// SkillsDir is the host directory holding agent skills. Isolating backends
// must make it visible inside the sandbox.
func (c InitContext) SkillsDir() string {
	return c.Home + "/.pi/agent/skills"
}

// Provider is one isolation backend.
type Provider interface {
	Name() string
	Init(ctx context.Context, ic InitContext) error
	Shutdown(ctx context.Context) error
	// IsActive reports whether the provider isolates anything. The disabled
	// provider is never active but still serves host operations.
	IsActive() bool
	Ops() Ops
	// PatchSystemPrompt rewrites host paths in the agent prompt into the
	// paths the agent sees inside the sandbox.
	PatchSystemPrompt(prompt string) string
	// Describe returns the lines of the "show sandbox configuration" output.
	Describe() []string
	Status() Status
}
