// Package shellops implements the sandbox operation set on top of a
// persistent shell session. Every file operation becomes a short shell
// command, so the same code serves containers and virtual machines.
package shellops

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"al.essio.dev/pkg/shellescape"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/jbuckmccready/dotfiles/internal/logging"
	"github.com/jbuckmccready/dotfiles/internal/sandbox"
	"github.com/jbuckmccready/dotfiles/internal/sandbox/session"
	"github.com/jbuckmccready/dotfiles/internal/tool/directory"
	"github.com/jbuckmccready/dotfiles/internal/tool/errutil"
	"github.com/jbuckmccready/dotfiles/internal/tool/helper/content"
	"github.com/jbuckmccready/dotfiles/internal/tool/search"
)

// base64 output is wrapped to this many columns inside write heredocs.
const b64LineWidth = 76

// shell is the part of *session.Session the operations use.
type shell interface {
	ExecBuffered(ctx context.Context, cmd string) (*session.BufferedResult, error)
	ExecStreaming(ctx context.Context, cmd string, opts session.StreamOptions) (int, error)
	StderrFile() string
}

// Option configures Ops.
type Option func(*Ops)

func WithLogger(l *log.Logger) Option {
	return func(o *Ops) { o.logger = l }
}

// WithHidden hides host paths for which hidden returns true. File operations
// on them fail with not found, and they are skipped by grep and find through
// the exclude globs.
func WithHidden(hidden func(hostPath string) bool, excludeGlobs []string) Option {
	return func(o *Ops) {
		o.hidden = hidden
		o.exclude = excludeGlobs
	}
}

// WithGrepLimits sets the grep output caps.
func WithGrepLimits(l search.Limits) Option {
	return func(o *Ops) { o.limits = l }
}

// Ops serves every sandbox operation through one shell session. Paths are
// host paths; toGuest maps them into the shell's namespace.
type Ops struct {
	sh      shell
	toGuest func(string) string
	hidden  func(string) bool
	exclude []string
	limits  search.Limits
	logger  *log.Logger
}

// New creates Ops over sh.
func New(sh shell, toGuest func(string) string, opts ...Option) *Ops {
	if sh == nil {
		panic("shell is required")
	}
	if toGuest == nil {
		panic("toGuest is required")
	}
	o := &Ops{sh: sh, toGuest: toGuest}
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

func q(s string) string {
	return shellescape.Quote(s)
}

func (o *Ops) isHidden(p string) bool {
	return o.hidden != nil && o.hidden(p)
}

// Exec runs command in cwd with stderr folded into stdout.
func (o *Ops) Exec(ctx context.Context, command, cwd string, opts sandbox.ExecOptions) (int, error) {
	script := fmt.Sprintf("{ cd %s && bash -c %s; } 2>&1", q(o.toGuest(cwd)), q(command))
	o.logger.Debug("exec", "cwd", cwd, "cmd", command)
	return o.sh.ExecStreaming(ctx, script, session.StreamOptions{OnData: opts.OnData, Timeout: opts.Timeout})
}

func (o *Ops) run(ctx context.Context, cmd string) (*session.BufferedResult, error) {
	return o.sh.ExecBuffered(ctx, cmd)
}

// classify turns the output of a failed file command into a PathError.
func classify(op, path string, res *session.BufferedResult) error {
	msg := strings.TrimSpace(string(res.Stdout))
	switch {
	case strings.Contains(msg, "No such file or directory"):
		return errutil.NotFound(op, path, nil)
	case strings.Contains(msg, "Permission denied"), strings.Contains(msg, "Read-only file system"):
		return errutil.AccessDenied(op, path, nil)
	case msg == "":
		return fmt.Errorf("%s %s: exit code %d", op, path, res.ExitCode)
	}
	return fmt.Errorf("%s %s: %s", op, path, msg)
}

func (o *Ops) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if o.isHidden(path) {
		return nil, errutil.PolicyDenied("open", path, errutil.ErrNotFound)
	}
	res, err := o.run(ctx, "base64 < "+q(o.toGuest(path)))
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, classify("open", path, res)
	}
	data, err := base64.StdEncoding.DecodeString(stripSpace(res.Stdout))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return data, nil
}

func stripSpace(b []byte) string {
	return string(bytes.Join(bytes.Fields(b), nil))
}

// Access reports whether path is readable. Any failure reads as not found.
func (o *Ops) Access(ctx context.Context, path string) error {
	if o.isHidden(path) {
		return errutil.PolicyDenied("access", path, errutil.ErrNotFound)
	}
	res, err := o.run(ctx, "test -r "+q(o.toGuest(path)))
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return errutil.NotFound("access", path, nil)
	}
	return nil
}

func (o *Ops) DetectImageMime(ctx context.Context, path string) (string, error) {
	if o.isHidden(path) {
		return "", errutil.PolicyDenied("open", path, errutil.ErrNotFound)
	}
	res, err := o.run(ctx, "head -c 16 "+q(o.toGuest(path))+" | base64")
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", nil
	}
	head, err := base64.StdEncoding.DecodeString(stripSpace(res.Stdout))
	if err != nil {
		return "", nil
	}
	return content.DetectImageMime(head), nil
}

// WriteFile creates the parent directory and writes data through a base64
// heredoc. The delimiter is random so file content cannot end it early.
func (o *Ops) WriteFile(ctx context.Context, path string, data []byte) error {
	if o.isHidden(path) {
		return errutil.PolicyDenied("write", path, errutil.ErrAccessDenied)
	}
	guest := o.toGuest(path)
	delim := "PIOB64_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	var b strings.Builder
	fmt.Fprintf(&b, "mkdir -p %s && base64 -d > %s <<'%s'\n", q(parentDir(guest)), q(guest), delim)
	enc := base64.StdEncoding.EncodeToString(data)
	for len(enc) > b64LineWidth {
		b.WriteString(enc[:b64LineWidth])
		b.WriteByte('\n')
		enc = enc[b64LineWidth:]
	}
	if enc != "" {
		b.WriteString(enc)
		b.WriteByte('\n')
	}
	b.WriteString(delim)

	res, err := o.run(ctx, b.String())
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return classify("write", path, res)
	}
	return nil
}

func parentDir(p string) string {
	i := strings.LastIndex(p, "/")
	switch {
	case i < 0:
		return "."
	case i == 0:
		return "/"
	}
	return p[:i]
}

func (o *Ops) Mkdir(ctx context.Context, dir string) error {
	if o.isHidden(dir) {
		return errutil.PolicyDenied("mkdir", dir, errutil.ErrAccessDenied)
	}
	res, err := o.run(ctx, "mkdir -p "+q(o.toGuest(dir)))
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return classify("mkdir", dir, res)
	}
	return nil
}

func (o *Ops) Exists(ctx context.Context, path string) (bool, error) {
	if o.isHidden(path) {
		return false, nil
	}
	res, err := o.run(ctx, "test -e "+q(o.toGuest(path)))
	if err != nil {
		return false, err
	}
	return res.ExitCode == 0, nil
}

func (o *Ops) Stat(ctx context.Context, path string) (sandbox.FileKind, error) {
	if o.isHidden(path) {
		return sandbox.KindOther, errutil.PolicyDenied("stat", path, errutil.ErrNotFound)
	}
	res, err := o.run(ctx, "stat -c '%F' "+q(o.toGuest(path)))
	if err != nil {
		return sandbox.KindOther, err
	}
	if res.ExitCode != 0 {
		return sandbox.KindOther, errutil.NotFound("stat", path, nil)
	}
	switch strings.TrimSpace(string(res.Stdout)) {
	case "directory":
		return sandbox.KindDir, nil
	case "regular file", "regular empty file":
		return sandbox.KindFile, nil
	case "symbolic link":
		return sandbox.KindSymlink, nil
	}
	return sandbox.KindOther, nil
}

func (o *Ops) ReadDir(ctx context.Context, path string) ([]string, error) {
	if o.isHidden(path) {
		return nil, errutil.PolicyDenied("scandir", path, errutil.ErrNotFound)
	}
	res, err := o.run(ctx, "ls -1A "+q(o.toGuest(path)))
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, classify("scandir", path, res)
	}
	var names []string
	for _, line := range strings.Split(string(res.Stdout), "\n") {
		if line == "" {
			continue
		}
		if o.isHidden(filepath.Join(path, line)) {
			continue
		}
		names = append(names, line)
	}
	sort.Strings(names)
	return names, nil
}

// streamExec runs cmdline with stdout streamed and stderr captured in the
// session's stderr file, then replays the captured stderr.
func (o *Ops) streamExec(ctx context.Context, cmdline string, onStdout, onStderr func([]byte)) (int, error) {
	errFile := q(o.sh.StderrFile())
	rc, err := o.sh.ExecStreaming(ctx, cmdline+" 2>"+errFile, session.StreamOptions{OnData: onStdout})
	if err != nil {
		return rc, err
	}
	res, cerr := o.run(ctx, "cat "+errFile+" 2>/dev/null; rm -f "+errFile)
	if cerr != nil {
		o.logger.Debug("reading captured stderr failed", "err", cerr)
		return rc, nil
	}
	if len(res.Stdout) > 0 && onStderr != nil {
		onStderr(res.Stdout)
	}
	return rc, nil
}

func (o *Ops) Grep(ctx context.Context, p search.Params) (*search.Result, error) {
	g := search.NewGrepper(o.streamExec, o.toGuest, o.limits).Exclude(o.exclude...)
	return g.Grep(ctx, p)
}

// Glob runs fd inside the backend. .gitignore files are collected on the
// host, where the workspace is the same tree, and passed by guest path.
func (o *Ops) Glob(ctx context.Context, pattern, cwd string, opts sandbox.GlobOptions) ([]string, error) {
	var ignore []string
	for _, f := range directory.HostIgnoreFiles(cwd, opts.Ignore) {
		ignore = append(ignore, o.toGuest(f))
	}
	found, err := directory.FdGlob(ctx, o.streamExec, directory.FdOptions{
		Pattern:     pattern,
		GuestCwd:    o.toGuest(cwd),
		SearchPath:  cwd,
		Limit:       opts.Limit,
		IgnoreFiles: ignore,
		Exclude:     o.exclude,
	})
	if err != nil {
		return nil, err
	}
	if o.hidden == nil {
		return found, nil
	}
	kept := found[:0]
	for _, p := range found {
		if !o.isHidden(p) {
			kept = append(kept, p)
		}
	}
	return kept, nil
}

var _ sandbox.BashOps = (*Ops)(nil)
var _ sandbox.EditOps = (*Ops)(nil)
var _ sandbox.LsOps = (*Ops)(nil)
