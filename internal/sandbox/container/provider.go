// Package container runs the agent's tools inside an already running
// container through one persistent `<runtime> exec -i` shell. Host paths are
// mapped through the container's bind mounts.
package container

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-shellwords"

	"github.com/jbuckmccready/dotfiles/internal/logging"
	"github.com/jbuckmccready/dotfiles/internal/sandbox"
	"github.com/jbuckmccready/dotfiles/internal/sandbox/ospolicy"
	"github.com/jbuckmccready/dotfiles/internal/sandbox/pathmap"
	"github.com/jbuckmccready/dotfiles/internal/sandbox/session"
	"github.com/jbuckmccready/dotfiles/internal/sandbox/shellops"
	"github.com/jbuckmccready/dotfiles/internal/tool/errutil"
	"github.com/jbuckmccready/dotfiles/internal/tool/search"
	"github.com/jbuckmccready/dotfiles/internal/tool/service/executor"
)

type containerShell interface {
	Start(ctx context.Context) error
	Close() error
	ExecBuffered(ctx context.Context, cmd string) (*session.BufferedResult, error)
	ExecStreaming(ctx context.Context, cmd string, opts session.StreamOptions) (int, error)
	StderrFile() string
}

// Provider is the persistent-container sandbox backend.
type Provider struct {
	lookPath func(string) (string, error)
	newRun   func(ic sandbox.InitContext) runner
	dial     func(b session.Backend, ic sandbox.InitContext, logger *log.Logger) containerShell

	runtime      []string
	container    string
	mounts       pathmap.MountTable
	cwd          string
	containerCwd string
	hostSkills   string
	guestSkills  string
	failure      string

	sh     containerShell
	ops    sandbox.Ops
	logger *log.Logger
}

func New() *Provider {
	return &Provider{
		lookPath: exec.LookPath,
		newRun: func(ic sandbox.InitContext) runner {
			return executor.NewOSCommandExecutor(ic.Config, ic.Logger)
		},
		dial: dialSession,
	}
}

func dialSession(b session.Backend, ic sandbox.InitContext, logger *log.Logger) containerShell {
	return session.New(b, executor.NewOSCommandExecutor(ic.Config, ic.Logger),
		session.WithLogger(logger),
		session.WithAbortGrace(time.Duration(ic.Config.Session.AbortGraceMs)*time.Millisecond),
		session.WithStartTimeout(time.Duration(ic.Config.Session.StartTimeoutMs)*time.Millisecond),
	)
}

func (p *Provider) Name() string { return "container" }

// runtimeName is the base name of the runtime binary, e.g. "docker".
func (p *Provider) runtimeName() string {
	if len(p.runtime) == 0 {
		return "docker"
	}
	return filepath.Base(p.runtime[0])
}

func (p *Provider) Init(ctx context.Context, ic sandbox.InitContext) error {
	p.logger = logging.OrDiscard(ic.Logger).WithPrefix("container-sandbox")
	cfg := ic.Config

	runtime, err := shellwords.Parse(cfg.Runtime)
	if err != nil {
		return fmt.Errorf("parse runtime %q: %w", cfg.Runtime, err)
	}
	if len(runtime) == 0 {
		return fmt.Errorf("runtime %q is empty", cfg.Runtime)
	}
	p.runtime = runtime
	p.container = cfg.Container
	if _, err := p.lookPath(runtime[0]); err != nil {
		return fmt.Errorf("%s not found: %w", runtime[0], err)
	}

	probeCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Session.ProbeTimeoutMs)*time.Millisecond)
	defer cancel()
	pr, err := inspect(probeCtx, p.newRun(ic), runtime, p.container)
	if err != nil {
		return err
	}
	if !pr.Running {
		p.failure = "not running"
		return fmt.Errorf("%s container %q is not running: %w", p.runtimeName(), p.container, errutil.ErrBackendUnavailable)
	}

	mounts := pr.Binds
	for host, guest := range cfg.Mounts {
		mounts[resolveHost(host, ic.Cwd, ic.Home)] = guest
	}

	skills := ic.SkillsDir()
	var problems []string
	if !covered(ic.Cwd, mounts) {
		problems = append(problems, fmt.Sprintf("cwd %q not mounted", ic.Cwd))
	}
	if !covered(skills, mounts) {
		problems = append(problems, fmt.Sprintf("skills dir %q not mounted", skills))
	}
	if len(problems) > 0 {
		p.failure = strings.Join(problems, "; ")
		return fmt.Errorf("%s sandbox %q: %s", p.runtimeName(), p.container, p.failure)
	}

	p.mounts = mounts
	p.cwd = ic.Cwd
	p.containerCwd = guestPath(ic.Cwd, mounts)
	p.hostSkills = skills
	p.guestSkills = guestPath(skills, mounts)

	// cwd or skills reached through a symlink translate like their targets
	table := make(pathmap.MountTable, len(mounts)+2)
	for h, g := range mounts {
		table[h] = g
	}
	if !pathmap.Covered(ic.Cwd, mounts) {
		table[filepath.Clean(ic.Cwd)] = p.containerCwd
	}
	if !pathmap.Covered(skills, mounts) {
		table[filepath.Clean(skills)] = p.guestSkills
	}
	toGuest := func(hostPath string) string {
		return pathmap.HostToGuest(hostPath, table)
	}

	sh := p.dial(session.ContainerBackend(runtime, p.container), ic, p.logger)
	p.sh = sh
	if err := sh.Start(ctx); err != nil {
		return fmt.Errorf("container shell: %w", err)
	}
	p.ops = shellops.New(sh, toGuest,
		shellops.WithGrepLimits(search.LimitsFromConfig(cfg)),
		shellops.WithLogger(p.logger),
	).Bundle()
	p.logger.Debug("container ready", "container", p.container, "mounts", len(mounts))
	return nil
}

// resolveHost turns a configured mount source into an absolute host path.
func resolveHost(host, cwd, home string) string {
	host = ospolicy.ExpandHome(host, home)
	if !filepath.IsAbs(host) {
		host = filepath.Join(cwd, host)
	}
	return filepath.Clean(host)
}

// covered accepts p or its symlink-resolved form, since runtimes report the
// real path of bind sources.
func covered(p string, mounts pathmap.MountTable) bool {
	if pathmap.Covered(p, mounts) {
		return true
	}
	real, err := filepath.EvalSymlinks(p)
	return err == nil && pathmap.Covered(real, mounts)
}

func guestPath(p string, mounts pathmap.MountTable) string {
	if pathmap.Covered(p, mounts) {
		return pathmap.HostToGuest(p, mounts)
	}
	if real, err := filepath.EvalSymlinks(p); err == nil {
		return pathmap.HostToGuest(real, mounts)
	}
	return p
}

func (p *Provider) Shutdown(ctx context.Context) error {
	var err error
	if p.sh != nil {
		err = p.sh.Close()
		p.sh = nil
	}
	p.ops = sandbox.Ops{}
	if errors.Is(err, errutil.ErrBackendUnavailable) {
		return nil
	}
	return err
}

func (p *Provider) IsActive() bool { return p.ops.Bash != nil }

func (p *Provider) Ops() sandbox.Ops { return p.ops }

func (p *Provider) PatchSystemPrompt(prompt string) string {
	if !p.IsActive() {
		return prompt
	}
	out := strings.Replace(prompt,
		"Current working directory: "+p.cwd,
		fmt.Sprintf("Current working directory: %s (%s: %s)", p.containerCwd, p.runtimeName(), p.container), 1)
	return strings.ReplaceAll(out, p.hostSkills, p.guestSkills)
}

func (p *Provider) Describe() []string {
	entries := p.mounts.Entries()
	lines := []string{
		"Sandbox: " + p.runtimeName(),
		"  Container: " + p.container,
		fmt.Sprintf("  Mounts (%d):", len(entries)),
	}
	for _, m := range entries {
		lines = append(lines, "    "+m.Host+" → "+m.Guest)
	}
	return lines
}

func (p *Provider) Status() sandbox.Status {
	label := "🐳 " + titleCase(p.runtimeName()) + " sandbox: " + p.container
	switch {
	case p.failure != "":
		return sandbox.Status{Level: sandbox.LevelError, Text: label + " — " + p.failure}
	case !p.IsActive():
		return sandbox.Status{Level: sandbox.LevelMuted, Text: titleCase(p.runtimeName()) + " sandbox: not initialized"}
	}
	return sandbox.Status{
		Level: sandbox.LevelInfo,
		Text:  fmt.Sprintf("%s (%s, %s)", label, p.containerCwd, sandbox.Plural(len(p.mounts), "mount")),
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
