// Package microvm runs the agent's tools inside a Lima virtual machine. The
// working directory is mounted writable at /workspace and the skills
// directory read-only; every operation goes through one persistent shell
// opened with `limactl shell`.
package microvm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/docker/go-units"

	"github.com/jbuckmccready/dotfiles/internal/config"
	"github.com/jbuckmccready/dotfiles/internal/logging"
	"github.com/jbuckmccready/dotfiles/internal/sandbox"
	"github.com/jbuckmccready/dotfiles/internal/sandbox/ospolicy"
	"github.com/jbuckmccready/dotfiles/internal/sandbox/pathmap"
	"github.com/jbuckmccready/dotfiles/internal/sandbox/session"
	"github.com/jbuckmccready/dotfiles/internal/sandbox/shellops"
	"github.com/jbuckmccready/dotfiles/internal/tool/fsutil"
	"github.com/jbuckmccready/dotfiles/internal/tool/search"
	"github.com/jbuckmccready/dotfiles/internal/tool/service/executor"
)

// vmShell is the session surface the provider needs.
type vmShell interface {
	Start(ctx context.Context) error
	Close() error
	ExecBuffered(ctx context.Context, cmd string) (*session.BufferedResult, error)
	ExecStreaming(ctx context.Context, cmd string, opts session.StreamOptions) (int, error)
	StderrFile() string
}

// Provider is the micro-VM sandbox backend.
type Provider struct {
	lookPath func(string) (string, error)
	getenv   func(string) string
	newLima  func(limactl string, run runner) lima
	dial     func(b session.Backend, ic sandbox.InitContext, logger *log.Logger) vmShell
	fs       *fsutil.OSFileSystem

	cwd        string
	skillsDir  string
	instance   string
	hosts      []string
	excluded   []string
	secrets    []secret
	secretDefs map[string]config.SecretConfig
	cpus       int
	memory     string

	lima    lima
	sh      vmShell
	started bool
	ops     sandbox.Ops
	logger  *log.Logger
}

func New() *Provider {
	return &Provider{
		lookPath: exec.LookPath,
		getenv:   os.Getenv,
		newLima: func(limactl string, run runner) lima {
			return &limaCLI{limactl: limactl, run: run}
		},
		dial: dialSession,
		fs:   fsutil.NewOSFileSystem(),
	}
}

func dialSession(b session.Backend, ic sandbox.InitContext, logger *log.Logger) vmShell {
	return session.New(b, executor.NewOSCommandExecutor(ic.Config, ic.Logger),
		session.WithLogger(logger),
		session.WithAbortGrace(time.Duration(ic.Config.Session.AbortGraceMs)*time.Millisecond),
		session.WithStartTimeout(time.Duration(ic.Config.Session.StartTimeoutMs)*time.Millisecond),
	)
}

func (p *Provider) Name() string { return "vm" }

func (p *Provider) Init(ctx context.Context, ic sandbox.InitContext) error {
	p.logger = logging.OrDiscard(ic.Logger).WithPrefix("vm-sandbox")
	cfg := ic.Config

	limactl, err := limactlPath(p.lookPath)
	if err != nil {
		return fmt.Errorf("limactl not found: %w", err)
	}

	skills := ic.SkillsDir()
	realSkills, err := filepath.EvalSymlinks(skills)
	if err != nil {
		return fmt.Errorf("skills dir %s: %w", skills, err)
	}

	excl, err := newExcluder(ic.Cwd, cfg.ExcludePaths)
	if err != nil {
		return err
	}
	memory, err := limaMemory(cfg.Memory)
	if err != nil {
		return err
	}

	p.cwd = ic.Cwd
	p.skillsDir = skills
	p.instance = cfg.Instance
	p.hosts = cfg.AllowedHosts
	p.excluded = cfg.ExcludePaths
	p.secretDefs = cfg.Secrets
	p.cpus = cfg.CPUs
	p.memory = memory
	p.secrets = resolveSecrets(cfg.Secrets, len(cfg.AllowedHosts) > 0, p.getenv)

	tmpl := buildTemplate(templateOptions{
		base:      ospolicy.ExpandHome(cfg.GuestDir, ic.Home),
		cpus:      cfg.CPUs,
		memory:    memory,
		cwd:       ic.Cwd,
		skillsDir: realSkills,
		hosts:     cfg.AllowedHosts,
	})
	rendered, err := tmpl.Marshal()
	if err != nil {
		return err
	}

	p.lima = p.newLima(limactl, executor.NewOSCommandExecutor(cfg, ic.Logger))
	if err := p.ensureRunning(ctx, templatePath(ic.Home, p.instance), rendered); err != nil {
		return err
	}

	sh := p.dial(limaBackend(limactl, p.instance, p.secrets), ic, p.logger)
	p.sh = sh
	if err := sh.Start(ctx); err != nil {
		return fmt.Errorf("vm shell: %w", err)
	}

	tr := pathmap.NewTranslator(ic.Home, ic.Cwd, pathmap.MountTable{
		skills:     GuestSkillsDir,
		realSkills: GuestSkillsDir,
	})
	p.ops = shellops.New(sh, tr.ToGuest,
		shellops.WithHidden(excl.Hidden, excl.Globs()),
		shellops.WithGrepLimits(search.LimitsFromConfig(cfg)),
		shellops.WithLogger(p.logger),
	).Bundle()
	p.logger.Debug("vm ready", "instance", p.instance, "network", networkLabel(p.hosts), "secrets", len(p.secrets))
	return nil
}

// ensureRunning creates the instance from rendered when it does not exist and
// starts it when stopped. An existing instance must have been created from
// the same template, since mounts and firewall are fixed at creation.
func (p *Provider) ensureRunning(ctx context.Context, tmplPath string, rendered []byte) error {
	inst, err := p.lima.Inspect(ctx, p.instance)
	if err != nil {
		return err
	}

	if inst == nil {
		p.logger.Info("creating vm instance", "instance", p.instance, "template", tmplPath)
		if err := p.fs.WriteFile(tmplPath, rendered); err != nil {
			return fmt.Errorf("write lima template: %w", err)
		}
		if err := p.lima.Create(ctx, p.instance, tmplPath); err != nil {
			return err
		}
	} else {
		prev, err := p.fs.ReadFile(tmplPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("instance %q exists but was not created by the sandbox; choose another instance name", p.instance)
		case err != nil:
			return fmt.Errorf("read lima template: %w", err)
		case !bytes.Equal(prev, rendered):
			return fmt.Errorf("instance %q was created with a different configuration; run \"limactl delete --force %s\" to recreate it", p.instance, p.instance)
		}
		if inst.Status == statusRunning {
			return nil
		}
	}

	p.logger.Info("starting vm instance", "instance", p.instance)
	if err := p.lima.Start(ctx, p.instance); err != nil {
		return err
	}
	p.started = true
	return nil
}

// limaBackend opens the shell with secrets in the environment of limactl,
// which forwards them into the guest.
func limaBackend(limactl, instance string, secrets []secret) session.Backend {
	b := session.LimaBackend(limactl, instance)
	if len(secrets) == 0 {
		return b
	}
	cmd := append([]string{b.Command[0], b.Command[1], "--preserve-env"}, b.Command[2:]...)
	b.Command = cmd
	b.Env = append(os.Environ(), secretEnv(secrets)...)
	return b
}

// Shutdown closes the shell and stops the instance when this provider
// started it.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.sh != nil {
		if err := p.sh.Close(); err != nil {
			errs = append(errs, err)
		}
		p.sh = nil
	}
	if p.started && p.lima != nil {
		if err := p.lima.Stop(ctx, p.instance); err != nil {
			p.logger.Warn("stopping vm failed", "instance", p.instance, "err", err)
			errs = append(errs, err)
		}
		p.started = false
	}
	p.ops = sandbox.Ops{}
	return errors.Join(errs...)
}

func (p *Provider) IsActive() bool { return p.ops.Bash != nil }

func (p *Provider) Ops() sandbox.Ops { return p.ops }

func (p *Provider) PatchSystemPrompt(prompt string) string {
	if p.cwd == "" {
		return prompt
	}
	out := strings.Replace(prompt,
		"Current working directory: "+p.cwd,
		fmt.Sprintf("Current working directory: %s (VM, mounted from host: %s)", pathmap.GuestWorkspace, p.cwd), 1)
	return strings.ReplaceAll(out, p.skillsDir, GuestSkillsDir)
}

func (p *Provider) Describe() []string {
	lines := []string{
		"Sandbox: vm",
		"  Instance: " + p.instance,
		"  Workspace: " + p.cwd + " → " + pathmap.GuestWorkspace,
		"  Skills: " + p.skillsDir + " → " + GuestSkillsDir + " (read-only)",
		"  Resources: " + resources(p.cpus, p.memory),
		"",
		"Network: " + networkLabel(p.hosts),
	}
	if modeOf(p.hosts) == networkHosts {
		lines = append(lines, "  Allowed hosts: "+strings.Join(p.hosts, ", "))
	}
	lines = append(lines, "", fmt.Sprintf("Excluded paths (%d):", len(p.excluded)))
	for _, x := range p.excluded {
		lines = append(lines, "  "+x)
	}
	loaded := map[string]bool{}
	for _, s := range p.secrets {
		loaded[s.Name] = true
	}
	lines = append(lines, "", fmt.Sprintf("Secrets (%d/%d loaded):", len(p.secrets), len(p.secretDefs)))
	for _, name := range sortedKeys(p.secretDefs) {
		state := "missing"
		if loaded[name] {
			state = "loaded"
		}
		lines = append(lines, fmt.Sprintf("  %s (%s) → %s", name, state, strings.Join(p.secretDefs[name].Hosts, ", ")))
	}
	return lines
}

func (p *Provider) Status() sandbox.Status {
	if !p.IsActive() {
		return sandbox.Status{Level: sandbox.LevelMuted, Text: "VM sandbox: not initialized"}
	}
	return sandbox.Status{
		Level: sandbox.LevelInfo,
		Text: fmt.Sprintf("🖥️ VM sandbox: %s, %s, %d/%d secrets loaded",
			networkLabel(p.hosts), sandbox.Plural(len(p.excluded), "excluded path"), len(p.secrets), len(p.secretDefs)),
	}
}

// limaMemory normalizes a human size such as "4g" or "4096MiB" into the
// binary-unit form Lima templates use. Empty means the Lima default.
func limaMemory(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	n, err := units.RAMInBytes(s)
	if err != nil {
		return "", fmt.Errorf("vm memory %q: %w", s, err)
	}
	return units.BytesSize(float64(n)), nil
}

func resources(cpus int, memory string) string {
	c, m := "default CPUs", "default memory"
	if cpus > 0 {
		c = sandbox.Plural(cpus, "CPU")
	}
	if memory != "" {
		m = memory
	}
	return c + ", " + m
}

func sortedKeys(m map[string]config.SecretConfig) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
