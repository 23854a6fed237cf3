// Package ospolicy runs commands on the host inside the platform sandbox
// (bubblewrap on Linux, sandbox-exec on macOS) and applies the same path
// policy to direct file operations.
package ospolicy

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/jbuckmccready/dotfiles/internal/config"
	"github.com/jbuckmccready/dotfiles/internal/logging"
	"github.com/jbuckmccready/dotfiles/internal/sandbox"
	"github.com/jbuckmccready/dotfiles/internal/sandbox/hostops"
	"github.com/jbuckmccready/dotfiles/internal/tool/fsutil"
	"github.com/jbuckmccready/dotfiles/internal/tool/search"
	"github.com/jbuckmccready/dotfiles/internal/tool/service/executor"
)

// Provider is the OS-level sandbox backend.
type Provider struct {
	goos     string
	lookPath func(string) (string, error)

	cfg         *config.Config
	policy      *Policy
	ops         sandbox.Ops
	initialized bool
	logger      *log.Logger
}

func New() *Provider {
	return &Provider{goos: runtime.GOOS, lookPath: exec.LookPath}
}

func (p *Provider) Name() string { return "os" }

func (p *Provider) Init(ctx context.Context, ic sandbox.InitContext) error {
	p.logger = logging.OrDiscard(ic.Logger).WithPrefix("os-sandbox")
	if p.goos != "darwin" && p.goos != "linux" {
		return fmt.Errorf("Sandbox not supported on %s", p.goos)
	}
	helper := "bwrap"
	if p.goos == "darwin" {
		helper = "sandbox-exec"
	}
	if _, err := p.lookPath(helper); err != nil {
		return fmt.Errorf("%s not found: %w", helper, err)
	}

	policy := NewPolicy(ic.Config.Filesystem, ic.Cwd, ic.Home)
	wrap, err := wrapper(p.goos, wrapOptions{
		policy:  policy,
		network: ic.Config.Network,
		cwd:     ic.Cwd,
		weaker:  ic.Config.EnableWeakerNestedSandbox,
	})
	if err != nil {
		return err
	}
	env := mergeEnv(hostEnv(), CommandEnv(ic.Config.CommandEnv, ic.Home))

	p.logger.Debug("policy", "denyRead", policy.DenyRead, "allowWrite", policy.AllowWrite, "denyWrite", policy.DenyWrite)
	if len(ic.Config.IgnoreViolations) > 0 {
		p.logger.Debug("ignoreViolations has no effect without a violation monitor")
	}

	p.ops = hostops.New(ic.Cwd, executor.NewOSCommandExecutor(ic.Config, ic.Logger), fsutil.NewOSFileSystem(),
		hostops.WithGuard(policy),
		hostops.WithWrap(wrap),
		hostops.WithEnv(env),
		hostops.WithGrepLimits(search.LimitsFromConfig(ic.Config)),
		hostops.WithLogger(p.logger),
	).Bundle()
	p.cfg = ic.Config
	p.policy = policy
	p.initialized = true
	return nil
}

func (p *Provider) Shutdown(ctx context.Context) error {
	p.ops = sandbox.Ops{}
	p.initialized = false
	return nil
}

func (p *Provider) IsActive() bool { return p.initialized }

func (p *Provider) Ops() sandbox.Ops { return p.ops }

func (p *Provider) PatchSystemPrompt(prompt string) string { return prompt }

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}

func networkMode(n config.NetworkConfig) string {
	if networkOpen(n) {
		return "open (domains are not filtered)"
	}
	return "blocked"
}

func (p *Provider) Describe() []string {
	c := p.cfg
	if c == nil {
		c = config.DefaultOSConfig()
	}
	return []string{
		"Sandbox: os",
		"",
		"Network:",
		"  Mode: " + networkMode(c.Network),
		"  Allowed: " + joinOrNone(c.Network.AllowedDomains),
		"  Denied: " + joinOrNone(c.Network.DeniedDomains),
		"",
		"Filesystem:",
		"  Deny Read: " + joinOrNone(c.Filesystem.DenyRead),
		"  Allow Write: " + joinOrNone(c.Filesystem.AllowWrite),
		"  Deny Write: " + joinOrNone(c.Filesystem.DenyWrite),
	}
}

func (p *Provider) Status() sandbox.Status {
	if !p.initialized {
		return sandbox.Status{Level: sandbox.LevelMuted, Text: "OS sandbox: not initialized"}
	}
	return sandbox.Status{
		Level: sandbox.LevelInfo,
		Text: fmt.Sprintf("🛡️ OS sandbox: network %s, %d write paths",
			networkLabel(p.cfg.Network), len(p.cfg.Filesystem.AllowWrite)),
	}
}
