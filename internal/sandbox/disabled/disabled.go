// Package disabled is the backend used when sandboxing is off. Operations run
// on the host unrestricted.
package disabled

import (
	"context"

	"github.com/jbuckmccready/dotfiles/internal/sandbox"
	"github.com/jbuckmccready/dotfiles/internal/sandbox/hostops"
	"github.com/jbuckmccready/dotfiles/internal/tool/fsutil"
	"github.com/jbuckmccready/dotfiles/internal/tool/search"
	"github.com/jbuckmccready/dotfiles/internal/tool/service/executor"
)

type Provider struct {
	ops sandbox.Ops
}

func New() *Provider {
	return &Provider{}
}

func (p *Provider) Name() string { return "disabled" }

func (p *Provider) Init(ctx context.Context, ic sandbox.InitContext) error {
	exec := executor.NewOSCommandExecutor(ic.Config, ic.Logger)
	p.ops = hostops.New(ic.Cwd, exec, fsutil.NewOSFileSystem(),
		hostops.WithGrepLimits(search.LimitsFromConfig(ic.Config)),
		hostops.WithLogger(ic.Logger),
	).Bundle()
	return nil
}

func (p *Provider) Shutdown(ctx context.Context) error { return nil }

func (p *Provider) IsActive() bool { return false }

func (p *Provider) Ops() sandbox.Ops { return p.ops }

func (p *Provider) PatchSystemPrompt(prompt string) string { return prompt }

func (p *Provider) Describe() []string { return []string{"Sandbox is disabled"} }

func (p *Provider) Status() sandbox.Status {
	return sandbox.Status{Level: sandbox.LevelWarning, Text: "⚠ Sandbox disabled"}
}
