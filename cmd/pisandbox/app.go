package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/jbuckmccready/dotfiles/internal/config"
	"github.com/jbuckmccready/dotfiles/internal/sandbox"
	"github.com/jbuckmccready/dotfiles/internal/sandbox/container"
	"github.com/jbuckmccready/dotfiles/internal/sandbox/disabled"
	"github.com/jbuckmccready/dotfiles/internal/sandbox/microvm"
	"github.com/jbuckmccready/dotfiles/internal/sandbox/ospolicy"
	"github.com/jbuckmccready/dotfiles/internal/tool/directory"
	"github.com/jbuckmccready/dotfiles/internal/tool/file"
	"github.com/jbuckmccready/dotfiles/internal/tool/fsutil"
	"github.com/jbuckmccready/dotfiles/internal/tool/search"
	"github.com/jbuckmccready/dotfiles/internal/tool/service/path"
	"github.com/jbuckmccready/dotfiles/internal/tool/shell"
	"github.com/jbuckmccready/dotfiles/internal/workflow/toolmanager"
)

// app holds what every subcommand shares: flags, the loaded configuration
// and the sandbox selector.
type app struct {
	noSandbox bool
	cwd       string
	home      string
	tty       bool

	logger   *log.Logger
	cfg      *config.Config
	selector *sandbox.Selector
}

func registry() sandbox.Registry {
	return sandbox.Registry{
		config.TypeDisabled:  func() sandbox.Provider { return disabled.New() },
		config.TypeOS:        func() sandbox.Provider { return ospolicy.New() },
		config.TypeVM:        func() sandbox.Provider { return microvm.New() },
		config.TypeContainer: func() sandbox.Provider { return container.New() },
	}
}

func (a *app) setup() error {
	if a.cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
		a.cwd = wd
	}
	cwd, err := path.CanonicaliseRoot(a.cwd)
	if err != nil {
		return err
	}
	a.cwd = cwd
	if a.home == "" {
		a.home, _ = os.UserHomeDir()
	}

	cfg, loadErr := config.Load(a.cwd)
	if loadErr != nil {
		a.logger.Warn("failed to load config, tools use defaults", "err", loadErr)
		a.cfg = config.DefaultConfig()
	} else {
		a.cfg = cfg
	}

	a.selector = sandbox.NewSelector(registry(),
		sandbox.WithSelectorLogger(a.logger),
		sandbox.WithNoSandbox(a.noSandbox),
		sandbox.WithHome(a.home),
		sandbox.WithConfigLoader(func(string) (*config.Config, error) { return cfg, loadErr }),
	)
	return nil
}

// withSession runs fn between session start and shutdown.
func (a *app) withSession(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	a.selector.SessionStart(ctx, a.cwd)
	defer func() {
		if serr := a.selector.SessionShutdown(context.WithoutCancel(ctx)); serr != nil {
			a.logger.Warn("sandbox shutdown failed", "err", serr)
		}
	}()
	return fn(ctx)
}

func (a *app) statusLine() string {
	st := a.selector.Status()
	if a.tty {
		return st.Render()
	}
	return st.String()
}

// tools builds the agent tool set on top of the selector's live operations,
// so every call goes to whichever provider is current.
func (a *app) tools() *toolmanager.ToolManager {
	ops := a.selector.Live()
	resolver := path.NewResolver(a.cwd, a.home)
	checksums := fsutil.NewChecksumManager()
	return toolmanager.NewToolManager(
		file.NewReadFileTool(ops.Read, checksums, resolver, a.cfg),
		file.NewWriteFileTool(ops.Write, checksums, resolver, a.cfg),
		file.NewEditFileTool(ops.Edit, checksums, resolver, a.cfg),
		search.NewGrepTool(ops.Grep, resolver, search.LimitsFromConfig(a.cfg)),
		directory.NewFindFileTool(ops.Find, resolver, a.cfg),
		directory.NewListDirectoryTool(ops.Ls, resolver, a.cfg),
		shell.NewBashTool(ops.Bash, ops.Read, resolver, a.cfg, a.logger),
	)
}

func writeLine(w io.Writer, s string) {
	_, _ = fmt.Fprintln(w, s)
}
