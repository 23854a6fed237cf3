package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/jbuckmccready/dotfiles/internal/sandbox"
	"github.com/jbuckmccready/dotfiles/internal/tool/errutil"
	"github.com/jbuckmccready/dotfiles/internal/workflow"
	"github.com/jbuckmccready/dotfiles/internal/workflow/toolmanager"
)

func newShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show sandbox configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(context.Context) error {
				text := a.selector.Describe()
				if a.tty {
					text = renderMarkdown(describeMarkdown(text))
				}
				writeLine(cmd.OutOrStdout(), text)
				return nil
			})
		},
	}
}

// describeMarkdown turns the plain configuration listing into markdown: the
// first line becomes a title, "Section:" lines headings, indented lines items.
func describeMarkdown(text string) string {
	var b strings.Builder
	for i, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			b.WriteString("\n")
		case i == 0:
			b.WriteString("# " + trimmed + "\n")
		case strings.HasPrefix(line, " "):
			b.WriteString("- " + trimmed + "\n")
		case strings.HasSuffix(trimmed, ":"):
			b.WriteString("## " + strings.TrimSuffix(trimmed, ":") + "\n")
		default:
			b.WriteString(trimmed + "\n")
		}
	}
	return b.String()
}

func renderMarkdown(md string) string {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the sandbox status line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(context.Context) error {
				writeLine(cmd.OutOrStdout(), a.statusLine())
				return nil
			})
		},
	}
}

func newExecCommand(a *app) *cobra.Command {
	var timeout int
	cmd := &cobra.Command{
		Use:   "exec [flags] -- COMMAND",
		Short: "Run a shell command in the sandbox",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if timeout < 0 {
				return fmt.Errorf("--timeout must be >= 0, got %d", timeout)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.withSession(ctx, func(ctx context.Context) error {
				out := cmd.OutOrStdout()
				code, err := a.selector.Ops().Bash.Exec(ctx, strings.Join(args, " "), a.cwd, sandbox.ExecOptions{
					Timeout: time.Duration(timeout) * time.Second,
					OnData:  func(b []byte) { _, _ = out.Write(b) },
				})
				switch {
				case errors.Is(err, errutil.ErrTimeout):
					writeLine(cmd.ErrOrStderr(), fmt.Sprintf("Command timed out after %d seconds", timeout))
					return &exitError{code: 124}
				case errors.Is(err, errutil.ErrAborted):
					return &exitError{code: 130}
				case err != nil:
					return err
				case code != 0:
					return &exitError{code: code}
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&timeout, "timeout", 0, "Timeout in seconds (0 = none)")
	return cmd
}

func newToolCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tool NAME [JSON-ARGS]",
		Short: "Call an agent tool (read, write, edit, grep, find, ls, bash)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := "{}"
			if len(args) == 2 {
				raw = args[1]
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.withSession(ctx, func(ctx context.Context) error {
				events := make(chan workflow.Event, 16)
				done := make(chan struct{})
				go func() {
					defer close(done)
					for ev := range events {
						logEvent(a, ev)
					}
				}()
				msg, err := a.tools().Execute(ctx, toolmanager.Call{ID: "cli", Name: args[0], Arguments: json.RawMessage(raw)}, events)
				close(events)
				<-done
				if err != nil {
					return err
				}
				writeLine(cmd.OutOrStdout(), msg.Content)
				if msg.IsError {
					return &exitError{code: 1}
				}
				return nil
			})
		},
	}
}

func logEvent(a *app, ev workflow.Event) {
	switch ev := ev.(type) {
	case workflow.ToolStartEvent:
		a.logger.Debug("tool start", "tool", ev.ToolName, "request", ev.RequestDisplay)
	case workflow.ToolStreamEvent:
		a.logger.Debug("tool output", "tool", ev.ToolName, "bytes", len(ev.Chunk))
	case workflow.ShellEndEvent:
		a.logger.Debug("shell end", "tool", ev.ToolName, "exit", ev.ExitCode)
	case workflow.ToolEndEvent:
		a.logger.Debug("tool end", "tool", ev.ToolName, "error", ev.IsError)
	}
}
