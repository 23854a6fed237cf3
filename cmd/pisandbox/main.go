// Command pisandbox runs agent tools and shell commands inside the sandbox
// configured for the current directory.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jbuckmccready/dotfiles/internal/logging"
)

func main() {
	err := newApp().Execute()
	var exit *exitError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// exitError carries a non-zero exit status without printing anything.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func newApp() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "pisandbox",
		Short: "Run agent tools inside a sandbox",
		Example: `  Show the sandbox chosen for this directory:
  $ pisandbox show

  Run a command in the sandbox:
  $ pisandbox exec -- ls -la

  Call a tool:
  $ pisandbox tool read '{"path": "README.md"}'`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVar(&a.noSandbox, "no-sandbox", false, "Disable sandboxing for this run")
	rootCmd.PersistentFlags().StringVar(&a.cwd, "cwd", "", "Working directory (default: current directory)")
	rootCmd.PersistentFlags().String("log-level", "warn", "Set the logging level [debug, info, warn, error]")
	rootCmd.PersistentFlags().String("log-format", "text", "Set the logging format [text, json]")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		format, _ := cmd.Flags().GetString("log-format")
		logger, err := logging.New(cmd.ErrOrStderr(), logging.WithLevel(level), logging.WithFormat(format))
		if err != nil {
			return err
		}
		a.logger = logger
		a.tty = isTerminal(cmd.OutOrStdout())
		return a.setup()
	}

	rootCmd.AddCommand(
		newShowCommand(a),
		newStatusCommand(a),
		newExecCommand(a),
		newToolCommand(a),
	)
	return rootCmd
}

func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
