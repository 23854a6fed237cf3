package shell

import (
	"fmt"
	"strings"

	"github.com/jbuckmccready/dotfiles/internal/tool"
	"github.com/jbuckmccready/dotfiles/internal/tool/helper/content"
)

// BashRequest is the argument set of the bash tool.
type BashRequest struct {
	Command string `json:"command" mapstructure:"command"`
	// Timeout is in seconds; 0 uses tools.defaultShellTimeout.
	Timeout    int               `json:"timeout,omitempty" mapstructure:"timeout"`
	WorkingDir string            `json:"working_dir,omitempty" mapstructure:"working_dir"`
	Env        map[string]string `json:"env,omitempty" mapstructure:"env"`
	EnvFiles   []string          `json:"env_files,omitempty" mapstructure:"env_files"`
}

func (r *BashRequest) Validate() error {
	if strings.TrimSpace(r.Command) == "" {
		return &RequestError{Field: "command", Reason: "cannot be empty"}
	}
	if r.Timeout < 0 {
		return &RequestError{Field: "timeout", Reason: fmt.Sprintf("cannot be negative: %d", r.Timeout)}
	}
	for k := range r.Env {
		if !validEnvKey(k) {
			return fmt.Errorf("%w: env key %q", ErrEnvFileParse, k)
		}
	}
	return nil
}

func (r *BashRequest) String() string {
	if r.Timeout > 0 {
		return fmt.Sprintf("$ %s (timeout %ds)", r.Command, r.Timeout)
	}
	return "$ " + r.Command
}

// BashResponse is the outcome of one command.
type BashResponse struct {
	Command    string
	WorkingDir string
	ExitCode   int
	TimedOut   bool
	Timeout    int
	// Truncation is the tail of the output handed to the agent.
	Truncation content.Truncation
	// Dropped is set when output beyond tools.maxCommandOutputSize was
	// discarded before the tail was taken.
	Dropped bool
}

// Failed reports a non-zero exit or a timeout.
func (r *BashResponse) Failed() bool { return r.TimedOut || r.ExitCode != 0 }

func (r *BashResponse) LLMContent() string {
	out := r.Truncation.Content
	if out == "" {
		out = "(no output)"
	}
	switch {
	case r.Truncation.Truncated && !r.Dropped:
		out += fmt.Sprintf("\n\n[Showing last %d of %d lines]", r.Truncation.OutputLines, r.Truncation.TotalLines)
	case r.Truncation.Truncated || r.Dropped:
		out += fmt.Sprintf("\n\n[Output truncated, showing last %d lines]", r.Truncation.OutputLines)
	}
	switch {
	case r.TimedOut:
		out += fmt.Sprintf("\n\nCommand timed out after %d seconds", r.Timeout)
	case r.ExitCode != 0:
		out += fmt.Sprintf("\n\nCommand exited with code %d", r.ExitCode)
	}
	return out
}

func (r *BashResponse) Display() tool.ToolDisplay {
	return tool.StringDisplay(r.Truncation.Content)
}
