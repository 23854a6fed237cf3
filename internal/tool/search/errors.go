package search

import "fmt"

// PatternRequiredError is returned when pattern is empty.
type PatternRequiredError struct{}

func (e *PatternRequiredError) Error() string { return "pattern is required" }

func (e *PatternRequiredError) InvalidInput() bool { return true }

// CommandFailedError is returned when rg exits with an error status.
type CommandFailedError struct {
	ExitCode int
	Stderr   string
}

func (e *CommandFailedError) Error() string {
	if e.Stderr != "" {
		return e.Stderr
	}
	return fmt.Sprintf("ripgrep exited with code %d", e.ExitCode)
}

func (e *CommandFailedError) IOError() bool { return true }
