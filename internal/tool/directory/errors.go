package directory

import (
	"errors"
	"fmt"
)

var (
	ErrPatternRequired = errors.New("pattern is required")
	ErrNotADirectory   = errors.New("not a directory")
)

// FindFailedError is returned when fd exits non-zero without output.
type FindFailedError struct {
	ExitCode int
	Stderr   string
}

func (e *FindFailedError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("find failed (%d)", e.ExitCode)
	}
	return fmt.Sprintf("find failed (%d): %s", e.ExitCode, e.Stderr)
}

func (e *FindFailedError) IOError() bool { return true }
