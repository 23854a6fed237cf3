package path

import (
	"errors"
	"fmt"
)

// WorkspaceRootError is returned when the working directory is invalid.
type WorkspaceRootError struct {
	Root  string
	Cause error
}

func (e *WorkspaceRootError) Error() string {
	return fmt.Sprintf("invalid workspace root %s: %v", e.Root, e.Cause)
}
func (e *WorkspaceRootError) Unwrap() error { return e.Cause }

var (
	ErrHomeNotSet    = errors.New("home directory not set")
	ErrNotADirectory = errors.New("not a directory")
)
