// Package errutil holds the error taxonomy shared by every sandbox backend and
// tool adapter. Callers classify failures with errors.Is against the sentinels
// below; concrete errors carry the operation and path.
package errutil

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"
)

var (
	ErrNotFound           = errors.New("no such file or directory")
	ErrAccessDenied       = errors.New("permission denied")
	ErrTimeout            = errors.New("timeout")
	ErrAborted            = errors.New("aborted")
	ErrBackendUnavailable = errors.New("sandbox backend unavailable")
	ErrLimitReached       = errors.New("limit reached")
	ErrConfig             = errors.New("sandbox config error")
	ErrPathDenied         = errors.New("path denied by sandbox policy")
)

// TimeoutError is returned when a command runs longer than its timeout. Its
// text is "timeout:<seconds>" so it can be told apart from a user abort.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return "timeout:" + strconv.FormatFloat(e.After.Seconds(), 'f', -1, 64)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

func (e *TimeoutError) Timeout() bool {
	return true
}

// PathError reports a failed file operation. Kind is one of the sentinels
// above; Policy marks failures produced by sandbox policy rather than by the
// filesystem.
type PathError struct {
	Op     string
	Path   string
	Kind   error
	Policy bool
	Err    error
}

func (e *PathError) Error() string {
	msg := fmt.Sprintf("%s '%s': %v", e.Op, e.Path, e.Kind)
	switch {
	case errors.Is(e.Kind, ErrNotFound):
		msg = fmt.Sprintf("ENOENT: %v, %s '%s'", e.Kind, e.Op, e.Path)
	case errors.Is(e.Kind, ErrAccessDenied):
		msg = fmt.Sprintf("EACCES: %v, %s '%s'", e.Kind, e.Op, e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PathError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Policy {
		errs = append(errs, ErrPathDenied)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NotFound builds a PathError of kind ErrNotFound.
func NotFound(op, path string, cause error) *PathError {
	return &PathError{Op: op, Path: path, Kind: ErrNotFound, Err: cause}
}

// AccessDenied builds a PathError of kind ErrAccessDenied.
func AccessDenied(op, path string, cause error) *PathError {
	return &PathError{Op: op, Path: path, Kind: ErrAccessDenied, Err: cause}
}

// PolicyDenied builds a policy violation. Denied reads surface as not found
// so the sandbox does not reveal what it hides; denied writes as access denied.
func PolicyDenied(op, path string, kind error) *PathError {
	return &PathError{Op: op, Path: path, Kind: kind, Policy: true}
}

// FromFS classifies an error returned by the os package.
func FromFS(op, path string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return NotFound(op, path, nil)
	case errors.Is(err, fs.ErrPermission):
		return AccessDenied(op, path, nil)
	}
	return fmt.Errorf("%s %s: %w", op, path, err)
}

// BackendError reports that the execution backend is gone. Reason is kept
// verbatim from the first failure.
type BackendError struct {
	Reason string
}

func (e *BackendError) Error() string {
	if e.Reason == "" {
		return "Shell is dead"
	}
	return "Shell is dead: " + e.Reason
}

func (e *BackendError) Is(target error) bool {
	return target == ErrBackendUnavailable
}

// CommandError is returned when a helper process cannot be started or read.
type CommandError struct {
	Cmd   string
	Stage string
	Cause error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed at %s: %v", e.Cmd, e.Stage, e.Cause)
}

func (e *CommandError) Unwrap() error {
	return e.Cause
}

func (e *CommandError) IOError() bool {
	return true
}
