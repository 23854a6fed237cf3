package shell

import (
	"errors"
	"fmt"
)

var (
	// ErrEnvFileParse marks a malformed .env line or env key.
	ErrEnvFileParse = errors.New("invalid env file line")
	// ErrInvalidRequest marks arguments rejected before anything runs.
	ErrInvalidRequest = errors.New("invalid bash request")
)

// EnvFileReadError is returned when an env file cannot be read through the
// sandbox.
type EnvFileReadError struct {
	Path  string
	Cause error
}

func (e *EnvFileReadError) Error() string {
	return fmt.Sprintf("read env file %s: %v", e.Path, e.Cause)
}

func (e *EnvFileReadError) Unwrap() error { return e.Cause }

// RequestError names the argument that failed validation.
type RequestError struct {
	Field  string
	Reason string
}

func (e *RequestError) Error() string        { return e.Field + " " + e.Reason }
func (e *RequestError) Is(target error) bool { return target == ErrInvalidRequest }
func (e *RequestError) InvalidInput() bool   { return true }
