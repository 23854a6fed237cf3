package fsutil

import "fmt"

// AtomicWriteError reports the step of WriteFileAtomic that failed. Path is
// the temp file for the create/write/sync/close steps and the target after.
type AtomicWriteError struct {
	Stage string // create, write, sync, close, rename, chmod
	Path  string
	Cause error
}

func (e *AtomicWriteError) Error() string {
	return fmt.Sprintf("atomic write %s %s: %v", e.Stage, e.Path, e.Cause)
}

func (e *AtomicWriteError) Unwrap() error { return e.Cause }

func (e *AtomicWriteError) IOError() bool { return true }
