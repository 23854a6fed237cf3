package file

import (
	"errors"
	"fmt"
)

var (
	ErrPathRequired             = errors.New("path is required")
	ErrBinaryFile               = errors.New("file is binary")
	ErrFileTooLarge             = errors.New("file too large")
	ErrOperationsRequired       = errors.New("operations cannot be empty")
	ErrSnippetNotFound          = errors.New("snippet not found")
	ErrReplacementCountMismatch = errors.New("replacement count mismatch")
	ErrEditConflict             = errors.New("edit conflict")
	ErrOffsetBeyondEnd          = errors.New("offset beyond end of file")
)

// TooLargeError is returned when file content exceeds tools.maxFileSize.
type TooLargeError struct {
	Path  string
	Size  int
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("file too large: %s (size %d, limit %d)", e.Path, e.Size, e.Limit)
}

func (e *TooLargeError) Is(target error) bool { return target == ErrFileTooLarge }

func (e *TooLargeError) InvalidInput() bool { return true }

// OffsetError is returned when a read starts past the last line.
type OffsetError struct {
	Offset     int
	TotalLines int
}

func (e *OffsetError) Error() string {
	return fmt.Sprintf("offset %d is beyond end of file (%d lines total)", e.Offset, e.TotalLines)
}

func (e *OffsetError) Is(target error) bool { return target == ErrOffsetBeyondEnd }

func (e *OffsetError) InvalidInput() bool { return true }
