package file

import (
	"fmt"

	"github.com/jbuckmccready/dotfiles/internal/tool"
	"github.com/jbuckmccready/dotfiles/internal/tool/helper/content"
)

// -- Read File --

type ReadFileRequest struct {
	Path string `json:"path" mapstructure:"path"`
	// Offset is the 1-based line to start at.
	Offset int `json:"offset,omitempty" mapstructure:"offset"`
	Limit  int `json:"limit,omitempty" mapstructure:"limit"`
}

func (r *ReadFileRequest) Validate() error {
	if r.Path == "" {
		return ErrPathRequired
	}
	if r.Offset < 0 {
		r.Offset = 0
	}
	if r.Limit < 0 {
		r.Limit = 0
	}
	return nil
}

func (r *ReadFileRequest) String() string {
	if r.Offset > 0 || r.Limit > 0 {
		return fmt.Sprintf("Reading %s (offset %d, limit %d)", r.Path, r.Offset, r.Limit)
	}
	return "Reading " + r.Path
}

type ReadFileResponse struct {
	Path string
	// Text is what the agent sees, including continuation notices.
	Text string
	// MimeType and ImageBase64 are set for image files.
	MimeType    string
	ImageBase64 string
	Truncation  content.Truncation
}

func (r *ReadFileResponse) LLMContent() string { return r.Text }

func (r *ReadFileResponse) Display() tool.ToolDisplay {
	if r.MimeType != "" {
		return tool.StringDisplay(r.Text)
	}
	return tool.StringDisplay(r.Truncation.Content)
}

// -- Write File --

type WriteFileRequest struct {
	Path    string `json:"path" mapstructure:"path"`
	Content string `json:"content" mapstructure:"content"`
}

func (r *WriteFileRequest) Validate(maxFileSize int64) error {
	if r.Path == "" {
		return ErrPathRequired
	}
	if int64(len(r.Content)) > maxFileSize {
		return &TooLargeError{Path: r.Path, Size: len(r.Content), Limit: maxFileSize}
	}
	return nil
}

func (r *WriteFileRequest) String() string { return "Writing " + r.Path }

type WriteFileResponse struct {
	Path         string
	RelativePath string
	BytesWritten int
}

func (r *WriteFileResponse) LLMContent() string {
	return fmt.Sprintf("Successfully wrote %d bytes to %s", r.BytesWritten, r.RelativePath)
}

func (r *WriteFileResponse) Display() tool.ToolDisplay {
	return tool.StringDisplay(fmt.Sprintf("Wrote %s (%d bytes)", r.RelativePath, r.BytesWritten))
}

// -- Edit File --

type EditOperation struct {
	Before string `json:"before" mapstructure:"before"`
	After  string `json:"after" mapstructure:"after"`
	// ExpectedReplacements defaults to 1: Before must then be unique.
	ExpectedReplacements int `json:"expected_replacements,omitempty" mapstructure:"expected_replacements"`
}

type EditFileRequest struct {
	Path       string          `json:"path" mapstructure:"path"`
	Operations []EditOperation `json:"operations" mapstructure:"operations"`
}

func (r *EditFileRequest) Validate() error {
	if r.Path == "" {
		return ErrPathRequired
	}
	if len(r.Operations) == 0 {
		return ErrOperationsRequired
	}
	return nil
}

func (r *EditFileRequest) String() string {
	return fmt.Sprintf("Editing %s (%d operations)", r.Path, len(r.Operations))
}

type EditFileResponse struct {
	Path              string
	RelativePath      string
	OperationsApplied int
	Diff              string
	AddedLines        int
	RemovedLines      int
}

func (r *EditFileResponse) LLMContent() string {
	return fmt.Sprintf("Successfully applied %d edit operations to %s (+%d -%d lines)",
		r.OperationsApplied, r.RelativePath, r.AddedLines, r.RemovedLines)
}

func (r *EditFileResponse) Display() tool.ToolDisplay {
	return tool.DiffDisplay{Diff: r.Diff, AddedLines: r.AddedLines, RemovedLines: r.RemovedLines}
}
