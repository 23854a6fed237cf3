package toolmanager

import (
	"context"
	"encoding/json"

	"github.com/jbuckmccready/dotfiles/internal/tool"
)

// toolImpl defines the interface for individual tools.
// Request structs should implement fmt.Stringer for display.
type toolImpl interface {
	// Name returns the tool's identifier.
	Name() string

	// Declaration returns the tool's schema for the agent.
	Declaration() tool.Declaration

	// Input returns a pointer to the input struct (e.g., &file.ReadFileRequest{}).
	Input() any

	// Execute runs the tool with typed input.
	Execute(ctx context.Context, input any) (tool.Result, error)
}

// failer is implemented by results that completed but describe a failure,
// such as a command with a non-zero exit code.
type failer interface {
	Failed() bool
}

// errorer is implemented by streaming results whose error is only known
// after the stream ends.
type errorer interface {
	Err() error
}

// Call is one tool invocation requested by the agent.
type Call struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Message is the reply handed back to the agent for a Call.
type Message struct {
	ToolCallID string
	Content    string
	IsError    bool
}
