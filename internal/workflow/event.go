// Package workflow holds the events emitted while tools run, for whatever
// renders them.
package workflow

import "github.com/jbuckmccready/dotfiles/internal/tool"

// Event is one step of a tool call. Consumers type-switch on it.
type Event interface {
	isEvent()
}

// ToolStartEvent opens every call, including rejected ones.
type ToolStartEvent struct {
	ToolName       string
	RequestDisplay string // short summary such as the path or command
}

// ToolStreamEvent carries a chunk of shell output as it arrives.
type ToolStreamEvent struct {
	ToolName string
	Chunk    string
}

// ToolEndEvent closes a call that did not stream.
type ToolEndEvent struct {
	ToolName string
	Display  tool.ToolDisplay
	IsError  bool
}

// ShellEndEvent closes a streamed shell call.
type ShellEndEvent struct {
	ToolName string
	ExitCode int
}

func (ToolStartEvent) isEvent()  {}
func (ToolStreamEvent) isEvent() {}
func (ToolEndEvent) isEvent()    {}
func (ShellEndEvent) isEvent()   {}
