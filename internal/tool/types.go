// Package tool declares what every agent tool shares: the JSON schema of its
// arguments, the result it hands back and the ways that result is shown.
package tool

import "io"

// Type is a JSON Schema primitive.
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
	TypeArray   Type = "array"
	TypeObject  Type = "object"
)

// Schema is the subset of JSON Schema tool arguments use.
type Schema struct {
	Type        Type               `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
}

// Declaration is the name, description and argument schema an agent sees.
type Declaration struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Parameters  *Schema `json:"parameters,omitempty"`
}

// Result is the outcome of one tool call. Results may also implement
// Failed() bool when a call completed but should be reported as an error,
// and Err() error when the failure is only known after streaming.
type Result interface {
	LLMContent() string
	Display() ToolDisplay
}

// ToolDisplay is a closed set of renderings, told apart by type switch.
type ToolDisplay interface {
	isToolDisplay()
}

// StringDisplay is plain text.
type StringDisplay string

func (StringDisplay) isToolDisplay() {}

// DiffDisplay is the unified diff of an edit.
type DiffDisplay struct {
	Diff         string
	AddedLines   int
	RemovedLines int
}

func (DiffDisplay) isToolDisplay() {}

// ShellDisplay streams a running command. Output yields combined stdout and
// stderr until the command ends; Wait must only be called after Output is
// drained and returns the exit code, or -1 when the command did not finish.
type ShellDisplay struct {
	Command    string
	WorkingDir string
	Output     io.Reader
	Wait       func() int
}

func (ShellDisplay) isToolDisplay() {}
