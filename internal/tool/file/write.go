package file

import (
	"context"
	"fmt"

	"github.com/jbuckmccready/dotfiles/internal/config"
	"github.com/jbuckmccready/dotfiles/internal/tool"
)

// WriteFileTool creates or overwrites files through the active sandbox.
type WriteFileTool struct {
	ops       writeOps
	checksums checksumManager
	resolver  pathResolver
	config    *config.Config
}

// NewWriteFileTool creates a new WriteFileTool with injected dependencies.
func NewWriteFileTool(ops writeOps, checksums checksumManager, resolver pathResolver, cfg *config.Config) *WriteFileTool {
	if ops == nil {
		panic("ops is required")
	}
	if checksums == nil {
		panic("checksums is required")
	}
	if resolver == nil {
		panic("resolver is required")
	}
	if cfg == nil {
		panic("cfg is required")
	}
	return &WriteFileTool{ops: ops, checksums: checksums, resolver: resolver, config: cfg}
}

func (t *WriteFileTool) Name() string { return "write" }

func (t *WriteFileTool) Declaration() tool.Declaration {
	return tool.Declaration{
		Name:        "write",
		Description: "Write content to a file. Creates the file if it doesn't exist, overwrites it if it does. Parent directories are created.",
		Parameters: &tool.Schema{
			Type: tool.TypeObject,
			Properties: map[string]*tool.Schema{
				"path":    {Type: tool.TypeString, Description: "Path to the file (relative or absolute)"},
				"content": {Type: tool.TypeString, Description: "Content to write"},
			},
			Required: []string{"path", "content"},
		},
	}
}

func (t *WriteFileTool) Input() any { return &WriteFileRequest{} }

func (t *WriteFileTool) Execute(ctx context.Context, input any) (tool.Result, error) {
	req, ok := input.(*WriteFileRequest)
	if !ok {
		return nil, fmt.Errorf("invalid input type: %T", input)
	}
	return t.Run(ctx, req)
}

// Run writes req.Content to req.Path and records the new checksum, so a
// following edit does not see its own write as a conflict.
func (t *WriteFileTool) Run(ctx context.Context, req *WriteFileRequest) (*WriteFileResponse, error) {
	if err := req.Validate(t.config.Tools.MaxFileSize); err != nil {
		return nil, err
	}
	abs, err := t.resolver.Abs(req.Path)
	if err != nil {
		return nil, err
	}
	rel, err := t.resolver.Rel(abs)
	if err != nil {
		return nil, err
	}

	data := []byte(req.Content)
	if err := t.ops.WriteFile(ctx, abs, data); err != nil {
		return nil, err
	}
	t.checksums.Update(abs, t.checksums.Compute(data))

	return &WriteFileResponse{Path: abs, RelativePath: rel, BytesWritten: len(data)}, nil
}
