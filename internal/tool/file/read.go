package file

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/jbuckmccready/dotfiles/internal/config"
	"github.com/jbuckmccready/dotfiles/internal/tool"
	"github.com/jbuckmccready/dotfiles/internal/tool/helper/content"
	"github.com/jbuckmccready/dotfiles/internal/tool/paginationutil"
)

// ReadFileTool reads files through the active sandbox.
type ReadFileTool struct {
	ops       readOps
	checksums checksumManager
	resolver  pathResolver
	config    *config.Config
}

// NewReadFileTool creates a new ReadFileTool with injected dependencies.
func NewReadFileTool(ops readOps, checksums checksumManager, resolver pathResolver, cfg *config.Config) *ReadFileTool {
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
	return &ReadFileTool{ops: ops, checksums: checksums, resolver: resolver, config: cfg}
}

func (t *ReadFileTool) Name() string { return "read" }

func (t *ReadFileTool) Declaration() tool.Declaration {
	return tool.Declaration{
		Name: "read",
		Description: fmt.Sprintf("Read the contents of a file. Images (jpg, png, gif, webp) are returned as attachments. "+
			"Text output is cut at %d lines or %d KB; use offset and limit to page through large files.",
			t.config.Tools.ReadMaxLines, t.config.Tools.ReadMaxBytes/1024),
		Parameters: &tool.Schema{
			Type: tool.TypeObject,
			Properties: map[string]*tool.Schema{
				"path":   {Type: tool.TypeString, Description: "Path to the file (relative or absolute)"},
				"offset": {Type: tool.TypeInteger, Description: "Line number to start reading from (1-indexed)"},
				"limit":  {Type: tool.TypeInteger, Description: "Maximum number of lines to read"},
			},
			Required: []string{"path"},
		},
	}
}

func (t *ReadFileTool) Input() any { return &ReadFileRequest{} }

func (t *ReadFileTool) Execute(ctx context.Context, input any) (tool.Result, error) {
	req, ok := input.(*ReadFileRequest)
	if !ok {
		return nil, fmt.Errorf("invalid input type: %T", input)
	}
	return t.Run(ctx, req)
}

// Run reads req.Path, optionally starting at a line and limited to a number
// of lines. The visible text is cut to the configured line and byte budget
// with a notice telling the agent how to continue. Only a complete read
// records the file checksum used for edit conflict detection.
func (t *ReadFileTool) Run(ctx context.Context, req *ReadFileRequest) (*ReadFileResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	abs, err := t.resolver.Abs(req.Path)
	if err != nil {
		return nil, err
	}
	if err := t.ops.Access(ctx, abs); err != nil {
		return nil, err
	}

	mime, err := t.ops.DetectImageMime(ctx, abs)
	if err != nil {
		return nil, err
	}

	data, err := t.ops.ReadFile(ctx, abs)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > t.config.Tools.MaxFileSize {
		return nil, &TooLargeError{Path: abs, Size: len(data), Limit: t.config.Tools.MaxFileSize}
	}

	if mime != "" {
		return &ReadFileResponse{
			Path:        abs,
			Text:        fmt.Sprintf("Read image file [%s]", mime),
			MimeType:    mime,
			ImageBase64: base64.StdEncoding.EncodeToString(data),
		}, nil
	}
	if content.IsBinary(data) {
		return nil, fmt.Errorf("%w: %s", ErrBinaryFile, abs)
	}

	lines := strings.Split(string(data), "\n")
	start := 0
	if req.Offset > 0 {
		start = req.Offset - 1
	}
	if start >= len(lines) {
		return nil, &OffsetError{Offset: req.Offset, TotalLines: len(lines)}
	}

	selected, page := paginationutil.Paginate(lines, start, req.Limit)
	trunc := content.TruncateHead(strings.Join(selected, "\n"), t.config.Tools.ReadMaxLines, t.config.Tools.ReadMaxBytes)
	resp := &ReadFileResponse{Path: abs, Truncation: trunc}

	switch {
	case trunc.OutputLines == 0 && trunc.Truncated:
		// the first line alone is over the byte budget
		line := start + 1
		resp.Text = fmt.Sprintf("[Line %d is %d bytes, exceeds the %d byte limit. Use bash: sed -n '%dp' %s | head -c %d]",
			line, len(lines[start]), t.config.Tools.ReadMaxBytes, line, req.Path, t.config.Tools.ReadMaxBytes)
	case trunc.Truncated:
		end := start + trunc.OutputLines
		resp.Text = trunc.Content + fmt.Sprintf("\n\n[Showing lines %d-%d of %d. Use offset=%d to continue.]",
			start+1, end, page.Total, end+1)
	case page.More() > 0:
		resp.Text = trunc.Content + fmt.Sprintf("\n\n[%d more lines in file. Use offset=%d to continue.]",
			page.More(), page.End+1)
	default:
		resp.Text = trunc.Content
	}

	if start == 0 && !trunc.Truncated && page.More() == 0 {
		t.checksums.Update(abs, t.checksums.Compute(data))
	}
	return resp, nil
}
