package directory

import (
	"context"
	"fmt"

	"github.com/jbuckmccready/dotfiles/internal/tool"
)

func (t *FindFileTool) Name() string { return "find" }

func (t *FindFileTool) Declaration() tool.Declaration {
	return tool.Declaration{
		Name: "find",
		Description: fmt.Sprintf("Search for files by glob pattern. Returns paths relative to the search directory. "+
			"Respects .gitignore. Output is cut at %d results.", t.limit),
		Parameters: &tool.Schema{
			Type: tool.TypeObject,
			Properties: map[string]*tool.Schema{
				"pattern": {Type: tool.TypeString, Description: "Glob pattern to match files, e.g. '*.go', '**/*.json'"},
				"path":    {Type: tool.TypeString, Description: "Directory to search in (default: current directory)"},
				"limit":   {Type: tool.TypeInteger, Description: "Maximum number of results"},
			},
			Required: []string{"pattern"},
		},
	}
}

func (t *FindFileTool) Input() any { return &FindRequest{} }

func (t *FindFileTool) Execute(ctx context.Context, input any) (tool.Result, error) {
	req, ok := input.(*FindRequest)
	if !ok {
		return nil, fmt.Errorf("invalid input type: %T", input)
	}
	return t.Run(ctx, *req)
}

func (t *ListDirectoryTool) Name() string { return "ls" }

func (t *ListDirectoryTool) Declaration() tool.Declaration {
	return tool.Declaration{
		Name: "ls",
		Description: fmt.Sprintf("List directory contents sorted alphabetically, with '/' after directories. "+
			"Includes dotfiles. Output is cut at %d entries.", t.limit),
		Parameters: &tool.Schema{
			Type: tool.TypeObject,
			Properties: map[string]*tool.Schema{
				"path":  {Type: tool.TypeString, Description: "Directory to list (default: current directory)"},
				"limit": {Type: tool.TypeInteger, Description: "Maximum number of entries"},
			},
		},
	}
}

func (t *ListDirectoryTool) Input() any { return &ListRequest{} }

func (t *ListDirectoryTool) Execute(ctx context.Context, input any) (tool.Result, error) {
	req, ok := input.(*ListRequest)
	if !ok {
		return nil, fmt.Errorf("invalid input type: %T", input)
	}
	return t.Run(ctx, *req)
}

func (r *FindRequest) String() string {
	if r.Path != "" {
		return fmt.Sprintf("Finding %s in %s", r.Pattern, r.Path)
	}
	return "Finding " + r.Pattern
}

func (r *FindResponse) LLMContent() string { return r.Text }

func (r *FindResponse) Display() tool.ToolDisplay {
	return tool.StringDisplay(fmt.Sprintf("%d files", len(r.Matches)))
}

func (r *ListRequest) String() string {
	if r.Path == "" {
		return "Listing ."
	}
	return "Listing " + r.Path
}

func (r *ListResponse) LLMContent() string { return r.Text }

func (r *ListResponse) Display() tool.ToolDisplay { return tool.StringDisplay(r.Text) }
