package search

import (
	"context"
	"fmt"

	"github.com/jbuckmccready/dotfiles/internal/tool"
)

// grepOps is the search capability of the active sandbox.
type grepOps interface {
	Grep(ctx context.Context, p Params) (*Result, error)
}

type pathResolver interface {
	Abs(path string) (string, error)
}

// GrepTool searches file contents through the active sandbox.
type GrepTool struct {
	ops      grepOps
	resolver pathResolver
	limits   Limits
}

// NewGrepTool creates a new GrepTool with injected dependencies.
func NewGrepTool(ops grepOps, resolver pathResolver, limits Limits) *GrepTool {
	if ops == nil {
		panic("ops is required")
	}
	if resolver == nil {
		panic("resolver is required")
	}
	return &GrepTool{ops: ops, resolver: resolver, limits: limits}
}

func (t *GrepTool) Name() string { return "grep" }

func (t *GrepTool) Declaration() tool.Declaration {
	return tool.Declaration{
		Name: "grep",
		Description: fmt.Sprintf("Search file contents for a pattern. Returns matching lines with file paths and line numbers. "+
			"Respects .gitignore. Output is cut at %d matches or %s; long lines are cut at %d characters.",
			t.limits.DefaultLimit, formatSize(t.limits.MaxBytes), t.limits.MaxLineLength),
		Parameters: &tool.Schema{
			Type: tool.TypeObject,
			Properties: map[string]*tool.Schema{
				"pattern":    {Type: tool.TypeString, Description: "Search pattern (regex or literal string)"},
				"path":       {Type: tool.TypeString, Description: "Directory or file to search (default: current directory)"},
				"glob":       {Type: tool.TypeString, Description: "Filter files by glob pattern, e.g. '*.go'"},
				"ignoreCase": {Type: tool.TypeBoolean, Description: "Case-insensitive search"},
				"literal":    {Type: tool.TypeBoolean, Description: "Treat pattern as a literal string"},
				"context":    {Type: tool.TypeInteger, Description: "Lines of context around each match"},
				"limit":      {Type: tool.TypeInteger, Description: "Maximum number of matches to return"},
			},
			Required: []string{"pattern"},
		},
	}
}

func (t *GrepTool) Input() any { return &Params{} }

func (t *GrepTool) Execute(ctx context.Context, input any) (tool.Result, error) {
	p, ok := input.(*Params)
	if !ok {
		return nil, fmt.Errorf("invalid input type: %T", input)
	}
	return t.Run(ctx, *p)
}

// Run searches with p.Path resolved to a host path.
func (t *GrepTool) Run(ctx context.Context, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	abs, err := t.resolver.Abs(p.Path)
	if err != nil {
		return nil, err
	}
	p.Path = abs
	return t.ops.Grep(ctx, p)
}

func (p *Params) String() string {
	if p.Path != "" {
		return fmt.Sprintf("Searching %q in %s", p.Pattern, p.Path)
	}
	return fmt.Sprintf("Searching %q", p.Pattern)
}

func (r *Result) LLMContent() string { return r.Text }

func (r *Result) Display() tool.ToolDisplay {
	if r.MatchCount == 0 {
		return tool.StringDisplay(r.Text)
	}
	return tool.StringDisplay(fmt.Sprintf("%d matches", r.MatchCount))
}
