package directory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jbuckmccready/dotfiles/internal/config"
	"github.com/jbuckmccready/dotfiles/internal/sandbox"
	"github.com/jbuckmccready/dotfiles/internal/tool/errutil"
)

// defaultIgnore names directories never searched for .gitignore files.
var defaultIgnore = []string{"node_modules", ".git"}

// FindFileTool finds files by glob through the active sandbox.
type FindFileTool struct {
	ops      findOps
	resolver pathResolver
	limit    int
}

// NewFindFileTool creates a new FindFileTool with injected dependencies.
func NewFindFileTool(ops findOps, resolver pathResolver, cfg *config.Config) *FindFileTool {
	if ops == nil {
		panic("ops is required")
	}
	if resolver == nil {
		panic("resolver is required")
	}
	if cfg == nil {
		panic("cfg is required")
	}
	return &FindFileTool{ops: ops, resolver: resolver, limit: cfg.Tools.FindDefaultLimit}
}

// Run searches req.Path for files matching req.Pattern and returns their
// paths relative to the search path, sorted.
func (t *FindFileTool) Run(ctx context.Context, req FindRequest) (*FindResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	searchPath, err := t.resolver.Abs(req.Path)
	if err != nil {
		return nil, err
	}

	ok, err := t.ops.Exists(ctx, searchPath)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errutil.NotFound("find", searchPath, nil)
	}

	limit := req.Limit
	if limit == 0 {
		limit = t.limit
	}

	found, err := t.ops.Glob(ctx, req.Pattern, searchPath, sandbox.GlobOptions{Limit: limit, Ignore: defaultIgnore})
	if err != nil {
		return nil, err
	}

	matches := make([]string, 0, len(found))
	for _, p := range found {
		matches = append(matches, Relativize(searchPath, p))
	}
	sort.Strings(matches)

	resp := &FindResponse{Matches: matches}
	if len(matches) == 0 {
		resp.Text = "No files found matching pattern"
		return resp, nil
	}
	resp.Text = strings.Join(matches, "\n")
	if len(matches) >= limit {
		resp.ResultLimitReached = limit
		resp.Text += fmt.Sprintf("\n\n[%d results limit reached. Use limit=%d for more, or refine pattern]", limit, limit*2)
	}
	return resp, nil
}
