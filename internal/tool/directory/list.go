package directory

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jbuckmccready/dotfiles/internal/config"
	"github.com/jbuckmccready/dotfiles/internal/sandbox"
	"github.com/jbuckmccready/dotfiles/internal/tool/errutil"
)

// ListDirectoryTool lists one directory through the active sandbox.
type ListDirectoryTool struct {
	ops      lsOps
	resolver pathResolver
	limit    int
}

// NewListDirectoryTool creates a new ListDirectoryTool with injected dependencies.
func NewListDirectoryTool(ops lsOps, resolver pathResolver, cfg *config.Config) *ListDirectoryTool {
	if ops == nil {
		panic("ops is required")
	}
	if resolver == nil {
		panic("resolver is required")
	}
	if cfg == nil {
		panic("cfg is required")
	}
	return &ListDirectoryTool{ops: ops, resolver: resolver, limit: cfg.Tools.LsDefaultLimit}
}

// Run lists the entries of req.Path sorted case-insensitively, directories
// suffixed with "/".
func (t *ListDirectoryTool) Run(ctx context.Context, req ListRequest) (*ListResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	dir, err := t.resolver.Abs(req.Path)
	if err != nil {
		return nil, err
	}

	ok, err := t.ops.Exists(ctx, dir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errutil.NotFound("ls", dir, nil)
	}
	kind, err := t.ops.Stat(ctx, dir)
	if err != nil {
		return nil, err
	}
	if kind != sandbox.KindDir {
		return nil, fmt.Errorf("%w: %s", ErrNotADirectory, dir)
	}

	names, err := t.ops.ReadDir(ctx, dir)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})

	limit := req.Limit
	if limit == 0 {
		limit = t.limit
	}

	resp := &ListResponse{}
	var lines []string
	for _, name := range names {
		if len(resp.Entries) >= limit {
			resp.EntryLimitReached = limit
			break
		}
		if ctx.Err() != nil {
			return nil, errutil.ErrAborted
		}
		entryKind, err := t.ops.Stat(ctx, filepath.Join(dir, name))
		if err != nil {
			// vanished between readdir and stat
			continue
		}
		entry := DirectoryEntry{Name: name, IsDir: entryKind == sandbox.KindDir}
		resp.Entries = append(resp.Entries, entry)
		if entry.IsDir {
			lines = append(lines, name+"/")
		} else {
			lines = append(lines, name)
		}
	}

	if len(lines) == 0 {
		resp.Text = "(empty directory)"
		return resp, nil
	}
	resp.Text = strings.Join(lines, "\n")
	if resp.EntryLimitReached > 0 {
		resp.Text += fmt.Sprintf("\n\n[%d entries limit reached. Use limit=%d for more]", limit, limit*2)
	}
	return resp, nil
}
