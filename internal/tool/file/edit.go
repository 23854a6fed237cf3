package file

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/jbuckmccready/dotfiles/internal/config"
	"github.com/jbuckmccready/dotfiles/internal/tool"
)

// EditFileTool applies exact text replacements through the active sandbox.
type EditFileTool struct {
	ops       editOps
	checksums checksumManager
	resolver  pathResolver
	config    *config.Config
}

// NewEditFileTool creates a new EditFileTool with injected dependencies.
func NewEditFileTool(ops editOps, checksums checksumManager, resolver pathResolver, cfg *config.Config) *EditFileTool {
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
	return &EditFileTool{ops: ops, checksums: checksums, resolver: resolver, config: cfg}
}

func (t *EditFileTool) Name() string { return "edit" }

func (t *EditFileTool) Declaration() tool.Declaration {
	return tool.Declaration{
		Name:        "edit",
		Description: "Edit an existing file by replacing exact text. Operations apply in order; each 'before' must match exactly 'expected_replacements' times (default 1). An empty 'before' appends.",
		Parameters: &tool.Schema{
			Type: tool.TypeObject,
			Properties: map[string]*tool.Schema{
				"path": {Type: tool.TypeString, Description: "Path to the file (relative or absolute)"},
				"operations": {
					Type:        tool.TypeArray,
					Description: "List of edit operations",
					Items: &tool.Schema{
						Type: tool.TypeObject,
						Properties: map[string]*tool.Schema{
							"before":                {Type: tool.TypeString, Description: "Exact text to find"},
							"after":                 {Type: tool.TypeString, Description: "Replacement text"},
							"expected_replacements": {Type: tool.TypeInteger, Description: "Expected match count (default 1)"},
						},
						Required: []string{"before", "after"},
					},
				},
			},
			Required: []string{"path", "operations"},
		},
	}
}

func (t *EditFileTool) Input() any { return &EditFileRequest{} }

func (t *EditFileTool) Execute(ctx context.Context, input any) (tool.Result, error) {
	req, ok := input.(*EditFileRequest)
	if !ok {
		return nil, fmt.Errorf("invalid input type: %T", input)
	}
	return t.Run(ctx, req)
}

// Run applies req.Operations to an existing file. Matching happens on
// LF-normalized text and CRLF endings are restored on write. If the file
// changed since the agent last read or wrote it, the edit is refused.
func (t *EditFileTool) Run(ctx context.Context, req *EditFileRequest) (*EditFileResponse, error) {
	if err := req.Validate(); err != nil {
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
	if err := t.ops.Access(ctx, abs); err != nil {
		return nil, err
	}

	data, err := t.ops.ReadFile(ctx, abs)
	if err != nil {
		return nil, err
	}
	if prior, ok := t.checksums.Get(abs); ok && prior != t.checksums.Compute(data) {
		return nil, fmt.Errorf("%w: file changed since last read: %s", ErrEditConflict, rel)
	}

	raw := string(data)
	hasCRLF := strings.Contains(raw, "\r\n")
	oldContent := strings.ReplaceAll(raw, "\r\n", "\n")

	edited := oldContent
	for i, op := range req.Operations {
		before := strings.ReplaceAll(op.Before, "\r\n", "\n")
		after := strings.ReplaceAll(op.After, "\r\n", "\n")
		expected := op.ExpectedReplacements
		if expected == 0 {
			expected = 1
		}

		if before == "" {
			if expected > 1 {
				return nil, fmt.Errorf("%w: operation %d appends, which has 1 target, got %d", ErrReplacementCountMismatch, i+1, expected)
			}
			edited += after
			continue
		}

		count := strings.Count(edited, before)
		if count == 0 {
			return nil, fmt.Errorf("%w: operation %d: %q in %s", ErrSnippetNotFound, i+1, op.Before, rel)
		}
		if count != expected {
			return nil, fmt.Errorf("%w: operation %d in %s: expected %d, found %d; add surrounding context to make it unique or set expected_replacements",
				ErrReplacementCountMismatch, i+1, rel, expected, count)
		}
		edited = strings.Replace(edited, before, after, expected)
	}

	final := edited
	if hasCRLF {
		final = strings.ReplaceAll(edited, "\n", "\r\n")
	}
	out := []byte(final)
	if int64(len(out)) > t.config.Tools.MaxFileSize {
		return nil, &TooLargeError{Path: abs, Size: len(out), Limit: t.config.Tools.MaxFileSize}
	}

	if err := t.ops.WriteFile(ctx, abs, out); err != nil {
		return nil, err
	}
	t.checksums.Update(abs, t.checksums.Compute(out))

	diff, added, removed := computeUnifiedDiff(filepath.Base(abs), oldContent, edited)
	return &EditFileResponse{
		Path:              abs,
		RelativePath:      rel,
		OperationsApplied: len(req.Operations),
		Diff:              diff,
		AddedLines:        added,
		RemovedLines:      removed,
	}, nil
}

func computeUnifiedDiff(filename, oldContent, newContent string) (diff string, added, removed int) {
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldContent),
		B:        difflib.SplitLines(newContent),
		FromFile: "a/" + filename,
		ToFile:   "b/" + filename,
		Context:  3,
	}
	diff, _ = difflib.GetUnifiedDiffString(ud)

	for _, line := range strings.Split(diff, "\n") {
		if strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++") {
			added++
		} else if strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---") {
			removed++
		}
	}
	return diff, added, removed
}
