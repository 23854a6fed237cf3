package directory

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbuckmccready/dotfiles/internal/config"
	"github.com/jbuckmccready/dotfiles/internal/sandbox"
	"github.com/jbuckmccready/dotfiles/internal/tool/errutil"
	"github.com/jbuckmccready/dotfiles/internal/tool/service/path"
)

// fakeLsOps serves a flat tree keyed by host path.
type fakeLsOps struct {
	kinds   map[string]sandbox.FileKind
	entries map[string][]string
	statErr map[string]error
}

func (f *fakeLsOps) Exists(ctx context.Context, p string) (bool, error) {
	_, ok := f.kinds[p]
	return ok, nil
}

func (f *fakeLsOps) Stat(ctx context.Context, p string) (sandbox.FileKind, error) {
	if err := f.statErr[p]; err != nil {
		return sandbox.KindOther, err
	}
	k, ok := f.kinds[p]
	if !ok {
		return sandbox.KindOther, errutil.NotFound("stat", p, nil)
	}
	return k, nil
}

func (f *fakeLsOps) ReadDir(ctx context.Context, p string) ([]string, error) {
	return append([]string(nil), f.entries[p]...), nil
}

func projectTree() *fakeLsOps {
	return &fakeLsOps{
		kinds: map[string]sandbox.FileKind{
			"/proj":             sandbox.KindDir,
			"/proj/README.md":   sandbox.KindFile,
			"/proj/internal":    sandbox.KindDir,
			"/proj/go.mod":      sandbox.KindFile,
			"/proj/Makefile":    sandbox.KindFile,
			"/proj/link":        sandbox.KindSymlink,
			"/proj/empty":       sandbox.KindDir,
			"/proj/go.mod.orig": sandbox.KindFile,
		},
		entries: map[string][]string{
			"/proj":       {"internal", "go.mod", "README.md", "Makefile", "link", "empty", "go.mod.orig"},
			"/proj/empty": {},
		},
	}
}

func newListTool(ops *fakeLsOps) *ListDirectoryTool {
	return NewListDirectoryTool(ops, path.NewResolver("/proj", "/home/u"), config.DefaultConfig())
}

func TestListDirectoryTool_SortsAndMarksDirs(t *testing.T) {
	resp, err := newListTool(projectTree()).Run(context.Background(), ListRequest{})
	require.NoError(t, err)

	assert.Equal(t, "empty/\ngo.mod\ngo.mod.orig\ninternal/\nlink\nMakefile\nREADME.md", resp.Text)
	require.Len(t, resp.Entries, 7)
	assert.True(t, resp.Entries[0].IsDir)
	assert.Equal(t, "empty", resp.Entries[0].Name)
	assert.Zero(t, resp.EntryLimitReached)
}

func TestListDirectoryTool_Limit(t *testing.T) {
	resp, err := newListTool(projectTree()).Run(context.Background(), ListRequest{Limit: 2})
	require.NoError(t, err)

	assert.Equal(t, 2, resp.EntryLimitReached)
	assert.Equal(t, "empty/\ngo.mod\n\n[2 entries limit reached. Use limit=4 for more]", resp.Text)
}

func TestListDirectoryTool_EmptyDirectory(t *testing.T) {
	resp, err := newListTool(projectTree()).Run(context.Background(), ListRequest{Path: "empty"})
	require.NoError(t, err)
	assert.Equal(t, "(empty directory)", resp.Text)
}

func TestListDirectoryTool_SkipsEntriesThatFailStat(t *testing.T) {
	ops := projectTree()
	ops.statErr = map[string]error{filepath.Join("/proj", "link"): errors.New("gone")}
	resp, err := newListTool(ops).Run(context.Background(), ListRequest{})
	require.NoError(t, err)
	assert.NotContains(t, resp.Text, "link")
}

func TestListDirectoryTool_Errors(t *testing.T) {
	_, err := newListTool(projectTree()).Run(context.Background(), ListRequest{Path: "missing"})
	assert.ErrorIs(t, err, errutil.ErrNotFound)

	_, err = newListTool(projectTree()).Run(context.Background(), ListRequest{Path: "go.mod"})
	assert.ErrorIs(t, err, ErrNotADirectory)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = newListTool(projectTree()).Run(ctx, ListRequest{})
	assert.ErrorIs(t, err, errutil.ErrAborted)
}
