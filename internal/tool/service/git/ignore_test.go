package git

import (
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectIgnoreFiles(t *testing.T) {
	fsys := fstest.MapFS{
		".gitignore":                  {Data: []byte("build/\n# comment\n\n*.log\n")},
		"src/.gitignore":              {Data: []byte("gen/\n")},
		"src/main.go":                 {Data: []byte("package main")},
		"src/gen/.gitignore":          {Data: []byte("*")},
		"build/.gitignore":            {Data: []byte("*")},
		"node_modules/pkg/.gitignore": {Data: []byte("dist")},
		".git/info/.gitignore":        {Data: []byte("x")},
		"docs/readme.md":              {Data: []byte("hi")},
		"vendor/.gitignore":           {Data: []byte("x")},
	}

	got, err := CollectIgnoreFiles(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{".gitignore", "src/.gitignore", "vendor/.gitignore"}, got)

	got, err = CollectIgnoreFiles(fsys, "vendor")
	require.NoError(t, err)
	assert.Equal(t, []string{".gitignore", "src/.gitignore"}, got)
}

func TestCollectIgnoreFiles_NoIgnoreFiles(t *testing.T) {
	got, err := CollectIgnoreFiles(fstest.MapFS{"a.txt": {Data: []byte("a")}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCollectIgnoreFiles_MissingRoot(t *testing.T) {
	_, err := CollectIgnoreFiles(errFS{})
	assert.Error(t, err)
}

type errFS struct{}

func (errFS) Open(name string) (fs.File, error) {
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

func TestIgnoreMatcher_Scoped(t *testing.T) {
	var m IgnoreMatcher
	assert.False(t, m.ShouldIgnore("anything", false))

	m.Add("", []byte("*.tmp\n"))
	m.Add("pkg", []byte("out/\n"))

	tests := []struct {
		path  string
		isDir bool
		want  bool
	}{
		{"a.tmp", false, true},
		{"pkg/x.tmp", false, true},
		{"pkg/out", true, true},
		{"out", true, false},
		{"other/out", true, false},
		{"pkg/main.go", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := m.ShouldIgnore(tt.path, tt.isDir); got != tt.want {
				t.Errorf("ShouldIgnore(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestGitignoreReadError(t *testing.T) {
	cause := errors.New("boom")
	err := &GitignoreReadError{Path: "a/.gitignore", Cause: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "a/.gitignore")
}
