package path

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestAbs(t *testing.T) {
	resolver := NewResolver("/workspace", "/home/user")

	tests := []struct {
		name     string
		input    string
		expected string
		err      error
	}{
		{"relative path", "src/main.go", "/workspace/src/main.go", nil},
		{"absolute path", "/workspace/src/main.go", "/workspace/src/main.go", nil},
		{"dots cleaned", "src/../src/main.go", "/workspace/src/main.go", nil},
		{"cwd", ".", "/workspace", nil},
		{"empty is cwd", "", "/workspace", nil},
		{"parent escapes freely", "../etc/passwd", "/etc/passwd", nil},
		{"absolute outside cwd", "/etc/passwd", "/etc/passwd", nil},
		{"home", "~", "/home/user", nil},
		{"under home", "~/.ssh/id_rsa", "/home/user/.ssh/id_rsa", nil},
		{"at prefix", "@src/a.go", "/workspace/src/a.go", nil},
		{"tilde in middle is literal", "a~/b", "/workspace/a~/b", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.Abs(tt.input)
			if !errors.Is(err, tt.err) {
				t.Fatalf("Abs(%q) error = %v, want %v", tt.input, err, tt.err)
			}
			if got != tt.expected {
				t.Errorf("Abs(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestAbs_NoHome(t *testing.T) {
	resolver := NewResolver("/workspace", "")
	if _, err := resolver.Abs("~/x"); !errors.Is(err, ErrHomeNotSet) {
		t.Errorf("expected ErrHomeNotSet, got %v", err)
	}
}

func TestRel(t *testing.T) {
	resolver := NewResolver("/workspace", "/home/user")

	tests := []struct {
		input, expected string
	}{
		{"/workspace/src/main.go", "src/main.go"},
		{"src", "src"},
		{".", "."},
		{"/workspacex/a", "/workspacex/a"},
		{"/etc/hosts", "/etc/hosts"},
	}
	for _, tt := range tests {
		got, err := resolver.Rel(tt.input)
		if err != nil {
			t.Fatalf("Rel(%q): %v", tt.input, err)
		}
		if got != tt.expected {
			t.Errorf("Rel(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestCanonicaliseRoot(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "real")
	if err := os.Mkdir(real, 0o755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Fatal(err)
	}

	want, _ := filepath.EvalSymlinks(real)
	got, err := CanonicaliseRoot(link)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("CanonicaliseRoot = %q, want %q", got, want)
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := CanonicaliseRoot(file); !errors.Is(err, ErrNotADirectory) {
		t.Errorf("expected ErrNotADirectory, got %v", err)
	}
	var rootErr *WorkspaceRootError
	if _, err := CanonicaliseRoot(filepath.Join(dir, "missing")); !errors.As(err, &rootErr) {
		t.Errorf("expected WorkspaceRootError, got %v", err)
	}
}
