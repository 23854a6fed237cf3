package directory

import (
	"bytes"
	"context"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"al.essio.dev/pkg/shellescape"

	"github.com/jbuckmccready/dotfiles/internal/tool/service/executor"
	"github.com/jbuckmccready/dotfiles/internal/tool/service/git"
)

// FdOptions describes one fd run.
type FdOptions struct {
	Pattern string
	// GuestCwd is the directory fd searches, in the backend's namespace.
	GuestCwd string
	// SearchPath is the same directory on the host. Results are mapped back
	// under it.
	SearchPath  string
	Limit       int
	IgnoreFiles []string // backend paths passed as --ignore-file
	Exclude     []string
}

// FdCommand builds the fd command line for o.
func FdCommand(o FdOptions) string {
	args := []string{"fd", "--glob", "--color=never", "--hidden", "--max-results", strconv.Itoa(o.Limit)}
	for _, f := range o.IgnoreFiles {
		args = append(args, "--ignore-file", f)
	}
	for _, x := range o.Exclude {
		args = append(args, "--exclude", x)
	}
	args = append(args, o.Pattern, o.GuestCwd)
	return shellescape.QuoteCommand(args)
}

// FdGlob runs fd through exec and returns host paths below o.SearchPath.
// A non-zero exit with no output is an error only when fd wrote to stderr.
func FdGlob(ctx context.Context, exec executor.StreamingExec, o FdOptions) ([]string, error) {
	var stdout, stderr bytes.Buffer
	rc, err := exec(ctx, FdCommand(o), func(b []byte) { stdout.Write(b) }, func(b []byte) { stderr.Write(b) })
	if err != nil {
		return nil, err
	}

	out := strings.TrimSpace(stdout.String())
	if rc != 0 && out == "" {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, &FindFailedError{ExitCode: rc, Stderr: msg}
		}
		return nil, nil
	}
	if out == "" {
		return nil, nil
	}

	guestCwd := strings.TrimSuffix(o.GuestCwd, "/")
	var paths []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		line = strings.ReplaceAll(line, "\\", "/")
		dir := strings.HasSuffix(line, "/")

		var rel string
		switch {
		case guestCwd == "" && strings.HasPrefix(line, "/"):
			rel = line
		case line == guestCwd:
			rel = ""
		case strings.HasPrefix(line, guestCwd+"/"):
			rel = line[len(guestCwd)+1:]
		default:
			rel = strings.TrimPrefix(line, "./")
		}

		p := filepath.Join(o.SearchPath, filepath.FromSlash(path.Clean("/" + rel)))
		if dir && p != "/" {
			p += "/"
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// HostIgnoreFiles lists the absolute paths of .gitignore files below cwd on
// the host, skipping directories named in skip. Errors yield no files.
func HostIgnoreFiles(cwd string, skip []string) []string {
	found, err := git.CollectIgnoreFiles(os.DirFS(cwd), skip...)
	if err != nil {
		return nil
	}
	out := make([]string, len(found))
	for i, f := range found {
		out[i] = filepath.Join(cwd, filepath.FromSlash(f))
	}
	return out
}

// Relativize returns p relative to root. The root "/" case is handled so
// results never start with a separator.
func Relativize(root, p string) string {
	dir := strings.HasSuffix(p, "/") && p != "/"
	clean := filepath.Clean(p)
	root = filepath.Clean(root)

	var rel string
	switch {
	case root == "/":
		rel = strings.TrimPrefix(clean, "/")
	case clean == root:
		rel = "."
	case strings.HasPrefix(clean, root+"/"):
		rel = clean[len(root)+1:]
	default:
		rel = clean
	}
	if dir && rel != "." && rel != "" {
		rel += "/"
	}
	return rel
}
