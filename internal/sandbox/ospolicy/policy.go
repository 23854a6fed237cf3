package ospolicy

import (
	"path/filepath"
	"strings"

	"github.com/jbuckmccready/dotfiles/internal/config"
	"github.com/jbuckmccready/dotfiles/internal/tool/errutil"
)

// Policy is the filesystem part of the OS sandbox with every configured
// path expanded and symlinks resolved.
type Policy struct {
	DenyRead   []string
	AllowWrite []string
	// DenyWrite holds the raw patterns; see MatchesDenyWrite.
	DenyWrite []string
}

// NewPolicy expands the configured paths against cwd and home.
func NewPolicy(fsCfg config.FilesystemConfig, cwd, home string) *Policy {
	p := &Policy{DenyWrite: append([]string(nil), fsCfg.DenyWrite...)}
	for _, e := range fsCfg.DenyRead {
		p.DenyRead = append(p.DenyRead, ExpandConfigPath(e, cwd, home))
	}
	for _, e := range fsCfg.AllowWrite {
		p.AllowWrite = append(p.AllowWrite, ExpandConfigPath(e, cwd, home))
	}
	return p
}

// ExpandHome replaces a leading "~" with home.
func ExpandHome(v, home string) string {
	if v == "~" {
		return home
	}
	if rest, ok := strings.CutPrefix(v, "~/"); ok {
		return filepath.Join(home, rest)
	}
	return v
}

// ExpandConfigPath turns a config entry into an absolute path: "." is cwd,
// "~" is home, absolute stays, anything else is relative to cwd. Symlinks are
// resolved when the path exists.
func ExpandConfigPath(entry, cwd, home string) string {
	var p string
	switch {
	case entry == ".":
		p = cwd
	case entry == "~" || strings.HasPrefix(entry, "~/"):
		p = ExpandHome(entry, home)
	case filepath.IsAbs(entry):
		p = entry
	default:
		p = filepath.Join(cwd, entry)
	}
	if real, err := filepath.EvalSymlinks(p); err == nil {
		return real
	}
	return filepath.Clean(p)
}

// resolvePath resolves symlinks in p. A path that does not exist yet is
// resolved through its parent so writes of new files compare correctly.
func resolvePath(p string) string {
	if real, err := filepath.EvalSymlinks(p); err == nil {
		return real
	}
	if parent, err := filepath.EvalSymlinks(filepath.Dir(p)); err == nil {
		return filepath.Join(parent, filepath.Base(p))
	}
	return filepath.Clean(p)
}

func isUnderDir(p, dir string) bool {
	if p == dir {
		return true
	}
	return strings.HasPrefix(strings.TrimSuffix(p, "/")+"/", strings.TrimSuffix(dir, "/")+"/")
}

// MatchesDenyWrite reports whether abs matches a deny-write pattern. Patterns
// are an exact base name (".env"), "*.ext", "prefix*suffix" (".env.*") or a
// path suffix (".pi/sandbox.json").
func MatchesDenyWrite(abs, pattern string) bool {
	name := filepath.Base(abs)
	switch {
	case !strings.Contains(pattern, "*") && !strings.Contains(pattern, "/"):
		return name == pattern
	case strings.HasPrefix(pattern, "*."):
		return strings.HasSuffix(name, pattern[1:])
	case strings.Contains(pattern, "*"):
		prefix, suffix, _ := strings.Cut(pattern, "*")
		return len(name) >= len(prefix)+len(suffix) && strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix)
	}
	return strings.HasSuffix(abs, "/"+pattern) || abs == pattern
}

// CheckRead hides denied paths: they read as not found.
func (p *Policy) CheckRead(path string) error {
	resolved := resolvePath(path)
	for _, d := range p.DenyRead {
		if isUnderDir(resolved, d) {
			return errutil.PolicyDenied("open", path, errutil.ErrNotFound)
		}
	}
	return nil
}

// CheckWrite rejects deny-write matches and anything outside the writable
// directories with access denied.
func (p *Policy) CheckWrite(path string) error {
	resolved := resolvePath(path)
	for _, pat := range p.DenyWrite {
		if MatchesDenyWrite(resolved, pat) {
			return errutil.PolicyDenied("open", path, errutil.ErrAccessDenied)
		}
	}
	for _, d := range p.AllowWrite {
		if isUnderDir(resolved, d) {
			return nil
		}
	}
	return errutil.PolicyDenied("open", path, errutil.ErrAccessDenied)
}
