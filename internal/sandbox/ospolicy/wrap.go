package ospolicy

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/jbuckmccready/dotfiles/internal/config"
)

// wrapOptions carries what both platform wrappers need.
type wrapOptions struct {
	policy  *Policy
	network config.NetworkConfig
	cwd     string
	// weaker relaxes the namespace setup for hosts that are themselves
	// containers, where mounting a fresh /proc is not permitted.
	weaker bool
}

func pathExists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

// protectedFiles lists existing files directly under the writable workspace
// that match a deny-write pattern, so the wrapper can bind them read-only.
// Nested matches are still refused by the file operations.
func protectedFiles(o wrapOptions) []string {
	var out []string
	for _, pat := range o.policy.DenyWrite {
		matches, err := doublestar.FilepathGlob(filepath.Join(globEscape(o.cwd), pat))
		if err != nil {
			continue
		}
		out = append(out, matches...)
	}
	return out
}

var globMeta = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `{`, `\{`)

func globEscape(p string) string {
	return globMeta.Replace(p)
}

// networkOpen reports whether commands get network access. Domains are not
// filtered: any allowed domain opens the network and an empty list cuts it
// off. deniedDomains and allowUnixSockets are informational.
func networkOpen(n config.NetworkConfig) bool {
	return len(n.AllowedDomains) > 0
}

func networkLabel(n config.NetworkConfig) string {
	if networkOpen(n) {
		return "open"
	}
	return "blocked"
}

// bwrapPrefix builds the bubblewrap argv placed in front of the command on
// Linux. The root is read-only; writable paths are bound back on top and
// denied reads are covered with an empty tmpfs.
func bwrapPrefix(o wrapOptions) []string {
	args := []string{"bwrap", "--ro-bind", "/", "/"}
	if o.weaker {
		args = append(args, "--dev-bind", "/dev", "/dev")
	} else {
		args = append(args, "--dev", "/dev", "--proc", "/proc")
	}
	for _, w := range o.policy.AllowWrite {
		if pathExists(w) {
			args = append(args, "--bind", w, w)
		}
	}
	for _, f := range protectedFiles(o) {
		args = append(args, "--ro-bind", f, f)
	}
	for _, d := range o.policy.DenyRead {
		switch {
		case isDir(d):
			args = append(args, "--tmpfs", d)
		case pathExists(d):
			args = append(args, "--ro-bind", "/dev/null", d)
		}
	}
	if !networkOpen(o.network) {
		args = append(args, "--unshare-net")
	}
	return append(args, "--die-with-parent", "--new-session", "--")
}

func sbplString(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

// denyWriteRegex converts a deny-write pattern into an SBPL path regex.
func denyWriteRegex(pattern string) string {
	switch {
	case !strings.Contains(pattern, "*"):
		return "/" + regexp.QuoteMeta(pattern) + "$"
	default:
		prefix, suffix, _ := strings.Cut(pattern, "*")
		return "/" + regexp.QuoteMeta(prefix) + "[^/]*" + regexp.QuoteMeta(suffix) + "$"
	}
}

// seatbeltProfile renders the sandbox-exec profile used on macOS.
func seatbeltProfile(o wrapOptions) string {
	var b strings.Builder
	b.WriteString("(version 1)\n(allow default)\n")
	for _, d := range o.policy.DenyRead {
		fmt.Fprintf(&b, "(deny file-read* (subpath %s))\n", sbplString(d))
	}
	b.WriteString("(deny file-write*)\n(allow file-write*\n")
	for _, w := range o.policy.AllowWrite {
		fmt.Fprintf(&b, "  (subpath %s)\n", sbplString(w))
	}
	b.WriteString("  (literal \"/dev/null\")\n  (regex #\"^/dev/tty\")\n  (regex #\"^/dev/fd/\"))\n")
	for _, pat := range o.policy.DenyWrite {
		fmt.Fprintf(&b, "(deny file-write* (regex #\"%s\"))\n", denyWriteRegex(pat))
	}
	if !networkOpen(o.network) {
		b.WriteString("(deny network*)\n")
	}
	return b.String()
}

// wrapper returns the argv transformer for goos.
func wrapper(goos string, o wrapOptions) (func([]string) []string, error) {
	switch goos {
	case "linux":
		// rebuilt per command so files created since init are covered
		return func(argv []string) []string {
			return append(bwrapPrefix(o), argv...)
		}, nil
	case "darwin":
		profile := seatbeltProfile(o)
		return func(argv []string) []string {
			return append([]string{"sandbox-exec", "-p", profile}, argv...)
		}, nil
	}
	return nil, fmt.Errorf("Sandbox not supported on %s", goos)
}
