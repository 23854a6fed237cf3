// Package pathmap translates host paths into the namespace seen inside a
// sandbox (container or VM).
package pathmap

import (
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Guest layout used by providers that virtualize the workspace.
const (
	GuestWorkspace = "/workspace"
	GuestHome      = "/root"
)

// MountTable maps host absolute path prefixes to guest absolute path prefixes.
type MountTable map[string]string

// Mount is one entry of a MountTable.
type Mount struct {
	Host  string
	Guest string
}

// Entries returns the table sorted by host prefix, for stable output.
func (m MountTable) Entries() []Mount {
	out := make([]Mount, 0, len(m))
	for h, g := range m {
		out = append(out, Mount{Host: h, Guest: g})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Host < out[j].Host })
	return out
}

// within reports whether p equals prefix or lies below it.
func within(p, prefix string) bool {
	if prefix == "/" {
		return strings.HasPrefix(p, "/")
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

// lookup returns the longest host prefix in mounts that covers p.
func lookup(p string, mounts MountTable) (host, guest string, ok bool) {
	for h, g := range mounts {
		if within(p, h) && len(h) > len(host) {
			host, guest, ok = h, g, true
		}
	}
	return host, guest, ok
}

// HostToGuest maps hostPath through the longest matching mount. Paths not
// covered by any mount are returned unchanged since they may already name a
// guest-native location such as /tmp.
func HostToGuest(hostPath string, mounts MountTable) string {
	host, guest, ok := lookup(hostPath, mounts)
	if !ok {
		return hostPath
	}
	if hostPath == host {
		return guest
	}
	suffix := strings.TrimPrefix(hostPath, host)
	if host == "/" {
		suffix = hostPath
	}
	return path.Join(guest, suffix)
}

// Covered reports whether hostPath lies inside at least one mount.
func Covered(hostPath string, mounts MountTable) bool {
	_, _, ok := lookup(hostPath, mounts)
	return ok
}

// Translator maps paths given relative to a local working directory into a
// guest that exposes that directory at GuestWorkspace and the local home at
// GuestHome.
type Translator struct {
	LocalHome      string
	LocalCwd       string
	GuestHome      string
	GuestWorkspace string
	// Mounts holds extra host->guest correspondences. The cwd->workspace and
	// home->guest home entries are implied.
	Mounts MountTable
}

// NewTranslator returns a Translator with the default guest layout. An empty
// home or cwd leaves that entry out of the table.
func NewTranslator(localHome, localCwd string, extra MountTable) *Translator {
	return &Translator{
		LocalHome:      cleanOrEmpty(localHome),
		LocalCwd:       cleanOrEmpty(localCwd),
		GuestHome:      GuestHome,
		GuestWorkspace: GuestWorkspace,
		Mounts:         extra,
	}
}

func cleanOrEmpty(p string) string {
	if p == "" {
		return ""
	}
	return filepath.Clean(p)
}

// Table returns the effective mount table: the explicit mounts plus the
// home and workspace entries.
func (t *Translator) Table() MountTable {
	table := make(MountTable, len(t.Mounts)+2)
	for h, g := range t.Mounts {
		table[h] = g
	}
	if t.LocalHome != "" {
		table[t.LocalHome] = t.GuestHome
	}
	if t.LocalCwd != "" {
		table[t.LocalCwd] = t.GuestWorkspace
	}
	return table
}

// ToGuest translates localPath. Resolution order: home shorthand, relative
// path under the workspace, then longest-prefix lookup over the home,
// workspace and extra mounts, else pass-through. It never fails; malformed
// input comes back unchanged or best-effort cleaned.
func (t *Translator) ToGuest(localPath string) string {
	if localPath == "~" {
		return t.GuestHome
	}
	if rest, ok := strings.CutPrefix(localPath, "~/"); ok {
		return path.Join(t.GuestHome, filepath.ToSlash(rest))
	}

	if !filepath.IsAbs(localPath) {
		rel := filepath.ToSlash(localPath)
		if rel == "" || rel == "." {
			return t.GuestWorkspace
		}
		// path.Join cleans "..", so a path escaping the workspace resolves
		// against the guest root instead of erroring.
		return path.Join(t.GuestWorkspace, rel)
	}

	return HostToGuest(filepath.ToSlash(filepath.Clean(localPath)), t.Table())
}
