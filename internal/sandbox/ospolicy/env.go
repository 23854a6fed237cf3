package ospolicy

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CacheRoot is where sandboxed tool caches live, below the home directory.
const CacheRoot = ".pi/sandbox-cache"

// DefaultCacheEnv points the caches of common toolchains into root, which is
// writable inside the sandbox.
func DefaultCacheEnv(root string) map[string]string {
	npm := filepath.Join(root, "npm")
	return map[string]string{
		"TMPDIR":                "/tmp",
		"npm_config_cache":      npm,
		"NPM_CONFIG_CACHE":      npm,
		"BUN_INSTALL_CACHE_DIR": filepath.Join(root, "bun"),
		"PNPM_STORE_DIR":        filepath.Join(root, "pnpm-store"),
		"YARN_CACHE_FOLDER":     filepath.Join(root, "yarn"),
		"PIP_CACHE_DIR":         filepath.Join(root, "pip"),
		"UV_CACHE_DIR":          filepath.Join(root, "uv"),
		"ZIG_LOCAL_CACHE_DIR":   filepath.Join(root, "zig-local"),
		"ZIG_GLOBAL_CACHE_DIR":  filepath.Join(root, "zig-global"),
		"GOCACHE":               filepath.Join(root, "go-build"),
		"GOMODCACHE":            filepath.Join(root, "go-mod"),
		"CARGO_HOME":            filepath.Join(root, "cargo"),
		"RUSTUP_HOME":           filepath.Join(root, "rustup"),
		"XDG_CACHE_HOME":        filepath.Join(root, "xdg"),
		"XDG_DATA_HOME":         filepath.Join(root, "xdg-data"),
	}
}

// CommandEnv is the cache env overlaid with the configured commandEnv, whose
// values may start with "~".
func CommandEnv(commandEnv map[string]string, home string) map[string]string {
	env := DefaultCacheEnv(filepath.Join(home, CacheRoot))
	for k, v := range commandEnv {
		env[k] = ExpandHome(v, home)
	}
	return env
}

// mergeEnv overlays overrides on base (KEY=VALUE form). The result is sorted.
func mergeEnv(base []string, overrides map[string]string) []string {
	merged := make(map[string]string, len(base)+len(overrides))
	for _, kv := range base {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			merged[k] = v
		}
	}
	for k, v := range overrides {
		merged[k] = v
	}
	out := make([]string, 0, len(merged))
	for k, v := range merged {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

func hostEnv() []string {
	return os.Environ()
}
