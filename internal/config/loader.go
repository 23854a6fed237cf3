package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/tidwall/jsonc"

	"github.com/jbuckmccready/dotfiles/internal/tool/errutil"
)

const (
	// GlobalConfigPath is relative to the user's home directory.
	GlobalConfigPath = ".pi/agent/sandbox.json"
	// ProjectConfigPath is relative to the working directory.
	ProjectConfigPath = ".pi/sandbox.json"
)

// Keys whose object values are merged key by key instead of replaced.
var nestedKeys = []string{"network", "filesystem", "commandEnv", "session", "tools"}

// FileSystem abstracts file operations for testability
type FileSystem interface {
	UserHomeDir() (string, error)
	ReadFile(path string) ([]byte, error)
}

// ConfigFileReader implements FileSystem using the real OS for config loading
type ConfigFileReader struct{}

func (ConfigFileReader) UserHomeDir() (string, error) {
	return os.UserHomeDir()
}

func (ConfigFileReader) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// LoadError reports a config file that exists but could not be used.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *LoadError) Is(target error) bool { return target == errutil.ErrConfig }

// Loader handles configuration loading with injected dependencies
type Loader struct {
	fs FileSystem
}

// NewLoader creates a production Loader using the real filesystem
func NewLoader() *Loader {
	return &Loader{fs: ConfigFileReader{}}
}

// NewLoaderWithFS creates a Loader with a custom filesystem (for testing)
func NewLoaderWithFS(fs FileSystem) *Loader {
	return &Loader{fs: fs}
}

// Load reads ~/.pi/agent/sandbox.json and <cwd>/.pi/sandbox.json, lets the
// project file override the global one, and layers the result over
// DefaultConfig. Missing files are skipped. Comments and trailing commas are
// accepted.
//
// Top-level keys replace earlier values, except the objects named in
// nestedKeys which are merged one level deep, so a project that only sets
// filesystem.denyRead keeps the default allowWrite list.
func (l *Loader) Load(cwd string) (*Config, error) {
	var global map[string]any
	if home, err := l.fs.UserHomeDir(); err == nil && home != "" {
		global, err = l.readRaw(filepath.Join(home, GlobalConfigPath))
		if err != nil {
			return nil, err
		}
	}

	project, err := l.readRaw(filepath.Join(cwd, ProjectConfigPath))
	if err != nil {
		return nil, err
	}

	cfg, err := Build(mergeRaw(global, project))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Build layers a raw decoded config object over the defaults.
func Build(raw map[string]any) (*Config, error) {
	typ, err := normalizeType(raw["type"])
	if err != nil {
		return nil, &LoadError{Path: "type", Err: err}
	}

	base, err := toRaw(DefaultConfig())
	if err != nil {
		return nil, err
	}
	merged := mergeRaw(base, raw)
	merged["type"] = string(typ)

	cfg := &Config{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(merged); err != nil {
		return nil, &LoadError{Path: "sandbox.json", Err: err}
	}
	return cfg, nil
}

func (l *Loader) readRaw(path string) (map[string]any, error) {
	data, err := l.fs.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &LoadError{Path: path, Err: err}
	}

	var raw map[string]any
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return raw, nil
}

func normalizeType(v any) (Type, error) {
	if v == nil {
		return TypeOS, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("must be a string, got %T", v)
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "os":
		return TypeOS, nil
	case "disabled", "none":
		return TypeDisabled, nil
	case "vm", "gondolin", "lima":
		return TypeVM, nil
	case "container", "docker":
		return TypeContainer, nil
	}
	return Type(s), nil
}

// mergeRaw returns base overlaid with over. Neither input is modified.
func mergeRaw(base, over map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	for _, k := range nestedKeys {
		b, bok := base[k].(map[string]any)
		o, ook := over[k].(map[string]any)
		if !bok || !ook {
			continue
		}
		m := make(map[string]any, len(b)+len(o))
		for kk, vv := range b {
			m[kk] = vv
		}
		for kk, vv := range o {
			m[kk] = vv
		}
		out[k] = m
	}
	return out
}

func toRaw(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Load is a convenience function using the default loader
func Load(cwd string) (*Config, error) {
	return NewLoader().Load(cwd)
}
