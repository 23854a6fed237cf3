package config

import "os"

// Type selects the sandbox backend.
type Type string

const (
	TypeDisabled  Type = "disabled"
	TypeOS        Type = "os"
	TypeVM        Type = "vm"
	TypeContainer Type = "container"
)

// Config holds the merged sandbox configuration.
//
// Backend-specific keys sit at the top level so existing sandbox.json files
// keep working (e.g. {"type": "docker", "container": "agent-sandbox"}).
type Config struct {
	Type    Type  `json:"type"`
	Enabled *bool `json:"enabled,omitempty"`

	// OS policy
	Network                   NetworkConfig       `json:"network"`
	Filesystem                FilesystemConfig    `json:"filesystem"`
	IgnoreViolations          map[string][]string `json:"ignoreViolations,omitempty"`
	EnableWeakerNestedSandbox bool                `json:"enableWeakerNestedSandbox,omitempty"`
	CommandEnv                map[string]string   `json:"commandEnv,omitempty"`

	// Container
	Container string            `json:"container,omitempty"`
	Runtime   string            `json:"runtime,omitempty"`
	Mounts    map[string]string `json:"mounts,omitempty"`

	// Micro-VM
	Instance     string                  `json:"instance,omitempty"`
	GuestDir     string                  `json:"guestDir,omitempty"`
	AllowedHosts []string                `json:"allowedHosts,omitempty"`
	Secrets      map[string]SecretConfig `json:"secrets,omitempty"`
	ExcludePaths []string                `json:"excludePaths,omitempty"`
	CPUs         int                     `json:"cpus,omitempty"`
	Memory       string                  `json:"memory,omitempty"`

	Session SessionConfig `json:"session"`
	Tools   ToolsConfig   `json:"tools"`
}

type NetworkConfig struct {
	AllowedDomains    []string `json:"allowedDomains"`
	DeniedDomains     []string `json:"deniedDomains"`
	AllowUnixSockets  []string `json:"allowUnixSockets,omitempty"`
	AllowLocalBinding bool     `json:"allowLocalBinding,omitempty"`
}

type FilesystemConfig struct {
	DenyRead   []string `json:"denyRead"`
	AllowWrite []string `json:"allowWrite"`
	DenyWrite  []string `json:"denyWrite"`
}

// SecretConfig injects a host environment variable into the VM for requests
// to the listed hosts.
type SecretConfig struct {
	Hosts   []string `json:"hosts"`
	FromEnv string   `json:"fromEnv"`
}

type SessionConfig struct {
	// AbortGraceMs is how long a session waits for the end marker after
	// signalling an abort or timeout before declaring the shell dead.
	AbortGraceMs int `json:"abortGraceMs"`
	// StartTimeoutMs bounds session startup (spawn + pid handshake).
	StartTimeoutMs int `json:"startTimeoutMs"`
	// ProbeTimeoutMs bounds backend probes such as container inspect.
	ProbeTimeoutMs int `json:"probeTimeoutMs"`
}

type ToolsConfig struct {
	MaxFileSize          int64 `json:"maxFileSize"`
	MaxCommandOutputSize int64 `json:"maxCommandOutputSize"`
	DefaultShellTimeout  int   `json:"defaultShellTimeout"` // seconds, 0 = none

	GrepDefaultLimit  int `json:"grepDefaultLimit"`
	GrepMaxBytes      int `json:"grepMaxBytes"`
	GrepMaxLineLength int `json:"grepMaxLineLength"`

	FindDefaultLimit int `json:"findDefaultLimit"`
	LsDefaultLimit   int `json:"lsDefaultLimit"`

	// ReadMaxLines and ReadMaxBytes bound one page of the read tool and the
	// tail of bash output handed back to the agent.
	ReadMaxLines int `json:"readMaxLines"`
	ReadMaxBytes int `json:"readMaxBytes"`
}

// IsEnabled reports whether the sandbox is switched on. A missing "enabled"
// key means enabled.
func (c *Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// DefaultConfig returns the settings used when no field is configured.
func DefaultConfig() *Config {
	return &Config{
		Type:       TypeOS,
		Network:    DefaultOSConfig().Network,
		Filesystem: DefaultOSConfig().Filesystem,
		Runtime:    "docker",
		Instance:   "pi-sandbox",
		Session: SessionConfig{
			AbortGraceMs:   5000,
			StartTimeoutMs: 10000,
			ProbeTimeoutMs: 10000,
		},
		Tools: ToolsConfig{
			MaxFileSize:          20 * 1024 * 1024,
			MaxCommandOutputSize: 10 * 1024 * 1024,
			DefaultShellTimeout:  0,
			GrepDefaultLimit:     100,
			GrepMaxBytes:         50 * 1024,
			GrepMaxLineLength:    500,
			FindDefaultLimit:     1000,
			LsDefaultLimit:       500,
			ReadMaxLines:         2000,
			ReadMaxBytes:         50 * 1024,
		},
	}
}

// DefaultOSConfig is the policy applied by the OS-level sandbox before any
// user overrides.
func DefaultOSConfig() *Config {
	return &Config{
		Type: TypeOS,
		Network: NetworkConfig{
			AllowedDomains: []string{
				"npmjs.org",
				"*.npmjs.org",
				"registry.npmjs.org",
				"registry.yarnpkg.com",
				"pypi.org",
				"*.pypi.org",
				"files.pythonhosted.org",
				"anthropic.com",
				"*.anthropic.com",
				"github.com",
				"*.github.com",
				"api.github.com",
				"raw.githubusercontent.com",
			},
			DeniedDomains:    []string{},
			AllowUnixSockets: sshAgentSockets(),
		},
		Filesystem: FilesystemConfig{
			DenyRead:   []string{"~/.ssh", "~/.aws", "~/.gnupg"},
			AllowWrite: []string{".", "/tmp", "/private/tmp", "~/.pi/sandbox-cache"},
			DenyWrite:  []string{".env", ".env.*", "*.pem", "*.key", ".pi/sandbox.json"},
		},
	}
}

func sshAgentSockets() []string {
	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		return []string{sock}
	}
	return nil
}
