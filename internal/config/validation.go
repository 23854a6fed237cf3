package config

import (
	"fmt"
	"strings"

	"github.com/docker/go-units"

	"github.com/jbuckmccready/dotfiles/internal/tool/errutil"
)

// ValidationError lists every problem found in a config.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: %v", e.Problems)
}

func (e *ValidationError) Is(target error) bool { return target == errutil.ErrConfig }

// Validate checks config values for correctness.
// Returns an error if any values are invalid.
func (c *Config) Validate() error {
	var errs []string

	switch c.Type {
	case TypeDisabled, TypeOS, TypeVM, TypeContainer:
	default:
		errs = append(errs, fmt.Sprintf("type %q is not one of disabled, os, vm, container", c.Type))
	}

	if c.Type == TypeContainer && strings.TrimSpace(c.Container) == "" {
		errs = append(errs, "container must name a running container")
	}
	if c.Type == TypeContainer && strings.TrimSpace(c.Runtime) == "" {
		errs = append(errs, "runtime must not be empty")
	}
	if c.Type == TypeVM && strings.TrimSpace(c.Instance) == "" {
		errs = append(errs, "instance must not be empty")
	}
	if c.CPUs < 0 {
		errs = append(errs, "cpus must be >= 0")
	}
	if c.Memory != "" {
		if _, err := units.RAMInBytes(c.Memory); err != nil {
			errs = append(errs, fmt.Sprintf("memory %q is not a size such as 4GiB", c.Memory))
		}
	}

	for name, s := range c.Secrets {
		if len(s.Hosts) == 0 {
			errs = append(errs, fmt.Sprintf("secrets.%s.hosts must list at least one host", name))
		}
	}

	for _, p := range c.Filesystem.DenyWrite {
		if strings.Count(p, "*") > 1 {
			errs = append(errs, fmt.Sprintf("filesystem.denyWrite pattern %q may contain at most one '*'", p))
		}
	}

	// Session validation
	if c.Session.AbortGraceMs < 1 {
		errs = append(errs, "session.abortGraceMs must be >= 1")
	}
	if c.Session.StartTimeoutMs < 1 {
		errs = append(errs, "session.startTimeoutMs must be >= 1")
	}
	if c.Session.ProbeTimeoutMs < 1 {
		errs = append(errs, "session.probeTimeoutMs must be >= 1")
	}

	// Tools validation
	if c.Tools.MaxFileSize < 1 {
		errs = append(errs, "tools.maxFileSize must be >= 1")
	}
	if c.Tools.MaxCommandOutputSize < 1 {
		errs = append(errs, "tools.maxCommandOutputSize must be >= 1")
	}
	if c.Tools.DefaultShellTimeout < 0 {
		errs = append(errs, "tools.defaultShellTimeout must be >= 0")
	}
	if c.Tools.GrepDefaultLimit < 1 {
		errs = append(errs, "tools.grepDefaultLimit must be >= 1")
	}
	if c.Tools.GrepMaxBytes < 1 {
		errs = append(errs, "tools.grepMaxBytes must be >= 1")
	}
	if c.Tools.GrepMaxLineLength < 1 {
		errs = append(errs, "tools.grepMaxLineLength must be >= 1")
	}
	if c.Tools.FindDefaultLimit < 1 {
		errs = append(errs, "tools.findDefaultLimit must be >= 1")
	}
	if c.Tools.LsDefaultLimit < 1 {
		errs = append(errs, "tools.lsDefaultLimit must be >= 1")
	}
	if c.Tools.ReadMaxLines < 1 {
		errs = append(errs, "tools.readMaxLines must be >= 1")
	}
	if c.Tools.ReadMaxBytes < 1 {
		errs = append(errs, "tools.readMaxBytes must be >= 1")
	}

	if len(errs) > 0 {
		return &ValidationError{Problems: errs}
	}

	return nil
}
