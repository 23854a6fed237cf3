package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jbuckmccready/dotfiles/internal/tool/errutil"
)

func TestValidate_AllDefaults_Pass(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	assert.NoError(t, err)
}

func TestValidate_Container(t *testing.T) {
	t.Run("Missing Name Fails", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Type = TypeContainer
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "container must name")
		assert.ErrorIs(t, err, errutil.ErrConfig)
	})

	t.Run("Empty Runtime Fails", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Type = TypeContainer
		cfg.Container = "box"
		cfg.Runtime = " "
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "runtime")
	})
}

func TestValidate_Filesystem(t *testing.T) {
	t.Run("Two Wildcards Fail", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Filesystem.DenyWrite = []string{"*.secret.*"}
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "denyWrite")
	})

	t.Run("Single Wildcard Passes", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Filesystem.DenyWrite = []string{"id_*.pub"}
		assert.NoError(t, cfg.Validate())
	})
}

func TestValidate_Secrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Type = TypeVM
	cfg.Secrets = map[string]SecretConfig{"TOKEN": {FromEnv: "MY_TOKEN"}}
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "secrets.TOKEN.hosts")

	// fromEnv falls back to the secret name
	cfg.Secrets = map[string]SecretConfig{"TOKEN": {Hosts: []string{"x.com"}}}
	assert.NoError(t, cfg.Validate())
}

func TestValidate_Tools(t *testing.T) {
	t.Run("Zero File Size Fails", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Tools.MaxFileSize = 0
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "maxFileSize")
	})

	t.Run("Negative Shell Timeout Fails", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Tools.DefaultShellTimeout = -1
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "defaultShellTimeout")
	})

	t.Run("Collects Every Problem", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Tools.GrepMaxBytes = 0
		cfg.Session.AbortGraceMs = 0
		err := cfg.Validate()
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)
		assert.Len(t, verr.Problems, 2)
	})
}

func TestValidate_VMMemory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Memory = "4GiB"
	assert.NoError(t, cfg.Validate())

	cfg.Memory = "lots"
	err := cfg.Validate()
	assert.ErrorIs(t, err, errutil.ErrConfig)
	assert.Contains(t, err.Error(), `memory "lots"`)
}
