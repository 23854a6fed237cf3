package microvm

import (
	"sort"

	"github.com/jbuckmccready/dotfiles/internal/config"
)

// secret is a host environment value handed to the guest.
type secret struct {
	Name  string
	Value string
	Hosts []string
}

// resolveSecrets reads each configured secret from the host environment,
// from FromEnv when set and otherwise from the secret's own name. Unset or
// empty variables are skipped. Without network access nothing is resolved.
func resolveSecrets(defs map[string]config.SecretConfig, networkEnabled bool, getenv func(string) string) []secret {
	if !networkEnabled {
		return nil
	}
	var out []secret
	for name, def := range defs {
		key := def.FromEnv
		if key == "" {
			key = name
		}
		v := getenv(key)
		if v == "" {
			continue
		}
		out = append(out, secret{Name: name, Value: v, Hosts: def.Hosts})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// secretEnv formats secrets as NAME=value pairs.
func secretEnv(secrets []secret) []string {
	env := make([]string, 0, len(secrets))
	for _, s := range secrets {
		env = append(env, s.Name+"="+s.Value)
	}
	return env
}
