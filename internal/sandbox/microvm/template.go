package microvm

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"al.essio.dev/pkg/shellescape"
	"gopkg.in/yaml.v3"

	"github.com/jbuckmccready/dotfiles/internal/sandbox/pathmap"
)

// GuestSkillsDir is where the host skills directory is mounted read-only.
const GuestSkillsDir = pathmap.GuestHome + "/.pi/agent/skills"

const defaultBase = "template://default"

// Template is the subset of a Lima instance definition the provider writes.
type Template struct {
	Base       string      `yaml:"base"`
	CPUs       int         `yaml:"cpus,omitempty"`
	Memory     string      `yaml:"memory,omitempty"`
	Mounts     []Mount     `yaml:"mounts"`
	Containerd Containerd  `yaml:"containerd"`
	Provision  []Provision `yaml:"provision,omitempty"`
}

type Mount struct {
	Location   string `yaml:"location"`
	MountPoint string `yaml:"mountPoint"`
	Writable   bool   `yaml:"writable"`
}

type Containerd struct {
	System bool `yaml:"system"`
	User   bool `yaml:"user"`
}

type Provision struct {
	Mode   string `yaml:"mode"`
	Script string `yaml:"script"`
}

// templateOptions are the inputs of BuildTemplate.
type templateOptions struct {
	base      string
	cpus      int
	memory    string
	cwd       string
	skillsDir string
	hosts     []string
}

// buildTemplate returns the instance definition: the workspace mounted
// writable at /workspace, skills read-only, and egress locked down to the
// allowed hosts.
func buildTemplate(o templateOptions) Template {
	t := Template{
		Base:   o.base,
		CPUs:   o.cpus,
		Memory: o.memory,
		Mounts: []Mount{
			{Location: o.cwd, MountPoint: pathmap.GuestWorkspace, Writable: true},
			{Location: o.skillsDir, MountPoint: GuestSkillsDir, Writable: false},
		},
	}
	if t.Base == "" {
		t.Base = defaultBase
	}
	if script := egressScript(o.hosts); script != "" {
		t.Provision = append(t.Provision, Provision{Mode: "system", Script: script})
	}
	return t
}

func (t Template) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode lima template: %w", err)
	}
	return out, nil
}

// networkMode summarizes allowedHosts.
type networkMode int

const (
	networkNone networkMode = iota
	networkOpen
	networkHosts
)

func modeOf(hosts []string) networkMode {
	switch {
	case len(hosts) == 0:
		return networkNone
	case slices.Contains(hosts, "*"):
		return networkOpen
	default:
		return networkHosts
	}
}

func networkLabel(hosts []string) string {
	switch modeOf(hosts) {
	case networkNone:
		return "no network"
	case networkOpen:
		return "open network"
	}
	return fmt.Sprintf("%d hosts", len(hosts))
}

// egressScript builds the boot-time firewall. Open network needs none. With
// an allowlist, each concrete host is resolved at boot and its addresses are
// let through; wildcard entries cannot be resolved and only match their apex
// domain.
func egressScript(hosts []string) string {
	mode := modeOf(hosts)
	if mode == networkOpen {
		return ""
	}

	var b strings.Builder
	b.WriteString("#!/bin/sh\nset -eu\n")
	b.WriteString("iptables -F OUTPUT\n")
	b.WriteString("iptables -A OUTPUT -o lo -j ACCEPT\n")
	b.WriteString("iptables -A OUTPUT -m conntrack --ctstate ESTABLISHED,RELATED -j ACCEPT\n")
	if mode == networkHosts {
		b.WriteString("iptables -A OUTPUT -p udp --dport 53 -j ACCEPT\n")
		b.WriteString("iptables -A OUTPUT -p tcp --dport 53 -j ACCEPT\n")
		seen := map[string]bool{}
		for _, h := range hosts {
			h = strings.TrimPrefix(h, "*.")
			if h == "" || seen[h] {
				continue
			}
			seen[h] = true
			fmt.Fprintf(&b, "for ip in $(getent ahostsv4 %s | awk '{print $1}' | sort -u); do iptables -A OUTPUT -d \"$ip\" -p tcp -m multiport --dports 80,443 -j ACCEPT; done\n",
				shellescape.Quote(h))
		}
	}
	b.WriteString("iptables -P OUTPUT DROP\n")
	return b.String()
}

// templatePath is where the rendered template of instance is kept.
func templatePath(home, instance string) string {
	return filepath.Join(home, ".pi", "sandbox-cache", "lima", instance+".yaml")
}
