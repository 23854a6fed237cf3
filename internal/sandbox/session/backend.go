package session

import (
	"strconv"
)

// Backend describes how to reach a shell and how to signal into it.
type Backend struct {
	// Name identifies the backend in logs, e.g. "docker:agent-sandbox".
	Name string
	// Command is the argv of the long-lived stream process whose stdin and
	// stdout carry the shell protocol.
	Command []string
	// Env for the stream process; nil inherits the host environment.
	Env []string
	// SignalCommand returns a one-off argv that delivers SIGUSR1 to pid
	// inside the backend, independent of the blocked stream.
	SignalCommand func(pid int) []string
}

// LocalBackend runs bash directly on the host.
func LocalBackend() Backend {
	return Backend{
		Name:    "local",
		Command: []string{"bash", "--noprofile", "--norc"},
		SignalCommand: func(pid int) []string {
			return []string{"sh", "-c", "kill -USR1 " + strconv.Itoa(pid)}
		},
	}
}

// ContainerBackend execs bash inside a running container. runtime is the
// container CLI argv, e.g. ["docker"] or ["podman", "--remote"].
func ContainerBackend(runtime []string, container string) Backend {
	base := append([]string(nil), runtime...)
	return Backend{
		Name:    runtime[0] + ":" + container,
		Command: append(append([]string(nil), base...), "exec", "-i", container, "bash", "--noprofile", "--norc"),
		SignalCommand: func(pid int) []string {
			return append(append([]string(nil), base...), "exec", container, "kill", "-USR1", strconv.Itoa(pid))
		},
	}
}

// LimaBackend opens a root bash inside a Lima instance. limactl logs in as
// the default user, whose home is not /root; sudo gives the shell the guest
// home the path translation maps to. -E keeps variables forwarded with
// limactl --preserve-env.
func LimaBackend(limactl, instance string) Backend {
	return Backend{
		Name:    "lima:" + instance,
		Command: []string{limactl, "shell", "--workdir", "/", instance, "sudo", "-E", "-H", "bash", "--noprofile", "--norc"},
		SignalCommand: func(pid int) []string {
			return []string{limactl, "shell", "--workdir", "/", instance, "sudo", "kill", "-USR1", strconv.Itoa(pid)}
		},
	}
}
