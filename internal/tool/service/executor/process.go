package executor

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/jbuckmccready/dotfiles/internal/tool/errutil"
)

func groupAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// killGroup sends SIGKILL to the whole process group of cmd.
func killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL); err != nil {
		_ = cmd.Process.Kill()
	}
}

func signalOf(state *os.ProcessState) (syscall.Signal, bool) {
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return 0, false
	}
	return ws.Signal(), true
}

// ExitStatus describes how an interactive process ended.
type ExitStatus struct {
	Code   int
	Signal string // e.g. "SIGKILL"; empty when the process exited normally
	Err    error
}

func (s ExitStatus) String() string {
	if s.Signal != "" {
		return fmt.Sprintf("signal %s", s.Signal)
	}
	return fmt.Sprintf("code %d", s.Code)
}

// Process is a long-lived child with piped stdio, used for persistent shells.
type Process struct {
	cmd    *exec.Cmd
	Stdin  io.WriteCloser
	Stdout io.ReadCloser
	Stderr io.ReadCloser

	waitOnce sync.Once
	status   ExitStatus
}

// StartInteractive starts command with stdin, stdout and stderr piped. The
// process runs in its own group; Kill takes the group down.
func (f *OSCommandExecutor) StartInteractive(command []string, dir string, env []string) (*Process, error) {
	if len(command) == 0 {
		return nil, os.ErrInvalid
	}

	cmd := newCommand(command, dir, env)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &errutil.CommandError{Cmd: command[0], Cause: err, Stage: "start"}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &errutil.CommandError{Cmd: command[0], Cause: err, Stage: "start"}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &errutil.CommandError{Cmd: command[0], Cause: err, Stage: "start"}
	}
	if err := cmd.Start(); err != nil {
		return nil, &errutil.CommandError{Cmd: command[0], Cause: err, Stage: "start"}
	}

	f.logger.Debug("started interactive process", "cmd", command[0], "pid", cmd.Process.Pid)
	return &Process{cmd: cmd, Stdin: stdin, Stdout: stdout, Stderr: stderr}, nil
}

// Pid returns the host pid of the process.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Wait blocks until the process exits. It must only be called after the
// stdout and stderr pipes have been read to EOF. Safe to call repeatedly.
func (p *Process) Wait() ExitStatus {
	p.waitOnce.Do(func() {
		err := p.cmd.Wait()
		state := p.cmd.ProcessState
		switch {
		case state == nil:
			p.status = ExitStatus{Code: -1, Err: err}
		default:
			if sig, ok := signalOf(state); ok {
				p.status = ExitStatus{Code: -1, Signal: unix.SignalName(sig)}
			} else {
				p.status = ExitStatus{Code: state.ExitCode()}
			}
		}
	})
	return p.status
}

// Kill sends SIGKILL to the process group.
func (p *Process) Kill() {
	killGroup(p.cmd)
}
