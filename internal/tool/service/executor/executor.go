package executor

import (
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/jbuckmccready/dotfiles/internal/config"
	"github.com/jbuckmccready/dotfiles/internal/logging"
	"github.com/jbuckmccready/dotfiles/internal/tool/errutil"
)

// waitDelay bounds how long Wait blocks on pipes held open by grandchildren
// that escaped the process group.
const waitDelay = 2 * time.Second

// Result represents the outcome of a command execution.
type Result struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Truncated bool
}

// StreamOptions configures Stream. Callbacks are never invoked concurrently.
type StreamOptions struct {
	Stdout  func([]byte)
	Stderr  func([]byte)
	Timeout time.Duration // 0 = none
}

// OSCommandExecutor runs host processes, each in its own process group so an
// abort or timeout takes the whole tree down.
type OSCommandExecutor struct {
	config *config.Config
	logger *log.Logger
}

// NewOSCommandExecutor creates a new OSCommandExecutor with injected config.
func NewOSCommandExecutor(cfg *config.Config, logger *log.Logger) *OSCommandExecutor {
	if cfg == nil {
		panic("cfg is required")
	}
	return &OSCommandExecutor{config: cfg, logger: logging.OrDiscard(logger)}
}

// Run executes a command and returns the result. It buffers output internally.
// A non-zero exit is reported through Result.ExitCode, not as an error;
// cancelling ctx kills the process group and returns errutil.ErrAborted.
func (f *OSCommandExecutor) Run(ctx context.Context, command []string, dir string, env []string) (*Result, error) {
	if len(command) == 0 {
		return nil, os.ErrInvalid
	}

	cmd := newCommand(command, dir, env)
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &errutil.CommandError{Cmd: command[0], Cause: err, Stage: "start"}
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, &errutil.CommandError{Cmd: command[0], Cause: err, Stage: "start"}
	}

	if err := cmd.Start(); err != nil {
		return nil, &errutil.CommandError{Cmd: command[0], Cause: err, Stage: "start"}
	}
	stop := killOnDone(ctx, cmd)

	stdoutStr, stderrStr, truncated := f.collectOutput(stdoutPipe, stderrPipe)
	waitErr := cmd.Wait()
	aborted := stop()

	res := &Result{
		Stdout:    stdoutStr,
		Stderr:    stderrStr,
		ExitCode:  exitCode(cmd, waitErr),
		Truncated: truncated,
	}
	if aborted {
		return res, errutil.ErrAborted
	}
	return res, nil
}

// Stream executes a command, handing output chunks to the callbacks as they
// arrive. It returns the exit code, errutil.ErrAborted when ctx is cancelled
// or a *errutil.TimeoutError when opts.Timeout elapses.
func (f *OSCommandExecutor) Stream(ctx context.Context, command []string, dir string, env []string, opts StreamOptions) (int, error) {
	if len(command) == 0 {
		return -1, os.ErrInvalid
	}

	var mu sync.Mutex
	cmd := newCommand(command, dir, env)
	cmd.Stdout = &callbackWriter{mu: &mu, fn: opts.Stdout}
	cmd.Stderr = &callbackWriter{mu: &mu, fn: opts.Stderr}
	cmd.WaitDelay = waitDelay

	if err := cmd.Start(); err != nil {
		return -1, &errutil.CommandError{Cmd: command[0], Cause: err, Stage: "start"}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var timeoutC <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case err := <-done:
		return exitCode(cmd, err), nil
	case <-ctx.Done():
		f.logger.Debug("aborting command", "cmd", command[0], "pid", cmd.Process.Pid)
		killGroup(cmd)
		<-done
		return -1, errutil.ErrAborted
	case <-timeoutC:
		f.logger.Debug("command timed out", "cmd", command[0], "timeout", opts.Timeout)
		killGroup(cmd)
		<-done
		return -1, &errutil.TimeoutError{After: opts.Timeout}
	}
}

func (f *OSCommandExecutor) collectOutput(stdout, stderr io.Reader) (string, string, bool) {
	maxBytes := int(f.config.Tools.MaxCommandOutputSize)

	stdoutCollector := newCollector(maxBytes, 8000)
	stderrCollector := newCollector(maxBytes, 8000)

	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(stdoutCollector, stdout)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(stderrCollector, stderr)
		return err
	})
	if err := g.Wait(); err != nil {
		f.logger.Debug("output collection ended early", "err", err)
	}

	truncated := stdoutCollector.Truncated() || stderrCollector.Truncated()
	return stdoutCollector.String(), stderrCollector.String(), truncated
}

func newCommand(command []string, dir string, env []string) *exec.Cmd {
	cmd := exec.Command(command[0], command[1:]...)
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdin = nil
	cmd.SysProcAttr = groupAttr()
	return cmd
}

// killOnDone kills cmd's process group when ctx is cancelled. The returned
// func stops the watcher and reports whether the kill happened.
func killOnDone(ctx context.Context, cmd *exec.Cmd) func() bool {
	finished := make(chan struct{})
	killed := make(chan bool, 1)
	go func() {
		select {
		case <-ctx.Done():
			killGroup(cmd)
			killed <- true
		case <-finished:
			killed <- false
		}
	}()
	return func() bool {
		close(finished)
		return <-killed
	}
}

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		if code := cmd.ProcessState.ExitCode(); code >= 0 {
			return code
		}
		if sig, ok := signalOf(cmd.ProcessState); ok {
			return 128 + int(sig)
		}
	}
	if err == nil {
		return 0
	}
	return -1
}

type callbackWriter struct {
	mu *sync.Mutex
	fn func([]byte)
}

func (w *callbackWriter) Write(p []byte) (int, error) {
	if w.fn == nil || len(p) == 0 {
		return len(p), nil
	}
	chunk := make([]byte, len(p))
	copy(chunk, p)
	w.mu.Lock()
	w.fn(chunk)
	w.mu.Unlock()
	return len(p), nil
}
