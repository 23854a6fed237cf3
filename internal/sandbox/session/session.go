// Package session runs commands one at a time over a single long-lived shell
// (for example "docker exec -i <c> bash"), framing each command's output with
// a sentinel marker.
//
// Commands are executed in submission order. Buffered commands fold stderr
// into stdout and return everything at once. Streaming commands run as a
// background job of the shell so they can be interrupted: an abort or timeout
// sends SIGUSR1 to the shell through a separate one-off command, since the
// stream's stdin is busy, and the shell's trap kills the job.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/jbuckmccready/dotfiles/internal/logging"
	"github.com/jbuckmccready/dotfiles/internal/sandbox/sentinel"
	"github.com/jbuckmccready/dotfiles/internal/tool/errutil"
	"github.com/jbuckmccready/dotfiles/internal/tool/service/executor"
)

// State of a session. Dead is terminal.
type State int

const (
	StateUninitialized State = iota
	StateActive
	StateClosing
	StateDead
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateDead:
		return "dead"
	}
	return "unknown"
}

const (
	reasonClosed       = "closed by caller"
	reasonUnresponsive = "unresponsive after abort"

	readChunkSize = 32 * 1024
)

// commandRunner is the subset of the host executor the session needs.
type commandRunner interface {
	StartInteractive(command []string, dir string, env []string) (*executor.Process, error)
	Run(ctx context.Context, command []string, dir string, env []string) (*executor.Result, error)
}

// BufferedResult is the outcome of ExecBuffered.
type BufferedResult struct {
	ExitCode int
	Stdout   []byte
}

// StreamOptions configures ExecStreaming.
type StreamOptions struct {
	// OnData receives output chunks in order. It is never called after the
	// command was aborted or timed out.
	OnData  func([]byte)
	Timeout time.Duration // 0 = none
}

type job struct {
	ctx       context.Context
	script    string
	id        string
	streaming bool
	onData    func([]byte)
	timeout   time.Duration
	done      chan jobResult
}

type jobResult struct {
	code int
	out  []byte
	err  error
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithAbortGrace bounds how long a command may take to print its marker after
// it was signalled. Past that the shell is declared dead.
func WithAbortGrace(d time.Duration) Option {
	return func(s *Session) { s.abortGrace = d }
}

// WithStartTimeout bounds Start.
func WithStartTimeout(d time.Duration) Option {
	return func(s *Session) { s.startTimeout = d }
}

// Session owns one backend shell process.
type Session struct {
	backend      Backend
	runner       commandRunner
	logger       *log.Logger
	abortGrace   time.Duration
	startTimeout time.Duration
	stderrFile   string

	mu         sync.Mutex
	state      State
	deadReason string
	queue      []*job
	proc       *executor.Process
	pid        int

	writeMu sync.Mutex
	wake    chan struct{}
	chunks  chan []byte
	exited  chan struct{}
}

// New creates a session over backend. Start must be called before use.
func New(backend Backend, runner commandRunner, opts ...Option) *Session {
	if runner == nil {
		panic("runner is required")
	}
	if len(backend.Command) == 0 {
		panic("backend command is required")
	}
	s := &Session{
		backend:      backend,
		runner:       runner,
		abortGrace:   5 * time.Second,
		startTimeout: 10 * time.Second,
		stderrFile:   "/tmp/_pi_stderr_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16],
		wake:         make(chan struct{}, 1),
		chunks:       make(chan []byte, 64),
		exited:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDiscard(s.logger).With("backend", backend.Name)
	return s
}

// Start spawns the backend process, installs the interrupt trap and learns
// the shell's pid.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateUninitialized {
		s.mu.Unlock()
		return fmt.Errorf("session already started (state %s)", s.state)
	}
	proc, err := s.runner.StartInteractive(s.backend.Command, "", s.backend.Env)
	if err != nil {
		s.state = StateDead
		s.deadReason = "spawn error: " + err.Error()
		close(s.chunks)
		close(s.exited)
		s.mu.Unlock()
		return &errutil.BackendError{Reason: s.deadReason}
	}
	s.proc = proc
	s.state = StateActive
	s.mu.Unlock()

	go s.readLoop()
	go s.run()

	startTimer := time.AfterFunc(s.startTimeout, func() {
		s.fail("start timeout after " + s.startTimeout.String())
	})
	defer startTimer.Stop()
	stopOnCancel := context.AfterFunc(ctx, func() { s.fail("start cancelled") })
	defer stopOnCancel()

	if err := s.write(sentinel.TrapScript); err != nil {
		s.fail("write error: " + err.Error())
		return s.deadErr()
	}
	res, err := s.ExecBuffered(context.Background(), "echo $$")
	if err != nil {
		return err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(res.Stdout)))
	if err != nil {
		s.fail(fmt.Sprintf("unexpected pid handshake %q", res.Stdout))
		return s.deadErr()
	}

	s.mu.Lock()
	s.pid = pid
	s.mu.Unlock()
	s.logger.Debug("session started", "host_pid", proc.Pid(), "shell_pid", pid)
	return nil
}

// ExecBuffered runs cmd and returns its exit code and combined output. ctx is
// only consulted before the command is queued; once sent it runs to
// completion.
func (s *Session) ExecBuffered(ctx context.Context, cmd string) (*BufferedResult, error) {
	if ctx.Err() != nil {
		return nil, errutil.ErrAborted
	}
	id := uuid.NewString()
	j := &job{
		ctx:    ctx,
		script: sentinel.BufferedScript(cmd, id),
		id:     id,
		done:   make(chan jobResult, 1),
	}
	if err := s.enqueue(j); err != nil {
		return nil, err
	}
	r := <-j.done
	if r.err != nil {
		return nil, r.err
	}
	return &BufferedResult{ExitCode: r.code, Stdout: r.out}, nil
}

// ExecStreaming runs cmd and feeds its output to opts.OnData as it arrives.
// Cancelling ctx aborts the command (errutil.ErrAborted); exceeding
// opts.Timeout yields *errutil.TimeoutError. Either way the session stays
// usable once the shell reports the job's end.
func (s *Session) ExecStreaming(ctx context.Context, cmd string, opts StreamOptions) (int, error) {
	if ctx.Err() != nil {
		return -1, errutil.ErrAborted
	}
	id := uuid.NewString()
	j := &job{
		ctx:       ctx,
		script:    sentinel.StreamingScript(cmd, id),
		id:        id,
		streaming: true,
		onData:    opts.OnData,
		timeout:   opts.Timeout,
		done:      make(chan jobResult, 1),
	}
	if err := s.enqueue(j); err != nil {
		return -1, err
	}
	r := <-j.done
	return r.code, r.err
}

// Close asks the shell to exit and kills the backend process. Pending and
// later commands fail with a dead-shell error. Safe to call repeatedly.
func (s *Session) Close() error {
	s.mu.Lock()
	switch s.state {
	case StateClosing, StateDead:
		s.mu.Unlock()
		return nil
	case StateUninitialized:
		s.state = StateDead
		s.deadReason = reasonClosed
		close(s.chunks)
		close(s.exited)
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosing
	proc := s.proc
	s.mu.Unlock()

	if s.writeMu.TryLock() {
		_, _ = io.WriteString(proc.Stdin, "exit\n")
		_ = proc.Stdin.Close()
		s.writeMu.Unlock()
	}
	proc.Kill()
	s.markDead(reasonClosed)

	select {
	case <-s.exited:
	case <-time.After(2 * time.Second):
		s.logger.Warn("backend process did not exit after kill")
	}
	return nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// DeadReason returns why the session died, or "".
func (s *Session) DeadReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deadReason
}

// IsAlive reports whether commands can still be submitted.
func (s *Session) IsAlive() bool {
	return s.State() == StateActive
}

// Pid returns the shell pid inside the backend, 0 before Start completes.
func (s *Session) Pid() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pid
}

// StderrFile is a per-session scratch path inside the backend used to keep a
// command's stderr apart from its stdout.
func (s *Session) StderrFile() string {
	return s.stderrFile
}

func (s *Session) pendingJobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Session) enqueue(j *job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateActive:
	case StateUninitialized:
		return &errutil.BackendError{Reason: "not started"}
	default:
		return &errutil.BackendError{Reason: s.deadReason}
	}
	s.queue = append(s.queue, j)
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// run is the single worker executing queued jobs in order.
func (s *Session) run() {
	for {
		j, ok := s.next()
		if !ok {
			s.failQueued()
			return
		}
		j.done <- s.runJob(j)
	}
}

// next pops the oldest job, discarding stray output while idle. It reports
// false once the backend stream has closed.
func (s *Session) next() (*job, bool) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			j := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return j, true
		}
		s.mu.Unlock()

		select {
		case <-s.wake:
		case chunk, ok := <-s.chunks:
			if !ok {
				return nil, false
			}
			s.logger.Debug("discarding output between commands", "bytes", len(chunk))
		}
	}
}

func (s *Session) runJob(j *job) jobResult {
	if j.streaming && j.ctx.Err() != nil {
		return jobResult{code: -1, err: errutil.ErrAborted}
	}

	writeDone := make(chan error, 1)
	go func() { writeDone <- s.write(j.script) }()

	var (
		pending  []byte
		scanFrom int
		abortErr error
		sigDone  <-chan struct{}
		doneC    <-chan struct{}
		timeoutC <-chan time.Time
		graceC   <-chan time.Time
	)
	if j.streaming {
		doneC = j.ctx.Done()
		if j.timeout > 0 {
			timer := time.NewTimer(j.timeout)
			defer timer.Stop()
			timeoutC = timer.C
		}
	}

	interrupt := func(err error) {
		doneC, timeoutC = nil, nil
		abortErr = err
		sigDone = s.signal()
		graceC = time.After(s.abortGrace)
	}
	// A signal still in flight would hit whatever job the shell starts next.
	defer func() {
		if sigDone == nil {
			return
		}
		select {
		case <-sigDone:
		case <-time.After(s.abortGrace):
			s.logger.Warn("signal delivery still running", "id", j.id)
		}
	}()

	for {
		select {
		case err := <-writeDone:
			if err != nil {
				s.fail("write error: " + err.Error())
			}
		case chunk, ok := <-s.chunks:
			if !ok {
				<-s.exited
				if abortErr != nil {
					return jobResult{code: -1, err: abortErr}
				}
				return jobResult{code: -1, err: s.deadErr()}
			}
			pending = append(pending, chunk...)

			if m, found := sentinel.Find(pending[scanFrom:], j.id); found {
				out := pending[:scanFrom+m.Offset]
				if !j.streaming {
					return jobResult{code: m.ExitCode, out: out}
				}
				if abortErr == nil {
					s.deliver(j, out)
				}
				return jobResult{code: m.ExitCode, err: abortErr}
			}

			if !j.streaming {
				scanFrom = max(0, len(pending)-sentinel.TailSize)
				continue
			}
			if len(pending) > sentinel.TailSize {
				cut := len(pending) - sentinel.TailSize
				if abortErr == nil {
					s.deliver(j, pending[:cut])
				}
				pending = append([]byte(nil), pending[cut:]...)
			}
		case <-doneC:
			s.logger.Debug("aborting command", "id", j.id)
			interrupt(errutil.ErrAborted)
		case <-timeoutC:
			s.logger.Debug("command timed out", "id", j.id, "timeout", j.timeout)
			interrupt(&errutil.TimeoutError{After: j.timeout})
		case <-graceC:
			s.logger.Warn("no end marker after interrupt, killing shell", "id", j.id, "grace", s.abortGrace)
			s.fail(reasonUnresponsive)
			return jobResult{code: -1, err: abortErr}
		}
	}
}

func (s *Session) deliver(j *job, data []byte) {
	if j.onData == nil || len(data) == 0 {
		return
	}
	j.onData(append([]byte(nil), data...))
}

// signal delivers SIGUSR1 to the shell through the backend side channel. The
// returned channel closes once the side-channel command has finished.
func (s *Session) signal() <-chan struct{} {
	done := make(chan struct{})
	pid := s.Pid()
	if pid == 0 || s.backend.SignalCommand == nil {
		close(done)
		return done
	}
	argv := s.backend.SignalCommand(pid)
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), s.abortGrace)
		defer cancel()
		res, err := s.runner.Run(ctx, argv, "", s.backend.Env)
		switch {
		case err != nil:
			s.logger.Warn("signal delivery failed", "err", err)
		case res.ExitCode != 0:
			s.logger.Warn("signal delivery failed", "exit_code", res.ExitCode, "stderr", strings.TrimSpace(res.Stderr))
		}
	}()
	return done
}

func (s *Session) write(script string) error {
	s.mu.Lock()
	proc := s.proc
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := io.WriteString(proc.Stdin, script)
	return err
}

// readLoop forwards backend stdout to the worker and records how the process
// ended.
func (s *Session) readLoop() {
	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		sc := bufio.NewScanner(s.proc.Stderr)
		for sc.Scan() {
			s.logger.Debug("backend stderr", "line", sc.Text())
		}
	}()

	buf := make([]byte, readChunkSize)
	for {
		n, err := s.proc.Stdout.Read(buf)
		if n > 0 {
			s.chunks <- append([]byte(nil), buf[:n]...)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Debug("backend stdout read failed", "err", err)
			}
			break
		}
	}
	close(s.chunks)
	<-stderrDone

	status := s.proc.Wait()
	s.markDead(fmt.Sprintf("process closed (%s)", status))
	close(s.exited)
}

// markDead records the first cause of death. While closing, the cause is
// always the caller's close.
func (s *Session) markDead(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDead {
		return
	}
	if s.state == StateClosing {
		reason = reasonClosed
	}
	s.state = StateDead
	s.deadReason = reason
	s.logger.Debug("session dead", "reason", reason)
}

// fail marks the session dead and kills the backend process.
func (s *Session) fail(reason string) {
	s.markDead(reason)
	s.mu.Lock()
	proc := s.proc
	s.mu.Unlock()
	if proc != nil {
		proc.Kill()
	}
}

func (s *Session) deadErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &errutil.BackendError{Reason: s.deadReason}
}

func (s *Session) failQueued() {
	<-s.exited
	s.mu.Lock()
	queued := s.queue
	s.queue = nil
	s.mu.Unlock()
	for _, j := range queued {
		j.done <- jobResult{code: -1, err: s.deadErr()}
	}
}
