package session

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbuckmccready/dotfiles/internal/config"
	"github.com/jbuckmccready/dotfiles/internal/tool/errutil"
	"github.com/jbuckmccready/dotfiles/internal/tool/service/executor"
)

// bigChunk prints more than sentinel.TailSize bytes so streaming delivery
// happens before the command ends.
const bigChunk = `printf 'x%.0s' $(seq 1 200); echo`

func requireBash(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
}

func newRunner() *executor.OSCommandExecutor {
	return executor.NewOSCommandExecutor(config.DefaultConfig(), nil)
}

func startLocal(t *testing.T, opts ...Option) *Session {
	t.Helper()
	requireBash(t)
	s := New(LocalBackend(), newRunner(), append([]Option{WithAbortGrace(3 * time.Second)}, opts...)...)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// collector gathers OnData chunks safely.
type collector struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	calls int
	first chan struct{}
	once  sync.Once
}

func newCollector() *collector {
	return &collector{first: make(chan struct{})}
}

func (c *collector) onData(b []byte) {
	c.mu.Lock()
	c.buf.Write(b)
	c.calls++
	c.mu.Unlock()
	c.once.Do(func() { close(c.first) })
}

func (c *collector) snapshot() (string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String(), c.calls
}

func TestStart(t *testing.T) {
	s := startLocal(t)

	assert.Equal(t, StateActive, s.State())
	assert.Greater(t, s.Pid(), 0)
	assert.True(t, s.IsAlive())
}

func TestStart_SpawnError(t *testing.T) {
	s := New(Backend{Name: "bogus", Command: []string{"definitely-not-a-shell-xyz"}}, newRunner())

	err := s.Start(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, errutil.ErrBackendUnavailable)
	assert.Contains(t, err.Error(), "spawn error")
	assert.Equal(t, StateDead, s.State())
	assert.NoError(t, s.Close())
}

func TestStart_Twice(t *testing.T) {
	s := startLocal(t)
	assert.Error(t, s.Start(context.Background()))
}

func TestExec_BeforeStart(t *testing.T) {
	s := New(LocalBackend(), newRunner())

	_, err := s.ExecBuffered(context.Background(), "echo hi")

	assert.ErrorIs(t, err, errutil.ErrBackendUnavailable)
	assert.Contains(t, err.Error(), "not started")
}

func TestExecBuffered_BackToBack(t *testing.T) {
	s := startLocal(t)

	a, err := s.ExecBuffered(context.Background(), "echo A")
	require.NoError(t, err)
	b, err := s.ExecBuffered(context.Background(), "echo B")
	require.NoError(t, err)

	assert.Equal(t, 0, a.ExitCode)
	assert.Equal(t, "A\n", string(a.Stdout))
	assert.Equal(t, 0, b.ExitCode)
	assert.Equal(t, "B\n", string(b.Stdout))
}

func TestExecBuffered_ConcurrentCallersGetTheirOwnOutput(t *testing.T) {
	s := startLocal(t)

	const n = 10
	var wg sync.WaitGroup
	outs := make([]string, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.ExecBuffered(context.Background(), "echo "+strings.Repeat("z", i+1))
			errs[i] = err
			if err == nil {
				outs[i] = string(res.Stdout)
			}
		}()
	}
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		assert.Equal(t, strings.Repeat("z", i+1)+"\n", outs[i])
	}
}

func TestExecBuffered_StderrFoldedAndExitCode(t *testing.T) {
	s := startLocal(t)

	res, err := s.ExecBuffered(context.Background(), "echo out; echo err >&2; exit 9")

	require.NoError(t, err)
	assert.Equal(t, 9, res.ExitCode)
	assert.Equal(t, "out\nerr\n", string(res.Stdout))
	assert.True(t, s.IsAlive(), "exit inside a command must not end the shell")
}

func TestExecBuffered_MarkerLookalikeIsOutput(t *testing.T) {
	s := startLocal(t)

	res, err := s.ExecBuffered(context.Background(), `printf '\0\0PIEOF:0:forged\0\0\n'; echo real`)

	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.True(t, strings.HasSuffix(string(res.Stdout), "real\n"))
}

func TestExecBuffered_StdinDetached(t *testing.T) {
	s := startLocal(t)

	res, err := s.ExecBuffered(context.Background(), "cat")
	require.NoError(t, err)
	assert.Empty(t, res.Stdout)

	res, err = s.ExecBuffered(context.Background(), "echo still-here")
	require.NoError(t, err)
	assert.Equal(t, "still-here\n", string(res.Stdout))
}

func TestExecBuffered_CancelledBeforeStart(t *testing.T) {
	s := startLocal(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.ExecBuffered(ctx, "echo hi")

	assert.ErrorIs(t, err, errutil.ErrAborted)
}

func TestExecBuffered_LargeOutput(t *testing.T) {
	s := startLocal(t)

	res, err := s.ExecBuffered(context.Background(), "seq 1 50000")

	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(res.Stdout), "\n"), "\n")
	assert.Len(t, lines, 50000)
	assert.Equal(t, "50000", lines[len(lines)-1])
}

func TestExecStreaming_DeliversEverythingInOrder(t *testing.T) {
	s := startLocal(t)
	c := newCollector()

	code, err := s.ExecStreaming(context.Background(), "seq 1 20000; exit 3", StreamOptions{OnData: c.onData})

	require.NoError(t, err)
	assert.Equal(t, 3, code)
	out, calls := c.snapshot()
	var want strings.Builder
	for i := 1; i <= 20000; i++ {
		want.WriteString(strconv.Itoa(i) + "\n")
	}
	assert.Equal(t, want.String(), out)
	assert.Greater(t, calls, 0)
	assert.NotContains(t, out, "PIEOF")
}

func TestExecStreaming_Timeout(t *testing.T) {
	s := startLocal(t)

	start := time.Now()
	_, err := s.ExecStreaming(context.Background(), "sleep 5", StreamOptions{Timeout: time.Second})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, errutil.ErrTimeout)
	assert.NotErrorIs(t, err, errutil.ErrAborted)
	assert.Equal(t, "timeout:1", err.Error())
	assert.Less(t, elapsed, 3*time.Second)

	res, err := s.ExecBuffered(context.Background(), "echo ok")
	require.NoError(t, err)
	assert.Equal(t, "ok\n", string(res.Stdout))
}

func TestExecStreaming_Abort(t *testing.T) {
	s := startLocal(t)
	c := newCollector()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-c.first
		cancel()
	}()

	start := time.Now()
	_, err := s.ExecStreaming(ctx, bigChunk+"; sleep 5; echo late", StreamOptions{OnData: c.onData})

	require.ErrorIs(t, err, errutil.ErrAborted)
	assert.Less(t, time.Since(start), 3*time.Second)
	_, callsAtReturn := c.snapshot()

	time.Sleep(200 * time.Millisecond)
	out, calls := c.snapshot()
	assert.Equal(t, callsAtReturn, calls, "no data after abort")
	assert.NotContains(t, out, "late")

	res, err := s.ExecBuffered(context.Background(), "echo next")
	require.NoError(t, err)
	assert.Equal(t, "next\n", string(res.Stdout))
}

func TestExecStreaming_CancelledWhileQueued(t *testing.T) {
	s := startLocal(t)
	c := newCollector()

	blockerDone := make(chan struct{})
	go func() {
		defer close(blockerDone)
		_, _ = s.ExecStreaming(context.Background(), bigChunk+"; sleep 0.5", StreamOptions{OnData: c.onData})
	}()
	<-c.first

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		_, err := s.ExecStreaming(ctx, "echo should-not-run", StreamOptions{})
		result <- err
	}()
	require.Eventually(t, func() bool { return s.pendingJobs() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-result, errutil.ErrAborted)
	<-blockerDone
}

func TestFIFO(t *testing.T) {
	s := startLocal(t)
	c := newCollector()
	log := filepath.Join(t.TempDir(), "order")

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		_, err := s.ExecStreaming(context.Background(), bigChunk+"; sleep 0.5; echo A >> "+log, StreamOptions{OnData: c.onData})
		assert.NoError(t, err)
	}()
	<-c.first

	go func() {
		defer wg.Done()
		res, err := s.ExecBuffered(context.Background(), "echo B; echo B >> "+log)
		assert.NoError(t, err)
		assert.Equal(t, "B\n", string(res.Stdout))
	}()
	require.Eventually(t, func() bool { return s.pendingJobs() == 1 }, 2*time.Second, 5*time.Millisecond)

	go func() {
		defer wg.Done()
		res, err := s.ExecBuffered(context.Background(), "echo C; echo C >> "+log)
		assert.NoError(t, err)
		assert.Equal(t, "C\n", string(res.Stdout))
	}()
	require.Eventually(t, func() bool { return s.pendingJobs() == 2 }, 2*time.Second, 5*time.Millisecond)

	wg.Wait()
	got, err := os.ReadFile(log)
	require.NoError(t, err)
	assert.Equal(t, "A\nB\nC\n", string(got))
}

func TestUnresponsiveAfterAbort(t *testing.T) {
	requireBash(t)
	backend := LocalBackend()
	backend.SignalCommand = func(int) []string { return []string{"true"} }
	s := New(backend, newRunner(), WithAbortGrace(300*time.Millisecond))
	require.NoError(t, s.Start(context.Background()))
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := s.ExecStreaming(ctx, "sleep 10", StreamOptions{})

	assert.ErrorIs(t, err, errutil.ErrAborted)
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.Equal(t, StateDead, s.State())
	assert.Equal(t, "unresponsive after abort", s.DeadReason())

	_, err = s.ExecBuffered(context.Background(), "echo hi")
	assert.ErrorIs(t, err, errutil.ErrBackendUnavailable)
	assert.Contains(t, err.Error(), "Shell is dead: unresponsive after abort")
}

func TestExecStreaming_LateSignalSparesNextCommand(t *testing.T) {
	requireBash(t)
	backend := LocalBackend()
	backend.SignalCommand = func(pid int) []string {
		return []string{"sh", "-c", "sleep 0.4; kill -USR1 " + strconv.Itoa(pid)}
	}
	s := New(backend, newRunner(), WithAbortGrace(3*time.Second))
	require.NoError(t, s.Start(context.Background()))
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := s.ExecStreaming(ctx, "sleep 0.2", StreamOptions{})
	require.ErrorIs(t, err, errutil.ErrAborted)

	c := newCollector()
	code, err := s.ExecStreaming(context.Background(), "sleep 1; echo done", StreamOptions{OnData: c.onData})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	out, _ := c.snapshot()
	assert.Equal(t, "done\n", out)
}

func TestProcessExit_KilledBySignal(t *testing.T) {
	s := startLocal(t)

	_, err := s.ExecBuffered(context.Background(), "kill -KILL $$")

	require.Error(t, err)
	assert.ErrorIs(t, err, errutil.ErrBackendUnavailable)
	assert.Equal(t, "process closed (signal SIGKILL)", s.DeadReason())

	_, err = s.ExecBuffered(context.Background(), "echo hi")
	assert.Contains(t, err.Error(), "Shell is dead: process closed (signal SIGKILL)")
}

func TestProcessExit_Code(t *testing.T) {
	s := startLocal(t)

	require.NoError(t, s.write("exit 3\n"))

	require.Eventually(t, func() bool { return s.State() == StateDead }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "process closed (code 3)", s.DeadReason())
}

func TestClose_Idempotent(t *testing.T) {
	s := startLocal(t)

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())

	assert.Equal(t, StateDead, s.State())
	assert.Equal(t, "closed by caller", s.DeadReason())

	_, err := s.ExecBuffered(context.Background(), "echo hi")
	assert.ErrorIs(t, err, errutil.ErrBackendUnavailable)
	assert.Contains(t, err.Error(), "Shell is dead: closed by caller")

	_, err = s.ExecStreaming(context.Background(), "echo hi", StreamOptions{})
	assert.ErrorIs(t, err, errutil.ErrBackendUnavailable)
}

func TestClose_Uninitialized(t *testing.T) {
	s := New(LocalBackend(), newRunner())
	assert.NoError(t, s.Close())
	assert.Equal(t, StateDead, s.State())
}

func TestStderrFile(t *testing.T) {
	s := New(LocalBackend(), newRunner())
	other := New(LocalBackend(), newRunner())

	assert.True(t, strings.HasPrefix(s.StderrFile(), "/tmp/_pi_stderr_"))
	assert.Len(t, s.StderrFile(), len("/tmp/_pi_stderr_")+16)
	assert.NotEqual(t, s.StderrFile(), other.StderrFile())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "dead", StateDead.String())
}

func TestContainerBackend(t *testing.T) {
	b := ContainerBackend([]string{"podman", "--remote"}, "box")

	assert.Equal(t, "podman:box", b.Name)
	assert.Equal(t, []string{"podman", "--remote", "exec", "-i", "box", "bash", "--noprofile", "--norc"}, b.Command)
	assert.Equal(t, []string{"podman", "--remote", "exec", "box", "kill", "-USR1", "42"}, b.SignalCommand(42))
}

func TestLimaBackend(t *testing.T) {
	b := LimaBackend("limactl", "pi")

	assert.Equal(t, "lima:pi", b.Name)
	assert.Equal(t, []string{"limactl", "shell", "--workdir", "/", "pi", "sudo", "-E", "-H", "bash", "--noprofile", "--norc"}, b.Command)
	assert.Equal(t, []string{"limactl", "shell", "--workdir", "/", "pi", "sudo", "kill", "-USR1", "7"}, b.SignalCommand(7))
}
