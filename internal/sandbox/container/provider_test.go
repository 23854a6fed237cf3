package container

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbuckmccready/dotfiles/internal/config"
	"github.com/jbuckmccready/dotfiles/internal/sandbox"
	"github.com/jbuckmccready/dotfiles/internal/sandbox/session"
	"github.com/jbuckmccready/dotfiles/internal/tool/errutil"
	"github.com/jbuckmccready/dotfiles/internal/tool/service/executor"
)

// fakeRuntime answers `inspect` calls the way docker does.
type fakeRuntime struct {
	mu      sync.Mutex
	running string
	inspect string
	argv    [][]string
}

func (f *fakeRuntime) Run(ctx context.Context, command []string, dir string, env []string) (*executor.Result, error) {
	f.mu.Lock()
	f.argv = append(f.argv, command)
	f.mu.Unlock()
	if len(command) > 2 && command[len(command)-3] == "-f" {
		return &executor.Result{Stdout: f.running + "\n"}, nil
	}
	if f.inspect == "" {
		return &executor.Result{ExitCode: 1, Stderr: "Error: No such object"}, nil
	}
	return &executor.Result{Stdout: f.inspect}, nil
}

type fakeShell struct {
	backend session.Backend
	scripts []string
	started bool
	closed  bool
}

func (f *fakeShell) Start(ctx context.Context) error { f.started = true; return nil }
func (f *fakeShell) Close() error                    { f.closed = true; return nil }
func (f *fakeShell) StderrFile() string              { return "/tmp/_pi_stderr_c" }

func (f *fakeShell) ExecBuffered(ctx context.Context, cmd string) (*session.BufferedResult, error) {
	f.scripts = append(f.scripts, cmd)
	return &session.BufferedResult{}, nil
}

func (f *fakeShell) ExecStreaming(ctx context.Context, cmd string, opts session.StreamOptions) (int, error) {
	f.scripts = append(f.scripts, cmd)
	return 0, nil
}

func bindsJSON(binds map[string]string) string {
	var parts []string
	for src, dst := range binds {
		parts = append(parts, fmt.Sprintf(`{"Type":"bind","Source":%q,"Destination":%q}`, src, dst))
	}
	parts = append(parts, `{"Type":"volume","Name":"cache","Source":"/var/lib/docker/volumes/cache/_data","Destination":"/cache"}`)
	return `[{"Id":"abc","Mounts":[` + strings.Join(parts, ",") + `]}]`
}

type harness struct {
	p       *Provider
	runtime *fakeRuntime
	shell   *fakeShell
	home    string
	cwd     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	home := t.TempDir()
	cwd := filepath.Join(home, "src", "proj")
	require.NoError(t, os.MkdirAll(cwd, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".pi", "agent", "skills"), 0o755))

	h := &harness{
		runtime: &fakeRuntime{running: "true", inspect: bindsJSON(map[string]string{home: "/home/agent"})},
		shell:   &fakeShell{},
		home:    home,
		cwd:     cwd,
	}
	h.p = New()
	h.p.lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }
	h.p.newRun = func(sandbox.InitContext) runner { return h.runtime }
	h.p.dial = func(b session.Backend, _ sandbox.InitContext, _ *log.Logger) containerShell {
		h.shell.backend = b
		return h.shell
	}
	return h
}

func (h *harness) initContext(mutate func(*config.Config)) sandbox.InitContext {
	cfg := config.DefaultConfig()
	cfg.Type = config.TypeContainer
	cfg.Container = "agent-sandbox"
	if mutate != nil {
		mutate(cfg)
	}
	return sandbox.InitContext{Cwd: h.cwd, Home: h.home, Config: cfg}
}

func TestInit_DetectsMountsAndStartsShell(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.p.Init(context.Background(), h.initContext(nil)))

	assert.True(t, h.p.IsActive())
	assert.True(t, h.shell.started)
	assert.Equal(t, []string{"docker", "exec", "-i", "agent-sandbox", "bash", "--noprofile", "--norc"}, h.shell.backend.Command)
	assert.Equal(t, sandbox.Status{Level: sandbox.LevelInfo, Text: "🐳 Docker sandbox: agent-sandbox (/home/agent/src/proj, 1 mount)"}, h.p.Status())
	assert.Equal(t, []string{
		"Sandbox: docker",
		"  Container: agent-sandbox",
		"  Mounts (1):",
		"    " + h.home + " → /home/agent",
	}, h.p.Describe())

	_, err := h.p.Ops().Read.ReadFile(context.Background(), filepath.Join(h.cwd, "go.mod"))
	require.NoError(t, err)
	assert.Equal(t, "base64 < /home/agent/src/proj/go.mod", h.shell.scripts[0])

	require.NoError(t, h.p.Shutdown(context.Background()))
	assert.True(t, h.shell.closed)
	assert.False(t, h.p.IsActive())
}

func TestInit_RuntimeWithArguments(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.p.Init(context.Background(), h.initContext(func(c *config.Config) {
		c.Runtime = `podman --remote --connection "dev box"`
	})))

	for _, argv := range h.runtime.argv {
		assert.Equal(t, []string{"podman", "--remote", "--connection", "dev box", "inspect"}, argv[:5])
	}
	assert.Equal(t, "podman", h.shell.backend.Command[0])
	assert.True(t, strings.HasPrefix(h.p.Status().Text, "🐳 Podman sandbox: agent-sandbox"))
	assert.Equal(t, "Sandbox: podman", h.p.Describe()[0])
}

func TestInit_NotRunning(t *testing.T) {
	h := newHarness(t)
	h.runtime.running = "false"
	err := h.p.Init(context.Background(), h.initContext(nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, errutil.ErrBackendUnavailable)
	assert.Equal(t, `docker container "agent-sandbox" is not running: sandbox backend unavailable`, err.Error())
	assert.Equal(t, sandbox.LevelError, h.p.Status().Level)
	assert.False(t, h.shell.started)
}

func TestInit_UncoveredPaths(t *testing.T) {
	h := newHarness(t)
	h.runtime.inspect = bindsJSON(map[string]string{"/opt/data": "/data"})
	err := h.p.Init(context.Background(), h.initContext(nil))
	require.Error(t, err)

	skills := filepath.Join(h.home, ".pi", "agent", "skills")
	want := fmt.Sprintf(`cwd %q not mounted; skills dir %q not mounted`, h.cwd, skills)
	assert.Equal(t, `docker sandbox "agent-sandbox": `+want, err.Error())
	assert.Equal(t, sandbox.Status{Level: sandbox.LevelError, Text: "🐳 Docker sandbox: agent-sandbox — " + want}, h.p.Status())
}

func TestInit_ConfiguredMountsMerge(t *testing.T) {
	h := newHarness(t)
	h.runtime.inspect = bindsJSON(map[string]string{filepath.Join(h.home, "src"): "/src"})
	require.NoError(t, h.p.Init(context.Background(), h.initContext(func(c *config.Config) {
		c.Mounts = map[string]string{"~/.pi/agent/skills": "/skills"}
	})))

	assert.Equal(t, "🐳 Docker sandbox: agent-sandbox (/src/proj, 2 mounts)", h.p.Status().Text)
	skills := filepath.Join(h.home, ".pi", "agent", "skills")
	got := h.p.PatchSystemPrompt("Current working directory: " + h.cwd + "\nRead " + skills + "/a/SKILL.md")
	assert.Equal(t, "Current working directory: /src/proj (docker: agent-sandbox)\nRead /skills/a/SKILL.md", got)
}

func TestInit_SymlinkedCwd(t *testing.T) {
	h := newHarness(t)
	link := filepath.Join(t.TempDir(), "proj-link")
	require.NoError(t, os.Symlink(h.cwd, link))
	real, err := filepath.EvalSymlinks(h.home)
	require.NoError(t, err)
	h.runtime.inspect = bindsJSON(map[string]string{real: "/home/agent"})

	ic := h.initContext(nil)
	ic.Cwd = link
	require.NoError(t, h.p.Init(context.Background(), ic))

	_, err = h.p.Ops().Read.ReadFile(context.Background(), filepath.Join(link, "new.txt"))
	require.NoError(t, err)
	assert.Equal(t, "base64 < /home/agent/src/proj/new.txt", h.shell.scripts[0])
}

func TestInit_RuntimeMissing(t *testing.T) {
	h := newHarness(t)
	h.p.lookPath = func(string) (string, error) { return "", os.ErrNotExist }
	err := h.p.Init(context.Background(), h.initContext(nil))
	assert.ErrorContains(t, err, "docker not found")
}

func TestPatchSystemPrompt_Inactive(t *testing.T) {
	p := New()
	assert.Equal(t, "Current working directory: /x", p.PatchSystemPrompt("Current working directory: /x"))
}

func TestParseBinds(t *testing.T) {
	assert.Nil(t, parseBinds("not json"))
	assert.Nil(t, parseBinds("[]"))
	binds := parseBinds(bindsJSON(map[string]string{"/a": "/b"}))
	assert.Len(t, binds, 1)
	assert.Equal(t, "/b", binds["/a"])
}

var _ sandbox.Provider = (*Provider)(nil)
