package shell

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbuckmccready/dotfiles/internal/config"
	"github.com/jbuckmccready/dotfiles/internal/sandbox"
	"github.com/jbuckmccready/dotfiles/internal/tool"
	"github.com/jbuckmccready/dotfiles/internal/tool/errutil"
	"github.com/jbuckmccready/dotfiles/internal/tool/service/path"
)

type fakeBash struct {
	chunks  []string
	code    int
	err     error
	script  string
	cwd     string
	timeout time.Duration
}

func (f *fakeBash) Exec(ctx context.Context, command, cwd string, opts sandbox.ExecOptions) (int, error) {
	f.script, f.cwd, f.timeout = command, cwd, opts.Timeout
	for _, c := range f.chunks {
		opts.OnData([]byte(c))
	}
	return f.code, f.err
}

type fakeFiles map[string]string

func (f fakeFiles) ReadFile(_ context.Context, p string) ([]byte, error) {
	s, ok := f[p]
	if !ok {
		return nil, errutil.NotFound("read", p, nil)
	}
	return []byte(s), nil
}

func newTool(ops *fakeBash, files fakeFiles, mutate func(*config.Config)) *BashTool {
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	return NewBashTool(ops, files, path.NewResolver("/work", "/home/u"), cfg, nil)
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("collects output", func(t *testing.T) {
		ops := &fakeBash{chunks: []string{"hello ", "world\n"}}
		resp, err := newTool(ops, nil, nil).Run(ctx, &BashRequest{Command: "echo hello world"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "echo hello world", ops.script)
		assert.Equal(t, "/work", ops.cwd)
		assert.Zero(t, ops.timeout)
		assert.Equal(t, "hello world", resp.LLMContent())
		assert.False(t, resp.Failed())
	})

	t.Run("non-zero exit", func(t *testing.T) {
		ops := &fakeBash{chunks: []string{"boom\n"}, code: 2}
		resp, err := newTool(ops, nil, nil).Run(ctx, &BashRequest{Command: "false", WorkingDir: "sub"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "/work/sub", ops.cwd)
		assert.Equal(t, "boom\n\nCommand exited with code 2", resp.LLMContent())
		assert.True(t, resp.Failed())
	})

	t.Run("no output", func(t *testing.T) {
		resp, err := newTool(&fakeBash{}, nil, nil).Run(ctx, &BashRequest{Command: "true"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "(no output)", resp.LLMContent())
	})

	t.Run("timeout", func(t *testing.T) {
		ops := &fakeBash{chunks: []string{"partial"}, code: -1, err: &errutil.TimeoutError{After: 3 * time.Second}}
		resp, err := newTool(ops, nil, nil).Run(ctx, &BashRequest{Command: "sleep 10", Timeout: 3}, nil)
		require.NoError(t, err)
		assert.Equal(t, 3*time.Second, ops.timeout)
		assert.True(t, resp.TimedOut)
		assert.Equal(t, "partial\n\nCommand timed out after 3 seconds", resp.LLMContent())
	})

	t.Run("default timeout from config", func(t *testing.T) {
		ops := &fakeBash{}
		_, err := newTool(ops, nil, func(c *config.Config) { c.Tools.DefaultShellTimeout = 30 }).
			Run(ctx, &BashRequest{Command: "make"}, nil)
		require.NoError(t, err)
		assert.Equal(t, 30*time.Second, ops.timeout)
	})

	t.Run("abort is an error", func(t *testing.T) {
		ops := &fakeBash{code: -1, err: errutil.ErrAborted}
		_, err := newTool(ops, nil, nil).Run(ctx, &BashRequest{Command: "sleep 10"}, nil)
		assert.ErrorIs(t, err, errutil.ErrAborted)
	})

	t.Run("tail truncation", func(t *testing.T) {
		var lines []string
		for i := range 10 {
			lines = append(lines, strings.Repeat("x", i))
		}
		ops := &fakeBash{chunks: []string{strings.Join(lines, "\n")}}
		resp, err := newTool(ops, nil, func(c *config.Config) { c.Tools.ReadMaxLines = 2 }).
			Run(ctx, &BashRequest{Command: "gen"}, nil)
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("x", 8)+"\n"+strings.Repeat("x", 9)+"\n\n[Showing last 2 of 10 lines]", resp.LLMContent())
	})

	t.Run("output cap drops the head", func(t *testing.T) {
		ops := &fakeBash{chunks: []string{"aaaa\n", "bbbb\n", "cc"}}
		resp, err := newTool(ops, nil, func(c *config.Config) { c.Tools.MaxCommandOutputSize = 6 }).
			Run(ctx, &BashRequest{Command: "gen"}, nil)
		require.NoError(t, err)
		assert.True(t, resp.Dropped)
		assert.Equal(t, "bbb\ncc\n\n[Output truncated, showing last 2 lines]", resp.LLMContent())
	})

	t.Run("env and env files", func(t *testing.T) {
		ops := &fakeBash{}
		files := fakeFiles{"/work/.env": "# comment\nexport TOKEN='abc def'\nMODE=dev\n"}
		_, err := newTool(ops, files, nil).Run(ctx, &BashRequest{
			Command:  "run",
			Env:      map[string]string{"MODE": "prod"},
			EnvFiles: []string{".env"},
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, "export MODE=prod\nexport TOKEN='abc def'\nrun", ops.script)
	})

	t.Run("missing env file", func(t *testing.T) {
		_, err := newTool(&fakeBash{}, fakeFiles{}, nil).Run(ctx, &BashRequest{Command: "run", EnvFiles: []string{".env"}}, nil)
		var readErr *EnvFileReadError
		require.ErrorAs(t, err, &readErr)
		assert.ErrorIs(t, err, errutil.ErrNotFound)
	})

	t.Run("validation", func(t *testing.T) {
		bt := newTool(&fakeBash{}, nil, nil)
		_, err := bt.Run(ctx, &BashRequest{Command: "  "}, nil)
		assert.ErrorIs(t, err, ErrInvalidRequest)
		assert.EqualError(t, err, "command cannot be empty")
		_, err = bt.Run(ctx, &BashRequest{Command: "x", Timeout: -1}, nil)
		assert.EqualError(t, err, "timeout cannot be negative: -1")
		_, err = bt.Run(ctx, &BashRequest{Command: "x", Env: map[string]string{"A;rm": "1"}}, nil)
		assert.ErrorIs(t, err, ErrEnvFileParse)
	})
}

func TestExecute_Streams(t *testing.T) {
	ops := &fakeBash{chunks: []string{"one\n", "two\n"}, code: 1}
	res, err := newTool(ops, nil, nil).Execute(context.Background(), &BashRequest{Command: "seq"})
	require.NoError(t, err)

	sh, ok := res.Display().(tool.ShellDisplay)
	require.True(t, ok)
	streamed, err := io.ReadAll(sh.Output)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(streamed))
	assert.Equal(t, 1, sh.Wait())

	br := res.(*BashResult)
	assert.NoError(t, br.Err())
	assert.True(t, br.Failed())
	assert.Equal(t, "one\ntwo\n\nCommand exited with code 1", res.LLMContent())
}

func TestExecute_Error(t *testing.T) {
	ops := &fakeBash{err: &errutil.BackendError{Reason: "exited"}}
	res, err := newTool(ops, nil, nil).Execute(context.Background(), &BashRequest{Command: "ls"})
	require.NoError(t, err)
	sh := res.Display().(tool.ShellDisplay)
	_, _ = io.ReadAll(sh.Output)
	assert.Equal(t, -1, sh.Wait())
	assert.ErrorIs(t, res.(*BashResult).Err(), errutil.ErrBackendUnavailable)
}

func TestParseEnvFile_Invalid(t *testing.T) {
	_, err := ParseEnvFile(context.Background(), fakeFiles{"/e": "GOOD=1\nnot a pair\n"}, "/e")
	assert.ErrorIs(t, err, ErrEnvFileParse)
	assert.ErrorContains(t, err, "/e:2")
}
