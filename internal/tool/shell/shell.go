package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jbuckmccready/dotfiles/internal/config"
	"github.com/jbuckmccready/dotfiles/internal/logging"
	"github.com/jbuckmccready/dotfiles/internal/sandbox"
	"github.com/jbuckmccready/dotfiles/internal/tool"
	"github.com/jbuckmccready/dotfiles/internal/tool/errutil"
	"github.com/jbuckmccready/dotfiles/internal/tool/helper/content"
)

// BashTool runs commands through the active sandbox.
type BashTool struct {
	ops      bashOps
	envFiles envFileReader
	resolver pathResolver
	config   *config.Config
	logger   *log.Logger
}

// NewBashTool creates a new BashTool with injected dependencies.
func NewBashTool(ops bashOps, envFiles envFileReader, resolver pathResolver, cfg *config.Config, logger *log.Logger) *BashTool {
	if ops == nil {
		panic("ops is required")
	}
	if envFiles == nil {
		panic("envFiles is required")
	}
	if resolver == nil {
		panic("resolver is required")
	}
	if cfg == nil {
		panic("cfg is required")
	}
	return &BashTool{
		ops:      ops,
		envFiles: envFiles,
		resolver: resolver,
		config:   cfg,
		logger:   logging.OrDiscard(logger).WithPrefix("bash"),
	}
}

func (t *BashTool) Name() string { return "bash" }

func (t *BashTool) Declaration() tool.Declaration {
	return tool.Declaration{
		Name: "bash",
		Description: fmt.Sprintf("Execute a bash command in the current working directory. Returns stdout and stderr. "+
			"Output is cut to the last %d lines or %d KB.", t.config.Tools.ReadMaxLines, t.config.Tools.ReadMaxBytes/1024),
		Parameters: &tool.Schema{
			Type: tool.TypeObject,
			Properties: map[string]*tool.Schema{
				"command":     {Type: tool.TypeString, Description: "Bash command to execute"},
				"timeout":     {Type: tool.TypeInteger, Description: "Timeout in seconds (optional, no default timeout)"},
				"working_dir": {Type: tool.TypeString, Description: "Directory to run in (default: current working directory)"},
				"env":         {Type: tool.TypeObject, Description: "Extra environment variables"},
				"env_files": {
					Type:        tool.TypeArray,
					Description: ".env files to load before running",
					Items:       &tool.Schema{Type: tool.TypeString},
				},
			},
			Required: []string{"command"},
		},
	}
}

func (t *BashTool) Input() any { return &BashRequest{} }

// Run executes req and waits for it. onData, when set, sees the combined
// output as it arrives. A timeout is reported in the response; an abort or a
// dead backend is an error.
func (t *BashTool) Run(ctx context.Context, req *BashRequest, onData func([]byte)) (*BashResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	cwd, err := t.resolver.Abs(req.WorkingDir)
	if err != nil {
		return nil, err
	}
	rel, err := t.resolver.Rel(cwd)
	if err != nil {
		return nil, err
	}

	env := map[string]string{}
	for _, f := range req.EnvFiles {
		abs, err := t.resolver.Abs(f)
		if err != nil {
			return nil, err
		}
		vars, err := ParseEnvFile(ctx, t.envFiles, abs)
		if err != nil {
			return nil, err
		}
		for k, v := range vars {
			env[k] = v
		}
	}
	for k, v := range req.Env {
		env[k] = v
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = t.config.Tools.DefaultShellTimeout
	}

	var mu sync.Mutex
	out := newTailBuffer(int(t.config.Tools.MaxCommandOutputSize))
	t.logger.Debug("run", "cwd", cwd, "timeout", timeout, "cmd", req.Command)
	code, err := t.ops.Exec(ctx, exportPrefix(env)+req.Command, cwd, sandbox.ExecOptions{
		Timeout: time.Duration(timeout) * time.Second,
		OnData: func(b []byte) {
			mu.Lock()
			defer mu.Unlock()
			_, _ = out.Write(b)
			if onData != nil {
				onData(b)
			}
		},
	})

	resp := &BashResponse{Command: req.Command, WorkingDir: rel, ExitCode: code, Timeout: timeout}
	if err != nil {
		if !errors.Is(err, errutil.ErrTimeout) {
			return nil, err
		}
		resp.TimedOut = true
	}

	mu.Lock()
	defer mu.Unlock()
	resp.Truncation = content.TruncateTail(strings.TrimRight(out.String(), "\n"), t.config.Tools.ReadMaxLines, t.config.Tools.ReadMaxBytes)
	resp.Dropped = out.Dropped()
	return resp, nil
}

// Execute starts the command and returns at once. The result's display
// streams the output; callers must drain it before asking for LLMContent.
func (t *BashTool) Execute(ctx context.Context, input any) (tool.Result, error) {
	req, ok := input.(*BashRequest)
	if !ok {
		return nil, fmt.Errorf("invalid input type: %T", input)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	res := &BashResult{done: make(chan struct{})}
	res.display = tool.ShellDisplay{Command: req.Command, WorkingDir: req.WorkingDir, Output: pr, Wait: res.wait}

	go func() {
		defer close(res.done)
		res.resp, res.err = t.Run(ctx, req, func(b []byte) { _, _ = pw.Write(b) })
		_ = pw.Close()
	}()
	return res, nil
}

// BashResult is a command that may still be running.
type BashResult struct {
	done    chan struct{}
	display tool.ShellDisplay
	resp    *BashResponse
	err     error
}

func (r *BashResult) wait() int {
	<-r.done
	if r.err != nil {
		return -1
	}
	return r.resp.ExitCode
}

func (r *BashResult) Display() tool.ToolDisplay { return r.display }

func (r *BashResult) LLMContent() string {
	<-r.done
	if r.err != nil {
		return r.err.Error()
	}
	return r.resp.LLMContent()
}

// Err is the error that ended the command, such as an abort.
func (r *BashResult) Err() error {
	<-r.done
	return r.err
}

func (r *BashResult) Failed() bool {
	<-r.done
	return r.err != nil || r.resp.Failed()
}
