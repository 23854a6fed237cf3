package microvm

import (
	"bufio"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jbuckmccready/dotfiles/internal/tool/service/executor"
)

// Lima instance states reported by `limactl list`.
const (
	statusRunning = "Running"
	statusStopped = "Stopped"
)

// instance is the part of `limactl list --json` output the provider reads.
type instance struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Dir    string `json:"dir"`
}

// lima drives the limactl CLI.
type lima interface {
	// Inspect returns nil when no instance of that name exists.
	Inspect(ctx context.Context, name string) (*instance, error)
	Create(ctx context.Context, name, templatePath string) error
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
}

// limactlPath returns the limactl executable, honoring $LIMACTL.
func limactlPath(lookPath func(string) (string, error)) (string, error) {
	return lookPath(cmp.Or(os.Getenv("LIMACTL"), "limactl"))
}

type runner interface {
	Run(ctx context.Context, command []string, dir string, env []string) (*executor.Result, error)
}

type limaCLI struct {
	limactl string
	run     runner
}

func (c *limaCLI) exec(ctx context.Context, args ...string) (*executor.Result, error) {
	argv := append([]string{c.limactl}, args...)
	res, err := c.run.Run(ctx, argv, "", nil)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return res, fmt.Errorf("%s %s: exit %d: %s", c.limactl, strings.Join(args, " "), res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return res, nil
}

// Inspect lists every instance and picks name, since `limactl list NAME`
// fails for unknown names with an exit code that cannot be told apart from
// other errors.
func (c *limaCLI) Inspect(ctx context.Context, name string) (*instance, error) {
	res, err := c.exec(ctx, "list", "--json")
	if err != nil {
		return nil, err
	}
	return findInstance(res.Stdout, name)
}

// findInstance scans newline-delimited instance objects.
func findInstance(out, name string) (*instance, error) {
	sc := bufio.NewScanner(strings.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var inst instance
		if err := json.Unmarshal([]byte(line), &inst); err != nil {
			return nil, fmt.Errorf("parse limactl list output: %w", err)
		}
		if inst.Name == name {
			return &inst, nil
		}
	}
	return nil, sc.Err()
}

func (c *limaCLI) Create(ctx context.Context, name, templatePath string) error {
	_, err := c.exec(ctx, "create", "--tty=false", "--name", name, templatePath)
	return err
}

func (c *limaCLI) Start(ctx context.Context, name string) error {
	_, err := c.exec(ctx, "start", "--tty=false", name)
	return err
}

func (c *limaCLI) Stop(ctx context.Context, name string) error {
	_, err := c.exec(ctx, "stop", name)
	return err
}
