package microvm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbuckmccready/dotfiles/internal/tool/service/executor"
)

type scriptedRunner struct {
	argv [][]string
	res  *executor.Result
}

func (s *scriptedRunner) Run(ctx context.Context, command []string, dir string, env []string) (*executor.Result, error) {
	s.argv = append(s.argv, command)
	return s.res, nil
}

func TestInspect(t *testing.T) {
	out := `{"name":"default","status":"Stopped","dir":"/home/u/.lima/default"}
{"name":"pi-sandbox","status":"Running","dir":"/home/u/.lima/pi-sandbox","cpus":4}
`
	run := &scriptedRunner{res: &executor.Result{Stdout: out}}
	cli := &limaCLI{limactl: "limactl", run: run}

	inst, err := cli.Inspect(context.Background(), "pi-sandbox")
	require.NoError(t, err)
	assert.Equal(t, &instance{Name: "pi-sandbox", Status: "Running", Dir: "/home/u/.lima/pi-sandbox"}, inst)
	assert.Equal(t, []string{"limactl", "list", "--json"}, run.argv[0])

	inst, err = cli.Inspect(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, inst)
}

func TestLimaCLI_Errors(t *testing.T) {
	run := &scriptedRunner{res: &executor.Result{ExitCode: 1, Stderr: "FATA[0000] instance \"x\" already exists\n"}}
	cli := &limaCLI{limactl: "limactl", run: run}

	err := cli.Create(context.Background(), "x", "/t.yaml")
	assert.EqualError(t, err, `limactl create --tty=false --name x /t.yaml: exit 1: FATA[0000] instance "x" already exists`)

	run.res = &executor.Result{Stdout: "not json\n"}
	_, err = cli.Inspect(context.Background(), "x")
	assert.ErrorContains(t, err, "parse limactl list output")
}

func TestLimactlPath(t *testing.T) {
	t.Setenv("LIMACTL", "/opt/lima/bin/limactl")
	var asked string
	_, _ = limactlPath(func(name string) (string, error) { asked = name; return name, nil })
	assert.Equal(t, "/opt/lima/bin/limactl", asked)
}
