package container

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jbuckmccready/dotfiles/internal/sandbox/pathmap"
	"github.com/jbuckmccready/dotfiles/internal/tool/service/executor"
)

type runner interface {
	Run(ctx context.Context, command []string, dir string, env []string) (*executor.Result, error)
}

// probe is what inspecting a container tells us.
type probe struct {
	Running bool
	Binds   pathmap.MountTable
}

type inspectMount struct {
	Type        string `json:"Type"`
	Source      string `json:"Source"`
	Destination string `json:"Destination"`
}

type inspectEntry struct {
	Mounts []inspectMount `json:"Mounts"`
}

// inspect asks the runtime whether container is running and which bind
// mounts it has. Both queries run in parallel. A failed query reads as "not
// running" or "no binds" respectively; only a cancelled ctx is an error.
func inspect(ctx context.Context, run runner, runtime []string, container string) (*probe, error) {
	base := append([]string(nil), runtime...)
	p := &probe{Binds: pathmap.MountTable{}}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := run.Run(gctx, append(append([]string(nil), base...), "inspect", "-f", "{{.State.Running}}", container), "", nil)
		if err != nil {
			return err
		}
		p.Running = res.ExitCode == 0 && strings.TrimSpace(res.Stdout) == "true"
		return nil
	})
	var binds pathmap.MountTable
	g.Go(func() error {
		res, err := run.Run(gctx, append(append([]string(nil), base...), "inspect", container), "", nil)
		if err != nil {
			return err
		}
		if res.ExitCode == 0 {
			binds = parseBinds(res.Stdout)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("inspect %s: %w", container, err)
	}
	if binds != nil {
		p.Binds = binds
	}
	return p, nil
}

// parseBinds extracts host source -> container destination for every bind
// mount in `inspect` JSON. Volumes and tmpfs mounts have no host path.
func parseBinds(out string) pathmap.MountTable {
	var entries []inspectEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil || len(entries) == 0 {
		return nil
	}
	binds := pathmap.MountTable{}
	for _, m := range entries[0].Mounts {
		if m.Type == "bind" && m.Source != "" && m.Destination != "" {
			binds[m.Source] = m.Destination
		}
	}
	return binds
}
