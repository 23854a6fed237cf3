package sandbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbuckmccready/dotfiles/internal/config"
)

type namedRead struct{ name string }

func (r namedRead) ReadFile(context.Context, string) ([]byte, error) { return []byte(r.name), nil }
func (r namedRead) Access(context.Context, string) error             { return nil }
func (r namedRead) DetectImageMime(context.Context, string) (string, error) {
	return "", nil
}

type opsProvider struct {
	fakeProvider
	ops Ops
}

func (p *opsProvider) Ops() Ops { return p.ops }

func TestLive_FollowsCurrentProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	reg := Registry{
		config.TypeDisabled: func() Provider {
			return &opsProvider{fakeProvider: fakeProvider{name: "disabled"}, ops: Ops{Read: namedRead{"host"}}}
		},
		config.TypeOS: func() Provider {
			return &opsProvider{fakeProvider: fakeProvider{name: "os", active: true}, ops: Ops{Read: namedRead{"os"}}}
		},
	}
	sel := NewSelector(reg,
		WithConfigLoader(func(string) (*config.Config, error) { return cfg, nil }),
		WithNotifier(func(Level, string) {}),
	)
	live := sel.Live()

	got, err := live.Read.ReadFile(context.Background(), "/x")
	require.NoError(t, err)
	assert.Equal(t, "host", string(got))

	sel.SessionStart(context.Background(), "/work")
	got, err = live.Read.ReadFile(context.Background(), "/x")
	require.NoError(t, err)
	assert.Equal(t, "os", string(got))
}
