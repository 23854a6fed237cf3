package pathmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranslator_ToGuest(t *testing.T) {
	tr := NewTranslator("/Users/jbm", "/Users/jbm/dotfiles", nil)

	tests := []struct {
		name      string
		localPath string
		want      string
	}{
		{"home shorthand", "~", "/root"},
		{"home shorthand subpath", "~/.config/nvim/init.lua", "/root/.config/nvim/init.lua"},
		{"host home", "/Users/jbm", "/root"},
		{"host home child", "/Users/jbm/.ssh/config", "/root/.ssh/config"},
		{"relative inside workspace", "nvim/.config/nvim/init.lua", "/workspace/nvim/.config/nvim/init.lua"},
		{"dot is workspace", ".", "/workspace"},
		{"empty is workspace", "", "/workspace"},
		{"absolute inside workspace", "/Users/jbm/dotfiles/git/.gitconfig", "/workspace/git/.gitconfig"},
		{"cwd itself", "/Users/jbm/dotfiles", "/workspace"},
		{"absolute elsewhere passes through", "/tmp/file.txt", "/tmp/file.txt"},
		{"relative escaping workspace", "../outside.txt", "/outside.txt"},
		{"relative escaping twice", "../../x", "/x"},
		{"sibling of cwd under home", "/Users/jbm/dotfiles-old/a", "/root/dotfiles-old/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tr.ToGuest(tt.localPath))
		})
	}
}

func TestTranslator_MountScenarios(t *testing.T) {
	tr := &Translator{
		LocalHome:      "/Users/me",
		LocalCwd:       "/Users/me/proj",
		GuestHome:      GuestHome,
		GuestWorkspace: GuestWorkspace,
		Mounts:         MountTable{"/Users/me/proj": "/workspace"},
	}

	assert.Equal(t, "/workspace/src/a.ts", tr.ToGuest("src/a.ts"))
	assert.Equal(t, "/root/other", tr.ToGuest("~/other"))
}

func TestNewTranslator_EmptyHome(t *testing.T) {
	tr := NewTranslator("", "/srv/proj", nil)

	assert.Equal(t, MountTable{"/srv/proj": "/workspace"}, tr.Table())
	assert.Equal(t, "/root/other", tr.ToGuest("~/other"))
	assert.Equal(t, "/Users/me/.config/x", tr.ToGuest("/Users/me/.config/x"))
}

func TestTranslator_Idempotent(t *testing.T) {
	tr := NewTranslator("/home/dev", "/home/dev/proj", MountTable{"/srv/data": "/data"})

	inputs := []string{
		"src/main.go",
		"~/notes.txt",
		"/home/dev/proj/a/b",
		"/home/dev/x",
		"/srv/data/set.csv",
		"/tmp/y",
		"../up",
	}
	for _, in := range inputs {
		once := tr.ToGuest(in)
		assert.Equal(t, once, tr.ToGuest(once), "input %q", in)
	}
}

func TestHostToGuest(t *testing.T) {
	mounts := MountTable{
		"/host/ws":         "/workspace",
		"/host/ws/vendor":  "/vendor",
		"/host/wsx":        "/other",
		"/Users/me/skills": "/root/.pi/agent/skills",
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"exact prefix", "/host/ws", "/workspace"},
		{"suffix preserved", "/host/ws/src/a.go", "/workspace/src/a.go"},
		{"longest prefix wins", "/host/ws/vendor/lib.go", "/vendor/lib.go"},
		{"no partial segment match", "/host/wsx/file", "/other/file"},
		{"no match passes through", "/tmp/file", "/tmp/file"},
		{"prefix-like sibling not matched", "/host/wsy", "/host/wsy"},
		{"skills", "/Users/me/skills/a/SKILL.md", "/root/.pi/agent/skills/a/SKILL.md"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HostToGuest(tt.in, mounts))
		})
	}
}

func TestHostToGuest_RootMount(t *testing.T) {
	mounts := MountTable{"/": "/host"}
	assert.Equal(t, "/host", HostToGuest("/", mounts))
	assert.Equal(t, "/host/etc/hosts", HostToGuest("/etc/hosts", mounts))
}

func TestCovered(t *testing.T) {
	mounts := MountTable{"/a/b": "/x"}
	assert.True(t, Covered("/a/b", mounts))
	assert.True(t, Covered("/a/b/c", mounts))
	assert.False(t, Covered("/a/bc", mounts))
	assert.False(t, Covered("/a", mounts))
	assert.False(t, Covered("/a/b", nil))
}

func TestMountTable_Entries(t *testing.T) {
	m := MountTable{"/z": "/1", "/a": "/2"}
	assert.Equal(t, []Mount{{Host: "/a", Guest: "/2"}, {Host: "/z", Guest: "/1"}}, m.Entries())
}
