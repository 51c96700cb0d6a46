package shell

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/servctl/internal/env"
	"github.com/loykin/servctl/internal/errs"
	"github.com/loykin/servctl/internal/service"
)

func record(path string) service.Record {
	r := service.New("svc")
	r.Path = path
	return r
}

func TestBuild_EmptyPath(t *testing.T) {
	_, err := Build(record("  "), Options{BaseEnv: []string{}})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ConfigurationError))
}

func TestBuild_ExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	c, err := Build(record("~/apps/blog"), Options{BaseEnv: []string{}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "apps/blog"), c.WorkDir)
}

func TestBuild_EnvAndDefaults(t *testing.T) {
	r := record("/srv/blog")
	r.Env = service.Env{"PORT": "8080", "HOME": "/override"}
	c, err := Build(r, Options{BaseEnv: []string{"HOME=/home/u", "LANG=C"}})
	require.NoError(t, err)

	assert.Equal(t, service.DefaultShell, c.Shell)
	assert.Equal(t, "8080", c.Lookup("PORT"))
	assert.Equal(t, "/override", c.Lookup("HOME"))
	assert.Equal(t, "C", c.Lookup("LANG"))
	assert.Equal(t, env.MinimalPath, c.Lookup("PATH"))
}

func TestCommandLine_NoInit(t *testing.T) {
	c := Context{Shell: "/bin/sh", Init: ":", WorkDir: "/srv/blog"}
	assert.Equal(t,
		[]string{"/bin/sh", "-c", "cd /srv/blog && echo up"},
		c.CommandLine("echo up"))
}

func TestCommandLine_InitAndQuoting(t *testing.T) {
	c := Context{Shell: "/bin/zsh", Init: "source ~/.zshrc", WorkDir: "/srv/my blog's"}
	argv := c.CommandLine("docker compose ps | grep web")
	require.Len(t, argv, 3)
	assert.Equal(t, "/bin/zsh", argv[0])
	assert.Equal(t, "-c", argv[1])
	assert.True(t, strings.HasPrefix(argv[2], "source ~/.zshrc; cd '/srv/my blog'\"'\"'s' && "), argv[2])
	assert.True(t, strings.HasSuffix(argv[2], "&& docker compose ps | grep web"))
}

func TestRender(t *testing.T) {
	line := Render([]string{"/bin/sh", "-c", "cd /srv && echo up"})
	assert.Equal(t, "/bin/sh -c 'cd /srv && echo up'", line)
}
