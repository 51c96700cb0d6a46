package service

import (
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func TestKey(t *testing.T) {
	assert.Equal(t, "blog", Key("  Blog "))
	assert.Equal(t, "", Key("   "))
}

func TestRecordDecode_DefaultsAndCoercion(t *testing.T) {
	doc := `{"path":"~/srv","runtime":"launchd","env":{"PORT":8080,"DEBUG":true,"NAME":"x","NIL":null}}`
	var r Record
	require.NoError(t, jsoniter.Unmarshal([]byte(doc), &r))
	r.Normalize()

	assert.Equal(t, Custom, r.Runtime, "unknown runtime falls back to custom")
	assert.Equal(t, "8080", r.Env["PORT"])
	assert.Equal(t, "true", r.Env["DEBUG"])
	assert.Equal(t, "x", r.Env["NAME"])
	assert.Equal(t, "", r.Env["NIL"])
	assert.NotNil(t, r.Actions)
	assert.NotNil(t, r.Aliases)
	assert.Equal(t, DefaultShell, r.ShellBinary())
	assert.Equal(t, DefaultShellInit, r.Init())
}

func TestRecordDecode_EnvWrongShape(t *testing.T) {
	var r Record
	require.NoError(t, jsoniter.Unmarshal([]byte(`{"env":["A=1"]}`), &r))
	assert.Empty(t, r.Env)
}

func TestRecordDecode_WrongShapes(t *testing.T) {
	var r Record
	doc := `{"display_name":["x"],"aliases":["a",3,null,{"b":1}],"actions":{"update":5,"restart":null},"shell":false,"runtime":7}`
	require.NoError(t, jsoniter.Unmarshal([]byte(doc), &r))
	r.Normalize()

	assert.Equal(t, "", r.DisplayName)
	assert.Equal(t, []string{"a", "3"}, r.Aliases)
	assert.Equal(t, "5", r.Actions["update"])
	_, ok := r.Action("restart")
	assert.False(t, ok)
	assert.Equal(t, "false", r.Shell)
	assert.Equal(t, Custom, r.Runtime)

	require.Error(t, jsoniter.Unmarshal([]byte(`"blog"`), &r))
}

func TestParseRuntime(t *testing.T) {
	for _, rt := range Runtimes {
		got, ok := ParseRuntime(" " + string(rt) + " ")
		assert.True(t, ok)
		assert.Equal(t, rt, got)
	}
	_, ok := ParseRuntime("docker")
	assert.False(t, ok)
}

func TestAction(t *testing.T) {
	r := New("svc")
	r.Actions["status"] = "  echo up  "
	r.Actions["health"] = "   "

	cmd, ok := r.Action("status")
	assert.True(t, ok)
	assert.Equal(t, "echo up", cmd)

	_, ok = r.Action("health")
	assert.False(t, ok)
	_, ok = r.Action("update")
	assert.False(t, ok)
}

func TestTokens(t *testing.T) {
	r := New("My Blog")
	r.Aliases = []string{"博客", " ", "Notes"}
	assert.Equal(t, []string{"blog", "my blog", "博客", "notes"}, r.Tokens("blog"))
}

func TestApply_MergesAliasesAndEnv(t *testing.T) {
	r := New("Blog")
	r.Aliases = []string{"Notes"}
	r.Env["A"] = "1"

	err := r.Apply(SetOptions{
		Aliases: []string{"notes", "博客", " "},
		Env:     []string{"B=2", "A=x=y"},
		Path:    strp("/srv/blog"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"notes", "博客"}, r.Aliases)
	assert.Equal(t, Env{"A": "x=y", "B": "2"}, r.Env)
	assert.Equal(t, "/srv/blog", r.Path)
	assert.Equal(t, "Blog", r.DisplayName)
}

func TestApply_InvalidEnvLeavesRecord(t *testing.T) {
	r := New("Blog")
	err := r.Apply(SetOptions{Path: strp("/x"), Env: []string{"NOEQUALS"}})
	require.Error(t, err)
	assert.Equal(t, "", r.Path)

	err = r.Apply(SetOptions{Env: []string{" =v"}})
	require.Error(t, err)
}

func TestApply_ComposeDefaults(t *testing.T) {
	r := New("web")
	rt := ContainerCompose
	require.NoError(t, r.Apply(SetOptions{Runtime: &rt, RestartCmd: strp("make restart")}))

	assert.Equal(t, ComposeDefaults[ActionUpdate], r.Actions[ActionUpdate])
	assert.Equal(t, "make restart", r.Actions[ActionRestart])
	assert.Equal(t, "docker compose ps", r.Actions[ActionStatus])

	// later writes keep operator overrides
	r.Actions[ActionStatus] = "docker ps"
	require.NoError(t, r.Apply(SetOptions{}))
	assert.Equal(t, "docker ps", r.Actions[ActionStatus])
}

func TestEnvKeysSorted(t *testing.T) {
	e := Env{"b": "1", "a": "2", "C": "3"}
	assert.Equal(t, []string{"C", "a", "b"}, e.Keys())
}
