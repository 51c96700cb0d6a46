package action

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/servctl/internal/errs"
	"github.com/loykin/servctl/internal/process"
	"github.com/loykin/servctl/internal/process/processtest"
	"github.com/loykin/servctl/internal/service"
)

func newRunner(fake *processtest.Fake) (*Runner, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	r := &Runner{
		Proc:    fake,
		Out:     &out,
		Err:     &errOut,
		Log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		BaseEnv: []string{"HOME=/home/test"},
	}
	return r, &out, &errOut
}

func blog() service.Record {
	r := service.New("blog")
	r.Path = "/srv/blog"
	r.Aliases = []string{"博客"}
	r.Actions["status"] = "echo up"
	return r
}

func compose() service.Record {
	r := service.New("web")
	r.Path = "/srv/web"
	r.Runtime = service.ContainerCompose
	r.Actions["update"] = "docker compose pull && docker compose up -d"
	r.Actions["restart"] = "docker compose restart"
	return r
}

func TestRun_DryRunDoesNotExecute(t *testing.T) {
	fake := &processtest.Fake{}
	r, out, _ := newRunner(fake)

	code, err := r.Run(context.Background(), blog(), "status", true)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Empty(t, fake.Calls)
	assert.Equal(t, "[DRY-RUN] /bin/sh -c 'cd /srv/blog && echo up'\n", out.String())
}

func TestRun_NotConfigured(t *testing.T) {
	fake := &processtest.Fake{}
	r, _, errOut := newRunner(fake)

	code, err := r.Run(context.Background(), blog(), "deploy", false)
	assert.Equal(t, errs.CodeUsage, code)
	assert.True(t, errs.Is(err, errs.ConfigurationError))
	assert.Contains(t, errOut.String(), "[ERROR] action 'deploy' is not configured")
	assert.Empty(t, fake.Calls)
}

func TestRun_EmptyPath(t *testing.T) {
	fake := &processtest.Fake{}
	r, _, errOut := newRunner(fake)
	rec := blog()
	rec.Path = ""

	code, err := r.Run(context.Background(), rec, "status", false)
	assert.Equal(t, errs.CodeUsage, code)
	assert.True(t, errs.Is(err, errs.ConfigurationError))
	assert.Contains(t, errOut.String(), "[ERROR] service path is empty")
}

func TestRun_ExecutesWithInheritedStreams(t *testing.T) {
	fake := &processtest.Fake{}
	r, out, _ := newRunner(fake)

	code, err := r.Run(context.Background(), blog(), "status", false)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	require.Len(t, fake.Calls, 1)

	call := fake.Calls[0]
	assert.False(t, call.Capture)
	assert.Equal(t, []string{"/bin/sh", "-c", "cd /srv/blog && echo up"}, call.Argv)
	assert.Contains(t, call.Env, "HOME=/home/test")
	assert.True(t, strings.HasPrefix(out.String(), "[RUN] /bin/sh -c "))
}

func TestRun_PropagatesExitCode(t *testing.T) {
	fake := (&processtest.Fake{}).On("echo up", process.Result{ExitCode: 7})
	r, _, _ := newRunner(fake)

	code, err := r.Run(context.Background(), blog(), "status", false)
	assert.Equal(t, 7, code)
	assert.True(t, errs.Is(err, errs.ExecutionFailed))
	assert.Equal(t, 7, errs.ExitCode(err))
}

func TestRun_StartFailure(t *testing.T) {
	fake := &processtest.Fake{Responses: []processtest.Response{{
		Match:  "echo up",
		Result: process.Result{ExitCode: process.ExitNotStarted},
		Err:    errors.New("no such file"),
	}}}
	r, _, errOut := newRunner(fake)

	code, err := r.Run(context.Background(), blog(), "status", false)
	assert.Equal(t, process.ExitNotStarted, code)
	assert.True(t, errs.Is(err, errs.ExecutionFailed))
	assert.Contains(t, errOut.String(), "[ERROR] no such file")
}

func TestRun_UpdatePrecheckDockerMissing(t *testing.T) {
	fake := (&processtest.Fake{}).On("command -v docker", process.Result{ExitCode: 1})
	r, _, errOut := newRunner(fake)

	code, err := r.Run(context.Background(), compose(), "update", false)
	assert.Equal(t, errs.CodePrecondition, code)
	assert.True(t, errs.Is(err, errs.PreconditionFailed))
	assert.False(t, fake.Ran("docker compose pull"), "update command must not run")
	assert.Contains(t, errOut.String(), "[PRECHECK] docker command not found in PATH")
	assert.Contains(t, errOut.String(), "[PRECHECK] PATH=")
}

func TestRun_UpdatePrecheckDaemonDown(t *testing.T) {
	fake := (&processtest.Fake{}).On("docker info", process.Result{ExitCode: 1, Stderr: "Cannot connect to the Docker daemon\n"})
	r, _, errOut := newRunner(fake)

	code, _ := r.Run(context.Background(), compose(), "update", false)
	assert.Equal(t, errs.CodePrecondition, code)
	assert.False(t, fake.Ran("docker compose pull"))
	assert.Contains(t, errOut.String(), "[PRECHECK_DETAIL] Cannot connect to the Docker daemon")
}

func TestRun_PrecheckOnlyForComposeUpdate(t *testing.T) {
	fake := &processtest.Fake{}
	r, _, _ := newRunner(fake)

	_, err := r.Run(context.Background(), compose(), "restart", false)
	require.NoError(t, err)
	assert.False(t, fake.Ran("docker info"))

	rec := blog()
	rec.Runtime = service.InitSystem
	rec.Actions["update"] = "systemctl restart blog"
	_, err = r.Run(context.Background(), rec, "update", false)
	require.NoError(t, err)
	assert.False(t, fake.Ran("docker info"))

	_, err = r.Run(context.Background(), compose(), "update", false)
	require.NoError(t, err)
	assert.True(t, fake.Ran("command -v docker"))
	assert.True(t, fake.Ran("docker info"))
	assert.True(t, fake.Ran("docker compose pull"))
}

func TestCapture_StartErrorBecomesFailure(t *testing.T) {
	fake := &processtest.Fake{Responses: []processtest.Response{{Match: "probe", Err: errors.New("boom")}}}
	r, _, _ := newRunner(fake)
	sc, err := r.Context(blog())
	require.NoError(t, err)

	res := r.Capture(context.Background(), sc, "probe")
	assert.Equal(t, process.ExitNotStarted, res.ExitCode)
	assert.Equal(t, "boom", res.Stderr)
	assert.True(t, fake.Calls[0].Capture)
}
