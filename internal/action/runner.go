// Package action runs a configured action of a service inside its execution
// context, honoring dry runs and the runtime specific precondition check.
package action

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/loykin/servctl/internal/errs"
	"github.com/loykin/servctl/internal/metrics"
	"github.com/loykin/servctl/internal/process"
	"github.com/loykin/servctl/internal/service"
	"github.com/loykin/servctl/internal/shell"
)

// Runner executes service actions.
type Runner struct {
	Proc    process.Runner
	Out     io.Writer // [RUN] / [DRY-RUN] lines and inherited stdout
	Err     io.Writer // [ERROR] / [PRECHECK] lines and inherited stderr
	Log     *slog.Logger
	BaseEnv []string // nil means os.Environ()
}

// New returns a Runner writing to the process streams.
func New(proc process.Runner, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{Proc: proc, Out: os.Stdout, Err: os.Stderr, Log: log}
}

// Context builds the execution context of rec.
func (r *Runner) Context(rec service.Record) (shell.Context, error) {
	return shell.Build(rec, shell.Options{BaseEnv: r.BaseEnv})
}

// Run executes the named action of rec and returns its exit code. A non-nil
// error classifies the failure; the exit code is always meaningful.
func (r *Runner) Run(ctx context.Context, rec service.Record, name string, dryRun bool) (int, error) {
	cmd, ok := rec.Action(name)
	if !ok {
		err := errs.New(errs.ConfigurationError, "action '%s' is not configured", name)
		r.errorf("[ERROR] %s", err)
		return errs.CodeUsage, err
	}

	sc, err := r.Context(rec)
	if err != nil {
		r.errorf("[ERROR] %s", err)
		return errs.ExitCode(err), err
	}
	argv := sc.CommandLine(cmd)

	if dryRun {
		r.outf("[DRY-RUN] %s", shell.Render(argv))
		return errs.CodeOK, nil
	}

	if name == service.ActionUpdate {
		if err := r.Precheck(ctx, rec, sc); err != nil {
			metrics.IncPrecheckFailure(rec.Runtime.String())
			return errs.CodePrecondition, err
		}
	}

	r.outf("[RUN] %s", shell.Render(argv))
	res, err := r.Proc.Run(ctx, process.Invocation{
		Argv:   argv,
		Env:    sc.Env,
		Stdout: r.Out,
		Stderr: r.Err,
	})
	if err != nil {
		r.errorf("[ERROR] %s", err)
		return res.ExitCode, errs.NewExecution(res.ExitCode, "action '%s' could not start: %v", name, err)
	}
	if !res.OK() {
		return res.ExitCode, errs.NewExecution(res.ExitCode, "action '%s' exited with %d", name, res.ExitCode)
	}
	return errs.CodeOK, nil
}

// Capture runs cmd inside the service context with captured output. It is
// used for inspection, precondition and version probe commands.
func (r *Runner) Capture(ctx context.Context, sc shell.Context, cmd string) process.Result {
	argv := sc.CommandLine(cmd)
	r.Log.Debug("capture", slog.String("command", shell.Render(argv)))
	res, err := r.Proc.Run(ctx, process.Invocation{Argv: argv, Env: sc.Env, Capture: true})
	if err != nil {
		r.Log.Debug("capture failed to start", slog.String("command", cmd), slog.Any("error", err))
		if res.ExitCode == 0 {
			res.ExitCode = process.ExitNotStarted
		}
		if res.Stderr == "" {
			res.Stderr = err.Error()
		}
	}
	return res
}

// Precheck verifies the runtime is ready for an update.
func (r *Runner) Precheck(ctx context.Context, rec service.Record, sc shell.Context) error {
	switch rec.Runtime {
	case service.ContainerCompose:
		return r.precheckDocker(ctx, sc)
	case service.InitSystem, service.ProcessManager, service.Custom:
	}
	return nil
}

func (r *Runner) precheckDocker(ctx context.Context, sc shell.Context) error {
	if res := r.Capture(ctx, sc, "command -v docker >/dev/null 2>&1"); !res.OK() {
		r.errorf("[PRECHECK] docker command not found in PATH")
		r.errorf("[PRECHECK] PATH=%s", sc.Lookup("PATH"))
		return errs.New(errs.PreconditionFailed, "docker command not found in PATH")
	}
	if res := r.Capture(ctx, sc, "docker info >/dev/null 2>&1"); !res.OK() {
		r.errorf("[PRECHECK] docker daemon is not reachable (start Docker Desktop / Docker daemon first)")
		if detail := firstNonEmpty(res.Stderr, res.Stdout); detail != "" {
			r.errorf("[PRECHECK_DETAIL] %s", detail)
		}
		return errs.New(errs.PreconditionFailed, "docker daemon is not reachable")
	}
	return nil
}

func (r *Runner) outf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.Out, format+"\n", args...)
}

func (r *Runner) errorf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.Err, format+"\n", args...)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
