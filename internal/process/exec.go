package process

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
)

// ExitNotStarted is reported when the command could not be started at all
// (missing shell binary, bad working directory).
const ExitNotStarted = 127

// Invocation is one external command. With Capture set, stdout and stderr are
// collected into the Result; otherwise they go to Stdout/Stderr (os.Stdout and
// os.Stderr when nil) so operators see live output.
type Invocation struct {
	Argv    []string
	Env     []string
	Capture bool
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
}

// Result is the outcome of an Invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// OK reports a zero exit code.
func (r Result) OK() bool { return r.ExitCode == 0 }

// Runner is the process execution primitive.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Result, error)
}

// Exec runs invocations with os/exec.
type Exec struct{}

// Run executes inv and blocks until it exits. A non-zero exit is not an
// error; err is only set when the command could not be started, in which case
// ExitCode is ExitNotStarted.
func (Exec) Run(ctx context.Context, inv Invocation) (Result, error) {
	if len(inv.Argv) == 0 {
		return Result{ExitCode: ExitNotStarted}, errors.New("empty command")
	}
	// #nosec G204 -- commands come from the operator's own registry
	cmd := exec.CommandContext(ctx, inv.Argv[0], inv.Argv[1:]...)
	if inv.Env != nil {
		cmd.Env = inv.Env
	}

	var stdout, stderr bytes.Buffer
	if inv.Capture {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	} else {
		cmd.Stdin = valOr[io.Reader](inv.Stdin, os.Stdin)
		cmd.Stdout = valOr[io.Writer](inv.Stdout, os.Stdout)
		cmd.Stderr = valOr[io.Writer](inv.Stderr, os.Stderr)
	}

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		res.ExitCode = ee.ExitCode()
		if res.ExitCode < 0 {
			// killed by a signal
			res.ExitCode = 1
		}
		return res, nil
	}
	res.ExitCode = ExitNotStarted
	if res.Stderr == "" {
		res.Stderr = err.Error()
	}
	return res, err
}

func valOr[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
