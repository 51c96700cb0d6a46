package main

import (
	"fmt"
	"io"
	"os"

	"github.com/loykin/servctl/internal/errs"
	"github.com/loykin/servctl/internal/process"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, process.Exec{}))
}

// run executes one CLI invocation and returns the process exit code.
func run(args []string, stdout, stderr io.Writer, proc process.Runner) int {
	c := &command{global: &GlobalFlags{}, stdout: stdout, stderr: stderr, proc: proc}
	root := buildRoot(c)
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintf(stderr, "[ERROR] %s\n", err)
		return errs.ExitCode(usageError(err))
	}
	return c.code
}
