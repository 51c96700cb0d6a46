// Package shell builds the execution context of a service: shell binary,
// working directory, environment and the composed "-c" command line.
package shell

import (
	"strings"

	"github.com/alessio/shellescape"
	"github.com/mitchellh/go-homedir"

	"github.com/loykin/servctl/internal/env"
	"github.com/loykin/servctl/internal/errs"
	"github.com/loykin/servctl/internal/service"
)

// Context is the isolated execution environment of one service.
type Context struct {
	Shell   string
	Init    string
	WorkDir string
	Env     []string
}

// Options tweak Build. BaseEnv replaces os.Environ() when non-nil.
type Options struct {
	BaseEnv []string
}

// Build derives the execution context of rec.
func Build(rec service.Record, opts Options) (Context, error) {
	dir, err := WorkDir(rec)
	if err != nil {
		return Context{}, err
	}
	e := env.New()
	if opts.BaseEnv != nil {
		e.FromList(opts.BaseEnv)
	} else {
		e.FromOS()
	}
	for _, k := range rec.Env.Keys() {
		e.Set(k, rec.Env[k])
	}
	return Context{
		Shell:   rec.ShellBinary(),
		Init:    rec.Init(),
		WorkDir: dir,
		Env:     e.Merge(),
	}, nil
}

// WorkDir returns the record path with a leading "~" expanded.
func WorkDir(rec service.Record) (string, error) {
	p := strings.TrimSpace(rec.Path)
	if p == "" {
		return "", errs.New(errs.ConfigurationError, "service path is empty")
	}
	dir, err := homedir.Expand(p)
	if err != nil {
		return "", errs.New(errs.ConfigurationError, "service path %q: %v", p, err)
	}
	return dir, nil
}

// CommandLine wraps cmd so it runs inside the working directory after the
// init snippet. cmd itself is passed through untouched.
func (c Context) CommandLine(cmd string) []string {
	composed := "cd " + shellescape.Quote(c.WorkDir) + " && " + cmd
	if init := strings.TrimSpace(c.Init); init != "" && init != service.DefaultShellInit {
		composed = init + "; " + composed
	}
	return []string{c.Shell, "-c", composed}
}

// Render joins argv into one copy-pasteable, shell-quoted line.
func Render(argv []string) string {
	return shellescape.QuoteCommand(argv)
}

// Lookup returns the value of key in the context environment.
func (c Context) Lookup(key string) string {
	prefix := key + "="
	for _, kv := range c.Env {
		if strings.HasPrefix(kv, prefix) {
			return kv[len(prefix):]
		}
	}
	return ""
}
