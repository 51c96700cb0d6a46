package env

import (
	"os"
	"sort"
	"strings"
)

// MinimalPath is appended to PATH so service commands find the usual binary
// locations even when started from a stripped environment (launchd, cron).
const MinimalPath = "/opt/homebrew/bin:/opt/homebrew/sbin:/usr/local/bin:/usr/bin:/bin:/usr/sbin:/sbin"

type Var map[string]string

type Env struct {
	Var Var // service variables (K->V)
	env Var // cached base from OS environment
}

func New() *Env {
	return &Env{
		Var: make(Var),
	}
}

// FromOS caches the current process environment as the base.
func (e *Env) FromOS() {
	e.FromList(os.Environ())
}

// FromList uses the given "K=V" entries as the base instead of the OS
// environment.
func (e *Env) FromList(kvs []string) {
	base := make(Var)
	for _, kv := range kvs {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			k := kv[:i]
			v := kv[i+1:]
			if k == "" {
				continue
			}
			base[k] = v
		}
	}
	e.env = base
}

// Set sets a service variable K=V. Blank keys are ignored.
func (e *Env) Set(k, v string) {
	k = strings.TrimSpace(k)
	if k == "" {
		return
	}
	if e.Var == nil {
		e.Var = make(Var)
	}
	e.Var[k] = v
}

// Map composes the final environment:
// base = OS env (or cached)
// then apply e.Var overrides
// then make sure PATH carries every MinimalPath entry.
func (e *Env) Map() Var {
	if e.env == nil {
		e.FromOS()
	}
	m := make(Var, len(e.env)+len(e.Var)+1)
	for k, v := range e.env {
		m[k] = v
	}
	for k, v := range e.Var {
		if k == "" {
			continue
		}
		m[k] = v
	}
	m["PATH"] = EnsurePath(m["PATH"], MinimalPath)
	return m
}

// Merge returns Map as a sorted "K=V" slice suitable for exec.Cmd.Env.
func (e *Env) Merge() []string {
	m := e.Map()
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// EnsurePath appends the entries of required missing from current. Existing
// entries are kept as given, minus empty ones; only the appended entries are
// deduplicated. A blank current yields required unchanged.
func EnsurePath(current, required string) string {
	if strings.TrimSpace(current) == "" {
		return required
	}
	sep := string(os.PathListSeparator)
	seen := make(map[string]bool)
	parts := make([]string, 0)
	for _, p := range strings.Split(current, sep) {
		if p == "" {
			continue
		}
		seen[p] = true
		parts = append(parts, p)
	}
	for _, p := range strings.Split(required, sep) {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		parts = append(parts, p)
	}
	return strings.Join(parts, sep)
}
