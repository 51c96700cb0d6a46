// Package processtest provides a scripted process.Runner for tests.
package processtest

import (
	"context"
	"strings"
	"sync"

	"github.com/loykin/servctl/internal/process"
)

// Response is returned for invocations whose composed command contains Match.
type Response struct {
	Match  string
	Result process.Result
	Err    error
}

// Fake records every invocation and answers with the first matching
// Response, or Default when none matches.
type Fake struct {
	mu        sync.Mutex
	Responses []Response
	Default   process.Result
	Calls     []process.Invocation
}

func (f *Fake) On(match string, res process.Result) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Responses = append(f.Responses, Response{Match: match, Result: res})
	return f
}

func (f *Fake) Run(_ context.Context, inv process.Invocation) (process.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, inv)
	line := strings.Join(inv.Argv, " ")
	for _, r := range f.Responses {
		if strings.Contains(line, r.Match) {
			return r.Result, r.Err
		}
	}
	return f.Default, nil
}

// Commands returns the last argv element (the composed script) of every call.
func (f *Fake) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.Calls))
	for _, c := range f.Calls {
		if len(c.Argv) > 0 {
			out = append(out, c.Argv[len(c.Argv)-1])
		}
	}
	return out
}

// Ran reports whether any call's script contains s.
func (f *Fake) Ran(s string) bool {
	for _, c := range f.Commands() {
		if strings.Contains(c, s) {
			return true
		}
	}
	return false
}
