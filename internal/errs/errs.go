// Package errs defines the error taxonomy shared by the resolver, the action
// runner and the dispatcher, and maps each kind to a process exit code.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a dispatcher failure.
type Kind string

const (
	InvalidInput       Kind = "invalid_input"
	NotFound           Kind = "not_found"
	Ambiguous          Kind = "ambiguous"
	ConfigurationError Kind = "configuration_error"
	PreconditionFailed Kind = "precondition_failed"
	ExecutionFailed    Kind = "execution_failed"
)

// Exit codes reported to the caller.
const (
	CodeOK           = 0
	CodeResolution   = 1
	CodeUsage        = 2
	CodePrecondition = 2
)

// Error is a classified failure. Candidates is only set for Ambiguous, Code
// only for ExecutionFailed.
type Error struct {
	Kind       Kind
	Msg        string
	Candidates []string
	Code       int
}

func (e *Error) Error() string {
	if e.Kind == Ambiguous && len(e.Candidates) > 0 {
		return fmt.Sprintf("%s -> %s", e.Msg, strings.Join(e.Candidates, ", "))
	}
	return e.Msg
}

// ExitCode returns the process exit code for this error.
func (e *Error) ExitCode() int {
	switch e.Kind {
	case NotFound, Ambiguous:
		return CodeResolution
	case InvalidInput, ConfigurationError:
		return CodeUsage
	case PreconditionFailed:
		return CodePrecondition
	case ExecutionFailed:
		if e.Code != 0 {
			return e.Code
		}
		return 1
	default:
		return 1
	}
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// NewAmbiguous reports several candidate keys for one query.
func NewAmbiguous(query string, candidates []string) *Error {
	return &Error{
		Kind:       Ambiguous,
		Msg:        "service is ambiguous: " + query,
		Candidates: candidates,
	}
}

// NewExecution reports a command that exited with a non-zero code.
func NewExecution(code int, format string, args ...any) *Error {
	return &Error{Kind: ExecutionFailed, Msg: fmt.Sprintf(format, args...), Code: code}
}

// Is reports whether err carries an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// ExitCode maps any error to an exit code. Unclassified errors map to 1.
func ExitCode(err error) int {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.ExitCode()
	}
	return 1
}
