// Package snapshot captures what a service is currently running so that an
// update or restart can be reported as a before/after diff. Capturing never
// mutates the service and never fails hard: inspection problems degrade to an
// error flagged or empty snapshot.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/loykin/servctl/internal/action"
	"github.com/loykin/servctl/internal/metrics"
	"github.com/loykin/servctl/internal/service"
	"github.com/loykin/servctl/internal/shell"
)

// Component describes one running container of a service.
type Component struct {
	Container  string `json:"container"`
	ImageRef   string `json:"image_ref"`
	ImageID    string `json:"image_id"`
	Version    string `json:"version"`
	Digest     string `json:"digest"`
	Revision   string `json:"revision"`
	Repository string `json:"repository,omitempty"`
	Tag        string `json:"tag,omitempty"`
}

// Inspection is the runtime specific part of a snapshot.
type Inspection struct {
	Mode       service.Runtime      `json:"mode"`
	OK         bool                 `json:"ok"`
	Error      string               `json:"error,omitempty"`
	Components map[string]Component `json:"components"`
}

// Probe is the result of the record's version command.
type Probe struct {
	OK     bool   `json:"ok"`
	Output string `json:"output"`
	Error  string `json:"error"`
}

// Snapshot is a point-in-time description of a service. Inspection and Probe
// are nil when not applicable.
type Snapshot struct {
	Runtime    service.Runtime `json:"runtime"`
	Inspection *Inspection     `json:"runtime_snapshot,omitempty"`
	Probe      *Probe          `json:"custom_snapshot,omitempty"`
}

// Empty reports a snapshot without any data.
func (s Snapshot) Empty() bool { return s.Inspection == nil && s.Probe == nil }

// Engine captures snapshots by running inspection commands through the
// action runner's execution context.
type Engine struct {
	Runner *action.Runner
	Log    *slog.Logger
}

func New(r *action.Runner, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{Runner: r, Log: log}
}

// Capture inspects rec.
func (e *Engine) Capture(ctx context.Context, rec service.Record) Snapshot {
	snap := Snapshot{Runtime: rec.Runtime}
	sc, ctxErr := e.Runner.Context(rec)

	switch rec.Runtime {
	case service.ContainerCompose:
		if ctxErr != nil {
			snap.Inspection = failed(service.ContainerCompose, ctxErr.Error())
		} else {
			snap.Inspection = e.compose(ctx, sc)
		}
		if !snap.Inspection.OK {
			metrics.IncSnapshotError(rec.Runtime.String())
			e.Log.Debug("compose inspection failed", slog.String("error", snap.Inspection.Error))
		}
	case service.InitSystem, service.ProcessManager, service.Custom:
		// no runtime inspection available
	}

	if rec.HasVersionProbe() {
		if ctxErr != nil {
			snap.Probe = &Probe{Error: ctxErr.Error()}
		} else {
			snap.Probe = e.probe(ctx, sc, strings.TrimSpace(rec.VersionCmd))
		}
	}
	return snap
}

func (e *Engine) probe(ctx context.Context, sc shell.Context, cmd string) *Probe {
	res := e.Runner.Capture(ctx, sc, cmd)
	out := strings.TrimSpace(res.Stdout)
	p := &Probe{OK: res.OK(), Output: out}
	if !p.OK {
		p.Error = firstNonEmpty(res.Stderr, out)
		if p.Error == "" {
			p.Error = fmt.Sprintf("exit %d", res.ExitCode)
		}
	}
	return p
}

func failed(mode service.Runtime, msg string) *Inspection {
	return &Inspection{Mode: mode, OK: false, Error: msg, Components: map[string]Component{}}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
