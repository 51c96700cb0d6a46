// Package dispatch sequences one operator request: resolve the service, run
// the action, and for real update/restart runs bracket it with version
// snapshots and a report. It also implements the registry commands.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/loykin/servctl/internal/action"
	"github.com/loykin/servctl/internal/errs"
	"github.com/loykin/servctl/internal/history"
	"github.com/loykin/servctl/internal/metrics"
	"github.com/loykin/servctl/internal/report"
	"github.com/loykin/servctl/internal/resolve"
	"github.com/loykin/servctl/internal/service"
	"github.com/loykin/servctl/internal/snapshot"
	"github.com/loykin/servctl/internal/store"
)

// Dispatcher is the entry point used by the CLI. Every call loads its own copy
// of the registry; nothing is cached between calls.
type Dispatcher struct {
	store     store.Store
	resolver  *resolve.Resolver
	runner    *action.Runner
	snapshots *snapshot.Engine
	histSinks []history.Sink

	Out io.Writer
	Err io.Writer
	Log *slog.Logger
}

// New wires a dispatcher around st and runner. The runner's output writers
// are shared so tagged lines interleave in order.
func New(st store.Store, runner *action.Runner) *Dispatcher {
	log := runner.Log
	if log == nil {
		log = slog.Default()
	}
	out, errw := runner.Out, runner.Err
	if out == nil {
		out = os.Stdout
	}
	if errw == nil {
		errw = os.Stderr
	}
	return &Dispatcher{
		store:     st,
		resolver:  resolve.New(nil),
		runner:    runner,
		snapshots: snapshot.New(runner, log),
		Out:       out,
		Err:       errw,
		Log:       log,
	}
}

// SetResolver replaces the default resolver, e.g. to use custom filler words.
func (d *Dispatcher) SetResolver(r *resolve.Resolver) {
	if r != nil {
		d.resolver = r
	}
}

// SetHistorySinks configures optional destinations for run events.
func (d *Dispatcher) SetHistorySinks(sinks ...history.Sink) {
	d.histSinks = append([]history.Sink(nil), sinks...)
}

// RunAction resolves query and runs the named action, returning the process
// exit code.
func (d *Dispatcher) RunAction(ctx context.Context, query, name string, dryRun bool) int {
	name = strings.TrimSpace(name)
	if name == "" {
		return d.fail(errs.New(errs.InvalidInput, "action name is empty"))
	}
	doc, err := d.load(ctx)
	if err != nil {
		return d.fail(err)
	}
	key, rec, err := d.resolver.Resolve(doc.Services, query)
	if err != nil {
		return d.fail(err)
	}
	d.outf("[SERVICE] %s", key)

	evt := history.NewEvent(key, name, rec.Runtime.String(), dryRun)
	start := time.Now()

	mutating := (name == service.ActionUpdate || name == service.ActionRestart) && !dryRun
	var before snapshot.Snapshot
	if mutating {
		before = d.snapshots.Capture(ctx, rec)
	}

	code, runErr := d.runner.Run(ctx, rec, name, dryRun)
	if runErr != nil {
		d.Log.Debug("action failed", slog.String("service", key), slog.String("action", name), slog.Any("error", runErr))
	}
	elapsed := time.Since(start)
	evt.ExitCode = code
	evt.DurationMS = elapsed.Milliseconds()

	if mutating {
		after := d.snapshots.Capture(ctx, rec)
		for _, line := range report.Render(key, before, after, name, code) {
			d.outf("%s", line)
		}
		if before.Inspection != nil && after.Inspection != nil {
			evt.Changed = report.Changes(report.Diff(before.Inspection.Components, after.Inspection.Components))
			metrics.AddComponentsChanged(key, evt.Changed)
		}

		if evt.Succeeded() {
			if _, ok := rec.Action(service.ActionStatus); ok {
				d.outf("[POST_CHECK] %s", service.ActionStatus)
				if _, err := d.runner.Run(ctx, rec, service.ActionStatus, false); err != nil {
					d.Log.Debug("post check failed", slog.String("service", key), slog.Any("error", err))
				}
			}
		}
	}

	if !dryRun {
		metrics.ObserveAction(key, name, code, elapsed.Seconds())
	}
	d.record(ctx, evt)
	return code
}

// List prints every configured service.
func (d *Dispatcher) List(ctx context.Context) int {
	doc, err := d.load(ctx)
	if err != nil {
		return d.fail(err)
	}
	if len(doc.Services) == 0 {
		d.outf("(no services configured)")
		return errs.CodeOK
	}
	for _, key := range doc.Keys() {
		rec := doc.Services[key]
		display := rec.DisplayName
		if display == "" {
			display = key
		}
		d.outf("- %s (%s)", key, display)
		d.outf("  runtime: %s", rec.Runtime)
		d.outf("  path: %s", rec.Path)
		if len(rec.Aliases) > 0 {
			d.outf("  aliases: %s", strings.Join(rec.Aliases, ","))
		}
	}
	return errs.CodeOK
}

// Show prints the resolved record as JSON, with its key as "id".
func (d *Dispatcher) Show(ctx context.Context, query string) int {
	doc, err := d.load(ctx)
	if err != nil {
		return d.fail(err)
	}
	key, rec, err := d.resolver.Resolve(doc.Services, query)
	if err != nil {
		return d.fail(err)
	}
	fields, err := store.Fields(rec)
	if err != nil {
		return d.fail(fmt.Errorf("render service %s: %w", key, err))
	}
	fields["id"] = key
	text, err := store.Pretty(fields)
	if err != nil {
		return d.fail(fmt.Errorf("render service %s: %w", key, err))
	}
	d.outf("%s", text)
	return errs.CodeOK
}

// Set creates or updates the service named name and saves the registry.
func (d *Dispatcher) Set(ctx context.Context, name string, opts service.SetOptions) int {
	key := service.Key(name)
	if key == "" {
		return d.fail(errs.New(errs.InvalidInput, "service name is empty"))
	}
	doc, err := d.load(ctx)
	if err != nil {
		return d.fail(err)
	}
	rec, ok := doc.Services[key]
	if !ok {
		rec = service.New(name)
		delete(doc.Invalid, key)
	}
	if err := rec.Apply(opts); err != nil {
		return d.fail(err)
	}
	doc.Services[key] = rec
	if err := d.store.Save(ctx, doc); err != nil {
		return d.fail(err)
	}
	d.Log.Info("service saved", slog.String("service", key), slog.Bool("created", !ok))
	d.outf("[OK] service saved: %s", key)
	return errs.CodeOK
}

// Remove deletes the service with the exact key derived from name. Aliases
// and fuzzy matches are not consulted.
func (d *Dispatcher) Remove(ctx context.Context, name string) int {
	doc, err := d.load(ctx)
	if err != nil {
		return d.fail(err)
	}
	key := service.Key(name)
	if !doc.Drop(key) {
		return d.fail(errs.New(errs.NotFound, "service not found: %s", name))
	}
	if err := d.store.Save(ctx, doc); err != nil {
		return d.fail(err)
	}
	d.Log.Info("service removed", slog.String("service", key))
	d.outf("[OK] service removed: %s", key)
	return errs.CodeOK
}

// Versions prints the current version snapshot of the resolved service. It
// runs only inspection commands.
func (d *Dispatcher) Versions(ctx context.Context, query string) int {
	doc, err := d.load(ctx)
	if err != nil {
		return d.fail(err)
	}
	key, rec, err := d.resolver.Resolve(doc.Services, query)
	if err != nil {
		return d.fail(err)
	}
	snap := d.snapshots.Capture(ctx, rec)
	if snap.Empty() {
		d.Log.Info("no version information", slog.String("service", key), slog.String("runtime", rec.Runtime.String()))
	}
	text, err := store.Pretty(struct {
		ID string `json:"id"`
		snapshot.Snapshot
	}{key, snap})
	if err != nil {
		return d.fail(fmt.Errorf("render snapshot %s: %w", key, err))
	}
	d.outf("%s", text)
	return errs.CodeOK
}

// load reads the registry and warns about entries that cannot be used. They
// stay in the document so saves keep them until removed or overwritten.
func (d *Dispatcher) load(ctx context.Context) (store.Document, error) {
	doc, err := d.store.Load(ctx)
	if err != nil {
		return doc, err
	}
	for _, key := range doc.InvalidKeys() {
		d.Log.Warn("ignoring malformed service entry", slog.String("service", key))
	}
	return doc, nil
}

func (d *Dispatcher) record(ctx context.Context, evt history.Event) {
	for _, s := range d.histSinks {
		if s == nil {
			continue
		}
		if err := s.Send(ctx, evt); err != nil {
			d.Log.Warn("history send failed", slog.String("service", evt.Service), slog.Any("error", err))
		}
	}
}

// fail reports err as an [ERROR] line and returns its exit code.
func (d *Dispatcher) fail(err error) int {
	_, _ = fmt.Fprintf(d.Err, "[ERROR] %s\n", err)
	return errs.ExitCode(err)
}

func (d *Dispatcher) outf(format string, args ...any) {
	_, _ = fmt.Fprintf(d.Out, format+"\n", args...)
}
