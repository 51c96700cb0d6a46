package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/servctl/internal/action"
	"github.com/loykin/servctl/internal/config"
	"github.com/loykin/servctl/internal/dispatch"
	"github.com/loykin/servctl/internal/history/factory"
	"github.com/loykin/servctl/internal/logger"
	"github.com/loykin/servctl/internal/metrics"
	"github.com/loykin/servctl/internal/process"
	"github.com/loykin/servctl/internal/resolve"
	"github.com/loykin/servctl/internal/store"
)

// metricsRegistry collects servctl metrics for the textfile export. It is a
// dedicated registry so Go runtime metrics stay out of the file.
var metricsRegistry = prometheus.NewRegistry()

// session is the wiring for one CLI invocation.
type session struct {
	settings   config.Settings
	dispatcher *dispatch.Dispatcher
	log        *slog.Logger
	closers    []io.Closer
}

func openSession(flags *GlobalFlags, stdout, stderr io.Writer, proc process.Runner) (*session, error) {
	settings, err := config.Load(flags.ConfigPath)
	if err != nil {
		return nil, err
	}
	log, logCloser, err := logger.New(settings.Logger(), stderr)
	if err != nil {
		return nil, err
	}
	s := &session{settings: settings, log: log, closers: []io.Closer{logCloser}}

	baseEnv, err := settings.BaseEnv()
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	if err := metrics.Register(metricsRegistry); err != nil {
		log.Warn("metrics registration failed", slog.Any("error", err))
	}

	runner := action.New(proc, log)
	runner.Out = stdout
	runner.Err = stderr
	runner.BaseEnv = baseEnv

	d := dispatch.New(store.NewFileStore(settings.Registry), runner)
	d.SetResolver(resolve.New(settings.Match.FillerWords))

	if dsn := settings.History.DSN; dsn != "" {
		sink, err := factory.NewSinkFromDSN(dsn)
		if err != nil {
			// history is optional
			log.Warn("history sink disabled", slog.String("dsn", dsn), slog.Any("error", err))
		} else {
			d.SetHistorySinks(sink)
			s.closers = append(s.closers, closerFunc(func() error { return factory.Close(sink) }))
		}
	}
	s.dispatcher = d
	log.Debug("session ready",
		slog.String("config", settings.Source),
		slog.String("registry", settings.Registry),
		slog.Bool("history", settings.History.DSN != ""))
	return s, nil
}

// Close exports metrics and releases sinks and log files.
func (s *session) Close() error {
	var firstErr error
	if path := s.settings.Metrics.Textfile; path != "" {
		if err := metrics.WriteTextfile(path, metricsRegistry); err != nil {
			s.log.Warn("metrics textfile export failed", slog.String("path", path), slog.Any("error", err))
		}
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close: %w", err)
		}
	}
	return firstErr
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

