package metrics

import (
	"errors"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	actionRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "servctl",
			Subsystem: "action",
			Name:      "runs_total",
			Help:      "Number of executed service actions by result.",
		}, []string{"service", "action", "result"},
	)
	actionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "servctl",
			Subsystem: "action",
			Name:      "duration_seconds",
			Help:      "Wall time of executed service actions, snapshots included.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"service", "action"},
	)
	precheckFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "servctl",
			Subsystem: "precheck",
			Name:      "failures_total",
			Help:      "Number of update preconditions that failed.",
		}, []string{"runtime"},
	)
	snapshotErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "servctl",
			Subsystem: "snapshot",
			Name:      "errors_total",
			Help:      "Number of version snapshots whose inspection failed.",
		}, []string{"runtime"},
	)
	componentsChanged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "servctl",
			Subsystem: "report",
			Name:      "components_changed_total",
			Help:      "Number of components reported as changed, new or removed.",
		}, []string{"service"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{actionRuns, actionDuration, precheckFailures, snapshotErrors, componentsChanged}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// WriteTextfile writes every metric of g to path in the text exposition
// format, for the node_exporter textfile collector. The write is atomic.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func ObserveAction(service, action string, exitCode int, seconds float64) {
	if !regOK.Load() {
		return
	}
	result := "success"
	if exitCode != 0 {
		result = "failure"
	}
	actionRuns.WithLabelValues(service, action, result).Inc()
	actionDuration.WithLabelValues(service, action).Observe(seconds)
}

func IncPrecheckFailure(runtime string) {
	if regOK.Load() {
		precheckFailures.WithLabelValues(runtime).Inc()
	}
}

func IncSnapshotError(runtime string) {
	if regOK.Load() {
		snapshotErrors.WithLabelValues(runtime).Inc()
	}
}

func AddComponentsChanged(service string, n int) {
	if regOK.Load() && n > 0 {
		componentsChanged.WithLabelValues(service).Add(float64(n))
	}
}
