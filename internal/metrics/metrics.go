// Package metrics registers and updates the document lifecycle engine's
// in-process Prometheus collectors. It never serves /metrics itself — that
// HTTP exposition belongs to the external transport adapter per spec.md
// §1's out-of-scope list; this package only owns the collectors and the
// update calls wired into the mutation, append, and rotation paths.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors bundles every metric the engine updates. Construct one with
// New and register it with a prometheus.Registerer of the caller's
// choosing (prometheus.DefaultRegisterer for a typical process, or a
// fresh prometheus.NewRegistry() in tests to avoid global collisions).
type Collectors struct {
	MutationsTotal   *prometheus.CounterVec
	MutationDuration *prometheus.HistogramVec
	AppendsTotal     *prometheus.CounterVec
	AppendDuration   prometheus.Histogram
	RotationsTotal   *prometheus.CounterVec
	LockWaitSeconds  prometheus.Histogram
	MirrorPending    prometheus.Gauge
}

// New builds the collector set, unregistered.
func New() *Collectors {
	return &Collectors{
		MutationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scribe",
			Subsystem: "dle",
			Name:      "mutations_total",
			Help:      "Count of accepted/rejected mutations by action and outcome.",
		}, []string{"action", "outcome"}),
		MutationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "scribe",
			Subsystem: "dle",
			Name:      "mutation_duration_seconds",
			Help:      "Latency of a mutation from registry lookup through atomic write.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		AppendsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scribe",
			Subsystem: "dle",
			Name:      "log_appends_total",
			Help:      "Count of log append calls by log key and outcome.",
		}, []string{"log_key", "outcome"}),
		AppendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scribe",
			Subsystem: "dle",
			Name:      "log_append_duration_seconds",
			Help:      "Latency of a single log append under its file lock.",
			Buckets:   prometheus.DefBuckets,
		}),
		RotationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scribe",
			Subsystem: "dle",
			Name:      "rotations_total",
			Help:      "Count of completed log rotations by log key.",
		}, []string{"log_key"}),
		LockWaitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scribe",
			Subsystem: "dle",
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting to acquire a per-document or per-log lock.",
			Buckets:   prometheus.DefBuckets,
		}),
		MirrorPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scribe",
			Subsystem: "dle",
			Name:      "mirror_pending",
			Help:      "Current count of doc_changes rows awaiting audit mirror reconciliation.",
		}),
	}
}

// MustRegister registers every collector with reg, panicking on duplicate
// registration the way main-package setup code conventionally does (never
// called from a library path that can't panic).
func (c *Collectors) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		c.MutationsTotal,
		c.MutationDuration,
		c.AppendsTotal,
		c.AppendDuration,
		c.RotationsTotal,
		c.LockWaitSeconds,
		c.MirrorPending,
	)
}

// ObserveMutation records one mutation attempt's outcome and latency.
func (c *Collectors) ObserveMutation(action, outcome string, seconds float64) {
	c.MutationsTotal.WithLabelValues(action, outcome).Inc()
	c.MutationDuration.WithLabelValues(action).Observe(seconds)
}

// ObserveAppend records one log append attempt's outcome and latency.
func (c *Collectors) ObserveAppend(logKey, outcome string, seconds float64) {
	c.AppendsTotal.WithLabelValues(logKey, outcome).Inc()
	c.AppendDuration.Observe(seconds)
}

// ObserveRotation records one completed rotation.
func (c *Collectors) ObserveRotation(logKey string) {
	c.RotationsTotal.WithLabelValues(logKey).Inc()
}

// ObserveLockWait records time spent blocked on a lock acquisition.
func (c *Collectors) ObserveLockWait(seconds float64) {
	c.LockWaitSeconds.Observe(seconds)
}

// SetMirrorPending sets the current count of unreconciled mirror_pending
// doc_changes rows (called after each Reconcile pass and each new mark).
func (c *Collectors) SetMirrorPending(n int) {
	c.MirrorPending.Set(float64(n))
}
