// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes presenced's dispatch activity to Prometheus.
//
// [Metrics.Observe] is an engine Observer: it counts attempts and
// terminal failures as they happen. Mode and environment counters are
// read from an engine snapshot at scrape time. [Metrics.Handler]
// serves /metrics and /healthz.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bureau-foundation/presence/presence"
)

// SnapshotFunc returns the current engine state.
type SnapshotFunc func(ctx context.Context) (presence.Snapshot, error)

// scrapeTimeout bounds the snapshot taken for one scrape.
const scrapeTimeout = 2 * time.Second

// Metrics holds presenced's collectors in a private registry.
type Metrics struct {
	registry *prometheus.Registry
	snapshot SnapshotFunc

	attempts         *prometheus.CounterVec
	terminalFailures *prometheus.CounterVec
	retryDelay       prometheus.Histogram
}

// New registers the collectors. snapshot may be nil, in which case
// mode and environment metrics are omitted and /healthz always passes.
func New(snapshot SnapshotFunc) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		snapshot: snapshot,
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "presence",
				Subsystem: "dispatch",
				Name:      "attempts_total",
				Help:      "Remote status update attempts.",
			},
			[]string{"origin", "result"},
		),
		terminalFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "presence",
				Subsystem: "dispatch",
				Name:      "terminal_failures_total",
				Help:      "Dispatch chains that ended without success.",
			},
			[]string{"origin", "reason"},
		),
		retryDelay: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "presence",
				Subsystem: "dispatch",
				Name:      "retry_delay_seconds",
				Help:      "Backoff delay scheduled after a transient failure.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
	}
	m.registry.MustRegister(m.attempts, m.terminalFailures, m.retryDelay)
	if snapshot != nil {
		m.registry.MustRegister(&stateCollector{snapshot: snapshot})
	}
	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records one attempt outcome. It has the signature of
// presence.Options.Observer.
func (m *Metrics) Observe(outcome presence.Outcome) {
	origin := outcome.Request.Origin.String()
	m.attempts.WithLabelValues(origin, outcome.Result.String()).Inc()
	if outcome.RetryIn > 0 {
		m.retryDelay.Observe(outcome.RetryIn.Seconds())
	}
	if outcome.Terminal && outcome.Result != presence.ResultSuccess {
		m.terminalFailures.WithLabelValues(origin, outcome.Result.String()).Inc()
	}
}

var (
	modeDesc = prometheus.NewDesc(
		"presence_mode",
		"Current engine mode; 1 for the active mode.",
		[]string{"mode"}, nil,
	)
	environmentEventsDesc = prometheus.NewDesc(
		"presence_environment_events_total",
		"Network changes observed by the engine.",
		nil, nil,
	)
	connectedDesc = prometheus.NewDesc(
		"presence_connected",
		"1 when the notifier reports network connectivity.",
		nil, nil,
	)
	inFlightDesc = prometheus.NewDesc(
		"presence_dispatch_in_flight",
		"1 while a dispatch chain is active.",
		nil, nil,
	)
)

// stateCollector reads engine state at scrape time.
type stateCollector struct {
	snapshot SnapshotFunc
}

func (c *stateCollector) Describe(descriptions chan<- *prometheus.Desc) {
	descriptions <- modeDesc
	descriptions <- environmentEventsDesc
	descriptions <- connectedDesc
	descriptions <- inFlightDesc
}

func (c *stateCollector) Collect(metrics chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), scrapeTimeout)
	defer cancel()
	snapshot, err := c.snapshot(ctx)
	if err != nil {
		metrics <- prometheus.NewInvalidMetric(modeDesc, err)
		return
	}

	for _, mode := range []presence.Mode{presence.ModeAutomatic, presence.ModeManual} {
		metrics <- prometheus.MustNewConstMetric(modeDesc, prometheus.GaugeValue,
			boolValue(snapshot.Mode == mode), mode.String())
	}
	metrics <- prometheus.MustNewConstMetric(environmentEventsDesc, prometheus.CounterValue,
		float64(snapshot.Counters.EnvironmentEvents))
	metrics <- prometheus.MustNewConstMetric(connectedDesc, prometheus.GaugeValue,
		boolValue(snapshot.Connected))
	metrics <- prometheus.MustNewConstMetric(inFlightDesc, prometheus.GaugeValue,
		boolValue(snapshot.InFlight != nil))
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
