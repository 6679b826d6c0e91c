// Package prom exports client metrics to Prometheus.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/srvclient/client"
)

// Adapter implements client.Metrics and exports Prometheus counters, gauges
// and histograms. Safe for concurrent use; all Prometheus metric types are
// goroutine-safe.
type Adapter struct {
	hits       prometheus.Counter
	misses     prometheus.Counter
	refreshes  *prometheus.CounterVec
	refreshDur prometheus.Histogram
	targets    prometheus.Gauge
	attempts   *prometheus.CounterVec
	attemptDur *prometheus.HistogramVec
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "cache_hits_total",
			Help:        "Executions served from a valid SRV snapshot",
			ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "cache_misses_total",
			Help:        "Executions that found the SRV snapshot missing or expired",
			ConstLabels: constLabels,
		}),
		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "refreshes_total",
				Help:        "SRV cache refreshes by result",
				ConstLabels: constLabels,
			},
			[]string{"result"},
		),
		refreshDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "refresh_duration_seconds",
			Help:        "Time spent looking up and rebuilding the SRV cache",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}),
		targets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "targets",
			Help:        "Targets in the current SRV snapshot",
			ConstLabels: constLabels,
		}),
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "attempts_total",
				Help:        "Operation attempts by outcome",
				ConstLabels: constLabels,
			},
			[]string{"outcome"},
		),
		attemptDur: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "attempt_duration_seconds",
				Help:        "Operation attempt latency by outcome",
				ConstLabels: constLabels,
				Buckets:     prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
	}
	reg.MustRegister(a.hits, a.misses, a.refreshes, a.refreshDur, a.targets, a.attempts, a.attemptDur)
	return a
}

// CacheHit increments the hit counter.
func (a *Adapter) CacheHit() { a.hits.Inc() }

// CacheMiss increments the miss counter.
func (a *Adapter) CacheMiss() { a.misses.Inc() }

// Refresh counts a refresh by result and observes its duration.
func (a *Adapter) Refresh(took time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	a.refreshes.WithLabelValues(result).Inc()
	a.refreshDur.Observe(took.Seconds())
}

// Targets sets the snapshot size gauge.
func (a *Adapter) Targets(n int) { a.targets.Set(float64(n)) }

// Attempt counts an attempt and observes its latency, both labelled by outcome.
func (a *Adapter) Attempt(o client.Outcome, took time.Duration) {
	label := o.String()
	a.attempts.WithLabelValues(label).Inc()
	a.attemptDur.WithLabelValues(label).Observe(took.Seconds())
}

// Compile-time check: ensure Adapter implements client.Metrics.
var _ client.Metrics = (*Adapter)(nil)
