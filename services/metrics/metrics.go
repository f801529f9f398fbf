// Package metricsvc exposes the prometheus metrics of the portal.
package metricsvc

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/academia/core/auth"
)

const namespace = "academia"

// outcomes
const (
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeNetwork  = "network"
	outcomeDemo     = "demo"
	outcomeNotFound = "not_found"
	outcomeCanceled = "canceled"
	outcomeError    = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	// identity provider
	AuthCalls   *prometheus.CounterVec
	AuthLatency *prometheus.HistogramVec
	AuthEvents  *prometheus.CounterVec

	// record store
	ProfileFetches *prometheus.CounterVec
	ProfileLatency prometheus.Histogram

	// browser sessions
	ActiveSessions prometheus.Gauge
}

// NewMetrics registers the metrics, plus the go and process collectors, on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		AuthCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_calls_total",
				Help:      "Total number of identity provider calls",
			},
			[]string{"operation", "outcome"},
		),
		AuthLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "auth_call_duration_seconds",
				Help:      "Identity provider call latency in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
		AuthEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_events_total",
				Help:      "Total number of session events emitted by the identity provider",
			},
			[]string{"kind"},
		),
		ProfileFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "profile_fetches_total",
				Help:      "Total number of profile lookups",
			},
			[]string{"outcome"},
		),
		ProfileLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "profile_fetch_duration_seconds",
				Help:      "Profile lookup latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "browser_sessions",
				Help:      "Number of browser sessions holding an auth store",
			},
		),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func outcome(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case auth.IsDemoMode(err):
		return outcomeDemo
	case auth.IsRejected(err):
		return outcomeRejected
	case auth.IsNetwork(err):
		return outcomeNetwork
	case errors.Cause(err) == auth.ErrProfileNotFound:
		return outcomeNotFound
	case errors.Cause(err) == context.Canceled:
		return outcomeCanceled
	}
	return outcomeError
}

func (m *Metrics) observeAuth(op string, start time.Time, err error) {
	m.AuthLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	m.AuthCalls.WithLabelValues(op, outcome(err)).Inc()
}
