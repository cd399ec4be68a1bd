// Package metrics exposes Prometheus counters fed from research events.
package metrics

import (
	"net/http"

	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "deep_research"

type Metrics struct {
	Registry *prometheus.Registry

	sessions         *prometheus.CounterVec
	active           prometheus.Gauge
	searches         *prometheus.CounterVec
	evaluations      *prometheus.CounterVec
	averageScore     prometheus.Histogram
	iterations       prometheus.Histogram
	deliveryFailures prometheus.Counter
}

// New registers the research collectors, plus the Go and process collectors,
// on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Research sessions by outcome.",
		}, []string{"outcome"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Research sessions currently running.",
		}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Web searches by status.",
		}, []string{"status"}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Report evaluations by verdict.",
		}, []string{"verdict"}),
		averageScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_average_score",
			Help:      "Average evaluator score per draft.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_iterations",
			Help:      "Write/evaluate rounds per completed session.",
			Buckets:   prometheus.LinearBuckets(1, 1, 5),
		}),
		deliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "Reports that could not be delivered.",
		}),
	}

	m.Registry.MustRegister(
		m.sessions, m.active, m.searches, m.evaluations,
		m.averageScore, m.iterations, m.deliveryFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe is a research.Observer.
func (m *Metrics) Observe(ev research.Event) {
	switch ev.Type {
	case research.EventPhase:
		if ev.Phase == research.PhasePlanning {
			m.sessions.WithLabelValues("started").Inc()
			m.active.Inc()
		}
	case research.EventSearchDone:
		m.searches.WithLabelValues("ok").Inc()
	case research.EventSearchFailed:
		m.searches.WithLabelValues("failed").Inc()
	case research.EventEvaluation:
		if ev.Evaluation == nil {
			return
		}
		verdict := "fail"
		if ev.Evaluation.Passed {
			verdict = "pass"
		}
		m.evaluations.WithLabelValues(verdict).Inc()
		m.averageScore.Observe(ev.Evaluation.Scores.Average())
	case research.EventDeliveryFailed:
		m.deliveryFailures.Inc()
	case research.EventReport:
		m.sessions.WithLabelValues("completed").Inc()
		m.iterations.Observe(float64(ev.Iteration))
		m.active.Dec()
	case research.EventError:
		m.sessions.WithLabelValues("failed").Inc()
		m.active.Dec()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
