// Package metrics exposes Prometheus collectors for quiz activity.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pavelanni/talentproof/internal/model"
)

const namespace = "talentproof"

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	sessionsCreated    *prometheus.CounterVec
	evaluations        *prometheus.CounterVec
	cheatingLikelihood *prometheus.HistogramVec
	evaluationDuration prometheus.Histogram
}

// New registers the collectors. activeSessions is sampled on every scrape.
func New(activeSessions func() int) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &Metrics{
		reg: reg,
		sessionsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Total number of quiz sessions created",
		}, []string{"topic"}),
		evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Total number of evaluated submissions",
		}, []string{"topic", "result"}), // result: passed/failed/flagged
		cheatingLikelihood: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cheating_likelihood",
			Help:      "Distribution of cheating likelihood scores",
			Buckets:   []float64{0, 0.2, 0.4, 0.6, 0.8, 1},
		}, []string{"topic"}),
		evaluationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Time spent evaluating a submission",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if activeSessions != nil {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Current number of stored quiz sessions",
		}, func() float64 { return float64(activeSessions()) })
	}
	return m
}

// SessionCreated counts a new session for topic.
func (m *Metrics) SessionCreated(topic model.Topic) {
	m.sessionsCreated.WithLabelValues(string(topic)).Inc()
}

// Evaluated records a verdict and how long it took to produce.
func (m *Metrics) Evaluated(v model.Verdict, took time.Duration) {
	result := "failed"
	switch {
	case v.IsFlagged:
		result = "flagged"
	case v.Passed:
		result = "passed"
	}
	m.evaluations.WithLabelValues(string(v.Topic), result).Inc()
	m.cheatingLikelihood.WithLabelValues(string(v.Topic)).Observe(v.CheatingLikelihood)
	m.evaluationDuration.Observe(took.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
