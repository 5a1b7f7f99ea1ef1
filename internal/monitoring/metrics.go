// Package monitoring exports scoring metrics to Prometheus and watches
// recent applications for model outages and risk drift.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/credit-scorer/internal/model"
)

// Recorder holds the service's Prometheus metrics. It implements
// scoring.Observer.
type Recorder struct {
	registry *prometheus.Registry

	scores       prometheus.Histogram
	latency      prometheus.Histogram
	tiers        *prometheus.CounterVec
	degraded     prometheus.Counter
	failures     *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	storeErrors  prometheus.Counter
}

// NewRecorder creates a Recorder on its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "credit_score",
			Help:    "Distribution of final credit scores.",
			Buckets: prometheus.LinearBuckets(10, 10, 9),
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "credit_score_duration_seconds",
			Help:    "Time to score one applicant.",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),
		tiers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "credit_score_tier_total",
			Help: "Scored applicants by risk tier.",
		}, []string{"tier"}),
		degraded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "credit_score_degraded_total",
			Help: "Scores produced from policy rules only.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "credit_score_failures_total",
			Help: "Evaluations that returned an error, by stage.",
		}, []string{"stage"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "credit_cache_lookups_total",
			Help: "Score cache lookups by result.",
		}, []string{"result"}),
		storeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "credit_store_errors_total",
			Help: "Applications that could not be persisted.",
		}),
	}
	r.registry.MustRegister(
		r.scores, r.latency, r.tiers, r.degraded, r.failures, r.cacheLookups, r.storeErrors,
		collectors.NewGoCollector(),
	)
	return r
}

// ObserveScore records one completed evaluation.
func (r *Recorder) ObserveScore(res model.ScoreResult, elapsed time.Duration) {
	r.scores.Observe(float64(res.Score))
	r.latency.Observe(elapsed.Seconds())
	r.tiers.WithLabelValues(string(res.Tier)).Inc()
	if res.Degraded {
		r.degraded.Inc()
	}
}

// ObserveFailure records an evaluation that failed at stage.
func (r *Recorder) ObserveFailure(stage string) {
	r.failures.WithLabelValues(stage).Inc()
}

// ObserveCache records a cache lookup.
func (r *Recorder) ObserveCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveStoreError records a failed write.
func (r *Recorder) ObserveStoreError() {
	r.storeErrors.Inc()
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the metrics in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
