// Package telemetry holds the Prometheus metrics of the selection service.
// Metrics live in an explicit Sink with its own registry, never in globals.
package telemetry

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LatencyBuckets are the prediction latency histogram buckets in seconds.
var LatencyBuckets = []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5}

// Sink records selection metrics into a private registry.
type Sink struct {
	mu sync.RWMutex

	registry          *prometheus.Registry
	reductionRate     prometheus.Gauge
	costSavings       prometheus.Counter
	predictionLatency prometheus.Histogram
	degraded          prometheus.Counter
	selectedTests     prometheus.Counter
	scoredTests       prometheus.Counter
}

// NewSink creates a sink with freshly registered collectors.
func NewSink() *Sink {
	s := &Sink{}
	s.build()
	return s
}

// build creates and registers all collectors. Callers hold mu.
func (s *Sink) build() {
	reg := prometheus.NewRegistry()
	s.reductionRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pts_test_reduction_rate",
		Help: "Fraction of tests skipped by the most recent selection",
	})
	s.costSavings = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pts_cost_savings_usd_total",
		Help: "Estimated CI cost saved by skipped tests, in USD",
	})
	s.predictionLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pts_prediction_latency_seconds",
		Help:    "End-to-end prediction latency in seconds",
		Buckets: LatencyBuckets,
	})
	s.degraded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pts_degraded_predictions_total",
		Help: "Predictions served by the random fallback instead of a fitted model",
	})
	s.selectedTests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pts_selected_tests_total",
		Help: "Tests selected to run",
	})
	s.scoredTests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pts_scored_tests_total",
		Help: "Tests scored by the decision engine",
	})
	reg.MustRegister(s.reductionRate, s.costSavings, s.predictionLatency, s.degraded, s.selectedTests, s.scoredTests)
	s.registry = reg
}

// Reset drops every recorded value by rebuilding the registry.
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.build()
}

// Registry returns the current registry.
func (s *Sink) Registry() *prometheus.Registry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry
}

// Handler serves the Prometheus text exposition of the current registry.
func (s *Sink) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		promhttp.HandlerFor(s.Registry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}

// ObserveSelection records one selection outcome.
// Skipped tests are priced at costPerTest each.
func (s *Sink) ObserveSelection(total, selected int, costPerTest float64, latency time.Duration) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.predictionLatency.Observe(latency.Seconds())
	s.scoredTests.Add(float64(total))
	s.selectedTests.Add(float64(selected))
	if total == 0 {
		s.reductionRate.Set(0)
		return
	}
	skipped := total - selected
	s.reductionRate.Set(1 - float64(selected)/float64(total))
	if skipped > 0 && costPerTest > 0 {
		s.costSavings.Add(float64(skipped) * costPerTest)
	}
}

// ObserveDegraded counts one prediction pass served by the random fallback.
func (s *Sink) ObserveDegraded() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.degraded.Inc()
}
