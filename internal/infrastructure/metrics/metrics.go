// Package metrics exposes pipeline telemetry as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Velocity-Developer/newads/internal/domain"
	"github.com/Velocity-Developer/newads/internal/ports"
)

// Collector records step durations, submissions and classification outcomes.
type Collector struct {
	stepDuration    *prometheus.HistogramVec
	stepRuns        *prometheus.CounterVec
	submissions     *prometheus.CounterVec
	submittedItems  *prometheus.CounterVec
	classifications *prometheus.CounterVec
}

var _ ports.Metrics = (*Collector)(nil)

// NewCollector builds a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "newads_step_duration_seconds",
			Help:    "Duration of pipeline steps in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"step"}),
		stepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newads_step_runs_total",
			Help: "Pipeline step executions by outcome.",
		}, []string{"step", "success"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newads_submissions_total",
			Help: "Negative-keyword submission requests by match type, mode and outcome.",
		}, []string{"match_type", "mode", "success"}),
		submittedItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newads_submitted_items_total",
			Help: "Keywords carried by submission requests.",
		}, []string{"match_type", "mode", "success"}),
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newads_classifications_total",
			Help: "Classification outcomes by item kind.",
		}, []string{"kind", "outcome"}),
	}

	reg.MustRegister(
		c.stepDuration,
		c.stepRuns,
		c.submissions,
		c.submittedItems,
		c.classifications,
	)
	return c
}

// ObserveStep records one step execution.
func (c *Collector) ObserveStep(step string, success bool, seconds float64) {
	c.stepDuration.WithLabelValues(step).Observe(seconds)
	c.stepRuns.WithLabelValues(step, strconv.FormatBool(success)).Inc()
}

// ObserveSubmission records one batched submission request.
func (c *Collector) ObserveSubmission(match domain.MatchType, mode domain.Mode, success bool, items int) {
	labels := []string{string(match), string(mode), strconv.FormatBool(success)}
	c.submissions.WithLabelValues(labels...).Inc()
	c.submittedItems.WithLabelValues(labels...).Add(float64(items))
}

// ObserveClassification records one classifier outcome.
func (c *Collector) ObserveClassification(kind string, outcome string) {
	c.classifications.WithLabelValues(kind, outcome).Inc()
}

// Handler returns the Prometheus scrape handler.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
