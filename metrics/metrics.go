// Package metrics collects Prometheus counters for view accounting and scheduled publishing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the services report to.
type Recorder interface {
	RecordViewCredited(kind string)
	RecordViewAlreadyCredited(kind string)
	RecordViewFailed(kind string)
	RecordSweep(published, failed int)
	RecordSweepError()
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	views           *prometheus.CounterVec
	sweeps          prometheus.Counter
	sweepErrors     prometheus.Counter
	published       prometheus.Counter
	publishFailures prometheus.Counter
}

// NewCollector creates a Collector and registers it on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		views: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "novelhub_views_total",
			Help: "View accounting outcomes by entity kind.",
		}, []string{"kind", "outcome"}),
		sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "novelhub_publish_sweeps_total",
			Help: "Completed scheduled-publish sweeps.",
		}),
		sweepErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "novelhub_publish_sweep_errors_total",
			Help: "Sweeps aborted because the store was unavailable.",
		}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "novelhub_chapters_published_total",
			Help: "Chapters moved from SCHEDULED to PUBLISHED by sweeps.",
		}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "novelhub_chapter_publish_failures_total",
			Help: "Per-row transition failures during sweeps.",
		}),
	}

	reg.MustRegister(c.views, c.sweeps, c.sweepErrors, c.published, c.publishFailures)
	return c
}

func (c *Collector) RecordViewCredited(kind string) {
	c.views.WithLabelValues(kind, "credited").Inc()
}

func (c *Collector) RecordViewAlreadyCredited(kind string) {
	c.views.WithLabelValues(kind, "already_credited").Inc()
}

func (c *Collector) RecordViewFailed(kind string) {
	c.views.WithLabelValues(kind, "failed").Inc()
}

// RecordSweep records one finished sweep and its per-row results.
func (c *Collector) RecordSweep(published, failed int) {
	c.sweeps.Inc()
	c.published.Add(float64(published))
	c.publishFailures.Add(float64(failed))
}

func (c *Collector) RecordSweepError() {
	c.sweepErrors.Inc()
}

// Handler exposes the given gatherer in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordViewCredited(string)        {}
func (Nop) RecordViewAlreadyCredited(string) {}
func (Nop) RecordViewFailed(string)          {}
func (Nop) RecordSweep(int, int)             {}
func (Nop) RecordSweepError()                {}
