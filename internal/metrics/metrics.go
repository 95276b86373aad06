package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrSnakeDoc/ideaboard/internal/domain"
)

// Namespace prefixes every metric name.
const Namespace = "ideaboard"

// Collector holds all Prometheus metrics for the application. Each
// Collector owns its registry, so tests can build as many as they like.
type Collector struct {
	registry *prometheus.Registry

	// HTTP
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Ideas
	IdeasSaved    *prometheus.CounterVec
	IdeasAdvanced prometheus.Counter

	// Render queue and renderer
	QueueEnqueued  prometheus.Counter
	QueueItems     *prometheus.GaugeVec
	RenderRuns     *prometheus.CounterVec
	RenderDuration prometheus.Histogram
	RenderComplete prometheus.Counter

	// Trend scout
	ScoutScans prometheus.Counter
	ScoutIdeas prometheus.Counter
	ScoutFails prometheus.Counter
}

func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		IdeasSaved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ideas_saved_total",
				Help:      "Ideas written, by result (created or updated)",
			},
			[]string{"result"},
		),
		IdeasAdvanced: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ideas_advanced_total",
				Help:      "Ideas moved one stage forward",
			},
		),
		QueueEnqueued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "render_queue_enqueued_total",
				Help:      "Items appended to the render queue",
			},
		),
		QueueItems: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "render_queue_items",
				Help:      "Items in the render queue file, by status",
			},
			[]string{"status"},
		),
		RenderRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "render_runs_total",
				Help:      "Renderer process runs, by outcome",
			},
			[]string{"outcome"},
		),
		RenderDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "render_run_duration_seconds",
				Help:      "Renderer process run duration in seconds",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		RenderComplete: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "render_items_completed_total",
				Help:      "Queue items seen flipping to complete",
			},
		),
		ScoutScans: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scout_scans_total",
				Help:      "Trend scout scans performed",
			},
		),
		ScoutIdeas: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scout_ideas_created_total",
				Help:      "Ideas created by the trend scout",
			},
		),
		ScoutFails: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scout_scan_failures_total",
				Help:      "Trend scout scans that failed",
			},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.IdeasSaved,
		c.IdeasAdvanced,
		c.QueueEnqueued,
		c.QueueItems,
		c.RenderRuns,
		c.RenderDuration,
		c.RenderComplete,
		c.ScoutScans,
		c.ScoutIdeas,
		c.ScoutFails,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Registry exposes the underlying registry (tests gather from it).
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// RecordHTTPRequest is called by the metrics middleware.
func (c *Collector) RecordHTTPRequest(method, route, status string, d time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, status).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (c *Collector) IdeaSaved(created bool) {
	result := "updated"
	if created {
		result = "created"
	}
	c.IdeasSaved.WithLabelValues(result).Inc()
}

// RenderFinished implements render.Observer.
func (c *Collector) RenderFinished(d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	c.RenderRuns.WithLabelValues(outcome).Inc()
	c.RenderDuration.Observe(d.Seconds())
}

// ObserveQueue updates the per-status gauge from a fresh summary.
func (c *Collector) ObserveQueue(s domain.Summary) {
	c.QueueItems.WithLabelValues(string(domain.QueuePending)).Set(float64(s.Pending))
	c.QueueItems.WithLabelValues(string(domain.QueueComplete)).Set(float64(s.Complete))
}

// QueueCompleted counts items the renderer finished.
func (c *Collector) QueueCompleted(n int) {
	c.RenderComplete.Add(float64(n))
}

// ScoutFinished records one scan.
func (c *Collector) ScoutFinished(created int, err error) {
	c.ScoutScans.Inc()
	if err != nil {
		c.ScoutFails.Inc()
		return
	}
	c.ScoutIdeas.Add(float64(created))
}
