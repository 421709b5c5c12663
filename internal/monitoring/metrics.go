package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for RunsTotal.
const (
	OutcomeSuccess = "success" // exit code 0
	OutcomeFailure = "failure" // non-zero exit code
	OutcomeError   = "error"   // spawn, I/O or timeout error
)

// Metrics holds the Prometheus collectors for pipeline runs and the HTTP API.
// Each Metrics owns its registry so several can coexist in one process.
type Metrics struct {
	Registry *prometheus.Registry

	RunsTotal    *prometheus.CounterVec
	RunDuration  prometheus.Histogram
	StagesTotal  prometheus.Counter
	SpawnErrors  prometheus.Counter
	OutputBytes  *prometheus.CounterVec
	RunsInFlight prometheus.Gauge

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a metrics collector with Go and process collectors registered.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellpipe_runs_total",
				Help: "Total number of pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "shellpipe_run_duration_seconds",
				Help:    "Pipeline run duration in seconds",
				Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 15, 60, 300},
			},
		),
		StagesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "shellpipe_stages_total",
				Help: "Total number of processes spawned for pipeline stages",
			},
		),
		SpawnErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "shellpipe_spawn_errors_total",
				Help: "Total number of pipelines that failed to spawn",
			},
		),
		OutputBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellpipe_output_bytes_total",
				Help: "Bytes captured from the final stage by stream",
			},
			[]string{"stream"},
		),
		RunsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "shellpipe_runs_in_flight",
				Help: "Number of pipelines currently running",
			},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellpipe_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shellpipe_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(outcome string, d time.Duration, stdout, stderr int) {
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(d.Seconds())
	m.OutputBytes.WithLabelValues("stdout").Add(float64(stdout))
	m.OutputBytes.WithLabelValues("stderr").Add(float64(stderr))
}

// RecordRequest records an HTTP request.
func (m *Metrics) RecordRequest(method, path, status string, d time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
