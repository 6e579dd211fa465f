// Package metrics exposes Prometheus collectors for the videomaker service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	jobsTotal                  *prometheus.CounterVec
	ticksTotal                 prometheus.Counter
	runningJobs                prometheus.Gauge
	upstreamRequestsTotal      *prometheus.CounterVec
	sheetFetchTotal            *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "videomaker_jobs_total",
				Help: "Total number of job state changes, labeled by resulting status.",
			},
			[]string{"status"},
		)

		ticksTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "videomaker_ticks_total",
				Help: "Total number of scheduler ticks.",
			},
		)

		runningJobs = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "videomaker_running_jobs",
				Help: "Number of jobs currently running.",
			},
		)

		upstreamRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "videomaker_upstream_requests_total",
				Help: "Total number of calls to generation providers, labeled by service and status code.",
			},
			[]string{"service", "code"},
		)

		sheetFetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "videomaker_sheet_fetch_total",
				Help: "Total number of spreadsheet fetches, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveJob increments the job counter for the given status.
func ObserveJob(status string) {
	Init()
	jobsTotal.WithLabelValues(status).Inc()
}

// ObserveTick increments the tick counter.
func ObserveTick() {
	Init()
	ticksTotal.Inc()
}

// SetRunningJobs records how many jobs are running after a tick.
func SetRunningJobs(n int) {
	Init()
	runningJobs.Set(float64(n))
}

// ObserveUpstream records one call to a generation provider. A code of 0
// means the request never produced a response.
func ObserveUpstream(service string, code int) {
	Init()
	label := strconv.Itoa(code)
	if code == 0 {
		label = "error"
	}
	upstreamRequestsTotal.WithLabelValues(service, label).Inc()
}

// ObserveSheetFetch records one spreadsheet fetch.
func ObserveSheetFetch(source string, err error) {
	Init()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	sheetFetchTotal.WithLabelValues(source, outcome).Inc()
}
