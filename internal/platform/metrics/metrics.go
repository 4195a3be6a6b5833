package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the recorder engine.
type Metrics struct {
	registry                *prometheus.Registry
	requestsTotal           prometheus.Counter
	segmentsDownloadedTotal prometheus.Counter
	bytesDownloadedTotal    prometheus.Counter
	downloadErrorsTotal     prometheus.Counter
	ingestCyclesTotal       prometheus.Counter
	clipsCreatedTotal       prometheus.Counter
	liveSessions            prometheus.Gauge
	errorsTotal             prometheus.Counter
}

// New creates and registers Prometheus metrics for the recorder.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recorder_http_requests_total",
		Help: "Total number of HTTP requests received",
	})
	segmentsDownloadedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recorder_segments_downloaded_total",
		Help: "Total number of media segments downloaded into the cache",
	})
	bytesDownloadedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recorder_bytes_downloaded_total",
		Help: "Total number of segment bytes written to the cache",
	})
	downloadErrorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recorder_download_errors_total",
		Help: "Total number of failed segment downloads",
	})
	ingestCyclesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recorder_ingest_cycles_total",
		Help: "Total number of completed playlist ingest cycles",
	})
	clipsCreatedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recorder_clips_created_total",
		Help: "Total number of clip files produced",
	})
	liveSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "recorder_live_sessions",
		Help: "Number of rooms currently live and being recorded",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recorder_http_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})

	registry.MustRegister(
		requestsTotal,
		segmentsDownloadedTotal,
		bytesDownloadedTotal,
		downloadErrorsTotal,
		ingestCyclesTotal,
		clipsCreatedTotal,
		liveSessions,
		errorsTotal,
	)

	return &Metrics{
		registry:                registry,
		requestsTotal:           requestsTotal,
		segmentsDownloadedTotal: segmentsDownloadedTotal,
		bytesDownloadedTotal:    bytesDownloadedTotal,
		downloadErrorsTotal:     downloadErrorsTotal,
		ingestCyclesTotal:       ingestCyclesTotal,
		clipsCreatedTotal:       clipsCreatedTotal,
		liveSessions:            liveSessions,
		errorsTotal:             errorsTotal,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// AddSegmentDownloaded records one downloaded segment of the given size.
func (m *Metrics) AddSegmentDownloaded(bytes int64) {
	m.segmentsDownloadedTotal.Inc()
	m.bytesDownloadedTotal.Add(float64(bytes))
}

// IncDownloadErrors increments the failed download counter.
func (m *Metrics) IncDownloadErrors() {
	m.downloadErrorsTotal.Inc()
}

// IncIngestCycles increments the completed ingest cycle counter.
func (m *Metrics) IncIngestCycles() {
	m.ingestCyclesTotal.Inc()
}

// IncClipsCreated increments the produced clip counter.
func (m *Metrics) IncClipsCreated() {
	m.clipsCreatedTotal.Inc()
}

// SetLiveSessions sets the live sessions gauge.
func (m *Metrics) SetLiveSessions(n int) {
	m.liveSessions.Set(float64(n))
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. live sessions).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
