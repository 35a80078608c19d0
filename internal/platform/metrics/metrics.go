package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the capture service.
// A nil *Metrics records nothing.
type Metrics struct {
	registry          *prometheus.Registry
	requestsTotal     prometheus.Counter
	errorsTotal       prometheus.Counter
	framesIngested    prometheus.Counter
	framesDropped     prometheus.Counter
	recordingsSealed  prometheus.Counter
	playbacksStarted  prometheus.Counter
	playbacksFinished prometheus.Counter
	activeReaders     prometheus.Gauge
	ingestConnections prometheus.Gauge
}

// New creates and registers Prometheus metrics for the service.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facecapture_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facecapture_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		framesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facecapture_frames_ingested_total",
			Help: "Total number of frames accepted from live sources",
		}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facecapture_frames_dropped_total",
			Help: "Total number of ingested messages rejected as malformed or while disconnected",
		}),
		recordingsSealed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facecapture_recordings_sealed_total",
			Help: "Total number of recording sessions sealed into buffers",
		}),
		playbacksStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facecapture_playbacks_started_total",
			Help: "Total number of playback sessions started",
		}),
		playbacksFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facecapture_playbacks_finished_total",
			Help: "Total number of playback sessions that reached the end of their buffer",
		}),
		activeReaders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "facecapture_active_readers",
			Help: "Number of stream readers with an active source",
		}),
		ingestConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "facecapture_ingest_connections",
			Help: "Number of open frame ingestion connections",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.framesIngested,
		m.framesDropped,
		m.recordingsSealed,
		m.playbacksStarted,
		m.playbacksFinished,
		m.activeReaders,
		m.ingestConnections,
	)
	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	if m != nil {
		m.requestsTotal.Inc()
	}
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	if m != nil {
		m.errorsTotal.Inc()
	}
}

// IncFramesIngested increments the ingested frames counter.
func (m *Metrics) IncFramesIngested() {
	if m != nil {
		m.framesIngested.Inc()
	}
}

// IncFramesDropped increments the dropped frames counter.
func (m *Metrics) IncFramesDropped() {
	if m != nil {
		m.framesDropped.Inc()
	}
}

// IncRecordingsSealed increments the sealed recordings counter.
func (m *Metrics) IncRecordingsSealed() {
	if m != nil {
		m.recordingsSealed.Inc()
	}
}

// IncPlaybacksStarted increments the started playbacks counter.
func (m *Metrics) IncPlaybacksStarted() {
	if m != nil {
		m.playbacksStarted.Inc()
	}
}

// IncPlaybacksFinished increments the finished playbacks counter.
func (m *Metrics) IncPlaybacksFinished() {
	if m != nil {
		m.playbacksFinished.Inc()
	}
}

// SetActiveReaders sets the active readers gauge.
func (m *Metrics) SetActiveReaders(n int) {
	if m != nil {
		m.activeReaders.Set(float64(n))
	}
}

// AddIngestConnections adjusts the open ingestion connections gauge.
func (m *Metrics) AddIngestConnections(delta int) {
	if m != nil {
		m.ingestConnections.Add(float64(delta))
	}
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
