package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the attendance
// pipeline: HTTP traffic, workbook I/O, write retries and broadcast fan-out.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	sheetReadDuration  prometheus.Histogram
	sheetWriteDuration prometheus.Histogram
	writeRetries       prometheus.Counter

	broadcastSubscribers prometheus.Gauge
	eventsDelivered      prometheus.Counter
	eventsDropped        prometheus.Counter

	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
}

// NewMetricsService registers the core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	sheetReadDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sheet_read_duration_seconds",
		Help:    "Duration of workbook sheet reads",
		Buckets: prometheus.DefBuckets,
	})

	sheetWriteDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sheet_write_duration_seconds",
		Help:    "Duration of workbook cell writes",
		Buckets: prometheus.DefBuckets,
	})

	writeRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_write_retries_total",
		Help: "Total attendance write attempts beyond the first",
	})

	broadcastSubscribers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "broadcast_subscribers",
		Help: "Currently connected live viewers",
	})

	eventsDelivered := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_events_delivered_total",
		Help: "Attendance events delivered to viewers",
	})

	eventsDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_events_dropped_total",
		Help: "Viewers dropped for not draining their event channel",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total roster cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total roster cache misses",
	})

	registry.MustRegister(
		requestDuration, requestTotal,
		sheetReadDuration, sheetWriteDuration, writeRetries,
		broadcastSubscribers, eventsDelivered, eventsDropped,
		cacheHits, cacheMisses,
	)

	return &MetricsService{
		registry:             registry,
		handler:              promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:      requestDuration,
		requestTotal:         requestTotal,
		sheetReadDuration:    sheetReadDuration,
		sheetWriteDuration:   sheetWriteDuration,
		writeRetries:         writeRetries,
		broadcastSubscribers: broadcastSubscribers,
		eventsDelivered:      eventsDelivered,
		eventsDropped:        eventsDropped,
		cacheHits:            cacheHits,
		cacheMisses:          cacheMisses,
	}
}

// Handler exposes the registry for the /metrics endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records one handled request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if s == nil {
		return
	}
	labels := prometheus.Labels{"method": method, "path": path, "status": strconv.Itoa(status)}
	s.requestDuration.With(labels).Observe(duration.Seconds())
	s.requestTotal.With(labels).Inc()
}

// ObserveSheetRead records a workbook read.
func (s *MetricsService) ObserveSheetRead(duration time.Duration) {
	if s == nil {
		return
	}
	s.sheetReadDuration.Observe(duration.Seconds())
}

// ObserveSheetWrite records a workbook cell write.
func (s *MetricsService) ObserveSheetWrite(duration time.Duration) {
	if s == nil {
		return
	}
	s.sheetWriteDuration.Observe(duration.Seconds())
}

// AddWriteRetries counts write attempts beyond the first.
func (s *MetricsService) AddWriteRetries(n int) {
	if s == nil || n <= 0 {
		return
	}
	s.writeRetries.Add(float64(n))
}

// SetBroadcastSubscribers tracks the viewer population.
func (s *MetricsService) SetBroadcastSubscribers(n int) {
	if s == nil {
		return
	}
	s.broadcastSubscribers.Set(float64(n))
}

// IncEventsDelivered counts one delivered broadcast event.
func (s *MetricsService) IncEventsDelivered() {
	if s == nil {
		return
	}
	s.eventsDelivered.Inc()
}

// IncEventsDropped counts one viewer dropped during publish.
func (s *MetricsService) IncEventsDropped() {
	if s == nil {
		return
	}
	s.eventsDropped.Inc()
}

// RecordCacheOperation counts a roster cache lookup.
func (s *MetricsService) RecordCacheOperation(hit bool) {
	if s == nil {
		return
	}
	if hit {
		s.cacheHits.Inc()
	} else {
		s.cacheMisses.Inc()
	}
}
