// Package metrics provides Prometheus metrics for the CO2 chart service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the chart service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	fitBuckets       []float64
	registry         prometheus.Registerer

	// Chart pipeline
	chartRequests        *prometheus.CounterVec
	chartRejections      *prometheus.CounterVec
	chartAssemblyLatency *prometheus.HistogramVec
	chartSeriesCount     prometheus.Histogram

	// Forecasting
	forecastFitLatency prometheus.Histogram
	forecastFailures   prometheus.Counter

	// Repository
	repositoryQueryLatency *prometheus.HistogramVec
	repositoryErrors       *prometheus.CounterVec
	repositoryOpenConns    prometheus.Gauge

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec
	errorRateByType     *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = newManager(customRegistry)
}

// newManager creates a metrics manager registering on registry.
func newManager(registry prometheus.Registerer) *Manager {
	m := &Manager{
		namespace:        "co2",
		subsystem:        "charts",
		histogramBuckets: prometheus.DefBuckets,
		fitBuckets:       []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		registry:         registry,
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.chartRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "requests_total",
			Help:      "Total number of chart requests by mode (comparison, forecast)",
		},
		[]string{"mode"},
	)

	m.chartRejections = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "rejections_total",
			Help:      "Total number of chart requests rejected, by error class",
		},
		[]string{"class"},
	)

	m.chartAssemblyLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "assembly_latency_milliseconds",
			Help:      "End-to-end chart assembly latency in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"mode"},
	)

	m.chartSeriesCount = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "series_per_chart",
		Help:      "Number of series included in successful chart responses",
		Buckets:   []float64{1, 2, 3, 4, 5, 8, 13},
	})

	m.forecastFitLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "forecast_fit_latency_milliseconds",
		Help:      "Forecast model fit and predict latency in milliseconds",
		Buckets:   m.fitBuckets,
	})

	m.forecastFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "forecast_failures_total",
		Help:      "Total number of forecast model failures",
	})

	m.repositoryQueryLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "repository_query_latency_milliseconds",
			Help:      "Repository query latency in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"query"},
	)

	m.repositoryErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "repository_errors_total",
			Help:      "Total number of repository query errors",
		},
		[]string{"query"},
	)

	m.repositoryOpenConns = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "repository_open_connections",
		Help:      "Open connections in the database pool",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByEndpoint = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_endpoint_total",
			Help:      "Total number of errors by endpoint",
		},
		[]string{"endpoint", "method", "error_type"},
	)

	m.errorRateByType = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_type_total",
			Help:      "Total number of errors by type",
		},
		[]string{"error_type", "severity"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "System memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_time_milliseconds",
		Help:      "GC pause time in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// RecordChartRequest counts an accepted chart request for the given mode.
func RecordChartRequest(mode string) {
	globalManager.chartRequests.WithLabelValues(mode).Inc()
}

// RecordChartRejected counts a chart request that failed with the given error class.
func RecordChartRejected(class string) {
	globalManager.chartRejections.WithLabelValues(class).Inc()
}

// RecordChartAssemblyLatency records end-to-end assembly latency in milliseconds.
func RecordChartAssemblyLatency(mode string, latencyMs float64) {
	globalManager.chartAssemblyLatency.WithLabelValues(mode).Observe(latencyMs)
}

// RecordChartSeries records how many series a chart carried.
func RecordChartSeries(count int) {
	globalManager.chartSeriesCount.Observe(float64(count))
}

// RecordForecastFitLatency records forecast fit latency in milliseconds.
func RecordForecastFitLatency(latencyMs float64) {
	globalManager.forecastFitLatency.Observe(latencyMs)
}

// RecordForecastFailure increments the forecast failure counter.
func RecordForecastFailure() {
	globalManager.forecastFailures.Inc()
}

// RecordRepositoryQueryLatency records repository query latency in milliseconds.
func RecordRepositoryQueryLatency(query string, latencyMs float64) {
	globalManager.repositoryQueryLatency.WithLabelValues(query).Observe(latencyMs)
}

// RecordRepositoryError increments the repository error counter for a query.
func RecordRepositoryError(query string) {
	globalManager.repositoryErrors.WithLabelValues(query).Inc()
}

// UpdateRepositoryOpenConnections sets the number of open pool connections.
func UpdateRepositoryOpenConnections(count int) {
	globalManager.repositoryOpenConns.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
