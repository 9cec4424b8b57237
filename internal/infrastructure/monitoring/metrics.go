package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Admin HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Environment metrics
	EnvironmentsActive prometheus.Gauge
	EnvironmentsTotal  prometheus.Counter

	// Controller metrics
	ControllersActive prometheus.Gauge
	Launches          *prometheus.CounterVec
	LaunchDuration    prometheus.Histogram
	Terminations      *prometheus.CounterVec

	// Event stream metrics
	EventSubscribers prometheus.Gauge

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time
}

// NewMetrics registers the component manager's metrics with reg. A nil reg
// means prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{startTime: time.Now()}

	m.RequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appmgr_http_requests_total",
			Help: "Total number of admin HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.RequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "appmgr_http_request_duration_seconds",
			Help:    "Admin HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	m.EnvironmentsActive = factory.NewGauge(prometheus.GaugeOpts{
		Name: "appmgr_environments_active",
		Help: "Number of live environments",
	})
	m.EnvironmentsTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "appmgr_environments_total",
		Help: "Total number of environments created",
	})

	m.ControllersActive = factory.NewGauge(prometheus.GaugeOpts{
		Name: "appmgr_controllers_active",
		Help: "Number of application controllers not yet terminated",
	})
	m.Launches = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appmgr_launches_total",
			Help: "Application launches by result",
		},
		[]string{"result"},
	)
	m.LaunchDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "appmgr_launch_duration_seconds",
		Help:    "Time from launch request to running process",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})
	m.Terminations = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appmgr_controller_terminations_total",
			Help: "Controller terminations by reason",
		},
		[]string{"reason"},
	)

	m.EventSubscribers = factory.NewGauge(prometheus.GaugeOpts{
		Name: "appmgr_event_subscribers",
		Help: "Number of connected lifecycle event streams",
	})

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "appmgr_uptime_seconds",
			Help: "Component manager uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an admin HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// EnvironmentCreated records a new environment
func (m *Metrics) EnvironmentCreated() {
	if m == nil {
		return
	}
	m.EnvironmentsActive.Inc()
	m.EnvironmentsTotal.Inc()
}

// EnvironmentDestroyed records a destroyed environment
func (m *Metrics) EnvironmentDestroyed() {
	if m == nil {
		return
	}
	m.EnvironmentsActive.Dec()
}

// RecordLaunch records the outcome of a launch request
func (m *Metrics) RecordLaunch(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Launches.WithLabelValues(result).Inc()
	m.LaunchDuration.Observe(duration.Seconds())
	if result == LaunchSucceeded {
		m.ControllersActive.Inc()
	}
}

// RecordTermination records a controller reaching Terminated
func (m *Metrics) RecordTermination(reason string) {
	if m == nil {
		return
	}
	m.ControllersActive.Dec()
	m.Terminations.WithLabelValues(reason).Inc()
}

// Launch results
const (
	LaunchSucceeded = "success"
	LaunchNotFound  = "not_found"
	LaunchFailed    = "failed"
)

// IncEventSubscribers records a new event stream
func (m *Metrics) IncEventSubscribers() {
	if m == nil {
		return
	}
	m.EventSubscribers.Inc()
}

// DecEventSubscribers records a closed event stream
func (m *Metrics) DecEventSubscribers() {
	if m == nil {
		return
	}
	m.EventSubscribers.Dec()
}
