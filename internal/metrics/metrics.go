// Package metrics exposes simulator and HTTP metrics in the Prometheus
// text format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-gridsim/internal/simulation"
)

const namespace = "gridsim"

// solveBuckets covers sub-millisecond to multi-second solves.
var solveBuckets = prometheus.ExponentialBuckets(0.0001, 4, 10)

// Metrics owns a private registry and the simulator's collectors.
//
// It implements simulation.Observer. All methods are safe for concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	cycles        prometheus.Counter
	failures      *prometheus.CounterVec
	solveDuration prometheus.Histogram
	iterations    prometheus.Gauge
	loadScaling   prometheus.Gauge
	lossesMW      prometheus.Gauge
	lastCycle     prometheus.Gauge
	busVoltage    *prometheus.GaugeVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates and registers all collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of published simulation cycles",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_failures_total",
			Help:      "Total number of terminal cycle failures by stage",
		}, []string{"stage"}),
		solveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solve_duration_seconds",
			Help:      "Power flow solve duration in seconds",
			Buckets:   solveBuckets,
		}),
		iterations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "solve_iterations",
			Help:      "Newton-Raphson iterations of the last solve",
		}),
		loadScaling: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "load_scaling",
			Help:      "Load scaling factor applied in the last cycle",
		}),
		lossesMW: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "losses_mw",
			Help:      "Active power losses of the last solve in MW",
		}),
		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time of the last published cycle",
		}),
		busVoltage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bus_voltage_pu",
			Help:      "Bus voltage magnitude in per unit from the last cycle",
		}, []string{"bus"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cycles,
		m.failures,
		m.solveDuration,
		m.iterations,
		m.loadScaling,
		m.lossesMW,
		m.lastCycle,
		m.busVoltage,
		m.httpRequests,
		m.httpDuration,
	)

	// Pre-create failure series so dashboards show zeros.
	for _, stage := range []simulation.Stage{
		simulation.StageLoadNetwork, simulation.StageConnect, simulation.StageSolve, simulation.StageJoin,
		simulation.StageEncode, simulation.StagePublish,
	} {
		m.failures.WithLabelValues(string(stage))
	}

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveCycle records a published cycle.
func (m *Metrics) ObserveCycle(snap *simulation.Snapshot) {
	if snap == nil {
		return
	}
	m.cycles.Inc()
	m.solveDuration.Observe(snap.SolveDuration.Seconds())
	m.iterations.Set(float64(snap.Iterations))
	m.loadScaling.Set(snap.LoadScaling)
	m.lossesMW.Set(snap.LossesMW)
	m.lastCycle.Set(float64(snap.Timestamp.UnixNano()) / float64(time.Second))
	for _, r := range snap.Readings {
		m.busVoltage.WithLabelValues(r.Name).Set(r.VmPU)
	}
}

// ObserveFailure counts a terminal failure at stage.
func (m *Metrics) ObserveFailure(stage simulation.Stage) {
	m.failures.WithLabelValues(string(stage)).Inc()
}

// Middleware records request counts and durations labelled by chi route
// pattern, which keeps label cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

var _ simulation.Observer = (*Metrics)(nil)
