package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "twopc"

// Collectors for model checking runs.
//
// A nil *CheckerMetrics is valid and records nothing.
type CheckerMetrics struct {
	States       prometheus.Counter
	UniqueStates prometheus.Gauge
	MaxDepth     prometheus.Gauge
	Discoveries  *prometheus.CounterVec
	Runs         *prometheus.CounterVec
	Duration     prometheus.Histogram
}

func NewCheckerMetrics(reg prometheus.Registerer) *CheckerMetrics {
	states := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checker",
		Name:      "states_total",
		Help:      "Total number of states visited, including states visited more than once.",
	})
	unique := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "checker",
		Name:      "unique_states",
		Help:      "Number of distinct states discovered by the current run.",
	})
	depth := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "checker",
		Name:      "max_depth",
		Help:      "Largest depth reached by the current run.",
	})
	discoveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checker",
		Name:      "discoveries_total",
		Help:      "Total number of property discoveries.",
	}, []string{"property", "expectation"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checker",
		Name:      "runs_total",
		Help:      "Total number of completed checker runs.",
	}, []string{"result"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "checker",
		Name:      "run_duration_seconds",
		Help:      "Duration of checker runs in seconds.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	})

	reg.MustRegister(states, unique, depth, discoveries, runs, duration)
	return &CheckerMetrics{
		States:       states,
		UniqueStates: unique,
		MaxDepth:     depth,
		Discoveries:  discoveries,
		Runs:         runs,
		Duration:     duration,
	}
}

// Record that a run started.
func (m *CheckerMetrics) RunStarted() {
	if m == nil {
		return
	}
	m.UniqueStates.Set(0)
	m.MaxDepth.Set(0)
}

// Record an explored state.
//
// generated is the number of successors computed for it, unique and depth the
// current size and depth of the state space.
func (m *CheckerMetrics) Explored(generated int, unique int, depth int) {
	if m == nil {
		return
	}
	m.States.Add(float64(generated))
	m.UniqueStates.Set(float64(unique))
	m.MaxDepth.Set(float64(depth))
}

func (m *CheckerMetrics) Discovered(property string, expectation string) {
	if m == nil {
		return
	}
	m.Discoveries.WithLabelValues(property, expectation).Inc()
}

// Record a finished run. result is one of "passed", "failed" or "canceled".
func (m *CheckerMetrics) RunFinished(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(result).Inc()
	m.Duration.Observe(d.Seconds())
}

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewServerMetrics(reg prometheus.Registerer, service string) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "requests_total",
		Help:      "Total number of requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "request_duration_ms",
		Help:      "Request latency in milliseconds.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"handler"})

	reg.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

// Record a handled request.
func (m *ServerMetrics) Observe(handler string, status int, start time.Time) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(handler, strconv.Itoa(status)).Inc()
	m.LatencyMS.WithLabelValues(handler).Observe(float64(time.Since(start).Milliseconds()))
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve the metrics gathered by g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
