// Package observability exposes Prometheus metrics and OpenTelemetry tracing
// for boards, the HTTP API and sweeps.
package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talgya/automata/internal/engine"
)

// Collector bundles the automata metrics. It implements engine.PhaseObserver
// so it can be installed on a board's scheduler.
type Collector struct {
	gatherer prometheus.Gatherer

	PhaseDurations *prometheus.HistogramVec
	Steps          prometheus.Counter
	Agents         prometheus.Gauge
	StateAgents    *prometheus.GaugeVec
	SweepRuns      prometheus.Counter

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec
}

// NewCollector registers the metrics against reg, defaulting to the global
// registry when nil. Registering twice on the same registry reuses the
// existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	phases, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "automata_phase_duration_seconds",
		Help:    "Wall-clock duration of each scheduler phase.",
		Buckets: []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"phase"}), "automata_phase_duration_seconds")
	if err != nil {
		return nil, err
	}
	steps, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "automata_steps_total",
		Help: "Completed board steps.",
	}), "automata_steps_total")
	if err != nil {
		return nil, err
	}
	agents, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "automata_agents",
		Help: "Live agents on the board.",
	}), "automata_agents")
	if err != nil {
		return nil, err
	}
	states, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "automata_state_agents",
		Help: "Live agents per state label.",
	}, []string{"state"}), "automata_state_agents")
	if err != nil {
		return nil, err
	}
	runs, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "automata_sweep_runs_total",
		Help: "Completed experiment runs.",
	}), "automata_sweep_runs_total")
	if err != nil {
		return nil, err
	}
	requests, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "automata_http_requests_total",
		Help: "Handled API requests by route and status code.",
	}, []string{"route", "code"}), "automata_http_requests_total")
	if err != nil {
		return nil, err
	}
	durations, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "automata_http_request_duration_seconds",
		Help:    "API request latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
	}, []string{"route"}), "automata_http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:       gatherer,
		PhaseDurations: phases,
		Steps:          steps,
		Agents:         agents,
		StateAgents:    states,
		SweepRuns:      runs,
		HTTPRequests:   requests,
		HTTPDurations:  durations,
	}, nil
}

// ObservePhase records one phase run.
func (c *Collector) ObservePhase(name string, d time.Duration) {
	if c == nil {
		return
	}
	c.PhaseDurations.WithLabelValues(name).Observe(d.Seconds())
}

// ObserveStep counts a completed step and refreshes the board gauges.
func (c *Collector) ObserveStep(b *engine.Board) {
	if c == nil {
		return
	}
	c.Steps.Inc()
	c.ObserveBoard(b)
}

// ObserveBoard refreshes the agent gauges from b.
func (c *Collector) ObserveBoard(b *engine.Board) {
	if c == nil {
		return
	}
	c.Agents.Set(float64(b.AgentCount()))
	c.StateAgents.Reset()
	for state, n := range b.StateCounts() {
		c.StateAgents.WithLabelValues(state).Set(float64(n))
	}
}

// Instrument wraps an HTTP handler with request counting and latency.
func (c *Collector) Instrument(route string, next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		c.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		c.HTTPDurations.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// register adds c to reg. If an equal collector is already registered, the
// existing one is returned so several boards can share a registry.
func register[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return c, nil
}
