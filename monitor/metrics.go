package monitor

import (
	"fmt"

	"github.com/nomis52/taskmonitor/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Observation results recorded by the observations_total counter.
const (
	resultMatched   = "matched"
	resultUnmatched = "unmatched"
	resultEmpty     = "empty"
	resultDeferred  = "deferred"
)

// Transition kinds recorded by the transitions_total counter.
const (
	kindTrigger  = "trigger"
	kindSequence = "sequence"
	kindRejected = "rejected"
)

// Metrics holds the instruments updated by sessions. A single Metrics is
// shared by every session created in a process, since registries reject
// duplicate registration.
type Metrics struct {
	observations   metrics.CounterVec
	transitions    metrics.CounterVec
	published      metrics.Counter
	publishErrors  metrics.Counter
	timerActive    metrics.Gauge
	timerRemaining metrics.Gauge
	stepIndex      metrics.Gauge
	degraded       metrics.Gauge
}

// NewMetrics registers the session metrics with reg.
func NewMetrics(reg metrics.Registry) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.observations, err = reg.NewCounterVec(prometheus.CounterOpts{
		Name: "observations_total",
		Help: "Activity observations received, by result",
	}, []string{"result"}); err != nil {
		return nil, fmt.Errorf("observations_total: %w", err)
	}
	if m.transitions, err = reg.NewCounterVec(prometheus.CounterOpts{
		Name: "transitions_total",
		Help: "Step changes, by kind",
	}, []string{"kind"}); err != nil {
		return nil, fmt.Errorf("transitions_total: %w", err)
	}
	if m.published, err = reg.NewCounter(prometheus.CounterOpts{
		Name: "status_published_total",
		Help: "Task status snapshots published",
	}); err != nil {
		return nil, fmt.Errorf("status_published_total: %w", err)
	}
	if m.publishErrors, err = reg.NewCounter(prometheus.CounterOpts{
		Name: "status_publish_errors_total",
		Help: "Task status snapshots that failed to publish",
	}); err != nil {
		return nil, fmt.Errorf("status_publish_errors_total: %w", err)
	}
	if m.timerActive, err = reg.NewGauge(prometheus.GaugeOpts{
		Name: "timer_active",
		Help: "1 while a step countdown is running",
	}); err != nil {
		return nil, fmt.Errorf("timer_active: %w", err)
	}
	if m.timerRemaining, err = reg.NewGauge(prometheus.GaugeOpts{
		Name: "timer_remaining_seconds",
		Help: "Seconds left on the current step, -1 if the step is not timed",
	}); err != nil {
		return nil, fmt.Errorf("timer_remaining_seconds: %w", err)
	}
	if m.stepIndex, err = reg.NewGauge(prometheus.GaugeOpts{
		Name: "current_step_index",
		Help: "Position of the current step in the task sequence",
	}); err != nil {
		return nil, fmt.Errorf("current_step_index: %w", err)
	}
	if m.degraded, err = reg.NewGauge(prometheus.GaugeOpts{
		Name: "degraded",
		Help: "1 if the session can no longer auto-advance",
	}); err != nil {
		return nil, fmt.Errorf("degraded: %w", err)
	}

	return m, nil
}

func nopMetrics() *Metrics {
	m, _ := NewMetrics(metrics.NopRegistry{})
	return m
}

func (m *Metrics) observation(result string) {
	m.observations.With(prometheus.Labels{"result": result}).Inc()
}

func (m *Metrics) transition(kind string) {
	m.transitions.With(prometheus.Labels{"kind": kind}).Inc()
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
