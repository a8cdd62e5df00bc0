// Package metrics provides Prometheus-compatible metrics for the task monitor.
//
// Two Registry implementations exist:
//   - ScrapeRegistry (server): metrics live in a Prometheus registry exposed on /metrics
//   - PushRegistry (replay CLI): every update is pushed to a remote write endpoint
//     such as VictoriaMetrics
//
// NopRegistry discards everything and is used when metrics are disabled.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Gauge is a metric that represents a single numerical value that can go up and down.
type Gauge interface {
	Set(float64)
}

// Counter is a monotonically increasing metric.
type Counter interface {
	Inc()
	// Add panics if the value is negative.
	Add(float64)
}

// GaugeVec is a Gauge with labels.
type GaugeVec interface {
	With(prometheus.Labels) Gauge
}

// CounterVec is a Counter with labels.
type CounterVec interface {
	With(prometheus.Labels) Counter
}

// Registry creates and registers metrics.
type Registry interface {
	NewGauge(opts prometheus.GaugeOpts) (Gauge, error)
	NewGaugeVec(opts prometheus.GaugeOpts, labels []string) (GaugeVec, error)
	NewCounter(opts prometheus.CounterOpts) (Counter, error)
	NewCounterVec(opts prometheus.CounterOpts, labels []string) (CounterVec, error)
}

// NopRegistry returns metrics that do nothing.
type NopRegistry struct{}

func (NopRegistry) NewGauge(prometheus.GaugeOpts) (Gauge, error) { return nop{}, nil }

func (NopRegistry) NewGaugeVec(prometheus.GaugeOpts, []string) (GaugeVec, error) {
	return nop{}, nil
}

func (NopRegistry) NewCounter(prometheus.CounterOpts) (Counter, error) { return nop{}, nil }

func (NopRegistry) NewCounterVec(prometheus.CounterOpts, []string) (CounterVec, error) {
	return nopCounterVec{}, nil
}

type nop struct{}

func (nop) Set(float64)                  {}
func (nop) Inc()                         {}
func (nop) Add(float64)                  {}
func (nop) With(prometheus.Labels) Gauge { return nop{} }

type nopCounterVec struct{}

func (nopCounterVec) With(prometheus.Labels) Counter { return nop{} }
