package pipeline

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes runner metrics to Prometheus. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	CyclesTotal      prometheus.Counter
	CycleErrorsTotal prometheus.Counter
	GenerateDuration prometheus.Histogram
	ValidTools       prometheus.Gauge
}

// NewMetrics registers runner metrics against reg, or the default
// registerer when reg is nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	cycles, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracking_source_cycles_total",
		Help: "Pipeline update cycles run against the tracking source.",
	}), "tracking_source_cycles_total")
	if err != nil {
		return nil, err
	}

	cycleErrors, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracking_source_cycle_errors_total",
		Help: "Pulls that failed to generate navigation data.",
	}), "tracking_source_cycle_errors_total")
	if err != nil {
		return nil, err
	}

	generate, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tracking_source_generate_duration_seconds",
		Help:    "Time spent refreshing outputs from the device.",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	}), "tracking_source_generate_duration_seconds")
	if err != nil {
		return nil, err
	}

	valid, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tracking_source_valid_tools",
		Help: "Outputs holding valid data after the last cycle.",
	}), "tracking_source_valid_tools")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		gatherer:         gatherer,
		CyclesTotal:      cycles,
		CycleErrorsTotal: cycleErrors,
		GenerateDuration: generate,
		ValidTools:       valid,
	}, nil
}

// Gatherer returns the gatherer the metrics were registered with.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return nil
	}
	return m.gatherer
}

func (m *Metrics) incCycles() {
	if m == nil || m.CyclesTotal == nil {
		return
	}
	m.CyclesTotal.Inc()
}

func (m *Metrics) incErrors() {
	if m == nil || m.CycleErrorsTotal == nil {
		return
	}
	m.CycleErrorsTotal.Inc()
}

func (m *Metrics) observeGenerate(d time.Duration) {
	if m == nil || m.GenerateDuration == nil {
		return
	}
	m.GenerateDuration.Observe(d.Seconds())
}

func (m *Metrics) setValid(n int) {
	if m == nil || m.ValidTools == nil {
		return
	}
	m.ValidTools.Set(float64(n))
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
