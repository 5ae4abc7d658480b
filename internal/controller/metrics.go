package controller

import (
	"github.com/clambin/thermostats/internal/reconciler"
	"github.com/prometheus/client_golang/prometheus"
	"sync"
	"time"
)

var (
	thermostatTargetTemperature = prometheus.NewDesc(
		prometheus.BuildFQName("thermostats", "thermostat", "target_temperature_celsius"),
		"Target temperature of the thermostat after the last pass. 0 if the thermostat is off",
		[]string{"name", "ain"},
		nil,
	)
	lastPass = prometheus.NewDesc(
		prometheus.BuildFQName("thermostats", "sync", "last_pass_timestamp_seconds"),
		"Time of the last completed pass",
		nil,
		nil,
	)
)

// Metrics records the outcome of each pass.
type Metrics struct {
	decisions *prometheus.CounterVec
	errors    *prometheus.CounterVec
	lock      sync.RWMutex
	targets   map[string]target
	lastPass  time.Time
}

type target struct {
	name        string
	temperature float64
}

var _ prometheus.Collector = &Metrics{}

func NewMetrics() *Metrics {
	return &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "thermostats",
			Subsystem: "sync",
			Name:      "decisions_total",
			Help:      "Number of decisions, by kind",
		}, []string{"kind"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "thermostats",
			Subsystem: "sync",
			Name:      "errors_total",
			Help:      "Number of thermostats that failed to process, by step",
		}, []string{"step"}),
		targets: make(map[string]target),
	}
}

func (m *Metrics) decision(ain, name string, d reconciler.Decision, applied float64) {
	m.decisions.WithLabelValues(d.Kind.String()).Inc()
	m.lock.Lock()
	defer m.lock.Unlock()
	m.targets[ain] = target{name: name, temperature: applied}
}

func (m *Metrics) failure(step string) {
	m.errors.WithLabelValues(step).Inc()
}

func (m *Metrics) passCompleted(t time.Time) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.lastPass = t
}

func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.decisions.Describe(ch)
	m.errors.Describe(ch)
	ch <- thermostatTargetTemperature
	ch <- lastPass
}

func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.decisions.Collect(ch)
	m.errors.Collect(ch)

	m.lock.RLock()
	defer m.lock.RUnlock()
	for ain, t := range m.targets {
		ch <- prometheus.MustNewConstMetric(thermostatTargetTemperature, prometheus.GaugeValue, t.temperature, t.name, ain)
	}
	if !m.lastPass.IsZero() {
		ch <- prometheus.MustNewConstMetric(lastPass, prometheus.GaugeValue, float64(m.lastPass.Unix()))
	}
}
