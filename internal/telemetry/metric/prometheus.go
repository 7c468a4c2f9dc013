package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fedimint_cli"

// Registry holds the metrics of one CLI invocation.
type Registry struct {
	registry *prometheus.Registry

	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	GuardianErrors  *prometheus.CounterVec
}

// NewRegistry creates a registry with the command metrics registered.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}

	r.CommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "command",
		Name:      "total",
		Help:      "Commands executed, by module, operation and outcome",
	}, []string{"module", "operation", "outcome"})

	r.CommandDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "command",
		Name:      "duration_seconds",
		Help:      "Command latency including guardian round trips",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"module", "operation"})

	r.GuardianErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "guardian",
		Name:      "unreachable_total",
		Help:      "Guardians that were unreachable during a status probe",
	}, []string{"federation"})

	r.registry.MustRegister(r.CommandsTotal, r.CommandDuration, r.GuardianErrors)
	return r
}

// MustRegister registers additional collectors.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.registry.MustRegister(cs...)
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// ObserveCommand records one executed command.
func (r *Registry) ObserveCommand(module, operation, outcome string, elapsed time.Duration) {
	r.CommandsTotal.WithLabelValues(module, operation, outcome).Inc()
	r.CommandDuration.WithLabelValues(module, operation).Observe(elapsed.Seconds())
}

// WriteTextfile writes all metrics in the text exposition format for the
// node_exporter textfile collector. The file is replaced atomically.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
