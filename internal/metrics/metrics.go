// Package metrics exposes prometheus counters for command executions and
// assertion outcomes.
package metrics

import (
	"net/http"

	"github.com/deixis/clicheck/pkg/runner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const Namespace = "clicheck"

// Assertion results.
const (
	Pass = "pass"
	Fail = "fail"
	Skip = "skip"
)

// Metrics owns a private registry so several instances can coexist in one
// process (tests, embedded servers).
type Metrics struct {
	registry *prometheus.Registry

	executions *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	assertions *prometheus.CounterVec
}

// New creates a Metrics instance with its own registry. Process and Go
// runtime collectors are included when withRuntime is true.
func New(withRuntime bool) *Metrics {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		executions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "executions_total",
			Help:      "Count of executed commands by outcome",
		}, []string{"outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "execution_duration_seconds",
			Help:      "Wall time of executed commands",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"outcome"}),
		assertions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "assertions_total",
			Help:      "Count of evaluated assertions by result",
		}, []string{"result"}),
	}
}

// Observe records one command result. It has the signature of
// runner.Runner.OnResult.
func (m *Metrics) Observe(res *runner.Result) {
	outcome := res.Outcome()
	m.executions.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(res.Duration.Seconds())
}

// RecordAssertion counts an assertion with result Pass, Fail or Skip.
func (m *Metrics) RecordAssertion(result string) {
	m.assertions.WithLabelValues(result).Inc()
}

// Instrument installs Observe on r, chaining any observer already set.
func (m *Metrics) Instrument(r *runner.Runner) {
	prev := r.OnResult
	r.OnResult = func(res *runner.Result) {
		m.Observe(res)
		if prev != nil {
			prev(res)
		}
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
