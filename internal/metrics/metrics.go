// Package metrics holds the Prometheus instrumentation for the evaluation
// pipeline and its dependencies.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Registry holds every metric the process exposes. All metrics live on a
// private prometheus registry so tests can create isolated instances.
type Registry struct {
	reg *prometheus.Registry

	// Pipeline metrics
	CycleDuration    *prometheus.HistogramVec
	Cycles           *prometheus.CounterVec
	Rejections       *prometheus.CounterVec
	DegradedContexts prometheus.Counter

	// Dependency metrics
	ProviderCalls *prometheus.CounterVec
	BreakerState  *prometheus.GaugeVec

	// Interface metrics
	WSClients prometheus.Gauge
}

// NewRegistry creates a registry with all metrics registered.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		CycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalrun_cycle_step_duration_seconds",
				Help:    "Duration of each evaluation cycle step in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"step", "result"},
		),

		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalrun_cycles_total",
				Help: "Total evaluation cycles by outcome (setup, rejected, coalesced)",
			},
			[]string{"outcome"},
		),

		Rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalrun_rejections_total",
				Help: "Total cycle rejections by typed reason",
			},
			[]string{"reason"},
		),

		DegradedContexts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "signalrun_degraded_retrievals_total",
				Help: "Total cycles that ran with a degraded playbook retrieval",
			},
		),

		ProviderCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalrun_provider_calls_total",
				Help: "Total outbound dependency calls by provider and result",
			},
			[]string{"provider", "result"},
		),

		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "signalrun_breaker_state",
				Help: "Circuit breaker state per dependency (0=closed, 1=half-open, 2=open)",
			},
			[]string{"dependency"},
		),

		WSClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "signalrun_ws_clients",
				Help: "Currently connected websocket clients",
			},
		),
	}

	r.reg.MustRegister(
		r.CycleDuration,
		r.Cycles,
		r.Rejections,
		r.DegradedContexts,
		r.ProviderCalls,
		r.BreakerState,
		r.WSClients,
	)
	return r
}

// Handler returns the /metrics HTTP handler for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gather returns the current metric families, used by the status endpoint
// to embed a small numeric summary without scraping.
func (r *Registry) Gather() ([]*dto.MetricFamily, error) {
	return r.reg.Gather()
}

// CounterTotal sums a counter family's samples across labels, 0 when the
// family has not been written yet.
func CounterTotal(families []*dto.MetricFamily, name string) float64 {
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		var total float64
		for _, m := range fam.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		return total
	}
	return 0
}

// StepTimer times one pipeline step and records it with its result label.
type StepTimer struct {
	reg     *Registry
	step    string
	started time.Time
}

// Step starts a timer for the named step.
func (r *Registry) Step(step string) *StepTimer {
	return &StepTimer{reg: r, step: step, started: time.Now()}
}

// Done records the elapsed time under the given result ("ok", "error",
// "degraded", "rejected").
func (t *StepTimer) Done(result string) {
	t.reg.CycleDuration.WithLabelValues(t.step, result).Observe(time.Since(t.started).Seconds())
}
