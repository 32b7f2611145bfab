// Package metrics exposes Prometheus collectors for the service.
// All methods are safe to call on a nil *Registry, which records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	reg *prometheus.Registry

	Evaluations      *prometheus.CounterVec
	ProviderRequests *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec
	CacheLookups     *prometheus.CounterVec
	BreakerState     *prometheus.GaugeVec
	TriggerDrawdown  *prometheus.GaugeVec
	AmmoChanges      *prometheus.CounterVec
}

// New creates a registry with its own prometheus.Registry so tests can create many.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		Evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_evaluations_total",
				Help: "Strategy evaluations by recommendation type and mode",
			},
			[]string{"type", "mode"},
		),
		ProviderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_provider_requests_total",
				Help: "Price provider requests by provider and result",
			},
			[]string{"provider", "result"},
		),
		ProviderLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sentinel_provider_request_duration_seconds",
				Help:    "Price provider request duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"provider"},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_series_cache_lookups_total",
				Help: "Series cache lookups by result (hit, miss)",
			},
			[]string{"result"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sentinel_provider_breaker_state",
				Help: "Circuit breaker state per provider (0 closed, 1 half-open, 2 open)",
			},
			[]string{"provider"},
		),
		TriggerDrawdown: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sentinel_trigger_drawdown_percent",
				Help: "Latest trigger drawdown from the 52-week high per ticker",
			},
			[]string{"ticker"},
		),
		AmmoChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_ammo_changes_total",
				Help: "Ammo state transitions by action (fire_1, fire_2, fire_3, reset)",
			},
			[]string{"action"},
		),
	}
	r.reg.MustRegister(
		r.Evaluations,
		r.ProviderRequests,
		r.ProviderLatency,
		r.CacheLookups,
		r.BreakerState,
		r.TriggerDrawdown,
		r.AmmoChanges,
	)
	return r
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

func (r *Registry) ObserveEvaluation(recType, mode string) {
	if r == nil {
		return
	}
	r.Evaluations.WithLabelValues(recType, mode).Inc()
}

func (r *Registry) ObserveProvider(provider string, started time.Time, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.ProviderRequests.WithLabelValues(provider, result).Inc()
	r.ProviderLatency.WithLabelValues(provider).Observe(time.Since(started).Seconds())
}

func (r *Registry) ObserveCache(hit bool) {
	if r == nil {
		return
	}
	if hit {
		r.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	r.CacheLookups.WithLabelValues("miss").Inc()
}

func (r *Registry) SetBreakerState(provider string, state int) {
	if r == nil {
		return
	}
	r.BreakerState.WithLabelValues(provider).Set(float64(state))
}

func (r *Registry) SetTriggerDrawdown(ticker string, pct float64) {
	if r == nil {
		return
	}
	r.TriggerDrawdown.WithLabelValues(ticker).Set(pct)
}

func (r *Registry) ObserveAmmo(action string) {
	if r == nil {
		return
	}
	r.AmmoChanges.WithLabelValues(action).Inc()
}
