package pubstatic

import (
	"errors"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records publisher and cache activity in Prometheus. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry      *prom.Registry
	cacheResults  *prom.CounterVec
	regenerations *prom.CounterVec
	regenDuration prom.Histogram
	storeErrors   *prom.CounterVec
	knownPaths    prom.Gauge
}

// NewMetrics registers the collectors on reg, or on a fresh registry when
// reg is nil.
func NewMetrics(reg *prom.Registry) *Metrics {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	m := &Metrics{
		registry: reg,
		cacheResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "pubstatic",
			Name:      "cache_requests_total",
			Help:      "Page cache lookups by result (HIT, STALE, MISS)",
		}, []string{"result"}),
		regenerations: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "pubstatic",
			Name:      "regenerations_total",
			Help:      "Page generations by outcome",
		}, []string{"outcome"}),
		regenDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "pubstatic",
			Name:      "regeneration_duration_seconds",
			Help:      "Time spent generating a page",
			Buckets:   prom.DefBuckets,
		}),
		storeErrors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "pubstatic",
			Name:      "store_errors_total",
			Help:      "Content store failures recovered locally, by operation",
		}, []string{"op"}),
		knownPaths: prom.NewGauge(prom.GaugeOpts{
			Namespace: "pubstatic",
			Name:      "known_paths",
			Help:      "Detail paths found by the last path enumeration",
		}),
	}
	reg.MustRegister(m.cacheResults, m.regenerations, m.regenDuration, m.storeErrors, m.knownPaths)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (m *Metrics) cacheResult(s CacheStatus) {
	if m == nil {
		return
	}
	m.cacheResults.WithLabelValues(string(s)).Inc()
}

func (m *Metrics) observeRegeneration(err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	switch {
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	case err != nil:
		outcome = "error"
	}
	m.regenerations.WithLabelValues(outcome).Inc()
	m.regenDuration.Observe(d.Seconds())
}

func (m *Metrics) storeError(op string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) setKnownPaths(n int) {
	if m == nil {
		return
	}
	m.knownPaths.Set(float64(n))
}
