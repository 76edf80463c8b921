// Package metrics defines the prometheus collectors exported by the resolver.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "waypoint"

	resultLabel  = "result"
	outcomeLabel = "outcome"
	cacheLabel   = "cache"
)

// Cache names used for the cache label.
const (
	CacheProgram = "program"
	CacheResult  = "result"
)

// Resolution outcomes used for the outcome label.
const (
	OutcomeEndpoint   = "endpoint"
	OutcomeRuleError  = "rule_error"
	OutcomeUnresolved = "unresolved"
	OutcomeInvalid    = "invalid"
	OutcomeNotFound   = "not_found"
	OutcomeFailure    = "failure"
)

// Metrics holds the resolver collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	compileCount    *prometheus.CounterVec
	compileDuration prometheus.Histogram
	resolveCount    *prometheus.CounterVec
	resolveDuration prometheus.Histogram
	cacheLookups    *prometheus.CounterVec
}

// New creates collectors registered on a fresh registry, alongside the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		compileCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rules",
			Name:      "compile_total",
			Help:      "The number of rule set compilations, by result.",
		}, []string{resultLabel}),

		compileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rules",
			Name:      "compile_duration_seconds",
			Help:      "Time spent parsing, checking and lowering a rule set.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),

		resolveCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "requests_total",
			Help:      "The number of endpoint resolutions, by outcome.",
		}, []string{outcomeLabel}),

		resolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "duration_seconds",
			Help:      "Time spent resolving one endpoint, including store lookups.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),

		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "cache_lookups_total",
			Help:      "Cache lookups, by cache and hit or miss.",
		}, []string{cacheLabel, resultLabel}),
	}

	m.registry.MustRegister(
		m.compileCount,
		m.compileDuration,
		m.resolveCount,
		m.resolveDuration,
		m.cacheLookups,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCompile records one compilation.
func (m *Metrics) ObserveCompile(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.compileCount.WithLabelValues(result).Inc()
	m.compileDuration.Observe(d.Seconds())
}

// ObserveResolve records one resolution.
func (m *Metrics) ObserveResolve(d time.Duration, outcome string) {
	if m == nil {
		return
	}
	m.resolveCount.WithLabelValues(outcome).Inc()
	m.resolveDuration.Observe(d.Seconds())
}

// CacheLookup records a hit or miss on the named cache.
func (m *Metrics) CacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}
