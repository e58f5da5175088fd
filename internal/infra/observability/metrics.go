package observability

import (
	"time"

	"github.com/oleandro/investtrack-calc-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the calculation service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	calculations    *prometheus.CounterVec
	reverts         prometheus.Counter
	variableUpdates *prometheus.CounterVec
	conflicts       prometheus.Counter
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "calc_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		calculations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calc_interest_calculations_total",
				Help: "Total committed interest calculations.",
			},
			[]string{"type"},
		),
		reverts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "calc_interest_reverts_total",
				Help: "Total reverted interest calculations.",
			},
		),
		variableUpdates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calc_variable_updates_total",
				Help: "Total variable-return updates.",
			},
			[]string{"mode"},
		),
		conflicts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "calc_commit_conflicts_total",
				Help: "Total commits rejected for concurrent modification.",
			},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calc_external_errors_total",
				Help: "Total errors from the Ledger Service.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calc_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calc_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calc_requests_total",
				Help: "Total requests processed.",
			},
			[]string{"status"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrCalculation increments the committed calculation counter.
func (m *Metrics) IncrCalculation(calcType domain.CalculationType) {
	m.calculations.WithLabelValues(string(calcType)).Inc()
}

// IncrRevert increments the revert counter.
func (m *Metrics) IncrRevert() {
	m.reverts.Inc()
}

// IncrVariableUpdate increments the variable-update counter.
// mode is "percentage" or "balance".
func (m *Metrics) IncrVariableUpdate(mode string) {
	m.variableUpdates.WithLabelValues(mode).Inc()
}

// IncrConflict increments the concurrent-modification counter.
func (m *Metrics) IncrConflict() {
	m.conflicts.Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrRequest increments the request counter with a status label.
func (m *Metrics) IncrRequest(status string) {
	m.requestsTotal.WithLabelValues(status).Inc()
}

// GetEngineSnapshot returns a snapshot of engine counters suitable for
// the GET /v1/metrics/engine endpoint.
func (m *Metrics) GetEngineSnapshot() *domain.EngineMetrics {
	manual := getCounterValue(m.calculations, string(domain.CalcManual))
	automatic := getCounterValue(m.calculations, string(domain.CalcAutomatic))
	reverts := readCounter(m.reverts)
	conflicts := readCounter(m.conflicts)
	byPct := getCounterValue(m.variableUpdates, "percentage")
	byBal := getCounterValue(m.variableUpdates, "balance")
	totalRequests := getCounterValue(m.requestsTotal, "success") +
		getCounterValue(m.requestsTotal, "client_error") +
		getCounterValue(m.requestsTotal, "error")
	errorCount := getCounterValue(m.requestsTotal, "error")
	cacheHits := getCounterValue(m.cacheHits, "performance")
	cacheMisses := getCounterValue(m.cacheMisses, "performance")

	errorRate := float64(0)
	cacheHitRate := float64(0)
	if totalRequests > 0 {
		errorRate = errorCount / totalRequests
	}
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.EngineMetrics{
		CalculationsTotal:    int64(manual + automatic),
		RevertsTotal:         int64(reverts),
		VariableUpdatesTotal: int64(byPct + byBal),
		ConflictsTotal:       int64(conflicts),
		ErrorRate:            errorRate,
		CacheHitRate:         cacheHitRate,
		Period:               "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func readCounter(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
