// Package metrics owns the Prometheus collectors of the ledger service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Transfer outcomes.
const (
	OutcomeCompleted      = "completed"
	OutcomeReplayed       = "replayed"
	OutcomeFailedBusiness = "failed_business"
	OutcomeDuplicate      = "duplicate"
	OutcomeConflict       = "conflict"
	OutcomeTimeout        = "timeout"
	OutcomeInvalid        = "invalid"
	OutcomeError          = "error"
)

// Durability results.
const (
	DurabilityPersisted    = "persisted"
	DurabilityDeadLettered = "dead_lettered"
	DurabilityStuckOpen    = "stuck_open"
)

// RegistryStats is the subset of failure-registry statistics exported as metrics.
type RegistryStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
}

type Metrics struct {
	registry *prometheus.Registry

	transfersTotal     *prometheus.CounterVec
	transferDuration   prometheus.Histogram
	durabilityTotal    *prometheus.CounterVec
	auditWritesTotal   *prometheus.CounterVec
	deadLetterBacklog  prometheus.Gauge
	httpRequestsTotal  *prometheus.CounterVec
	httpRequestSeconds *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry, together with the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		transfersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_transfers_total",
			Help: "Transfer requests by outcome",
		}, []string{"outcome"}),
		transferDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_transfer_duration_seconds",
			Help:    "Latency of transfer execution as seen by the caller",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		durabilityTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_failure_durability_total",
			Help: "Background persistence of failed transfers by result",
		}, []string{"result"}),
		auditWritesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_audit_writes_total",
			Help: "Audit event writes by result",
		}, []string{"result"}),
		deadLetterBacklog: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_dead_letter_unprocessed",
			Help: "Unprocessed dead-letter entries at the last monitor tick",
		}),
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_http_requests_total",
			Help: "Total HTTP requests processed, labeled by status code",
		}, []string{"method", "path", "status"}),
		httpRequestSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_http_request_duration_seconds",
			Help:    "Latency distribution of HTTP requests",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"method", "path"}),
	}
}

// RegisterFailureRegistry exports registry statistics through function-backed collectors.
func (m *Metrics) RegisterFailureRegistry(stats func() RegistryStats) {
	if m == nil {
		return
	}
	factory := promauto.With(m.registry)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "ledger_failure_registry_size",
		Help: "Failed transfers currently held in memory",
	}, func() float64 { return float64(stats().Size) })
	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "ledger_failure_registry_hits_total",
		Help: "Idempotent lookups answered by the failure registry",
	}, func() float64 { return float64(stats().Hits) })
	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "ledger_failure_registry_misses_total",
		Help: "Idempotent lookups not found in the failure registry",
	}, func() float64 { return float64(stats().Misses) })
	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "ledger_failure_registry_evictions_total",
		Help: "Records dropped from the failure registry by TTL or capacity",
	}, func() float64 { return float64(stats().Evictions) })
}

func (m *Metrics) ObserveTransfer(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.transfersTotal.WithLabelValues(outcome).Inc()
	m.transferDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) IncDurability(result string) {
	if m == nil {
		return
	}
	m.durabilityTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IncAuditWrite(result string) {
	if m == nil {
		return
	}
	m.auditWritesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) SetDeadLetterBacklog(n int64) {
	if m == nil {
		return
	}
	m.deadLetterBacklog.Set(float64(n))
}

func (m *Metrics) ObserveHTTPRequest(method, path, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestSeconds.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the underlying registry, mainly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
