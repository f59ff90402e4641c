package observability

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

type rpcMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	rpcMetricsOnce sync.Once
	rpcRegistry    *rpcMetrics

	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics
)

// RPC returns the lazily-initialised registry used to record JSON-RPC
// activity.
func RPC() *rpcMetrics {
	rpcMetricsOnce.Do(func() {
		rpcRegistry = &rpcMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "promisevault",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "promisevault",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by method and error code.",
			}, []string{"method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "promisevault",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "promisevault",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected by the per-client rate limiter.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			rpcRegistry.requests,
			rpcRegistry.errors,
			rpcRegistry.latency,
			rpcRegistry.throttles,
		)
	})
	return rpcRegistry
}

// Observe records one JSON-RPC call. code is zero for successful calls.
func (m *rpcMetrics) Observe(method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if code != 0 {
		outcome = "error"
		m.errors.WithLabelValues(method, fmt.Sprintf("%d", code)).Inc()
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit".
func (m *rpcMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}

// LedgerMetrics tracks transaction execution and treasury obligations.
type LedgerMetrics struct {
	transactions *prometheus.CounterVec
	instructions *prometheus.CounterVec
	failures     *prometheus.CounterVec
	duration     prometheus.Histogram
	sequence     prometheus.Gauge
	obligations  *prometheus.GaugeVec
	custody      *prometheus.GaugeVec
}

// Ledger returns the metrics registry for the ledger runtime.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "promisevault",
				Subsystem: "ledger",
				Name:      "transactions_total",
				Help:      "Executed transactions segmented by outcome.",
			}, []string{"outcome"}),
			instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "promisevault",
				Subsystem: "ledger",
				Name:      "instructions_total",
				Help:      "Executed instructions segmented by kind and outcome.",
			}, []string{"kind", "outcome"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "promisevault",
				Subsystem: "ledger",
				Name:      "failures_total",
				Help:      "Failed transactions segmented by error category.",
			}, []string{"category"}),
			duration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "promisevault",
				Subsystem: "ledger",
				Name:      "execution_duration_seconds",
				Help:      "Time spent executing a transaction including commit.",
				Buckets:   prometheus.DefBuckets,
			}),
			sequence: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "promisevault",
				Subsystem: "ledger",
				Name:      "sequence",
				Help:      "Number of committed transactions.",
			}),
			obligations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "promisevault",
				Subsystem: "treasury",
				Name:      "non_claimed",
				Help:      "Outstanding promised amount per treasury.",
			}, []string{"treasury"}),
			custody: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "promisevault",
				Subsystem: "treasury",
				Name:      "custody_balance",
				Help:      "Custody account balance backing each treasury.",
			}, []string{"treasury"}),
		}
		prometheus.MustRegister(
			ledgerRegistry.transactions,
			ledgerRegistry.instructions,
			ledgerRegistry.failures,
			ledgerRegistry.duration,
			ledgerRegistry.sequence,
			ledgerRegistry.obligations,
			ledgerRegistry.custody,
		)
	})
	return ledgerRegistry
}

// ObserveTransaction records a transaction outcome. category is empty for
// committed transactions.
func (m *LedgerMetrics) ObserveTransaction(category string, sequence uint64, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.duration.Observe(elapsed.Seconds())
	if category == "" {
		m.transactions.WithLabelValues("committed").Inc()
		m.sequence.Set(float64(sequence))
		return
	}
	m.transactions.WithLabelValues("rejected").Inc()
	m.failures.WithLabelValues(category).Inc()
}

// ObserveInstruction records the outcome of one instruction.
func (m *LedgerMetrics) ObserveInstruction(kind string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.instructions.WithLabelValues(kind, outcome).Inc()
}

// RecordTreasury updates the obligation and custody gauges for a treasury.
func (m *LedgerMetrics) RecordTreasury(treasury string, nonClaimed, custody *uint256.Int) {
	if m == nil || treasury == "" {
		return
	}
	m.obligations.WithLabelValues(treasury).Set(uintToFloat(nonClaimed))
	m.custody.WithLabelValues(treasury).Set(uintToFloat(custody))
}

// ForgetTreasury drops the gauges of a closed treasury.
func (m *LedgerMetrics) ForgetTreasury(treasury string) {
	if m == nil {
		return
	}
	m.obligations.DeleteLabelValues(treasury)
	m.custody.DeleteLabelValues(treasury)
}

func uintToFloat(value *uint256.Int) float64 {
	if value == nil {
		return 0
	}
	f := value.Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
