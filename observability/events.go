package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"promisevault/core/types"
)

type eventMetrics struct {
	published *prometheus.CounterVec
	receipts  prometheus.Histogram
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the registry counting ledger events as receipts commit.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			published: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "promisevault",
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Committed ledger events by module and type.",
			}, []string{"module", "type"}),
			receipts: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "promisevault",
				Subsystem: "events",
				Name:      "per_receipt",
				Help:      "Number of events carried by each committed receipt.",
				Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64},
			}),
		}
		prometheus.MustRegister(eventRegistry.published, eventRegistry.receipts)
	})
	return eventRegistry
}

// RecordReceipt counts every event of receipt. The module label is the
// event type up to its first dot, so "promise.claimed" counts under
// "promise".
func (m *eventMetrics) RecordReceipt(receipt *types.Receipt) {
	if m == nil || receipt == nil {
		return
	}
	m.receipts.Observe(float64(len(receipt.Events)))
	for _, evt := range receipt.Events {
		if evt == nil {
			continue
		}
		eventType := strings.ToLower(strings.TrimSpace(evt.Type))
		if eventType == "" {
			eventType = "unknown"
		}
		module, _, _ := strings.Cut(eventType, ".")
		m.published.WithLabelValues(module, eventType).Inc()
	}
}
