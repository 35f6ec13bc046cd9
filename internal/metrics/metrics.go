// file: internal/metrics/metrics.go
// version: 1.1.0
// guid: 4d9f2b7e-6a1c-4e8d-9b3f-7c0a5e2d8f4b

package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	operationStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bookplayer",
		Name:      "operations_started_total",
		Help:      "Total number of operations started by type",
	}, []string{"type"})
	operationCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bookplayer",
		Name:      "operations_completed_total",
		Help:      "Total number of operations successfully completed by type",
	}, []string{"type"})
	operationFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bookplayer",
		Name:      "operations_failed_total",
		Help:      "Total number of operations failed by type",
	}, []string{"type"})
	operationCanceled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bookplayer",
		Name:      "operations_canceled_total",
		Help:      "Total number of operations canceled by type",
	}, []string{"type"})
	operationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bookplayer",
		Name:      "operation_duration_seconds",
		Help:      "Histogram of operation durations in seconds by type",
		Buckets:   prometheus.ExponentialBuckets(0.05, 1.6, 10),
	}, []string{"type"})

	syncPassStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bookplayer",
		Name:      "sync_passes_started_total",
		Help:      "Total number of sync passes started",
	})
	syncPassSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bookplayer",
		Name:      "sync_passes_skipped_total",
		Help:      "Total number of sync passes skipped by the interval gate",
	})
	syncConflicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bookplayer",
		Name:      "sync_conflicts_total",
		Help:      "Total number of last-played conflicts surfaced by kind",
	}, []string{"kind"})

	itemsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "bookplayer",
		Name:      "library_items_total",
		Help:      "Current total number of items in the library tree",
	})
)

// Register registers all collectors with the default registry. Safe to call
// more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			operationStarted, operationCompleted, operationFailed,
			operationCanceled, operationDuration,
			syncPassStarted, syncPassSkipped, syncConflicts,
			itemsGauge,
		)
	})
}

// IncOperationStarted increments started operations for a type.
func IncOperationStarted(opType string) { operationStarted.WithLabelValues(opType).Inc() }

// IncOperationCompleted increments completed operations for a type.
func IncOperationCompleted(opType string) { operationCompleted.WithLabelValues(opType).Inc() }

// IncOperationFailed increments failed operations for a type.
func IncOperationFailed(opType string) { operationFailed.WithLabelValues(opType).Inc() }

// IncOperationCanceled increments canceled operations for a type.
func IncOperationCanceled(opType string) { operationCanceled.WithLabelValues(opType).Inc() }

// ObserveOperationDuration records an operation's wall time.
func ObserveOperationDuration(opType string, d time.Duration) {
	operationDuration.WithLabelValues(opType).Observe(d.Seconds())
}

// IncSyncPassStarted increments started sync passes.
func IncSyncPassStarted() { syncPassStarted.Inc() }

// IncSyncPassSkipped increments sync passes skipped by the interval gate.
func IncSyncPassSkipped() { syncPassSkipped.Inc() }

// IncSyncConflict increments surfaced conflicts by kind.
func IncSyncConflict(kind string) { syncConflicts.WithLabelValues(kind).Inc() }

// SetItemsTotal updates the library size gauge.
func SetItemsTotal(n int) { itemsGauge.Set(float64(n)) }
