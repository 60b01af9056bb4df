package common

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OperationMetrics tracks filesystem and journal activity in Prometheus.
//
// All metrics use the umfs_ prefix. A nil *OperationMetrics is valid and
// records nothing, so components can run without a registry.
type OperationMetrics struct {
	// OperationsTotal counts operation-interface calls by op and outcome
	OperationsTotal *prometheus.CounterVec

	// JournalDepth tracks the size of each history stack
	JournalDepth *prometheus.GaugeVec

	// HistoryMoves counts successful undo and redo transitions
	HistoryMoves *prometheus.CounterVec
}

// NewOperationMetrics creates the metrics and registers them on reg.
// If a collector with the same name is already registered the existing one
// is reused.
func NewOperationMetrics(reg prometheus.Registerer) *OperationMetrics {
	m := &OperationMetrics{
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "umfs_operations_total",
				Help: "Total filesystem operations by operation and status",
			},
			[]string{"op", "status"},
		),
		JournalDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "umfs_journal_depth",
				Help: "Current number of batches on each journal stack",
			},
			[]string{"stack"}, // "undo", "redo_source", "redo_after_undo"
		),
		HistoryMoves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "umfs_history_moves_total",
				Help: "Total undo and redo transitions applied",
			},
			[]string{"direction"},
		),
	}

	m.OperationsTotal = registerOrReuse(reg, m.OperationsTotal).(*prometheus.CounterVec)
	m.JournalDepth = registerOrReuse(reg, m.JournalDepth).(*prometheus.GaugeVec)
	m.HistoryMoves = registerOrReuse(reg, m.HistoryMoves).(*prometheus.CounterVec)
	return m
}

// Observe counts one call of op with its outcome.
func (m *OperationMetrics) Observe(op string, err error) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(op, ErrorCode(err)).Inc()
}

// JournalDepths implements journal.Observer.
func (m *OperationMetrics) JournalDepths(undo, redoSource, redoAfterUndo int) {
	if m == nil {
		return
	}
	m.JournalDepth.WithLabelValues("undo").Set(float64(undo))
	m.JournalDepth.WithLabelValues("redo_source").Set(float64(redoSource))
	m.JournalDepth.WithLabelValues("redo_after_undo").Set(float64(redoAfterUndo))
}

// HistoryMoved implements journal.Observer.
func (m *OperationMetrics) HistoryMoved(direction string) {
	if m == nil {
		return
	}
	m.HistoryMoves.WithLabelValues(direction).Inc()
}

// registerOrReuse registers c, returning the already-registered collector
// when an identical one exists. Panics on any other registration failure.
func registerOrReuse(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}
