// Package metrics exposes Prometheus collectors for batch runs. Collectors
// are fed from the lifecycle event bus, so the executor never touches them.
package metrics

import (
	"errors"

	"tgbatch/internal/bus"
	"tgbatch/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tgbatch"

// Metrics groups the collectors for one registry.
type Metrics struct {
	items            *prometheus.CounterVec
	records          *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	batches          *prometheus.CounterVec
	failures         *prometheus.CounterVec
}

// MustNew builds the collectors and registers them with reg. A nil reg
// means the default registerer. Registration errors panic.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Items processed, by operation and terminal state.",
		}, []string{"operation", "state"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_records_total",
			Help:      "Output records produced, by operation.",
		}, []string{"operation"}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent in Bot API calls.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"operation"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Batches run, by operation and result.",
		}, []string{"operation", "result"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "item_failures_total",
			Help:      "Failed items, by operation and error kind.",
		}, []string{"operation", "kind"}),
	}
	reg.MustRegister(m.items, m.records, m.dispatchDuration, m.batches, m.failures)
	return m
}

// Attach subscribes the collectors to eb.
func (m *Metrics) Attach(eb *bus.EventBus) {
	eb.On(bus.EventItemState, m.observeItem)
	eb.On(bus.EventBatchFinished, m.observeBatch)
}

func (m *Metrics) observeItem(e bus.Event) {
	if !e.State.Terminal() {
		return
	}
	op := e.Operation.String()
	m.items.WithLabelValues(op, e.State.String()).Inc()
	if e.Duration > 0 {
		m.dispatchDuration.WithLabelValues(op).Observe(e.Duration.Seconds())
	}
	if e.State == domain.StateSucceeded {
		m.records.WithLabelValues(op).Add(float64(len(e.Outcomes)))
		return
	}
	m.failures.WithLabelValues(op, ErrorKind(e.Err)).Inc()
}

func (m *Metrics) observeBatch(e bus.Event) {
	result := "completed"
	if e.Err != nil {
		result = "aborted"
	}
	m.batches.WithLabelValues(e.Operation.String(), result).Inc()
}

// ErrorKind classifies an item error for labelling.
func ErrorKind(err error) string {
	var (
		verr *domain.ValidationError
		uerr *domain.UnsupportedOperationError
		terr *domain.TransportError
	)
	switch {
	case err == nil:
		return "none"
	case errors.As(err, &verr):
		return "validation"
	case errors.As(err, &uerr):
		return "unsupported_operation"
	case errors.As(err, &terr):
		return "transport"
	default:
		return "other"
	}
}

// WriteTextfile writes every metric gathered by g to path in the text
// exposition format, for node_exporter's textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
