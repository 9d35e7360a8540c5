package multiplex

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultOK       = "ok"
	resultNotFound = "not_found"
	resultError    = "error"
)

type metrics struct {
	operations     *prometheus.CounterVec
	collisions     prometheus.Counter
	repairs        prometheus.Counter
	orphanedCopies prometheus.Counter
	changes        *prometheus.CounterVec
}

func newMetrics(registerer prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kvmux",
			Name:      "operations_total",
			Help:      "Logical operations by operation and result.",
		}, []string{"operation", "result"}),
		collisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kvmux",
			Name:      "collisions_total",
			Help:      "Reads whose replicas disagreed.",
		}),
		repairs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kvmux",
			Name:      "repairs_total",
			Help:      "Missing physical copies rewritten by reads.",
		}),
		orphanedCopies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kvmux",
			Name:      "orphaned_copies_total",
			Help:      "Physical copies left behind by overwriting puts.",
		}),
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kvmux",
			Name:      "changes_total",
			Help:      "Logical changes published by source.",
		}, []string{"source"}),
	}

	if registerer == nil {
		return m, nil
	}

	for _, collector := range []prometheus.Collector{m.operations, m.collisions, m.repairs, m.orphanedCopies, m.changes} {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *metrics) observe(operation string, err error) {
	result := resultOK

	if IsNotFound(err) {
		result = resultNotFound
	} else if err != nil {
		result = resultError
	}

	m.operations.WithLabelValues(operation, result).Inc()
}
