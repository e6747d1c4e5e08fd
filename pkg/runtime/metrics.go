package runtime

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records statement and transaction metrics. A nil *Metrics is a no-op.
type Metrics struct {
	statements *prometheus.HistogramVec
	errors     *prometheus.CounterVec
	txs        *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		statements: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pebble_catalog",
			Name:      "statement_duration_seconds",
			Help:      "Duration of statements sent to the store.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pebble_catalog",
			Name:      "statement_errors_total",
			Help:      "Statements that returned an error.",
		}, []string{"kind"}),
		txs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pebble_catalog",
			Name:      "transactions_total",
			Help:      "Finished transactions by outcome.",
		}, []string{"outcome"}),
	}

	var err error
	if m.statements, err = register(reg, m.statements); err != nil {
		return nil, err
	}
	if m.errors, err = register(reg, m.errors); err != nil {
		return nil, err
	}
	if m.txs, err = register(reg, m.txs); err != nil {
		return nil, err
	}
	return m, nil
}

// register reuses an identical collector registered earlier, so several DBs
// can share one registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) observeStatement(e QueryEvent) {
	if m == nil {
		return
	}
	m.statements.WithLabelValues(e.Kind).Observe(e.Duration.Seconds())
	if e.Err != nil {
		m.errors.WithLabelValues(e.Kind).Inc()
	}
}

func (m *Metrics) observeTx(outcome string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		outcome += "_failed"
	}
	m.txs.WithLabelValues(outcome).Inc()
}
