package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	OperationsTotal *prometheus.CounterVec
	EventsEmitted   prometheus.Counter
	PoolBalance     *prometheus.GaugeVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		OperationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "brickshare_operations_total",
			Help: "Total operations processed, by component, operation, and outcome.",
		}, []string{"component", "operation", "outcome"}),
		EventsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "brickshare_events_emitted_total",
			Help: "Total operation events emitted to the event stream.",
		}),
		PoolBalance: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "brickshare_pool_balance",
			Help: "Current currency pool balance per component, in ledger units.",
		}, []string{"component"}),
	}
}

// ObserveOperation records one operation outcome. Nil-safe so services can
// run without metrics in tests.
func (m *Metrics) ObserveOperation(component, operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
	}
	m.OperationsTotal.WithLabelValues(component, operation, outcome).Inc()
}

// SetPool records the current pool balance for a component.
func (m *Metrics) SetPool(component string, balance uint64) {
	if m == nil {
		return
	}
	m.PoolBalance.WithLabelValues(component).Set(float64(balance))
}

// IncEventsEmitted bumps the emitted-events counter.
func (m *Metrics) IncEventsEmitted() {
	if m == nil {
		return
	}
	m.EventsEmitted.Inc()
}
