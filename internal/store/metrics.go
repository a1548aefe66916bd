package store

import "github.com/prometheus/client_golang/prometheus"

// Metrics records store activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	loads       *prometheus.CounterVec
	persists    *prometheus.CounterVec
	broadcasts  *prometheus.CounterVec
	deliveries  *prometheus.CounterVec
	subscribers *prometheus.GaugeVec
}

// NewMetrics creates the store collectors and registers them with reg when
// reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weightlog",
			Subsystem: "store",
			Name:      "loads_total",
			Help:      "Successful loads of a store file into memory.",
		}, []string{"store"}),
		persists: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weightlog",
			Subsystem: "store",
			Name:      "persists_total",
			Help:      "Attempts to persist a store file, by result.",
		}, []string{"store", "result"}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weightlog",
			Subsystem: "store",
			Name:      "broadcasts_total",
			Help:      "Committed changes broadcast to subscribers.",
		}, []string{"store"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weightlog",
			Subsystem: "store",
			Name:      "deliveries_total",
			Help:      "Snapshots queued on individual subscriptions.",
		}, []string{"store"}),
		subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "weightlog",
			Subsystem: "store",
			Name:      "subscribers",
			Help:      "Live subscriptions.",
		}, []string{"store"}),
	}
	if reg != nil {
		reg.MustRegister(m.loads, m.persists, m.broadcasts, m.deliveries, m.subscribers)
	}
	return m
}

func (m *Metrics) loaded(store string) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(store).Inc()
}

func (m *Metrics) persisted(store string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.persists.WithLabelValues(store, result).Inc()
}

func (m *Metrics) broadcast(store string, receivers int) {
	if m == nil {
		return
	}
	m.broadcasts.WithLabelValues(store).Inc()
	m.deliveries.WithLabelValues(store).Add(float64(receivers))
}

func (m *Metrics) setSubscribers(store string, n int) {
	if m == nil {
		return
	}
	m.subscribers.WithLabelValues(store).Set(float64(n))
}
