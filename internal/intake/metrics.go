package intake

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "presence"

// Intake results used as the "result" label.
const (
	resultAccepted = "accepted"
	resultInvalid  = "invalid"
	resultStale    = "stale"
	resultFuture   = "future"
	resultFiltered = "filtered"
	resultUnknown  = "unknown_device"
	resultEmpty    = "no_properties"
)

// Metrics holds the Prometheus collectors for a Manager. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	raddecs    *prometheus.CounterVec
	attributes *prometheus.CounterVec
	events     *prometheus.CounterVec
	sinkErrors *prometheus.CounterVec
	dropped    prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. devices, if
// non-nil, backs a gauge of live devices.
func NewMetrics(reg prometheus.Registerer, devices func() int) *Metrics {
	m := &Metrics{
		raddecs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "raddecs_total",
			Help:      "Inbound raddecs by intake result.",
		}, []string{"result"}),
		attributes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "attributes_total",
			Help:      "Inbound dynambs and statids by kind and intake result.",
		}, []string{"kind", "result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_total",
			Help:      "Presence events relayed to sinks, by event tag.",
		}, []string{"event"}),
		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sink_errors_total",
			Help:      "Failed sink deliveries by sink.",
		}, []string{"sink"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "deliveries_dropped_total",
			Help:      "Deliveries dropped because the dispatch queue was full.",
		}),
	}

	reg.MustRegister(m.raddecs, m.attributes, m.events, m.sinkErrors, m.dropped)

	if devices != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "devices",
			Help:      "Devices currently held by the store.",
		}, func() float64 { return float64(devices()) }))
	}

	return m
}

func (m *Metrics) raddec(result string) {
	if m == nil {
		return
	}
	m.raddecs.WithLabelValues(result).Inc()
}

func (m *Metrics) attribute(kind, result string) {
	if m == nil {
		return
	}
	m.attributes.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) event(tag string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(tag).Inc()
}

func (m *Metrics) sinkError(sink string) {
	if m == nil {
		return
	}
	m.sinkErrors.WithLabelValues(sink).Inc()
}

func (m *Metrics) drop() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}
