package observability

import (
	"net/http"

	"github.com/gulon/chat-delivery-service/internal/domain/registry"
	"github.com/gulon/chat-delivery-service/internal/handler/stream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

const namespace = "chat_delivery"

var (
	_ registry.Observer = (*Metrics)(nil)
	_ stream.Observer   = (*Metrics)(nil)
)

// Metrics is the pipeline's Prometheus registry. It observes routing in the hub and record
// outcomes in the consumer.
type Metrics struct {
	reg *prometheus.Registry

	routed   *prometheus.CounterVec
	targets  *prometheus.HistogramVec
	overflow *prometheus.CounterVec
	consumed *prometheus.CounterVec
	dropped  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		routed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_routed_total",
			Help:      "Events handed to the broadcast router, by channel scope.",
		}, []string{"scope"}),
		targets: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "route_targets",
			Help:      "Sessions addressed per routed event.",
			Buckets:   []float64{0, 1, 2, 5, 10, 50, 100, 500},
		}, []string{"scope"}),
		overflow: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_overflow_total",
			Help:      "Events rejected because a channel mailbox was full.",
		}, []string{"scope"}),
		consumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_consumed_total",
			Help:      "Log records decoded and routed, by topic.",
		}, []string{"topic"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Log records dropped by the consumer, by topic and reason.",
		}, []string{"topic", "reason"}),
	}

	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.routed, m.targets, m.overflow, m.consumed, m.dropped,
	)
	return m
}

func (m *Metrics) ObserveRouted(scope string, targets int) {
	m.routed.WithLabelValues(scope).Inc()
	m.targets.WithLabelValues(scope).Observe(float64(targets))
}

func (m *Metrics) ObserveOverflow(scope string) {
	m.overflow.WithLabelValues(scope).Inc()
}

func (m *Metrics) ObserveConsumed(topic string) {
	m.consumed.WithLabelValues(topic).Inc()
}

func (m *Metrics) ObserveDropped(topic, reason string) {
	m.dropped.WithLabelValues(topic, reason).Inc()
}

// RegisterHub exposes live connection gauges read from the hub at scrape time.
func (m *Metrics) RegisterHub(h registry.Hubber) {
	m.reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Live sessions registered on this instance.",
		}, func() float64 { return float64(h.Stats().TotalConnections) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channels",
			Help:      "Channels with at least one subscriber.",
		}, func() float64 { return float64(h.Stats().TotalChannels) }),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

var Module = fx.Module("observability",
	fx.Provide(
		NewMetrics,
		func(m *Metrics) registry.Observer { return m },
		func(m *Metrics) stream.Observer { return m },
	),
	fx.Invoke(func(m *Metrics, h registry.Hubber) {
		m.RegisterHub(h)
	}),
)
