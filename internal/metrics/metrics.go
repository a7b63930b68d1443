package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "swapdesk"

// Metrics 汇总报价与下单相关指标。
type Metrics struct {
	registry *prometheus.Registry

	quotes       *prometheus.CounterVec
	quoteLatency *prometheus.HistogramVec
	orders       *prometheus.CounterVec
	orderLatency prometheus.Histogram
	inFlight     prometheus.Gauge
	refreshes    *prometheus.CounterVec
}

// New 创建独立注册表上的指标集合。
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "events_total",
			Help:      "Quote lifecycle events segmented by type.",
		}, []string{"type"}),
		quoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "latency_seconds",
			Help:      "Rate lookup latency from issue to resolution.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		}, []string{"outcome"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "order",
			Name:      "results_total",
			Help:      "Order submissions segmented by mode and outcome.",
		}, []string{"mode", "outcome"}),
		orderLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "order",
			Name:      "latency_seconds",
			Help:      "Execution service latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "order",
			Name:      "in_flight",
			Help:      "Whether an order is currently in flight.",
		}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "refresh_total",
			Help:      "Wallet and history refreshes segmented by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		m.quotes,
		m.quoteLatency,
		m.orders,
		m.orderLatency,
		m.inFlight,
		m.refreshes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry 返回底层注册表，用于暴露 /metrics。
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// QuoteEvent 记录一次报价事件，latency 为零时不计入耗时分布。
func (m *Metrics) QuoteEvent(eventType string, latencySeconds float64) {
	if m == nil {
		return
	}
	eventType = normalize(eventType)
	m.quotes.WithLabelValues(eventType).Inc()
	if latencySeconds > 0 {
		m.quoteLatency.WithLabelValues(eventType).Observe(latencySeconds)
	}
}

// OrderSubmitted 标记订单进入在途状态。
func (m *Metrics) OrderSubmitted() {
	if m == nil {
		return
	}
	m.inFlight.Set(1)
}

// OrderFinished 记录订单结果。
func (m *Metrics) OrderFinished(mode string, success bool, latencySeconds float64) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.orders.WithLabelValues(normalize(mode), outcome).Inc()
	m.orderLatency.Observe(latencySeconds)
	m.inFlight.Set(0)
}

// OrderRejected 记录因在途订单或校验失败而被拒绝的确认。
func (m *Metrics) OrderRejected(mode string) {
	if m == nil {
		return
	}
	m.orders.WithLabelValues(normalize(mode), "rejected").Inc()
}

// WalletRefresh 记录钱包刷新结果。
func (m *Metrics) WalletRefresh(success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

func normalize(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return "unknown"
	}
	return label
}
