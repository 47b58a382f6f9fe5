package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 自定义业务指标
type AppMetrics struct {
	TCPAccepted         prometheus.Counter
	TCPBytesReceived    prometheus.Counter
	SerialBytesReceived prometheus.Counter
	FrameParseTotal     *prometheus.CounterVec // labels: result=ok|checksum_error
	FrameRouteTotal     *prometheus.CounterVec // labels: cmd
	ChecksumFailTotal   prometheus.Counter
	OutboundSentTotal   *prometheus.CounterVec // labels: result=sent|acked|retry|dead|write_error
	OnlineGauge         prometheus.Gauge       // 当前在线设备数
	TelemetryTotal      prometheus.Counter
	WebhookPushTotal    *prometheus.CounterVec // labels: event, result=success|failed|dedup
	WebhookPushDuration prometheus.Histogram
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg prometheus.Registerer) *AppMetrics {
	m := &AppMetrics{
		TCPAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcp_accept_total",
			Help: "Total accepted TCP connections.",
		}),
		TCPBytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcp_bytes_received_total",
			Help: "Total bytes received over TCP.",
		}),
		SerialBytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "serial_bytes_received_total",
			Help: "Total bytes received over the serial link.",
		}),
		FrameParseTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drive_frame_parse_total",
			Help: "Drive frame parse attempts.",
		}, []string{"result"}),
		FrameRouteTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drive_route_total",
			Help: "Drive frames routed by command type.",
		}, []string{"cmd"}),
		ChecksumFailTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drive_checksum_fail_total",
			Help: "Frames dropped because of a checksum mismatch.",
		}),
		OutboundSentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbound_sent_total",
			Help: "Downlink command outcomes.",
		}, []string{"result"}),
		OnlineGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "session_online_count",
			Help: "Current number of online robots.",
		}),
		TelemetryTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_received_total",
			Help: "Telemetry responses received.",
		}),
		WebhookPushTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_push_total",
			Help: "Robot event webhook deliveries.",
		}, []string{"event", "result"}),
		WebhookPushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "webhook_push_duration_seconds",
			Help:    "Robot event webhook delivery latency.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
	}
	reg.MustRegister(
		m.TCPAccepted, m.TCPBytesReceived, m.SerialBytesReceived,
		m.FrameParseTotal, m.FrameRouteTotal, m.ChecksumFailTotal,
		m.OutboundSentTotal, m.OnlineGauge, m.TelemetryTotal,
		m.WebhookPushTotal, m.WebhookPushDuration,
	)
	return m
}

// ObserveParse 记录一次帧解析结果
func (m *AppMetrics) ObserveParse(result string) {
	if m == nil {
		return
	}
	m.FrameParseTotal.WithLabelValues(result).Inc()
	if result == "checksum_error" {
		m.ChecksumFailTotal.Inc()
	}
}

// ObserveOutbound 记录下行结果
func (m *AppMetrics) ObserveOutbound(result string) {
	if m == nil {
		return
	}
	m.OutboundSentTotal.WithLabelValues(result).Inc()
}

// ObserveWebhook 记录一次事件推送
func (m *AppMetrics) ObserveWebhook(event, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.WebhookPushTotal.WithLabelValues(event, result).Inc()
	if elapsed > 0 {
		m.WebhookPushDuration.Observe(elapsed.Seconds())
	}
}
