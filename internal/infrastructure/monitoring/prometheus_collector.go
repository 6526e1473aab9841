package monitoring

import (
	"net/http"
	"strconv"

	"roomlink/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector is the client-side ports.Metrics implementation. Each
// collector owns a registry so several clients can live in one process.
type PrometheusCollector struct {
	registry *prometheus.Registry

	participants prometheus.Gauge
	peerLinks    prometheus.Gauge
	chatMessages prometheus.Counter

	joins      *prometheus.CounterVec
	signals    *prometheus.CounterVec
	mediaBytes *prometheus.CounterVec
	requests   *prometheus.CounterVec
}

var _ ports.Metrics = (*PrometheusCollector)(nil)

func NewPrometheusCollector() *PrometheusCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &PrometheusCollector{
		registry: reg,

		participants: factory.NewGauge(prometheus.GaugeOpts{
			Name: "roomlink_room_participants",
			Help: "Participants in the currently joined room, including the local user",
		}),

		peerLinks: factory.NewGauge(prometheus.GaugeOpts{
			Name: "roomlink_peer_links",
			Help: "Open WebRTC peer links",
		}),

		chatMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "roomlink_chat_messages_received_total",
			Help: "Chat messages appended to the transcript",
		}),

		joins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "roomlink_room_joins_total",
			Help: "Room join attempts by result",
		}, []string{"result"}),

		signals: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "roomlink_signals_total",
			Help: "Signaling messages by direction and kind",
		}, []string{"direction", "kind"}),

		mediaBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "roomlink_media_received_bytes_total",
			Help: "RTP payload bytes received from remote tracks",
		}, []string{"kind"}),

		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "roomlink_api_requests_total",
			Help: "REST API requests by endpoint and status code",
		}, []string{"endpoint", "status"}),
	}
}

func (p *PrometheusCollector) RecordJoin(result string) {
	p.joins.WithLabelValues(result).Inc()
}

func (p *PrometheusCollector) SetParticipants(n int) {
	p.participants.Set(float64(n))
}

func (p *PrometheusCollector) SetPeerLinks(n int) {
	p.peerLinks.Set(float64(n))
}

func (p *PrometheusCollector) RecordChatMessage() {
	p.chatMessages.Inc()
}

func (p *PrometheusCollector) RecordSignal(direction, kind string) {
	p.signals.WithLabelValues(direction, kind).Inc()
}

func (p *PrometheusCollector) RecordMediaBytes(kind string, n int) {
	if n <= 0 {
		return
	}
	p.mediaBytes.WithLabelValues(kind).Add(float64(n))
}

// RecordRequest counts an API call; status 0 means no response arrived.
func (p *PrometheusCollector) RecordRequest(endpoint string, status int) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	p.requests.WithLabelValues(endpoint, label).Inc()
}

func (p *PrometheusCollector) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the collector's registry in the Prometheus text format.
func (p *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordJoin(string)            {}
func (NopMetrics) SetParticipants(int)          {}
func (NopMetrics) SetPeerLinks(int)             {}
func (NopMetrics) RecordChatMessage()           {}
func (NopMetrics) RecordSignal(string, string)  {}
func (NopMetrics) RecordMediaBytes(string, int) {}
func (NopMetrics) RecordRequest(string, int)    {}
