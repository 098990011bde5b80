package observability

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	rpcRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hdmicec",
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "JSON-RPC requests by method and outcome.",
		},
		[]string{"method", "success"},
	)
	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hdmicec",
			Subsystem: "rpc",
			Name:      "notifications_total",
			Help:      "Notifications emitted by the CEC service.",
		},
		[]string{"event"},
	)
	frames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hdmicec",
			Subsystem: "cec",
			Name:      "frames_total",
			Help:      "CEC frames sent and received.",
		},
		[]string{"direction"},
	)
	subscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hdmicec",
			Subsystem: "rpc",
			Name:      "websocket_connections",
			Help:      "Open JSON-RPC websocket connections.",
		},
	)
)

const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(rpcRequests, notifications, frames, subscribers)
	})
}

func RecordRequest(method string, success bool) {
	RegisterMetrics()
	rpcRequests.WithLabelValues(method, strconv.FormatBool(success)).Inc()
}

func RecordNotification(event string) {
	RegisterMetrics()
	notifications.WithLabelValues(event).Inc()
}

func RecordFrame(direction string) {
	RegisterMetrics()
	frames.WithLabelValues(direction).Inc()
}

func ConnectionOpened() {
	RegisterMetrics()
	subscribers.Inc()
}

func ConnectionClosed() {
	RegisterMetrics()
	subscribers.Dec()
}
