package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	framesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esub",
			Subsystem: "session",
			Name:      "frames_sent_total",
			Help:      "Frames written to persistent connections.",
		},
		[]string{"direction", "kind"},
	)
	framesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esub",
			Subsystem: "session",
			Name:      "frames_received_total",
			Help:      "Frames read from persistent connections.",
		},
		[]string{"direction"},
	)
	probesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "esub",
			Subsystem: "session",
			Name:      "keepalive_probes_total",
			Help:      "Keepalive probes written on idle connections.",
		},
	)
	sessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "esub",
			Subsystem: "session",
			Name:      "duration_seconds",
			Help:      "Persistent session lifetime in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		},
		[]string{"direction", "outcome"},
	)
	oneShotRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esub",
			Subsystem: "oneshot",
			Name:      "requests_total",
			Help:      "One-shot sub/rep requests by outcome.",
		},
		[]string{"op", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			framesSent, framesReceived, probesSent, sessionDuration, oneShotRequests,
		)
	})
}

// Session directions and frame kinds used as metric labels.
const (
	DirectionSubscribe = "subscribe"
	DirectionPublish   = "publish"

	FrameKindData = "data"
	FrameKindAck  = "ack"
)

func RecordFrameSent(direction, kind string) {
	RegisterMetrics()
	framesSent.WithLabelValues(direction, kind).Inc()
}

func RecordFrameReceived(direction string) {
	RegisterMetrics()
	framesReceived.WithLabelValues(direction).Inc()
}

func RecordProbe() {
	RegisterMetrics()
	probesSent.Inc()
}

func RecordSession(direction string, outcome string, d time.Duration) {
	RegisterMetrics()
	sessionDuration.WithLabelValues(direction, outcome).Observe(d.Seconds())
}

func RecordOneShot(op string, status int) {
	RegisterMetrics()
	oneShotRequests.WithLabelValues(op, strconv.Itoa(status)).Inc()
}
