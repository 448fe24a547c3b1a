package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the hub.
//
// Naming convention: namespace_subsystem_name
// - namespace: hermes (application-level grouping)
// - subsystem: websocket, broker, voice (feature-level grouping)
//
// Metric Types:
// - Gauge: current state (connections, rooms, peers)
// - Counter: cumulative events (events published, evictions)
// - Histogram: latency distributions (publish fan-out time)

var (
	// ActiveWebSocketConnections tracks the current number of active text-channel subscribers
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "hermes",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket subscriber connections",
	})

	// BrokerEvents counts events published through the Broker by type
	BrokerEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hermes",
		Subsystem: "broker",
		Name:      "events_total",
		Help:      "Total events published through the Broker",
	}, []string{"event_type"})

	// BrokerEvictions counts subscribers evicted because their outbound queue overflowed
	BrokerEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hermes",
		Subsystem: "broker",
		Name:      "slow_subscriber_evictions_total",
		Help:      "Subscribers evicted for a full outbound queue",
	})

	// PublishDuration tracks the time spent fanning an event out to a channel's subscribers
	PublishDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hermes",
		Subsystem: "broker",
		Name:      "publish_seconds",
		Help:      "Time spent fanning out one event",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
	}, []string{"event_type"})

	// ActiveVoiceRooms tracks the current number of live voice rooms
	ActiveVoiceRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "hermes",
		Subsystem: "voice",
		Name:      "rooms_active",
		Help:      "Current number of active voice rooms",
	})

	// VoiceRoomPeers tracks the number of peers in each voice room
	VoiceRoomPeers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "hermes",
		Subsystem: "voice",
		Name:      "peers_count",
		Help:      "Number of peers in each voice room",
	}, []string{"channel_id"})

	// WebrtcConnectionAttempts counts WebRTC offer/answer exchanges by outcome
	WebrtcConnectionAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hermes",
		Subsystem: "voice",
		Name:      "connection_attempts_total",
		Help:      "Total WebRTC connection attempts",
	}, []string{"status"})

	// CircuitBreakerState tracks the redis circuit breaker (0=closed, 1=open, 2=half-open)
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "hermes",
		Subsystem: "broker",
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state per backend",
	}, []string{"backend"})

	// CircuitBreakerFailures counts operations dropped by an open circuit breaker
	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hermes",
		Subsystem: "broker",
		Name:      "circuit_breaker_failures_total",
		Help:      "Operations rejected by an open circuit breaker",
	}, []string{"backend"})
)

func IncConnection() {
	ActiveWebSocketConnections.Inc()
}

func DecConnection() {
	ActiveWebSocketConnections.Dec()
}
