package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type WebSocketMetrics struct {
	ActiveConnections    prometheus.Gauge
	ConnectionsTotal     prometheus.Counter
	ConnectionDuration   prometheus.Histogram
	UnexpectedCloseCount prometheus.Counter
	UpgradeErrorCount    prometheus.Counter

	MessagesSent       *prometheus.CounterVec
	MessagesReceived   *prometheus.CounterVec
	BytesSent          prometheus.Counter
	BytesReceived      prometheus.Counter
	SendBufferOverflow prometheus.Counter
}

type MatchmakingMetrics struct {
	Clients          prometheus.Gauge
	AvailableClients prometheus.Gauge
	ActivePairs      prometheus.Gauge
	PairsFormed      prometheus.Counter
	PairsDissolved   *prometheus.CounterVec
	QueueWait        prometheus.Histogram
	SignalsRelayed   prometheus.Counter
	SignalBytes      prometheus.Counter
	SignalsDropped   *prometheus.CounterVec
	RetriesScheduled prometheus.Counter
	RetriesFired     *prometheus.CounterVec
}

type KafkaMetrics struct {
	EventsPublished *prometheus.CounterVec
	DeliveryErrors  prometheus.Counter
	ProduceErrors   prometheus.Counter
}

type RedisMetrics struct {
	Operations            *prometheus.CounterVec
	RedisOperationErrors  *prometheus.CounterVec
	RedisOperationLatency prometheus.Histogram
	DroppedUpdates        prometheus.Counter
}

type HttpMetrics struct {
	RequestsTotal      *prometheus.CounterVec
	ResponseStatusCode *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
}

type SystemMetrics struct {
	GoroutineCount prometheus.Gauge
}

type BusinessMetrics struct {
	MessagesByType    *prometheus.CounterVec
	MalformedMessages prometheus.Counter
	UnknownMessages   prometheus.Counter
}

type Metrics struct {
	WebSocket   WebSocketMetrics
	Matchmaking MatchmakingMetrics
	Kafka       KafkaMetrics
	Redis       RedisMetrics
	Http        HttpMetrics
	System      SystemMetrics
	Business    BusinessMetrics
}

// NewMetrics registers every metric with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		WebSocket: WebSocketMetrics{
			ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_active_connections",
				Help:      "Number of open WebSocket connections",
			}),
			ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "websocket_connections_total",
				Help:      "Total WebSocket connections accepted",
			}),
			ConnectionDuration: factory.NewHistogram(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "websocket_connection_duration_seconds",
				Help:      "Lifetime of WebSocket connections in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			}),
			UnexpectedCloseCount: factory.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "websocket_unexpected_close_total",
				Help:      "Connections closed without a close handshake",
			}),
			UpgradeErrorCount: factory.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "websocket_upgrade_errors_total",
				Help:      "Failed WebSocket upgrade attempts",
			}),
			MessagesSent: factory.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "websocket_messages_sent_total",
				Help:      "Messages queued to clients, by type",
			}, []string{"message_type"}),
			MessagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "websocket_messages_received_total",
				Help:      "Frames received from clients, by frame type",
			}, []string{"message_type"}),
			BytesSent: factory.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "websocket_bytes_sent_total",
				Help:      "Bytes written to clients",
			}),
			BytesReceived: factory.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "websocket_bytes_received_total",
				Help:      "Bytes read from clients",
			}),
			SendBufferOverflow: factory.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "websocket_send_buffer_overflow_total",
				Help:      "Messages skipped because a client's send buffer was full",
			}),
		},
		Matchmaking: MatchmakingMetrics{
			Clients: factory.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "matchmaking_clients",
				Help:      "Registered clients",
			}),
			AvailableClients: factory.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "matchmaking_available_clients",
				Help:      "Clients waiting for a partner",
			}),
			ActivePairs: factory.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "matchmaking_active_pairs",
				Help:      "Pairs currently in a session",
			}),
			PairsFormed: factory.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "matchmaking_pairs_formed_total",
				Help:      "Pairs formed",
			}),
			PairsDissolved: factory.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "matchmaking_pairs_dissolved_total",
				Help:      "Pairs dissolved, by reason",
			}, []string{"reason"}),
			QueueWait: factory.NewHistogram(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "matchmaking_queue_wait_seconds",
				Help:      "Time the initiating client spent available before being paired",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
			}),
			SignalsRelayed: factory.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "matchmaking_signals_relayed_total",
				Help:      "Signaling payloads delivered to a partner",
			}),
			SignalBytes: factory.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "matchmaking_signal_bytes_total",
				Help:      "Bytes of signaling payload relayed",
			}),
			SignalsDropped: factory.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "matchmaking_signals_dropped_total",
				Help:      "Signaling payloads dropped, by reason",
			}, []string{"reason"}),
			RetriesScheduled: factory.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "matchmaking_retries_scheduled_total",
				Help:      "Deferred re-pairing attempts scheduled",
			}),
			RetriesFired: factory.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "matchmaking_retries_fired_total",
				Help:      "Deferred re-pairing attempts executed, by outcome",
			}, []string{"outcome"}),
		},
		Kafka: KafkaMetrics{
			EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "kafka_events_published_total",
				Help:      "Session events handed to the Kafka producer, by type",
			}, []string{"event_type"}),
			DeliveryErrors: factory.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "kafka_delivery_errors_total",
				Help:      "Session events the broker failed to acknowledge",
			}),
			ProduceErrors: factory.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "kafka_produce_errors_total",
				Help:      "Session events rejected by the local producer queue",
			}),
		},
		Redis: RedisMetrics{
			Operations: factory.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "redis_operations_total",
				Help:      "Presence mirror operations executed, by type",
			}, []string{"operation"}),
			RedisOperationErrors: factory.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "redis_operation_errors_total",
				Help:      "Presence mirror operations that failed, by type",
			}, []string{"operation"}),
			RedisOperationLatency: factory.NewHistogram(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "redis_operation_latency_seconds",
				Help:      "Latency of presence mirror operations",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 8),
			}),
			DroppedUpdates: factory.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "redis_dropped_updates_total",
				Help:      "Presence updates dropped because the write buffer was full",
			}),
		},
		Http: HttpMetrics{
			RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests, by method and path",
			}, []string{"method", "path"}),
			ResponseStatusCode: factory.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_response_status_code_total",
				Help:      "HTTP responses, by status",
			}, []string{"status_code"}),
			RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
			}, []string{"path"}),
		},
		System: SystemMetrics{
			GoroutineCount: factory.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "system_goroutine_count",
				Help:      "Number of goroutines",
			}),
		},
		Business: BusinessMetrics{
			MessagesByType: factory.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "business_messages_by_type_total",
				Help:      "Client protocol messages dispatched, by type",
			}, []string{"message_type"}),
			MalformedMessages: factory.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "business_malformed_messages_total",
				Help:      "Client frames that could not be parsed",
			}),
			UnknownMessages: factory.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "business_unknown_messages_total",
				Help:      "Client messages with an unrecognized type",
			}),
		},
	}

	return m
}
