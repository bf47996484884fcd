// internal/pkg/metrics/metrics.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "orderflow"

var (
	// EventsPublished 统计生命周期事件的发布结果。
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Lifecycle events published to the event channel.",
	}, []string{"routing_key", "result"})

	// MessagesConsumed 统计各消费组处理消息的结果。
	MessagesConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_consumed_total",
		Help:      "Messages handled per consumer group.",
	}, []string{"group", "routing_key", "result"})

	MessageHandleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "message_handle_duration_seconds",
		Help:      "Time spent handling one message, including settlement delay.",
		Buckets:   []float64{.005, .01, .05, .1, .5, 1, 2.5, 5, 10, 30},
	}, []string{"group"})

	SettlementOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "settlement_outcomes_total",
		Help:      "Simulated settlement outcomes.",
	}, []string{"outcome"})

	OrdersExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_expired_total",
		Help:      "Orders moved to EXPIRED by the sweeper.",
	})

	SweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweep_runs_total",
		Help:      "Expiration sweep executions.",
	}, []string{"result"})

	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_created_total",
		Help:      "Notifications persisted by the dispatcher.",
	}, []string{"type"})

	EmailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "emails_sent_total",
		Help:      "Simulated email sends.",
	}, []string{"result"})

	DeadLettered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dead_lettered_total",
		Help:      "Messages routed to a dead letter topic.",
	}, []string{"topic"})
)

// Handler 暴露 /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
