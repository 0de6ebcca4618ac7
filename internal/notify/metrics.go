package notify

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Notification outcomes recorded in metrics.
const (
	outcomeDelivered = "delivered"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
)

var (
	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "larkwatch_notifications_total",
			Help: "Notifications sent, by backend and outcome.",
		},
		[]string{"backend", "outcome"},
	)
	notificationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "larkwatch_notification_duration_seconds",
			Help:    "Notification round-trip duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)
)

func init() {
	prometheus.MustRegister(notificationsTotal)
	prometheus.MustRegister(notificationDuration)
}

// instrumented decorates a Bot with Prometheus metrics.
type instrumented struct {
	next Bot
}

// Instrument wraps bot so every Send is counted and timed.
func Instrument(bot Bot) Bot {
	if _, ok := bot.(*instrumented); ok {
		return bot
	}
	return &instrumented{next: bot}
}

func (i *instrumented) Send(ctx context.Context, ev Event) Result {
	start := time.Now()
	res := i.next.Send(ctx, ev)
	backend := i.next.Type()

	notificationDuration.WithLabelValues(backend).Observe(time.Since(start).Seconds())
	notificationsTotal.WithLabelValues(backend, outcomeOf(res)).Inc()
	return res
}

func (i *instrumented) Type() string {
	return i.next.Type()
}

func outcomeOf(res Result) string {
	switch {
	case res.Code == CodeDispatchFailure:
		return outcomeFailed
	case res.OK():
		return outcomeDelivered
	default:
		return outcomeRejected
	}
}
