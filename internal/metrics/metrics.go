package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhooksReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shiprelay_webhooks_received_total",
			Help: "Carrier webhook notifications accepted by the gateway",
		},
	)

	WebhooksRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiprelay_webhooks_rejected_total",
			Help: "Carrier webhook notifications rejected before processing",
		},
		[]string{"reason"},
	)

	ResponsesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiprelay_responses_published_total",
			Help: "Status responses published to the bus by channel",
		},
		[]string{"channel", "status"},
	)

	ResponsesSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiprelay_responses_suppressed_total",
			Help: "Status updates dropped before publishing",
		},
		[]string{"channel", "reason"},
	)

	RegistrationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shiprelay_registrations_created_total",
			Help: "Trackings registered with the carrier cloud",
		},
	)

	RegistrationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiprelay_registrations_failed_total",
			Help: "Tracking registrations that ended in an error row",
		},
		[]string{"retriable"},
	)

	PollCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shiprelay_poll_cycle_duration_seconds",
			Help:    "Wall time of one stale-tracking poll cycle",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	RetryReplays = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shiprelay_retry_replays_total",
			Help: "Failed registrations replayed onto the retry topic",
		},
	)
)
