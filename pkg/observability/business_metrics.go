package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Subscription lifecycle metrics
	subscriptionsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subscriptions_created_total",
		Help: "Total number of subscriptions created",
	}, []string{
		"auto_renewal", // true, false
	})

	subscriptionTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subscription_transitions_total",
		Help: "Total number of subscription status transitions",
	}, []string{
		"from", // pending, active
		"to",   // active, cancelled, expired
	})

	// Payment intent metrics
	paymentIntentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_intents_total",
		Help: "Total number of payment intent attempts",
	}, []string{
		"status", // created, failed
	})

	paymentAmountCents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_amount_cents_total",
		Help: "Total payment amount in cents (for revenue tracking)",
	}, []string{
		"status",
	})

	paymentProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "payment_processing_duration_seconds",
		Help: "Time to create a payment intent at the gateway",
		// Buckets: 100ms to 30s (typical gateway round-trip times)
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{
		"status",
	})

	// Gateway webhook metrics
	webhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Total gateway webhook events received",
	}, []string{
		"event_type",
		"outcome", // processed, ignored, error, unknown
	})

	// Broker publish metrics
	brokerPublishesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "broker_publishes_total",
		Help: "Total messages published to the event broker",
	}, []string{
		"queue",  // auth_events, notification_events
		"status", // success, failed
	})

	// Queue worker metrics
	workerMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_messages_total",
		Help: "Total queue messages processed by workers",
	}, []string{
		"queue",
		"outcome", // success, temporary_failure, permanent_failure, malformed, breaker_open
	})

	workerBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "worker_breaker_state",
		Help: "Circuit breaker state per worker (0=closed, 1=open, 2=half_open)",
	}, []string{
		"worker",
	})

	// Sweeper metrics
	sweeperRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sweeper_runs_total",
		Help: "Total expiry sweeper passes",
	}, []string{
		"status", // success, failed
	})

	sweeperExpirationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sweeper_expirations_total",
		Help: "Total subscriptions expired by the sweeper",
	}, []string{
		"auto_renewal", // true, false
	})

	sweeperRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sweeper_run_duration_seconds",
		Help:    "Duration of one sweeper pass",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
	})
)

// RecordSubscriptionCreated records a newly created subscription
func RecordSubscriptionCreated(autoRenewal bool) {
	subscriptionsCreatedTotal.WithLabelValues(boolLabel(autoRenewal)).Inc()
}

// RecordSubscriptionTransition records a subscription status transition
func RecordSubscriptionTransition(from, to string) {
	subscriptionTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordPaymentIntent records a payment intent attempt.
// Success rate is calculated in PromQL from the status label:
// sum(rate(payment_intents_total{status="created"}[5m])) / sum(rate(payment_intents_total[5m]))
func RecordPaymentIntent(status string, amountCents int64, duration float64) {
	paymentIntentsTotal.WithLabelValues(status).Inc()
	paymentAmountCents.WithLabelValues(status).Add(float64(amountCents))
	paymentProcessingDuration.WithLabelValues(status).Observe(duration)
}

// RecordWebhookEvent records a gateway webhook event and how it was handled
func RecordWebhookEvent(eventType, outcome string) {
	webhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
}

// RecordBrokerPublish records a broker publish attempt
func RecordBrokerPublish(queue string, success bool) {
	status := "success"
	if !success {
		status = "failed"
	}
	brokerPublishesTotal.WithLabelValues(queue, status).Inc()
}

// RecordWorkerMessage records the outcome of one consumed queue message
func RecordWorkerMessage(queue, outcome string) {
	workerMessagesTotal.WithLabelValues(queue, outcome).Inc()
}

// SetWorkerBreakerState updates the breaker state gauge for a worker
func SetWorkerBreakerState(worker string, state float64) {
	workerBreakerState.WithLabelValues(worker).Set(state)
}

// RecordSweep records one sweeper pass
func RecordSweep(success bool, duration float64) {
	status := "success"
	if !success {
		status = "failed"
	}
	sweeperRunsTotal.WithLabelValues(status).Inc()
	sweeperRunDuration.Observe(duration)
}

// RecordSweeperExpiration records one subscription expired by the sweeper
func RecordSweeperExpiration(autoRenewal bool) {
	sweeperExpirationsTotal.WithLabelValues(boolLabel(autoRenewal)).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
