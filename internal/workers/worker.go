package workers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/subwave/billing-service/internal/adapters/rabbitmq"
	"github.com/subwave/billing-service/pkg/observability"
	"github.com/subwave/billing-service/pkg/resilience"
	"github.com/subwave/billing-service/pkg/shutdown"
)

// Handler processes one delivery from its queue.
type Handler interface {
	// Queue returns the queue this handler consumes.
	Queue() string
	// HandleEvent delivers one message to the sidecar. Errors must be a
	// PermanentWorkerError or a TemporaryWorkerError; anything else is
	// treated as permanent.
	HandleEvent(ctx context.Context, body []byte) error
}

var errBreakerOpen = errors.New("circuit breaker open")

// Worker drives a single-queue consumer through the per-message pipeline:
// breaker gate, JSON decode, handler dispatch, then ack, requeue, or
// reject into the DLQ depending on the error class. One delivery is in
// flight at a time.
type Worker struct {
	client  *rabbitmq.Client
	handler Handler
	breaker *resilience.CircuitBreaker
	tracker *shutdown.InFlightTracker
	logger  *zap.Logger
	backoff resilience.BackoffStrategy
}

// NewWorker creates a worker for the handler's queue with its own circuit
// breaker. The tracker is shared by the hosting process so shutdown can
// wait for deliveries still being handled.
func NewWorker(client *rabbitmq.Client, handler Handler, tracker *shutdown.InFlightTracker, logger *zap.Logger) *Worker {
	queue := handler.Queue()

	breaker := resilience.NewCircuitBreaker(resilience.DefaultFailureThreshold, resilience.DefaultRecoveryTimeout)
	breaker.OnStateChange(func(from, to resilience.BreakerState) {
		logger.Warn("Worker circuit breaker state changed",
			zap.String("queue", queue),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
		observability.SetWorkerBreakerState(queue, float64(to))
	})
	observability.SetWorkerBreakerState(queue, float64(resilience.BreakerClosed))

	return &Worker{
		client:  client,
		handler: handler,
		breaker: breaker,
		tracker: tracker,
		logger:  logger,
		backoff: resilience.BrokerReconnectBackoff(),
	}
}

// Run consumes the queue until ctx is cancelled, reopening the consumer
// after connection loss or a breaker trip.
func (w *Worker) Run(ctx context.Context) {
	queue := w.handler.Queue()
	attempt := 0

	for {
		err := w.consume(ctx)
		if ctx.Err() != nil {
			w.logger.Info("Worker stopped", zap.String("queue", queue))
			return
		}

		if errors.Is(err, errBreakerOpen) {
			attempt = 0
		} else if err != nil {
			w.logger.Warn("Consumer interrupted",
				zap.String("queue", queue),
				zap.Error(err),
			)
			attempt++
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.backoff.NextDelay(attempt)):
		}

		// Reopening the consumer while the breaker still rejects would
		// spin on the same delivery.
		for !w.breaker.CanExecute() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.backoff.NextDelay(0)):
			}
		}
	}
}

// consume runs one consumer session. It returns when the delivery channel
// closes, the breaker rejects, or ctx is cancelled.
func (w *Worker) consume(ctx context.Context) error {
	consumeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	deliveries, err := w.client.Consume(consumeCtx, w.handler.Queue())
	if err != nil {
		return err
	}

	w.logger.Info("Worker consuming", zap.String("queue", w.handler.Queue()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			if !w.breaker.CanExecute() {
				// Leave the delivery unacked and walk away; the broker
				// requeues it once the consumer is gone and redelivers
				// after the breaker's recovery window.
				return errBreakerOpen
			}
			if !w.tracker.Add() {
				// Shutdown began between deliveries.
				return nil
			}
			w.process(ctx, &d)
			w.tracker.Done()
		}
	}
}

// process settles a single delivery: ack on success, nack-requeue on a
// temporary failure, reject into the DLQ otherwise.
func (w *Worker) process(ctx context.Context, d *amqp.Delivery) {
	queue := w.handler.Queue()

	if !json.Valid(d.Body) {
		w.logger.Error("Rejecting undecodable delivery", zap.String("queue", queue))
		if err := d.Reject(false); err != nil {
			w.logger.Error("Reject failed", zap.String("queue", queue), zap.Error(err))
		}
		observability.RecordWorkerMessage(queue, "rejected")
		return
	}

	err := w.handler.HandleEvent(ctx, d.Body)
	if err == nil {
		w.breaker.RecordSuccess()
		if err := d.Ack(false); err != nil {
			w.logger.Error("Ack failed", zap.String("queue", queue), zap.Error(err))
		}
		observability.RecordWorkerMessage(queue, "success")
		return
	}

	var temporary *TemporaryWorkerError
	if errors.As(err, &temporary) {
		w.breaker.RecordFailure()
		w.logger.Warn("Requeueing delivery after transient failure",
			zap.String("queue", queue),
			zap.Error(err),
		)
		if err := d.Nack(false, true); err != nil {
			w.logger.Error("Nack failed", zap.String("queue", queue), zap.Error(err))
		}
		observability.RecordWorkerMessage(queue, "requeued")
		return
	}

	// Permanent failures and malformed payloads go to the DLQ. They do
	// not count against the breaker.
	w.logger.Error("Rejecting delivery",
		zap.String("queue", queue),
		zap.Error(err),
	)
	if err := d.Reject(false); err != nil {
		w.logger.Error("Reject failed", zap.String("queue", queue), zap.Error(err))
	}
	observability.RecordWorkerMessage(queue, "rejected")
}
