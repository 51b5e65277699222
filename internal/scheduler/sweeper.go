package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/subwave/billing-service/internal/domain/ports"
	"github.com/subwave/billing-service/pkg/observability"
	"github.com/subwave/billing-service/pkg/resilience"
	"github.com/subwave/billing-service/pkg/shutdown"
	"github.com/subwave/billing-service/pkg/timeutil"
)

// DefaultBatchSize caps how many subscriptions one sweep processes.
const DefaultBatchSize = 100

// Sweeper expires due subscriptions on a fixed interval. Each due
// subscription goes through the billing manager one at a time, so a
// concurrent user command on the same subscription wins through the
// status state machine.
type Sweeper struct {
	subRepo   ports.SubscriptionRepository
	billing   ports.BillingManager
	worker    *shutdown.PeriodicWorker
	timeouts  *resilience.TimeoutConfig
	logger    *zap.Logger
	batchSize int32
}

// NewSweeper creates a sweeper running every interval over batches of at
// most batchSize subscriptions. A non-positive batchSize falls back to
// DefaultBatchSize.
func NewSweeper(subRepo ports.SubscriptionRepository, billing ports.BillingManager, interval time.Duration, batchSize int32, logger *zap.Logger) *Sweeper {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Sweeper{
		subRepo:   subRepo,
		billing:   billing,
		worker:    shutdown.NewPeriodicWorker("expiry-sweeper", interval, logger),
		timeouts:  resilience.DefaultTimeoutConfig(),
		logger:    logger,
		batchSize: batchSize,
	}
}

// Start begins periodic sweeping. The first sweep runs immediately.
func (s *Sweeper) Start() {
	s.worker.Start(s.Sweep)
}

// Shutdown stops the sweeper, bounded by ctx.
func (s *Sweeper) Shutdown(ctx context.Context) error {
	return s.worker.Shutdown(ctx)
}

// Sweep processes one batch of active subscriptions whose end date has
// passed. One pass is bounded by the sweep timeout; whatever remains
// waits for the next interval.
func (s *Sweeper) Sweep(ctx context.Context) {
	ctx, cancel := s.timeouts.SweepContext(ctx)
	defer cancel()

	start := time.Now()

	due, err := s.subRepo.ListActiveDue(ctx, nil, timeutil.Now(), s.batchSize)
	if err != nil {
		s.logger.Error("Listing due subscriptions failed", zap.Error(err))
		observability.RecordSweep(false, time.Since(start).Seconds())
		return
	}

	if len(due) == 0 {
		observability.RecordSweep(true, time.Since(start).Seconds())
		return
	}

	failures := 0
	for _, sub := range due {
		if ctx.Err() != nil {
			// A cancelled sweep leaves the rest for the next run.
			break
		}
		if err := s.billing.ProcessExpiry(ctx, sub.ID); err != nil {
			failures++
			s.logger.Error("Processing subscription expiry failed",
				zap.String("subscription_id", sub.ID),
				zap.Error(err),
			)
		}
	}

	observability.RecordSweep(failures == 0, time.Since(start).Seconds())
	s.logger.Info("Sweep finished",
		zap.Int("due", len(due)),
		zap.Int("failed", failures),
		zap.Duration("duration", time.Since(start)),
	)
}
