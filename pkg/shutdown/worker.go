package shutdown

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// InFlightTracker tracks in-flight work (requests, deliveries, jobs) so
// graceful shutdown can wait for work to complete before tearing down the
// resources it uses
type InFlightTracker struct {
	wg         sync.WaitGroup
	shutdownCh chan struct{}
	logger     *zap.Logger
	name       string
}

// NewInFlightTracker creates a new in-flight work tracker
func NewInFlightTracker(name string, logger *zap.Logger) *InFlightTracker {
	return &InFlightTracker{
		shutdownCh: make(chan struct{}),
		logger:     logger,
		name:       name,
	}
}

// Add increments the in-flight work counter.
// Returns false if shutdown has been initiated (don't start new work).
func (ift *InFlightTracker) Add() bool {
	select {
	case <-ift.shutdownCh:
		return false
	default:
		ift.wg.Add(1)
		return true
	}
}

// Done decrements the in-flight work counter.
// Call this when work is complete (typically via defer).
func (ift *InFlightTracker) Done() {
	ift.wg.Done()
}

// IsShuttingDown returns true if shutdown has been initiated
func (ift *InFlightTracker) IsShuttingDown() bool {
	select {
	case <-ift.shutdownCh:
		return true
	default:
		return false
	}
}

// RunWithContext executes fn as tracked in-flight work.
// Returns false without running fn if shutdown is in progress.
func (ift *InFlightTracker) RunWithContext(ctx context.Context, fn func(context.Context)) bool {
	if !ift.Add() {
		return false
	}
	defer ift.Done()

	fn(ctx)
	return true
}

// Shutdown initiates shutdown and waits for all in-flight work to complete.
// Returns the context error if it times out before work finishes.
func (ift *InFlightTracker) Shutdown(ctx context.Context) error {
	close(ift.shutdownCh)

	ift.logger.Info("Waiting for in-flight work to complete",
		zap.String("tracker", ift.name),
	)

	done := make(chan struct{})
	go func() {
		ift.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		ift.logger.Info("All in-flight work completed",
			zap.String("tracker", ift.name),
		)
		return nil
	case <-ctx.Done():
		ift.logger.Warn("Shutdown timeout - some work may be incomplete",
			zap.String("tracker", ift.name),
		)
		return ctx.Err()
	}
}

// BackgroundWorker hosts a long-running goroutine with graceful shutdown
type BackgroundWorker struct {
	name     string
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewBackgroundWorker creates a new background worker
func NewBackgroundWorker(name string, logger *zap.Logger) *BackgroundWorker {
	ctx, cancel := context.WithCancel(context.Background())

	return &BackgroundWorker{
		name:   name,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins the background worker.
// The work function must respect ctx.Done() for cancellation.
func (bw *BackgroundWorker) Start(work func(ctx context.Context)) {
	bw.wg.Add(1)

	go func() {
		defer bw.wg.Done()

		bw.logger.Info("Background worker started",
			zap.String("worker", bw.name),
		)

		work(bw.ctx)

		bw.logger.Info("Background worker stopped",
			zap.String("worker", bw.name),
		)
	}()
}

// Stop cancels the worker context and waits for the worker to finish.
// Safe to call more than once.
func (bw *BackgroundWorker) Stop() {
	bw.stopOnce.Do(func() {
		bw.logger.Info("Stopping background worker",
			zap.String("worker", bw.name),
		)
		bw.cancel()
	})

	bw.wg.Wait()
}

// Shutdown stops the worker, bounded by the given context
func (bw *BackgroundWorker) Shutdown(ctx context.Context) error {
	bw.stopOnce.Do(bw.cancel)

	done := make(chan struct{})
	go func() {
		bw.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		bw.logger.Warn("Background worker shutdown timeout",
			zap.String("worker", bw.name),
		)
		return ctx.Err()
	}
}

// Context returns the worker's context
func (bw *BackgroundWorker) Context() context.Context {
	return bw.ctx
}

// PeriodicWorker runs a function on a fixed interval with graceful
// shutdown support. The first run happens immediately on Start.
type PeriodicWorker struct {
	*BackgroundWorker
	interval time.Duration
}

// NewPeriodicWorker creates a new periodic worker
func NewPeriodicWorker(name string, interval time.Duration, logger *zap.Logger) *PeriodicWorker {
	return &PeriodicWorker{
		BackgroundWorker: NewBackgroundWorker(name, logger),
		interval:         interval,
	}
}

// Start begins the periodic worker
func (pw *PeriodicWorker) Start(work func(ctx context.Context)) {
	pw.BackgroundWorker.Start(func(ctx context.Context) {
		ticker := time.NewTicker(pw.interval)
		defer ticker.Stop()

		// Run immediately on start
		work(ctx)

		for {
			select {
			case <-ctx.Done():
				pw.logger.Info("Periodic worker context cancelled",
					zap.String("worker", pw.name),
				)
				return
			case <-ticker.C:
				work(ctx)
			}
		}
	})
}
