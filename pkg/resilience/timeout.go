package resilience

import (
	"context"
	"time"
)

// TimeoutConfig defines timeout values for the application's timeout hierarchy
//
// Each layer must complete before its parent times out, preventing
// cascading timeout failures:
//
//	HTTP handler (60s) > service (50s) > gateway call (30s)
//	sweep run (5m) > per-subscription processing
//	sidecar delivery is bounded separately at the HTTP client (10s)
type TimeoutConfig struct {
	HTTPHandler     time.Duration // Overall request timeout (default: 60s)
	SweepJob        time.Duration // One sweeper pass over due subscriptions (default: 5 minutes)
	Service         time.Duration // Service operation timeout (default: 50s)
	Gateway         time.Duration // Payment gateway calls (default: 30s)
	SidecarDelivery time.Duration // Sidecar HTTP delivery per attempt (default: 10s)
}

// DefaultTimeoutConfig returns production timeout values
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler:     60 * time.Second,
		SweepJob:        5 * time.Minute,
		Service:         50 * time.Second,
		Gateway:         30 * time.Second,
		SidecarDelivery: 10 * time.Second,
	}
}

// TestTimeoutConfig returns shorter timeouts for testing
func TestTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler:     5 * time.Second,
		SweepJob:        30 * time.Second,
		Service:         4 * time.Second,
		Gateway:         2 * time.Second,
		SidecarDelivery: 1 * time.Second,
	}
}

// HandlerContext creates a context with timeout for HTTP handlers
func (tc *TimeoutConfig) HandlerContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.HTTPHandler)
}

// SweepContext creates a context with timeout for one sweeper pass
func (tc *TimeoutConfig) SweepContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.SweepJob)
}

// ServiceContext creates a context with timeout for service layer operations
func (tc *TimeoutConfig) ServiceContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Service)
}

// GatewayContext creates a context for payment gateway calls
func (tc *TimeoutConfig) GatewayContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Gateway)
}

// SidecarContext creates a context for sidecar delivery
func (tc *TimeoutConfig) SidecarContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.SidecarDelivery)
}
