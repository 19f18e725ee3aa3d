package services

import (
	"context"
	"sync"
	"time"

	"github.com/dtslogistics/pricing-agent/internal/config"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Operation types with their own deadline.
const (
	OpRateCall         = "rate_call"
	OpTokenCall        = "token_call"
	OpRouteCall        = "route_call"
	OpAIRecommendation = "ai_recommendation"
	OpAuditWrite       = "audit_write"
	OpLookupLoad       = "lookup_load"
	OpAlert            = "alert"
)

// TimeoutConfig holds the deadline for each outbound operation type
type TimeoutConfig struct {
	RateCall         time.Duration
	TokenCall        time.Duration
	RouteCall        time.Duration
	AIRecommendation time.Duration
	AuditWrite       time.Duration
	LookupLoad       time.Duration
	Alert            time.Duration
}

// DefaultTimeoutConfig returns the built-in deadlines.
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		RateCall:         45 * time.Second,
		TokenCall:        30 * time.Second,
		RouteCall:        30 * time.Second,
		AIRecommendation: 30 * time.Second,
		AuditWrite:       30 * time.Second,
		LookupLoad:       5 * time.Minute,
		Alert:            10 * time.Second,
	}
}

// TimeoutConfigFrom derives deadlines from the loaded configuration.
func TimeoutConfigFrom(cfg *config.Config) *TimeoutConfig {
	tc := DefaultTimeoutConfig()
	if cfg == nil {
		return tc
	}
	tc.RateCall = config.Duration(cfg.Providers.Timeout, tc.RateCall)
	tc.TokenCall = config.Duration(cfg.Providers.TokenTimeout, tc.TokenCall)
	tc.RouteCall = tc.TokenCall
	tc.AIRecommendation = config.Duration(cfg.AI.Timeout, tc.AIRecommendation)
	return tc
}

// TimeoutManager hands out deadline-bound contexts and tracks them so they
// can all be cancelled on shutdown.
type TimeoutManager struct {
	config         *TimeoutConfig
	logger         *logrus.Logger
	activeContexts map[string]context.CancelFunc
	mu             sync.RWMutex
	defaultTimeout time.Duration
}

func NewTimeoutManager(config *TimeoutConfig, logger *logrus.Logger) *TimeoutManager {
	if config == nil {
		config = DefaultTimeoutConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &TimeoutManager{
		config:         config,
		logger:         logger,
		activeContexts: make(map[string]context.CancelFunc),
		defaultTimeout: 30 * time.Second,
	}
}

// Timeout returns the deadline for an operation type.
func (tm *TimeoutManager) Timeout(operationType string) time.Duration {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	switch operationType {
	case OpRateCall:
		return tm.config.RateCall
	case OpTokenCall:
		return tm.config.TokenCall
	case OpRouteCall:
		return tm.config.RouteCall
	case OpAIRecommendation:
		return tm.config.AIRecommendation
	case OpAuditWrite:
		return tm.config.AuditWrite
	case OpLookupLoad:
		return tm.config.LookupLoad
	case OpAlert:
		return tm.config.Alert
	default:
		return tm.defaultTimeout
	}
}

// WithTimeout derives a tracked context from parent. The returned cancel
// function must be called when the operation finishes.
func (tm *TimeoutManager) WithTimeout(parent context.Context, operationType string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, tm.Timeout(operationType))
	id := operationType + ":" + uuid.NewString()

	tm.mu.Lock()
	tm.activeContexts[id] = cancel
	tm.mu.Unlock()

	return ctx, func() {
		tm.mu.Lock()
		delete(tm.activeContexts, id)
		tm.mu.Unlock()
		cancel()
	}
}

// Run executes operation under the deadline of its type and logs timeouts.
func (tm *TimeoutManager) Run(parent context.Context, operationType string, operation func(context.Context) error) error {
	ctx, done := tm.WithTimeout(parent, operationType)
	defer done()

	start := time.Now()
	err := operation(ctx)
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		tm.logger.WithFields(logrus.Fields{
			"operation_type": operationType,
			"duration":       time.Since(start),
			"timeout":        tm.Timeout(operationType),
		}).Warn("Operation timed out")
	}
	return err
}

// ActiveOperationCount returns the number of operations in flight.
func (tm *TimeoutManager) ActiveOperationCount() int {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return len(tm.activeContexts)
}

// Shutdown cancels every operation still in flight.
func (tm *TimeoutManager) Shutdown() {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	for id, cancel := range tm.activeContexts {
		cancel()
		tm.logger.WithField("operation_id", id).Info("Operation cancelled during shutdown")
	}
	tm.activeContexts = make(map[string]context.CancelFunc)
}
