package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrCircuitOpen is returned without calling the provider while its breaker
// is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerState represents the current state of a provider breaker
type CircuitBreakerState int

const (
	Closed CircuitBreakerState = iota
	Open
	HalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds the trip and recovery thresholds
type CircuitBreakerConfig struct {
	FailureThreshold int           `json:"failure_threshold"` // consecutive failures before opening
	SuccessThreshold int           `json:"success_threshold"` // half-open successes needed to close
	OpenTimeout      time.Duration `json:"open_timeout"`      // time spent open before probing
	MaxProbes        int           `json:"max_probes"`        // concurrent calls allowed half-open
	ResetTimeout     time.Duration `json:"reset_timeout"`     // quiet period that clears failures
}

// DefaultProviderBreakerConfig suits slow third-party rate APIs.
func DefaultProviderBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		OpenTimeout:      60 * time.Second,
		MaxProbes:        1,
		ResetTimeout:     5 * time.Minute,
	}
}

// CircuitBreakerStats holds call counters for one breaker
type CircuitBreakerStats struct {
	State              string    `json:"state"`
	TotalRequests      int64     `json:"total_requests"`
	SuccessfulRequests int64     `json:"successful_requests"`
	FailedRequests     int64     `json:"failed_requests"`
	RejectedRequests   int64     `json:"rejected_requests"`
	LastFailureTime    time.Time `json:"last_failure_time"`
	LastSuccessTime    time.Time `json:"last_success_time"`
	StateChanges       int64     `json:"state_changes"`
}

// CircuitBreaker stops calling a provider that keeps failing. The lock is
// not held while the protected call runs.
type CircuitBreaker struct {
	name   string
	config CircuitBreakerConfig
	logger *logrus.Logger
	now    func() time.Time

	mu              sync.Mutex
	state           CircuitBreakerState
	failureCount    int
	successCount    int
	inFlightProbes  int
	lastFailureTime time.Time
	lastStateChange time.Time
	stats           CircuitBreakerStats
}

// NewCircuitBreaker creates a closed breaker. Zero config fields take the
// provider defaults.
func NewCircuitBreaker(name string, config CircuitBreakerConfig, logger *logrus.Logger) *CircuitBreaker {
	def := DefaultProviderBreakerConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = def.SuccessThreshold
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = def.OpenTimeout
	}
	if config.MaxProbes <= 0 {
		config.MaxProbes = def.MaxProbes
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = def.ResetTimeout
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &CircuitBreaker{
		name:            name,
		config:          config,
		logger:          logger,
		now:             time.Now,
		state:           Closed,
		lastStateChange: time.Now(),
	}
}

// Execute runs fn unless the breaker is open. Context cancellation by the
// caller is not counted as a provider failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}

	start := cb.now()
	err = fn(ctx)
	elapsed := cb.now().Sub(start)

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if probe {
		cb.inFlightProbes--
	}
	switch {
	case err == nil:
		cb.onSuccess(elapsed)
	case ctx.Err() != nil:
		// caller gave up; says nothing about the provider
	default:
		cb.onFailure(err, elapsed)
	}
	return err
}

// admit decides whether a call may proceed and reports whether it is a
// half-open probe.
func (cb *CircuitBreaker) admit() (bool, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.stats.TotalRequests++
	now := cb.now()

	switch cb.state {
	case Closed:
		if cb.failureCount > 0 && now.Sub(cb.lastFailureTime) > cb.config.ResetTimeout {
			cb.failureCount = 0
		}
		return false, nil

	case Open:
		if now.Sub(cb.lastStateChange) <= cb.config.OpenTimeout {
			return false, cb.reject()
		}
		cb.setState(HalfOpen)
		cb.successCount = 0
		cb.inFlightProbes = 0
		fallthrough

	case HalfOpen:
		if cb.inFlightProbes >= cb.config.MaxProbes {
			return false, cb.reject()
		}
		cb.inFlightProbes++
		return true, nil
	}
	return false, cb.reject()
}

func (cb *CircuitBreaker) reject() error {
	cb.stats.RejectedRequests++
	cb.logger.WithFields(logrus.Fields{
		"provider":      cb.name,
		"state":         cb.state.String(),
		"failure_count": cb.failureCount,
	}).Warn("Circuit breaker is open, skipping provider call")
	return ErrCircuitOpen
}

func (cb *CircuitBreaker) onSuccess(elapsed time.Duration) {
	cb.stats.SuccessfulRequests++
	cb.stats.LastSuccessTime = cb.now()

	switch cb.state {
	case Closed:
		cb.failureCount = 0
	case HalfOpen:
		cb.successCount++
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.setState(Closed)
			cb.failureCount = 0
			cb.successCount = 0
		}
	}

	cb.logger.WithFields(logrus.Fields{
		"provider":    cb.name,
		"state":       cb.state.String(),
		"duration_ms": elapsed.Milliseconds(),
	}).Debug("Provider call succeeded")
}

func (cb *CircuitBreaker) onFailure(err error, elapsed time.Duration) {
	now := cb.now()
	cb.stats.FailedRequests++
	cb.stats.LastFailureTime = now
	cb.lastFailureTime = now

	switch cb.state {
	case Closed:
		cb.failureCount++
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.setState(Open)
		}
	case HalfOpen:
		cb.failureCount++
		cb.successCount = 0
		cb.setState(Open)
	}

	cb.logger.WithFields(logrus.Fields{
		"provider":      cb.name,
		"state":         cb.state.String(),
		"error":         err.Error(),
		"duration_ms":   elapsed.Milliseconds(),
		"failure_count": cb.failureCount,
	}).Warn("Provider call failed")
}

func (cb *CircuitBreaker) setState(newState CircuitBreakerState) {
	if cb.state == newState {
		return
	}
	oldState := cb.state
	cb.state = newState
	cb.lastStateChange = cb.now()
	cb.stats.StateChanges++

	cb.logger.WithFields(logrus.Fields{
		"provider":      cb.name,
		"old_state":     oldState.String(),
		"new_state":     newState.String(),
		"failure_count": cb.failureCount,
	}).Info("Circuit breaker state changed")
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns a copy of the counters.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	s := cb.stats
	s.State = cb.state.String()
	return s
}

// Reset closes the breaker and clears its failure history.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.setState(Closed)
	cb.failureCount = 0
	cb.successCount = 0
	cb.inFlightProbes = 0

	cb.logger.WithField("provider", cb.name).Info("Circuit breaker manually reset")
}

// CircuitBreakerManager keeps one breaker per provider
type CircuitBreakerManager struct {
	breakers map[string]*CircuitBreaker
	logger   *logrus.Logger
	mu       sync.RWMutex
}

func NewCircuitBreakerManager(logger *logrus.Logger) *CircuitBreakerManager {
	return &CircuitBreakerManager{
		breakers: make(map[string]*CircuitBreaker),
		logger:   logger,
	}
}

// GetOrCreate returns the named breaker, creating it with config on first use.
func (cbm *CircuitBreakerManager) GetOrCreate(name string, config CircuitBreakerConfig) *CircuitBreaker {
	cbm.mu.Lock()
	defer cbm.mu.Unlock()

	if breaker, exists := cbm.breakers[name]; exists {
		return breaker
	}
	breaker := NewCircuitBreaker(name, config, cbm.logger)
	cbm.breakers[name] = breaker
	return breaker
}

// AllStats returns the counters of every breaker keyed by provider.
func (cbm *CircuitBreakerManager) AllStats() map[string]CircuitBreakerStats {
	cbm.mu.RLock()
	defer cbm.mu.RUnlock()

	stats := make(map[string]CircuitBreakerStats, len(cbm.breakers))
	for name, breaker := range cbm.breakers {
		stats[name] = breaker.Stats()
	}
	return stats
}

// ResetAll closes every breaker.
func (cbm *CircuitBreakerManager) ResetAll() {
	cbm.mu.RLock()
	defer cbm.mu.RUnlock()

	for _, breaker := range cbm.breakers {
		breaker.Reset()
	}
}
