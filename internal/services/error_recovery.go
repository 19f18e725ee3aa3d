package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dtslogistics/pricing-agent/internal/config"
)

// RetryPolicy defines retry behavior for a provider. A BackoffFactor of 1
// gives a fixed delay between attempts.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// FixedRetryPolicy retries maxRetries times, waiting delay between attempts.
func FixedRetryPolicy(maxRetries int, delay time.Duration) *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:    maxRetries,
		InitialDelay:  delay,
		MaxDelay:      delay,
		BackoffFactor: 1,
	}
}

// RetryPolicyFrom builds the fixed-delay provider policy from
// providers.retry.
func RetryPolicyFrom(cfg *config.Config) *RetryPolicy {
	if cfg == nil {
		return FixedRetryPolicy(1, 5*time.Second)
	}
	return FixedRetryPolicy(cfg.Providers.Retry.MaxRetries, config.Duration(cfg.Providers.Retry.Delay, 5*time.Second))
}

// BreakerConfigFrom applies providers.breaker over the provider defaults.
func BreakerConfigFrom(cfg *config.Config) CircuitBreakerConfig {
	bc := DefaultProviderBreakerConfig()
	if cfg == nil {
		return bc
	}
	if cfg.Providers.Breaker.FailureThreshold > 0 {
		bc.FailureThreshold = cfg.Providers.Breaker.FailureThreshold
	}
	bc.OpenTimeout = config.Duration(cfg.Providers.Breaker.OpenTimeout, bc.OpenTimeout)
	return bc
}

// OperationResult describes how a protected call went
type OperationResult struct {
	Success      bool
	Error        error
	Attempts     int
	Duration     time.Duration
	Recovered    bool
	FallbackUsed bool
}

// ErrorRecoveryManager wraps provider calls with a retry budget and a
// per-provider circuit breaker.
type ErrorRecoveryManager struct {
	logger        *logrus.Logger
	breakers      *CircuitBreakerManager
	breakerConfig CircuitBreakerConfig
	retryPolicies map[string]*RetryPolicy
	defaultPolicy *RetryPolicy
	sleep         func(context.Context, time.Duration) error
	mu            sync.RWMutex
}

// NewErrorRecoveryManager uses defaultPolicy for providers without a
// registered policy.
func NewErrorRecoveryManager(logger *logrus.Logger, defaultPolicy *RetryPolicy) *ErrorRecoveryManager {
	if logger == nil {
		logger = logrus.New()
	}
	if defaultPolicy == nil {
		defaultPolicy = FixedRetryPolicy(1, 5*time.Second)
	}
	return &ErrorRecoveryManager{
		logger:        logger,
		breakers:      NewCircuitBreakerManager(logger),
		breakerConfig: DefaultProviderBreakerConfig(),
		retryPolicies: make(map[string]*RetryPolicy),
		defaultPolicy: defaultPolicy,
		sleep:         sleepContext,
	}
}

// RegisterRetryPolicy overrides the retry policy for one provider.
func (erm *ErrorRecoveryManager) RegisterRetryPolicy(name string, policy *RetryPolicy) {
	erm.mu.Lock()
	defer erm.mu.Unlock()
	erm.retryPolicies[name] = policy
}

// RegisterCircuitBreaker creates the provider's breaker with config.
func (erm *ErrorRecoveryManager) RegisterCircuitBreaker(name string, bc CircuitBreakerConfig) *CircuitBreaker {
	return erm.breakers.GetOrCreate(name, bc)
}

// Breakers exposes the breaker registry for health reporting.
func (erm *ErrorRecoveryManager) Breakers() *CircuitBreakerManager {
	return erm.breakers
}

// Execute runs operation through the provider's breaker, retrying on error
// per the provider's policy. An open breaker ends the attempts early. When
// every attempt fails and fallback is non-nil, fallback is tried once.
func (erm *ErrorRecoveryManager) Execute(
	ctx context.Context,
	name string,
	operation func(context.Context) error,
	fallback func(context.Context) error,
) *OperationResult {
	start := time.Now()
	result := &OperationResult{}

	erm.mu.RLock()
	policy := erm.retryPolicies[name]
	erm.mu.RUnlock()
	if policy == nil {
		policy = erm.defaultPolicy
	}
	cb := erm.breakers.GetOrCreate(name, erm.breakerConfig)

	delay := policy.InitialDelay
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			result.Error = err
			break
		}
		result.Attempts = attempt + 1

		err := cb.Execute(ctx, operation)
		if err == nil {
			result.Success = true
			result.Error = nil
			result.Recovered = attempt > 0
			if result.Recovered {
				erm.logger.WithFields(logrus.Fields{
					"provider": name,
					"attempts": result.Attempts,
					"duration": time.Since(start),
				}).Info("Provider call recovered after retry")
			}
			result.Duration = time.Since(start)
			return result
		}
		result.Error = err

		if errors.Is(err, ErrCircuitOpen) || attempt == policy.MaxRetries {
			break
		}

		erm.logger.WithFields(logrus.Fields{
			"provider": name,
			"attempt":  attempt + 1,
			"error":    err.Error(),
			"delay":    delay,
		}).Warn("Provider call failed, retrying")

		if err := erm.sleep(ctx, delay); err != nil {
			result.Error = err
			break
		}
		delay = nextDelay(delay, policy)
	}

	if fallback != nil && ctx.Err() == nil {
		if err := fallback(ctx); err == nil {
			result.Success = true
			result.FallbackUsed = true
		}
	}

	result.Duration = time.Since(start)
	if !result.Success {
		erm.logger.WithFields(logrus.Fields{
			"provider": name,
			"attempts": result.Attempts,
			"duration": result.Duration,
			"error":    errorString(result.Error),
		}).Error("Provider call failed after all retries")
	}
	return result
}

func nextDelay(delay time.Duration, policy *RetryPolicy) time.Duration {
	if policy.BackoffFactor > 1 {
		delay = time.Duration(float64(delay) * policy.BackoffFactor)
	}
	if policy.MaxDelay > 0 && delay > policy.MaxDelay {
		delay = policy.MaxDelay
	}
	return delay
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
