package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

var errProvider = errors.New("provider returned 502")

func failing(context.Context) error   { return errProvider }
func succeeding(context.Context) error { return nil }

func testBreaker(clock *fakeClock) *CircuitBreaker {
	cb := NewCircuitBreaker("dat", CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		OpenTimeout:      time.Minute,
		MaxProbes:        1,
		ResetTimeout:     5 * time.Minute,
	}, quietLogger())
	cb.now = clock.Now
	return cb
}

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker("gs", CircuitBreakerConfig{}, nil)
	assert.Equal(t, DefaultProviderBreakerConfig(), cb.config)
	assert.Equal(t, Closed, cb.State())
	assert.Equal(t, "closed", cb.Stats().State)
}

func TestCircuitBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", Closed.String())
	assert.Equal(t, "open", Open.String())
	assert.Equal(t, "half-open", HalfOpen.String())
	assert.Equal(t, "unknown", CircuitBreakerState(42).String())
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	clock := newFakeClock()
	cb := testBreaker(clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, failing), errProvider)
	}
	assert.Equal(t, Open, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	stats := cb.Stats()
	assert.Equal(t, int64(4), stats.TotalRequests)
	assert.Equal(t, int64(3), stats.FailedRequests)
	assert.Equal(t, int64(1), stats.RejectedRequests)
	assert.Equal(t, int64(1), stats.StateChanges)
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	clock := newFakeClock()
	cb := testBreaker(clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, failing)
	}
	require.Equal(t, Open, cb.State())

	clock.Advance(61 * time.Second)
	require.NoError(t, cb.Execute(ctx, succeeding))
	assert.Equal(t, HalfOpen, cb.State())

	require.NoError(t, cb.Execute(ctx, succeeding))
	assert.Equal(t, Closed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := newFakeClock()
	cb := testBreaker(clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, failing)
	}
	clock.Advance(61 * time.Second)

	assert.ErrorIs(t, cb.Execute(ctx, failing), errProvider)
	assert.Equal(t, Open, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, succeeding), ErrCircuitOpen)
}

func TestCircuitBreaker_HalfOpenLimitsProbes(t *testing.T) {
	clock := newFakeClock()
	cb := testBreaker(clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, failing)
	}
	clock.Advance(61 * time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.ErrorIs(t, cb.Execute(ctx, succeeding), ErrCircuitOpen)
	close(release)
	assert.NoError(t, <-done)
}

func TestCircuitBreaker_ResetTimeoutClearsFailures(t *testing.T) {
	clock := newFakeClock()
	cb := testBreaker(clock)
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	_ = cb.Execute(ctx, failing)
	clock.Advance(6 * time.Minute)
	_ = cb.Execute(ctx, failing)

	assert.Equal(t, Closed, cb.State())
}

func TestCircuitBreaker_CallerCancellationNotCounted(t *testing.T) {
	clock := newFakeClock()
	cb := testBreaker(clock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 5; i++ {
		err := cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, Closed, cb.State())
	assert.Equal(t, int64(0), cb.Stats().FailedRequests)
}

func TestCircuitBreaker_Reset(t *testing.T) {
	clock := newFakeClock()
	cb := testBreaker(clock)
	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), failing)
	}
	require.Equal(t, Open, cb.State())

	cb.Reset()
	assert.Equal(t, Closed, cb.State())
	assert.NoError(t, cb.Execute(context.Background(), succeeding))
}

func TestCircuitBreakerManager(t *testing.T) {
	m := NewCircuitBreakerManager(quietLogger())

	dat := m.GetOrCreate("dat", CircuitBreakerConfig{FailureThreshold: 1})
	assert.Same(t, dat, m.GetOrCreate("dat", CircuitBreakerConfig{FailureThreshold: 9}))
	m.GetOrCreate("greenscreens", CircuitBreakerConfig{})

	_ = dat.Execute(context.Background(), failing)
	stats := m.AllStats()
	require.Len(t, stats, 2)
	assert.Equal(t, "open", stats["dat"].State)
	assert.Equal(t, "closed", stats["greenscreens"].State)

	m.ResetAll()
	assert.Equal(t, Closed, dat.State())
}

func TestCircuitBreaker_Concurrent(t *testing.T) {
	cb := NewCircuitBreaker("dat", CircuitBreakerConfig{FailureThreshold: 1000}, quietLogger())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = cb.Execute(context.Background(), failing)
				return
			}
			_ = cb.Execute(context.Background(), succeeding)
		}(i)
	}
	wg.Wait()

	stats := cb.Stats()
	assert.Equal(t, int64(50), stats.TotalRequests)
	assert.Equal(t, int64(25), stats.FailedRequests)
	assert.Equal(t, int64(25), stats.SuccessfulRequests)
}
