package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend unavailable")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func newTestBreaker(clock *fakeClock, opts Options) *CircuitBreaker {
	opts.Logger = quietLogger()
	opts.Now = clock.Now
	return NewWithOptions("backend", 3, 30*time.Second, opts)
}

func fail(context.Context) error    { return errBackend }
func succeed(context.Context) error { return nil }

func TestStateString(t *testing.T) {
	assert.Equal(t, "CLOSED", StateClosed.String())
	assert.Equal(t, "OPEN", StateOpen.String())
	assert.Equal(t, "HALF_OPEN", StateHalfOpen.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
}

func TestCircuitBreaker_TripsAfterMaxFailures(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cb := newTestBreaker(clock, Options{})

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(context.Background(), fail), errBackend)
	}
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.True(t, IsCircuitBreakerError(err))
	assert.True(t, IsCircuitBreakerError(fmt.Errorf("fetch: %w", err)))
	assert.False(t, called)
	assert.Equal(t, "circuit breaker 'backend' is OPEN", err.Error())
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cb := newTestBreaker(clock, Options{})

	_ = cb.Execute(context.Background(), fail)
	_ = cb.Execute(context.Background(), fail)
	require.NoError(t, cb.Execute(context.Background(), succeed))
	_ = cb.Execute(context.Background(), fail)

	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, uint32(1), cb.GetStats().Failures)
}

func TestCircuitBreaker_RecoversThroughHalfOpen(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	var transitions []string
	cb := newTestBreaker(clock, Options{
		OnStateChange: func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), fail)
	}
	clock.Advance(31 * time.Second)

	for i := 0; i < 3; i++ {
		require.NoError(t, cb.Execute(context.Background(), succeed))
	}

	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, []string{"CLOSED->OPEN", "OPEN->HALF_OPEN", "HALF_OPEN->CLOSED"}, transitions)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cb := newTestBreaker(clock, Options{})

	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), fail)
	}
	clock.Advance(31 * time.Second)

	assert.ErrorIs(t, cb.Execute(context.Background(), fail), errBackend)
	assert.Equal(t, StateOpen, cb.GetState())
	assert.True(t, IsCircuitBreakerError(cb.Execute(context.Background(), succeed)))
}

func TestCircuitBreaker_HalfOpenLimitsProbes(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cb := newTestBreaker(clock, Options{HalfOpenMaxCalls: 1})

	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), fail)
	}
	clock.Advance(31 * time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.True(t, IsCircuitBreakerError(cb.Execute(context.Background(), succeed)))
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_IgnoresErrorsNotCountedAsFailures(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	notFound := errors.New("404")
	cb := newTestBreaker(clock, Options{
		CountsAsFailure: func(err error) bool { return !errors.Is(err, notFound) },
	})

	for i := 0; i < 10; i++ {
		assert.ErrorIs(t, cb.Execute(context.Background(), func(context.Context) error { return notFound }), notFound)
	}
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, uint32(0), cb.GetStats().Failures)
}

func TestCircuitBreaker_CancelledCallerDoesNotTrip(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cb := newTestBreaker(clock, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 5; i++ {
		_ = cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	}
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_Stats(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)}
	cb := newTestBreaker(clock, Options{})

	_ = cb.Execute(context.Background(), succeed)
	_ = cb.Execute(context.Background(), fail)

	stats := cb.GetStats()
	assert.Equal(t, "backend", stats.Name)
	assert.Equal(t, uint64(2), stats.Requests)
	assert.Equal(t, uint64(1), stats.Successes)
	assert.Equal(t, uint32(1), stats.Failures)
	assert.Equal(t, clock.now, stats.LastFailureTime)
}

func TestCircuitBreaker_ConcurrentExecute(t *testing.T) {
	cb := NewWithLogger("backend", 1000, time.Second, quietLogger())
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if n%2 == 0 {
				_ = cb.Execute(context.Background(), succeed)
			} else {
				_ = cb.Execute(context.Background(), fail)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, uint64(100), cb.GetStats().Requests)
}

func TestNew_Defaults(t *testing.T) {
	cb := New("x", 0, time.Second)
	assert.Equal(t, StateClosed, cb.GetState())
	_ = cb.Execute(context.Background(), fail)
	assert.Equal(t, StateOpen, cb.GetState())
}
