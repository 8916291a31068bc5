package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg Config) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	cb := NewCircuitBreaker("judge", cfg)
	cb.now = clock.Now
	cb.mu.Lock()
	cb.reset(clock.Now())
	cb.mu.Unlock()
	return cb, clock
}

var (
	errUpstream = errors.New("upstream 500")
	ctx         = context.Background()
)

func fail() error    { return errUpstream }
func succeed() error { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	t.Parallel()

	var transitions []string
	cb, _ := newTestBreaker(Config{
		FailureThreshold: 3,
		Timeout:          time.Minute,
		OnStateChange: func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, fail), errUpstream)
	}

	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrCircuitOpen)
	assert.Equal(t, []string{"closed->open"}, transitions)
}

func TestBreaker_SuccessResetsConsecutiveFailures(t *testing.T) {
	t.Parallel()

	cb, _ := newTestBreaker(Config{FailureThreshold: 2})

	require.Error(t, cb.Execute(ctx, fail))
	require.NoError(t, cb.Execute(ctx, succeed))
	require.Error(t, cb.Execute(ctx, fail))

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, uint32(1), cb.Counts().ConsecutiveFailures)
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	t.Parallel()

	cb, clock := newTestBreaker(Config{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		MaxRequests:      2,
		Timeout:          10 * time.Second,
	})

	require.Error(t, cb.Execute(ctx, fail))
	require.Equal(t, StateOpen, cb.State())

	clock.Advance(11 * time.Second)
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	t.Parallel()

	cb, clock := newTestBreaker(Config{FailureThreshold: 1, Timeout: time.Second})

	require.Error(t, cb.Execute(ctx, fail))
	clock.Advance(2 * time.Second)
	require.Equal(t, StateHalfOpen, cb.State())

	require.Error(t, cb.Execute(ctx, fail))
	assert.Equal(t, StateOpen, cb.State())
}

func TestBreaker_HalfOpenLimitsProbes(t *testing.T) {
	t.Parallel()

	cb, clock := newTestBreaker(Config{FailureThreshold: 1, Timeout: time.Second, MaxRequests: 1, SuccessThreshold: 5})

	require.Error(t, cb.Execute(ctx, fail))
	clock.Advance(2 * time.Second)

	err := cb.Execute(ctx, func() error {
		return cb.Execute(ctx, succeed)
	})
	assert.ErrorIs(t, err, ErrTooManyRequests)
}

func TestBreaker_IntervalClearsCounts(t *testing.T) {
	t.Parallel()

	cb, clock := newTestBreaker(Config{FailureThreshold: 2, Interval: time.Minute})

	require.Error(t, cb.Execute(ctx, fail))
	clock.Advance(2 * time.Minute)
	require.Error(t, cb.Execute(ctx, fail))

	assert.Equal(t, StateClosed, cb.State())
}

func TestBreaker_PanicCountsAsFailure(t *testing.T) {
	t.Parallel()

	cb, _ := newTestBreaker(Config{FailureThreshold: 1})

	assert.Panics(t, func() {
		_ = cb.Execute(ctx, func() error { panic("bad response") })
	})
	assert.Equal(t, StateOpen, cb.State())
}

func TestBreaker_CancelledContext(t *testing.T) {
	t.Parallel()

	cb, _ := newTestBreaker(Config{FailureThreshold: 1})
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := cb.Execute(cancelled, func() error { called = true; return nil })

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.Equal(t, StateClosed, cb.State())
	assert.Zero(t, cb.Counts().Requests)
}
