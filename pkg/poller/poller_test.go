package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/inkcloud/go-settings/internal/clock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newFake() *clock.Fake {
	return clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestPollerRefreshesEveryInterval(t *testing.T) {
	fake := newFake()
	var calls atomic.Int32
	p := New(func(context.Context) error {
		calls.Add(1)
		return nil
	}, time.Minute, WithClock(fake))
	p.Start(context.Background())
	t.Cleanup(p.Stop)

	fake.Advance(time.Minute)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	fake.Advance(time.Minute)
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, fake.Pending())
}

func TestPollerCoalescesOverlappingRefreshes(t *testing.T) {
	fake := newFake()
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var calls atomic.Int32
	p := New(func(context.Context) error {
		if calls.Add(1) == 1 {
			started <- struct{}{}
			<-release
		}
		return nil
	}, time.Minute, WithClock(fake))
	p.Start(context.Background())
	t.Cleanup(p.Stop)

	fake.Advance(time.Minute)
	<-started
	fake.Advance(time.Minute)
	p.Trigger()
	p.Trigger()
	assert.Equal(t, int32(1), calls.Load(), "ticks and triggers join the slow refresh")

	close(release)
	require.NoError(t, p.Refresh(context.Background()))
}

func TestPollerRefreshReturnsError(t *testing.T) {
	errFetch := errors.New("summary unavailable")
	p := New(func(context.Context) error { return errFetch }, time.Minute, WithClock(newFake()))
	t.Cleanup(p.Stop)
	assert.ErrorIs(t, p.Refresh(context.Background()), errFetch)
}

func TestPollerImmediate(t *testing.T) {
	var calls atomic.Int32
	p := New(func(context.Context) error {
		calls.Add(1)
		return nil
	}, time.Minute, WithClock(newFake()), WithImmediate())
	p.Start(context.Background())
	t.Cleanup(p.Stop)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
}

func TestPollerStopCancelsAndClearsTimers(t *testing.T) {
	fake := newFake()
	entered := make(chan struct{})
	var sawCancel atomic.Bool
	p := New(func(ctx context.Context) error {
		close(entered)
		<-ctx.Done()
		sawCancel.Store(true)
		return ctx.Err()
	}, time.Minute, WithClock(fake))
	p.Start(context.Background())

	fake.Advance(time.Minute)
	<-entered
	p.Stop()

	assert.True(t, sawCancel.Load())
	assert.Zero(t, fake.Pending())
	assert.ErrorIs(t, p.Refresh(context.Background()), ErrStopped)

	fake.Advance(time.Hour)
	p.Trigger()
}
