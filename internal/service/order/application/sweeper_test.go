package application

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/service/order/domain"
)

const threshold = 10 * time.Minute

func (f *fixture) sweeper(now time.Time) *ExpirationSweeper {
	s := NewExpirationSweeper(f.store.Orders(), f.store, f.pub, threshold, "@every 1s", testTracer)
	s.now = func() time.Time { return now }
	return s
}

func TestExpirationSweeper_ExpiresStaleProcessingOrdersOnce(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	f.seedOrder(t, "stale", domain.StatusProcessing, t0)
	f.seedOrder(t, "fresh", domain.StatusProcessing, t0.Add(threshold))
	f.seedOrder(t, "done", domain.StatusCompleted, t0)
	f.seedOrder(t, "new", domain.StatusPending, t0)

	s := f.sweeper(t0.Add(threshold + time.Second))

	res, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Expired: 1}, res)

	assert.Equal(t, domain.StatusExpired, f.order(t, "stale").Status)
	assert.Equal(t, domain.StatusProcessing, f.order(t, "fresh").Status)
	assert.Equal(t, domain.StatusCompleted, f.order(t, "done").Status)
	assert.Equal(t, domain.StatusPending, f.order(t, "new").Status)

	_, _, expired := f.pub.counts()
	require.Equal(t, 1, expired)
	assert.Equal(t, "stale", f.pub.expired[0].ID)

	res, err = s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, res)
	_, _, expired = f.pub.counts()
	assert.Equal(t, 1, expired)
}

func TestExpirationSweeper_IdleRunDoesNothing(t *testing.T) {
	f := newFixture(t, 5)
	res, err := f.sweeper(t0).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, res)
}

func TestExpirationSweeper_PublishFailureDoesNotStopOthers(t *testing.T) {
	f := newFixture(t, 5)
	f.seedOrder(t, "a", domain.StatusProcessing, t0)
	f.seedOrder(t, "b", domain.StatusProcessing, t0.Add(time.Second))
	f.pub.fail[domain.EventOrderExpired] = true

	res, err := f.sweeper(t0.Add(time.Hour)).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Expired)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, domain.StatusExpired, f.order(t, "a").Status)
	assert.Equal(t, domain.StatusExpired, f.order(t, "b").Status)
}

type fakeLock struct {
	acquire  bool
	released atomic.Int32
}

func (l *fakeLock) TryAcquire(context.Context) (func(), bool, error) {
	if !l.acquire {
		return nil, false, nil
	}
	return func() { l.released.Add(1) }, true, nil
}

func TestExpirationSweeper_SkipsWithoutLock(t *testing.T) {
	f := newFixture(t, 5)
	f.seedOrder(t, "stale", domain.StatusProcessing, t0)

	held := &fakeLock{acquire: false}
	f.sweeper(t0.Add(time.Hour)).WithLock(held).tick(context.Background())
	assert.Equal(t, domain.StatusProcessing, f.order(t, "stale").Status)

	free := &fakeLock{acquire: true}
	f.sweeper(t0.Add(time.Hour)).WithLock(free).tick(context.Background())
	assert.Equal(t, domain.StatusExpired, f.order(t, "stale").Status)
	assert.Equal(t, int32(1), free.released.Load())
}

func TestExpirationSweeper_ScheduledRun(t *testing.T) {
	f := newFixture(t, 5)
	f.seedOrder(t, "stale", domain.StatusProcessing, t0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := f.sweeper(t0.Add(time.Hour))
	require.NoError(t, s.Start(ctx))
	require.Eventually(t, func() bool {
		return f.order(t, "stale").Status == domain.StatusExpired
	}, 5*time.Second, 50*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))
}

func TestExpirationSweeper_InvalidSchedule(t *testing.T) {
	f := newFixture(t, 5)
	s := NewExpirationSweeper(f.store.Orders(), f.store, f.pub, threshold, "every now and then", testTracer)
	require.Error(t, s.Start(context.Background()))
}
