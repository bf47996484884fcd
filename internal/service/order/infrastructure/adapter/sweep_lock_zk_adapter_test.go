package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/pkg/zookeeper/zktest"
)

func TestSweepLockZKAdapter_NoWaitSkipsWhileHeld(t *testing.T) {
	nodes := zktest.NewFakeNodes()
	first := NewSweepLockZKAdapter(nodes, "order-expiration-sweeper")
	second := NewSweepLockZKAdapter(nodes, "order-expiration-sweeper")

	release, ok, err := first.TryAcquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = second.TryAcquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	release()
	release, ok, err = second.TryAcquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	release()
}

func TestSweepLockZKAdapter_WaitAcquiresAfterRelease(t *testing.T) {
	nodes := zktest.NewFakeNodes()
	first := NewSweepLockZKAdapter(nodes, "order-expiration-sweeper")
	second := NewSweepLockZKAdapter(nodes, "order-expiration-sweeper").WithWait(5 * time.Second)

	release, ok, err := first.TryAcquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	time.AfterFunc(30*time.Millisecond, release)

	start := time.Now()
	release2, ok, err := second.TryAcquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	release2()
}

func TestSweepLockZKAdapter_WaitTimeoutSkipsTick(t *testing.T) {
	nodes := zktest.NewFakeNodes()
	first := NewSweepLockZKAdapter(nodes, "order-expiration-sweeper")
	second := NewSweepLockZKAdapter(nodes, "order-expiration-sweeper").WithWait(30 * time.Millisecond)

	release, ok, err := first.TryAcquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	defer release()

	_, ok, err = second.TryAcquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, nodes.Count("/distributed_locks/order-expiration-sweeper"))
}
