package zookeeper

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/pkg/zookeeper/zktest"
)

func TestSequenceOrdersProtectedNodes(t *testing.T) {
	nodes := []string{
		"_c_9f3b-lock-0000000012",
		"_c_01aa-lock-0000000010",
		"_c_7c2d-lock-0000000011",
	}
	sort.Slice(nodes, func(i, j int) bool { return sequence(nodes[i]) < sequence(nodes[j]) })

	assert.Equal(t, "_c_01aa-lock-0000000010", nodes[0])
	assert.Equal(t, "0000000012", sequence(nodes[2]))
}

func TestTryLock_SecondContenderBacksOff(t *testing.T) {
	nodes := zktest.NewFakeNodes()
	holder, err := NewDistributedLock(nodes, "sweep")
	require.NoError(t, err)
	ok, err := holder.TryLock()
	require.NoError(t, err)
	require.True(t, ok)

	other, err := NewDistributedLock(nodes, "sweep")
	require.NoError(t, err)
	ok, err = other.TryLock()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, nodes.Count(lockRoot+"/sweep"))

	require.NoError(t, holder.Unlock())
	ok, err = other.TryLock()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLock_WaitsForHolderToUnlock(t *testing.T) {
	nodes := zktest.NewFakeNodes()
	holder, err := NewDistributedLock(nodes, "sweep")
	require.NoError(t, err)
	require.NoError(t, holder.Lock())

	waiter, err := NewDistributedLock(nodes, "sweep")
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- waiter.WithTimeout(5 * time.Second).Lock() }()

	select {
	case err := <-done:
		t.Fatalf("waiter acquired while lock held: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, holder.Unlock())
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never acquired the released lock")
	}
	require.NoError(t, waiter.Unlock())
	assert.Equal(t, 0, nodes.Count(lockRoot+"/sweep"))
}

func TestLock_TimesOutAndRemovesOwnNode(t *testing.T) {
	nodes := zktest.NewFakeNodes()
	holder, err := NewDistributedLock(nodes, "sweep")
	require.NoError(t, err)
	require.NoError(t, holder.Lock())

	waiter, err := NewDistributedLock(nodes, "sweep")
	require.NoError(t, err)
	err = waiter.WithTimeout(30 * time.Millisecond).Lock()
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.Equal(t, 1, nodes.Count(lockRoot+"/sweep"))

	require.NoError(t, holder.Unlock())
}
