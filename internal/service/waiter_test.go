package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fired(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	case <-time.After(time.Second):
		return false
	}
}

func TestWaitRegistryNotify(t *testing.T) {
	w := NewWaitRegistry(time.Minute)
	defer w.Shutdown(time.Second)

	ch := w.RegisterWait(context.Background(), "g", 3)
	w.NotifyGame("g", 3)
	select {
	case <-ch:
		t.Fatal("same ply must not wake the waiter")
	default:
	}

	w.NotifyGame("g", 4)
	require.True(t, fired(ch))
	assert.Eventually(t, func() bool { return w.Waiting("g") == 0 }, time.Second, 5*time.Millisecond)
}

func TestWaitRegistryTimeoutAndCancel(t *testing.T) {
	w := NewWaitRegistry(20 * time.Millisecond)
	defer w.Shutdown(time.Second)

	assert.True(t, fired(w.RegisterWait(context.Background(), "g", 0)))

	long := NewWaitRegistry(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	ch := long.RegisterWait(ctx, "g", 0)
	assert.Equal(t, 1, long.Waiting("g"))
	cancel()
	assert.True(t, fired(ch))
	require.NoError(t, long.Shutdown(time.Second))
	assert.Equal(t, 0, long.Waiting("g"))
}

func TestWaitRegistryShutdown(t *testing.T) {
	w := NewWaitRegistry(time.Minute)
	a := w.RegisterWait(context.Background(), "a", 0)
	b := w.RegisterWait(context.Background(), "b", 0)

	require.NoError(t, w.Shutdown(time.Second))
	assert.True(t, fired(a))
	assert.True(t, fired(b))

	// Registrations after shutdown return immediately.
	assert.True(t, fired(w.RegisterWait(context.Background(), "c", 0)))
}
