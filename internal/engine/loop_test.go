package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_DrainRunsTasksInOrder(t *testing.T) {
	l := NewLoop(nil)

	var order []int
	require.True(t, l.Post(func() { order = append(order, 1) }))
	require.True(t, l.Post(func() { order = append(order, 2) }))
	require.True(t, l.Post(func() {
		order = append(order, 3)
		// Tasks may enqueue follow-up tasks; the same drain picks them up.
		l.Post(func() { order = append(order, 4) })
	}))

	l.Drain()
	assert.Equal(t, []int{1, 2, 3, 4}, order)
	assert.Equal(t, 0, l.Pending())
}

func TestLoop_PostAfterStopIsDropped(t *testing.T) {
	l := NewLoop(nil)
	l.Stop()
	assert.False(t, l.Post(func() {}))
}

func TestLoop_RunStopsOnContextCancel(t *testing.T) {
	l := NewLoop(nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	ran := make(chan struct{})
	require.True(t, l.Post(func() { close(ran) }))
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("posted task did not run")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop on cancel")
	}
}

func TestLoop_RunReturnsOnStop(t *testing.T) {
	l := NewLoop(nil)

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()

	l.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
}
