// Copyright 2025 James Ross
package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueBounds(t *testing.T) {
	q := NewQueue(2)
	assert.True(t, q.TryAcquire())
	assert.True(t, q.TryAcquire())
	assert.False(t, q.TryAcquire(), "third acquire must be rejected, not blocked")
	assert.Equal(t, 2, q.Depth())

	q.Release()
	assert.True(t, q.TryAcquire())
}

func TestQueueClose(t *testing.T) {
	q := NewQueue(2)
	assert.True(t, q.TryAcquire())
	q.Close()
	assert.True(t, q.Closed())
	assert.False(t, q.TryAcquire())
	// releasing an in-flight slot after close still works
	q.Release()
	assert.Equal(t, 0, q.Depth())
}

func TestQueueReleaseOnEmptyIsSafe(t *testing.T) {
	q := NewQueue(1)
	q.Release()
	assert.Equal(t, 0, q.Depth())
	assert.True(t, q.TryAcquire())
}
