// Copyright 2025 James Ross
package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/flyingrobots/aider-dispatch/internal/config"
)

func testCfg() config.Resilience {
	return config.Resilience{
		CPUThreshold:          90,
		MemoryThreshold:       90,
		DegradedModeThreshold: 0.8,
		SampleInterval:        time.Millisecond,
	}
}

func TestDegradedTransitions(t *testing.T) {
	m := New(testCfg(), nil)

	m.sample = func() (float64, float64, error) { return 50, 50, nil }
	m.takeSample()
	assert.False(t, m.Degraded())

	// cpu over the high-water mark
	m.sample = func() (float64, float64, error) { return 95, 50, nil }
	m.takeSample()
	assert.True(t, m.Degraded())

	// back under the threshold but above the recovery level: still degraded
	m.sample = func() (float64, float64, error) { return 80, 50, nil }
	m.takeSample()
	assert.True(t, m.Degraded())

	// below threshold*degraded_mode_threshold on both axes: recovered
	m.sample = func() (float64, float64, error) { return 50, 50, nil }
	m.takeSample()
	assert.False(t, m.Degraded())
}

func TestMemoryAloneTriggersDegraded(t *testing.T) {
	m := New(testCfg(), nil)
	m.sample = func() (float64, float64, error) { return 10, 99, nil }
	m.takeSample()
	assert.True(t, m.Degraded())
	snap := m.Current()
	assert.Equal(t, 99.0, snap.MemoryPercent)
	assert.Equal(t, 10.0, snap.CPUPercent)
}

func TestSampleErrorKeepsLastSnapshot(t *testing.T) {
	m := New(testCfg(), nil)
	m.sample = func() (float64, float64, error) { return 95, 10, nil }
	m.takeSample()
	assert.True(t, m.Degraded())

	m.sample = func() (float64, float64, error) { return 0, 0, assert.AnError }
	m.takeSample()
	assert.True(t, m.Degraded(), "failed sample must not clear state")
}

func TestRunStopsOnCancel(t *testing.T) {
	m := New(testCfg(), nil)
	m.sample = func() (float64, float64, error) { return 1, 1, nil }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop within a tick of cancellation")
	}
}
