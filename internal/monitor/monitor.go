// Copyright 2025 James Ross

// Package monitor samples CPU and memory usage on a ticker and flags
// degraded mode when either crosses its high-water threshold. Intake stays
// paused until both fall back below degraded_mode_threshold × limit.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"go.uber.org/zap"

	"github.com/flyingrobots/aider-dispatch/internal/config"
	"github.com/flyingrobots/aider-dispatch/internal/obs"
)

// Snapshot is the latest sampled state. Single writer, many readers.
type Snapshot struct {
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	Degraded      bool      `json:"degraded"`
	SampledAt     time.Time `json:"sampled_at"`
}

// sampleFunc returns (cpu%, mem%); swapped out in tests.
type sampleFunc func() (float64, float64, error)

// Monitor runs the sampling loop.
type Monitor struct {
	cfg    config.Resilience
	log    *zap.Logger
	sample sampleFunc

	mu   sync.RWMutex
	last Snapshot
}

func New(cfg config.Resilience, log *zap.Logger) *Monitor {
	return &Monitor{cfg: cfg, log: log, sample: systemSample}
}

func systemSample() (float64, float64, error) {
	cpuPcts, err := cpu.Percent(0, false)
	if err != nil {
		return 0, 0, err
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, err
	}
	cpuPct := 0.0
	if len(cpuPcts) > 0 {
		cpuPct = cpuPcts[0]
	}
	return cpuPct, vm.UsedPercent, nil
}

// Run samples until ctx is cancelled; it returns within one tick of
// cancellation.
func (m *Monitor) Run(ctx context.Context) {
	interval := m.cfg.SampleInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.takeSample()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.takeSample()
		}
	}
}

func (m *Monitor) takeSample() {
	cpuPct, memPct, err := m.sample()
	if err != nil {
		if m.log != nil {
			m.log.Debug("resource sample failed", obs.Err(err))
		}
		return
	}

	m.mu.Lock()
	wasDegraded := m.last.Degraded
	degraded := wasDegraded
	if cpuPct > m.cfg.CPUThreshold || memPct > m.cfg.MemoryThreshold {
		degraded = true
	} else if cpuPct < m.cfg.CPUThreshold*m.cfg.DegradedModeThreshold &&
		memPct < m.cfg.MemoryThreshold*m.cfg.DegradedModeThreshold {
		degraded = false
	}
	m.last = Snapshot{
		CPUPercent:    cpuPct,
		MemoryPercent: memPct,
		Degraded:      degraded,
		SampledAt:     time.Now(),
	}
	m.mu.Unlock()

	if degraded {
		obs.DegradedMode.Set(1)
	} else {
		obs.DegradedMode.Set(0)
	}
	if degraded && !wasDegraded && m.log != nil {
		m.log.Warn("entering degraded mode",
			obs.F64("cpu_percent", cpuPct), obs.F64("memory_percent", memPct))
	}
	if !degraded && wasDegraded && m.log != nil {
		m.log.Info("leaving degraded mode",
			obs.F64("cpu_percent", cpuPct), obs.F64("memory_percent", memPct))
	}
}

// Current returns the latest snapshot.
func (m *Monitor) Current() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Degraded reports whether intake should pause.
func (m *Monitor) Degraded() bool {
	return m.Current().Degraded
}
