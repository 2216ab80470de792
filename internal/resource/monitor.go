// Package resource samples host memory and CPU utilisation on a background
// interval and exposes admission predicates so the inference worker can
// apply backpressure instead of outright rejection when the host is under
// pressure.
package resource

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/ManuGH/xg2g/internal/log"
	"github.com/ManuGH/xg2g/internal/metrics"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// lifecycle mirrors the monitor's {created, running, stopped} states.
type lifecycle int

const (
	lifecycleCreated lifecycle = iota
	lifecycleRunning
	lifecycleStopped
)

// State is a sampled snapshot of host resource pressure.
type State struct {
	MemoryPercent   float64
	MemoryAvailable uint64 // MB
	MemoryTotal     uint64 // MB
	CPUPercent      float64
	Critical        bool // MemoryPercent > threshold
	SampledAt       time.Time
}

// Monitor is a process-wide singleton sampler. Callers obtain one from the
// daemon's construction-time container rather than a package-level global.
type Monitor struct {
	thresholdPercent float64
	checkInterval    time.Duration

	mu    sync.RWMutex
	state State

	lifecycleMu sync.Mutex
	lifecycle   lifecycle
	stop        chan struct{}
	done        chan struct{}
}

// New creates a Monitor that will consider the host critical once memory
// utilisation exceeds thresholdPercent, sampling every checkInterval once
// started.
func New(thresholdPercent float64, checkInterval time.Duration) *Monitor {
	return &Monitor{
		thresholdPercent: thresholdPercent,
		checkInterval:    checkInterval,
	}
}

// Start begins the background sampling loop. It is idempotent: calling
// Start on an already-running or stopped monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()
	if m.lifecycle != lifecycleCreated {
		return
	}
	m.lifecycle = lifecycleRunning
	m.stop = make(chan struct{})
	m.done = make(chan struct{})

	// Sample once synchronously so a caller reading Status() immediately
	// after Start does not observe the zero value.
	m.sample()

	go m.run(ctx)
}

// Stop halts the sampling loop and blocks until it has exited.
func (m *Monitor) Stop() {
	m.lifecycleMu.Lock()
	if m.lifecycle != lifecycleRunning {
		m.lifecycleMu.Unlock()
		return
	}
	m.lifecycle = lifecycleStopped
	close(m.stop)
	m.lifecycleMu.Unlock()

	<-m.done
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

func (m *Monitor) sample() {
	logger := log.WithComponent("resource-monitor")

	vm, err := mem.VirtualMemory()
	if err != nil {
		logger.Warn().Err(err).Msg("failed to sample host memory")
		return
	}

	cpuPercent, err := sampleCPUPercent()
	if err != nil {
		logger.Warn().Err(err).Msg("failed to sample host cpu")
	}

	critical := vm.UsedPercent > m.thresholdPercent

	s := State{
		MemoryPercent:   vm.UsedPercent,
		MemoryAvailable: vm.Available / (1024 * 1024),
		MemoryTotal:     vm.Total / (1024 * 1024),
		CPUPercent:      cpuPercent,
		Critical:        critical,
		SampledAt:       time.Now(),
	}

	m.mu.Lock()
	m.state = s
	m.mu.Unlock()

	metrics.RAMPercent.Set(s.MemoryPercent)
	metrics.CPUPercent.Set(s.CPUPercent)

	// Logged on every sample while critical holds, not just the first
	// crossing: a caller polling Status during a sustained pressure episode
	// should see the warning recur, matching each sample it corresponds to.
	if critical {
		logger.Warn().
			Float64(log.FieldRAMPercent, s.MemoryPercent).
			Msg("host memory utilisation crossed critical threshold")
	}
}

// Status returns the most recent sample.
func (m *Monitor) Status() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsSafeToRun reports whether the host is currently below the critical
// memory threshold.
func (m *Monitor) IsSafeToRun() bool {
	return !m.Status().Critical
}

// CanAllocate projects whether adding extraMB of memory usage would push
// the host over threshold, and returns the negation: true means the
// allocation is currently safe to attempt.
func (m *Monitor) CanAllocate(extraMB uint64) bool {
	s := m.Status()
	if s.MemoryTotal == 0 {
		// No sample yet; fail open rather than block the very first request.
		return true
	}
	usedMB := s.MemoryTotal - s.MemoryAvailable
	projectedPercent := float64(usedMB+extraMB) / float64(s.MemoryTotal) * 100
	return projectedPercent <= m.thresholdPercent
}

// ProcessRSSMB returns this process's own resident set size in megabytes,
// used by the /status endpoint's rss_mb field.
func ProcessRSSMB() (uint64, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}
	info, err := proc.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return info.RSS / (1024 * 1024), nil
}
