package services

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/creasty/defaults"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
)

// ResourceSnapshot captures process and host usage at a point in time
type ResourceSnapshot struct {
	Timestamp       time.Time `json:"timestamp"`
	CPUUsage        float64   `json:"cpu_usage"`
	MemoryUsage     float64   `json:"memory_usage"`
	MemoryTotalGB   float64   `json:"memory_total_gb"`
	Goroutines      int       `json:"goroutines"`
	ActiveTimeouts  int       `json:"active_operations"`
	HeapAllocMB     float64   `json:"heap_alloc_mb"`
	CPUOverLimit    bool      `json:"cpu_over_limit"`
	MemoryOverLimit bool      `json:"memory_over_limit"`
}

// ResourceMonitorConfig holds the thresholds reported by the health endpoint.
type ResourceMonitorConfig struct {
	SampleInterval  time.Duration `yaml:"sample_interval" default:"30s"`
	MaxHistorySize  int           `yaml:"max_history_size" default:"60"`
	CPUThreshold    float64       `yaml:"cpu_threshold" default:"85.0"`
	MemoryThreshold float64       `yaml:"memory_threshold" default:"90.0"`
}

// UsageSampler reads host CPU and memory usage.
type UsageSampler func(ctx context.Context) (cpuPct, memPct, memTotalGB float64, err error)

// ResourceMonitor samples host usage in the background so health checks
// never block on a CPU measurement.
type ResourceMonitor struct {
	mu       sync.RWMutex
	cfg      ResourceMonitorConfig
	sampler  UsageSampler
	timeouts *TimeoutManager
	history  []ResourceSnapshot
	logger   *logrus.Logger

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

func NewResourceMonitor(cfg ResourceMonitorConfig, timeouts *TimeoutManager, logger *logrus.Logger) *ResourceMonitor {
	if logger == nil {
		logger = logrus.New()
	}
	if err := defaults.Set(&cfg); err != nil {
		logger.WithError(err).Warn("Could not apply resource monitor defaults")
	}
	return &ResourceMonitor{
		cfg:      cfg,
		sampler:  gopsutilSampler,
		timeouts: timeouts,
		history:  make([]ResourceSnapshot, 0),
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

func gopsutilSampler(ctx context.Context) (float64, float64, float64, error) {
	cpuPercent, err := cpu.PercentWithContext(ctx, time.Second, false)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to get CPU usage: %w", err)
	}
	memInfo, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to get memory usage: %w", err)
	}
	var cpuPct float64
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}
	return cpuPct, memInfo.UsedPercent, float64(memInfo.Total) / (1024 * 1024 * 1024), nil
}

// Sample takes one measurement and appends it to the history.
func (m *ResourceMonitor) Sample(ctx context.Context) (ResourceSnapshot, error) {
	cpuPct, memPct, memTotal, err := m.sampler(ctx)
	if err != nil {
		return ResourceSnapshot{}, err
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	snap := ResourceSnapshot{
		Timestamp:       time.Now(),
		CPUUsage:        cpuPct,
		MemoryUsage:     memPct,
		MemoryTotalGB:   memTotal,
		Goroutines:      runtime.NumGoroutine(),
		HeapAllocMB:     float64(ms.HeapAlloc) / (1024 * 1024),
		CPUOverLimit:    cpuPct > m.cfg.CPUThreshold,
		MemoryOverLimit: memPct > m.cfg.MemoryThreshold,
	}
	if m.timeouts != nil {
		snap.ActiveTimeouts = m.timeouts.ActiveOperationCount()
	}

	m.mu.Lock()
	m.history = append(m.history, snap)
	if len(m.history) > m.cfg.MaxHistorySize {
		m.history = m.history[1:]
	}
	m.mu.Unlock()

	if snap.CPUOverLimit || snap.MemoryOverLimit {
		m.logger.WithFields(logrus.Fields{
			"cpu_usage":    snap.CPUUsage,
			"memory_usage": snap.MemoryUsage,
		}).Warn("Resource usage above threshold")
	}
	return snap, nil
}

// Latest returns the most recent snapshot and whether one exists.
func (m *ResourceMonitor) Latest() (ResourceSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.history) == 0 {
		return ResourceSnapshot{}, false
	}
	return m.history[len(m.history)-1], true
}

// History returns up to limit recent snapshots, oldest first.
func (m *ResourceMonitor) History(limit int) []ResourceSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.history) {
		limit = len(m.history)
	}
	out := make([]ResourceSnapshot, limit)
	copy(out, m.history[len(m.history)-limit:])
	return out
}

// Healthy reports false when the latest sample crossed a threshold.
func (m *ResourceMonitor) Healthy() bool {
	snap, ok := m.Latest()
	if !ok {
		return true
	}
	return !snap.CPUOverLimit && !snap.MemoryOverLimit
}

// Start samples every configured interval until Stop is called.
func (m *ResourceMonitor) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.SampleInterval)
		defer ticker.Stop()
		for {
			if _, err := m.Sample(context.Background()); err != nil {
				m.logger.WithError(err).Debug("Resource sample failed")
			}
			select {
			case <-m.stop:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop ends background sampling.
func (m *ResourceMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()
}
