// Package performance samples process and system resources for chunkbench:
// the resident set size reported in the run summary and the available
// memory the loader checks before admitting a file.
package performance

import (
	"context"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/ajitpratap0/chunkbench/pkg/bencherrors"
)

// ResourceUsage contains resource usage information
type ResourceUsage struct {
	CPUPercent            float64
	MemoryRSS             uint64
	MemoryVMS             uint64
	SystemMemoryPercent   float64
	SystemMemoryAvailable uint64
	GoroutineCount        int
}

// ResourceMonitor monitors the current process and remembers the peak RSS
// seen across samples.
type ResourceMonitor struct {
	process      *process.Process
	startCPUTime float64
	startTime    time.Time

	mu      sync.Mutex
	peakRSS uint64
}

// NewResourceMonitor creates a resource monitor for this process.
func NewResourceMonitor(ctx context.Context) (*ResourceMonitor, error) {
	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())) //nolint:gosec // pid fits in int32
	if err != nil {
		return nil, err
	}

	rm := &ResourceMonitor{process: proc, startTime: time.Now()}
	if cpuTime, err := proc.TimesWithContext(ctx); err == nil {
		rm.startCPUTime = cpuTime.Total()
	}
	return rm, nil
}

// GetResourceUsage returns current resource usage. Fields the platform
// cannot report stay zero.
func (rm *ResourceMonitor) GetResourceUsage(ctx context.Context) *ResourceUsage {
	usage := &ResourceUsage{GoroutineCount: runtime.NumGoroutine()}

	// CPU usage
	if cpuTime, err := rm.process.TimesWithContext(ctx); err == nil {
		if elapsed := time.Since(rm.startTime).Seconds(); elapsed > 0 {
			usage.CPUPercent = ((cpuTime.Total() - rm.startCPUTime) / elapsed) * 100
		}
	}

	// Memory usage
	if memInfo, err := rm.process.MemoryInfoWithContext(ctx); err == nil {
		usage.MemoryRSS = memInfo.RSS
		usage.MemoryVMS = memInfo.VMS
	}

	// System memory
	if vmStat, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		usage.SystemMemoryPercent = vmStat.UsedPercent
		usage.SystemMemoryAvailable = vmStat.Available
	}

	rm.mu.Lock()
	rm.peakRSS = max(rm.peakRSS, usage.MemoryRSS)
	rm.mu.Unlock()

	return usage
}

// Sample records the current RSS and returns it.
func (rm *ResourceMonitor) Sample(ctx context.Context) uint64 {
	return rm.GetResourceUsage(ctx).MemoryRSS
}

// PeakRSS returns the largest RSS seen by GetResourceUsage or Sample.
func (rm *ResourceMonitor) PeakRSS() uint64 {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.peakRSS
}

// AvailableFunc reports the memory currently available to the process.
type AvailableFunc func(ctx context.Context) (uint64, error)

// SystemAvailable reads the system's available memory.
func SystemAvailable(ctx context.Context) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.Available, nil
}

// MemoryGuard refuses work whose buffers would not fit in available memory
// minus a headroom.
type MemoryGuard struct {
	headroom  uint64
	available AvailableFunc
}

// NewMemoryGuard creates a guard. A nil available func uses SystemAvailable.
func NewMemoryGuard(headroom uint64, available AvailableFunc) *MemoryGuard {
	if available == nil {
		available = SystemAvailable
	}
	return &MemoryGuard{headroom: headroom, available: available}
}

// Admit returns a file_load error when need bytes exceed the available
// memory minus the headroom. When available memory cannot be read the
// request is admitted.
func (g *MemoryGuard) Admit(ctx context.Context, need uint64) error {
	if g == nil {
		return nil
	}
	avail, err := g.available(ctx)
	if err != nil {
		return nil
	}

	var budget uint64
	if avail > g.headroom {
		budget = avail - g.headroom
	}
	if need > budget {
		return bencherrors.Newf(bencherrors.ErrorTypeFileLoad,
			"round trip needs %s but only %s is available after %s headroom",
			humanize.IBytes(need), humanize.IBytes(budget), humanize.IBytes(g.headroom)).
			WithDetail("need_bytes", need).
			WithDetail("available_bytes", avail)
	}
	return nil
}
