package perfmon

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// Sample is one reading of host resource usage.
type Sample struct {
	CPUPercent        float64 `json:"cpu_percent"`
	MemoryPercent     float64 `json:"memory_percent"`
	MemoryAvailableGB float64 `json:"memory_available_gb"`
	DiskPercent       float64 `json:"disk_percent"`
}

// Probe reads host resource usage.
type Probe interface {
	Sample(ctx context.Context) (Sample, error)
}

// SystemProbe reads the host via gopsutil.
type SystemProbe struct{}

func (SystemProbe) Sample(ctx context.Context) (Sample, error) {
	var sample Sample

	// Zero interval measures against the previous call instead of blocking.
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return sample, err
	}
	if len(percents) > 0 {
		sample.CPUPercent = percents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return sample, err
	}
	sample.MemoryPercent = vm.UsedPercent
	sample.MemoryAvailableGB = float64(vm.Available) / (1 << 30)

	usage, err := disk.UsageWithContext(ctx, diskRoot())
	if err == nil {
		sample.DiskPercent = usage.UsedPercent
	}
	return sample, nil
}

func diskRoot() string {
	if runtime.GOOS == "windows" {
		return `C:\`
	}
	return "/"
}
