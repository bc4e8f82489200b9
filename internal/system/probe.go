package system

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// InfoProbe reads the facts that make up SystemInfo.
type InfoProbe interface {
	OS(ctx context.Context) (string, error)
	CPUModel(ctx context.Context) (string, error)
	CPUCounts(ctx context.Context) (physical, logical int, err error)
	TotalMemory(ctx context.Context) (uint64, error)
	GPUs(ctx context.Context) ([]GPUInfo, error)
}

// UsageProbe reads instantaneous utilization.
type UsageProbe interface {
	CPUPercent(ctx context.Context, window time.Duration) (float64, error)
	MemoryPercent(ctx context.Context) (float64, error)
	DiskPercent(ctx context.Context, path string) (float64, error)
	GPUPercent(ctx context.Context) (gpu, memory float64, err error)
}

// HostProbe implements InfoProbe and UsageProbe with gopsutil and the GPU query tool.
type HostProbe struct {
	GPU *GPUQuery
}

// NewHostProbe returns a probe that queries GPUs through the given command (usually nvidia-smi).
func NewHostProbe(gpuCommand string) *HostProbe {
	return &HostProbe{GPU: NewGPUQuery(gpuCommand)}
}

var titleCase = cases.Title(language.Und)

// OS returns e.g. "Linux 6.8.0-45-generic".
func (p *HostProbe) OS(ctx context.Context) (string, error) {
	hostInfo, err := host.InfoWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get host info: %w", err)
	}
	return fmt.Sprintf("%s %s", titleCase.String(hostInfo.OS), hostInfo.KernelVersion), nil
}

func (p *HostProbe) CPUModel(ctx context.Context) (string, error) {
	cpuInfo, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get CPU info: %w", err)
	}
	if len(cpuInfo) == 0 {
		return "", fmt.Errorf("no CPU information available")
	}
	return cpuInfo[0].ModelName, nil
}

func (p *HostProbe) CPUCounts(ctx context.Context) (int, int, error) {
	physical, err := cpu.CountsWithContext(ctx, false)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count physical cores: %w", err)
	}
	logical, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count logical cores: %w", err)
	}
	return physical, logical, nil
}

func (p *HostProbe) TotalMemory(ctx context.Context) (uint64, error) {
	memStat, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get memory info: %w", err)
	}
	return memStat.Total, nil
}

func (p *HostProbe) GPUs(ctx context.Context) ([]GPUInfo, error) {
	return p.GPU.Inventory(ctx)
}

func (p *HostProbe) CPUPercent(ctx context.Context, window time.Duration) (float64, error) {
	cpuPercent, err := cpu.PercentWithContext(ctx, window, false)
	if err != nil {
		return 0, fmt.Errorf("failed to get CPU usage: %w", err)
	}
	if len(cpuPercent) == 0 {
		return 0, nil
	}
	return cpuPercent[0], nil
}

func (p *HostProbe) MemoryPercent(ctx context.Context) (float64, error) {
	memStat, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get memory info: %w", err)
	}
	return memStat.UsedPercent, nil
}

func (p *HostProbe) DiskPercent(ctx context.Context, path string) (float64, error) {
	diskStat, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("failed to get disk usage for path %s: %w", path, err)
	}
	return diskStat.UsedPercent, nil
}

func (p *HostProbe) GPUPercent(ctx context.Context) (float64, float64, error) {
	return p.GPU.Utilization(ctx)
}
