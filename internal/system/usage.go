package system

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Sampler produces a fresh UsageSnapshot on every call and keeps no history.
type Sampler struct {
	probe     UsageProbe
	cpuWindow time.Duration
	diskPath  string
	logger    *slog.Logger

	// OnGPUFailure, if set, is called whenever the GPU query falls back to zero.
	OnGPUFailure func(error)
}

func NewSampler(probe UsageProbe, cpuWindow time.Duration, diskPath string, logger *slog.Logger) *Sampler {
	return &Sampler{
		probe:     probe,
		cpuWindow: cpuWindow,
		diskPath:  diskPath,
		logger:    logger,
	}
}

// Sample blocks for the CPU measurement window and returns current utilization.
//
// GPU failures never surface: a missing tool, a non-zero exit or unparsable
// output all read as 0% GPU and 0% GPU memory. An idle GPU and a failed query
// are therefore indistinguishable to clients. CPU, memory and disk failures
// are returned as errors.
func (s *Sampler) Sample(ctx context.Context) (UsageSnapshot, error) {
	var usage UsageSnapshot

	gpu, gpuMem, err := s.probe.GPUPercent(ctx)
	if err != nil {
		s.logger.Debug("GPU query failed, reporting zero", slog.Any("error", err))
		if s.OnGPUFailure != nil {
			s.OnGPUFailure(err)
		}
		gpu, gpuMem = 0, 0
	}
	usage.GPU = clampPercent(gpu)
	usage.GPUMemory = clampPercent(gpuMem)

	cpuPercent, err := s.probe.CPUPercent(ctx, s.cpuWindow)
	if err != nil {
		return UsageSnapshot{}, fmt.Errorf("failed to sample CPU usage: %w", err)
	}
	usage.CPU = clampPercent(cpuPercent)

	memPercent, err := s.probe.MemoryPercent(ctx)
	if err != nil {
		return UsageSnapshot{}, fmt.Errorf("failed to sample memory usage: %w", err)
	}
	usage.Memory = clampPercent(memPercent)

	diskPercent, err := s.probe.DiskPercent(ctx, s.diskPath)
	if err != nil {
		return UsageSnapshot{}, fmt.Errorf("failed to sample disk usage: %w", err)
	}
	usage.Disk = clampPercent(diskPercent)

	return usage, nil
}

func clampPercent(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
