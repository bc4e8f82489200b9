package system

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"sync"
)

// InfoCache computes SystemInfo once and hands out the stored value afterwards.
// There is no invalidation: hardware changes during the process lifetime are not observed.
type InfoCache struct {
	probe  InfoProbe
	logger *slog.Logger

	once sync.Once
	info SystemInfo
}

func NewInfoCache(probe InfoProbe, logger *slog.Logger) *InfoCache {
	return &InfoCache{probe: probe, logger: logger}
}

// Get returns the cached SystemInfo, computing it on first use.
// Concurrent first callers wait for the single computation.
func (c *InfoCache) Get(ctx context.Context) SystemInfo {
	c.once.Do(func() {
		c.info = c.collect(ctx)
	})
	info := c.info
	info.GPU = slices.Clone(c.info.GPU)
	return info
}

// Prime computes the cache ahead of the first connection.
func (c *InfoCache) Prime(ctx context.Context) {
	info := c.Get(ctx)
	c.logger.Info("System info cached",
		slog.String("os", info.OS),
		slog.String("cpu", info.CPU),
		slog.Int("cores", info.Cores),
		slog.Int("threads", info.Threads),
		slog.Float64("ram_gib", info.RAM),
		slog.Int("gpus", len(info.GPU)),
	)
}

func (c *InfoCache) collect(ctx context.Context) SystemInfo {
	info := SystemInfo{
		OS:  "Unknown OS",
		CPU: "Unknown CPU",
	}

	if label, err := c.probe.OS(ctx); err != nil {
		c.logger.Warn("Failed to read OS info", slog.Any("error", err))
	} else {
		info.OS = label
	}

	if model, err := c.probe.CPUModel(ctx); err != nil {
		c.logger.Warn("Failed to read CPU model", slog.Any("error", err))
	} else if model != "" {
		info.CPU = model
	}

	if physical, logical, err := c.probe.CPUCounts(ctx); err != nil {
		c.logger.Warn("Failed to count CPUs", slog.Any("error", err))
	} else {
		info.Cores, info.Threads = physical, logical
	}

	if total, err := c.probe.TotalMemory(ctx); err != nil {
		c.logger.Warn("Failed to read total memory", slog.Any("error", err))
	} else {
		info.RAM = toGiB(total)
	}

	// GPU enumeration is optional; the field is simply omitted.
	gpus, err := c.probe.GPUs(ctx)
	if err != nil {
		c.logger.Debug("GPU enumeration unavailable", slog.Any("error", err))
	} else if len(gpus) > 0 {
		info.GPU = gpus
	}

	return info
}

func toGiB(bytes uint64) float64 {
	return math.Round(float64(bytes)/(1<<30)*100) / 100
}
