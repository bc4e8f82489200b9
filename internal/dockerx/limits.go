package dockerx

import (
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-units"
)

const (
	// DefaultCPUPeriod is the CFS period docker uses when none is given.
	DefaultCPUPeriod int64 = 100000
	// DefaultMemory applies when the client sends no memory limit.
	DefaultMemory = "1g"
)

// Resources translates client limits into docker host resources.
// CPUCount <= 0 leaves both CPU period and quota unset, meaning no CPU limit.
func (l ResourceLimits) Resources() (container.Resources, error) {
	var res container.Resources

	memory := l.Memory
	if memory == "" {
		memory = DefaultMemory
	}
	memBytes, err := units.RAMInBytes(memory)
	if err != nil {
		return container.Resources{}, fmt.Errorf("invalid memory limit %q: %w", memory, err)
	}
	if memBytes <= 0 {
		return container.Resources{}, fmt.Errorf("invalid memory limit %q: must be positive", memory)
	}
	res.Memory = memBytes

	if l.CPUCount > 0 {
		res.CPUPeriod = DefaultCPUPeriod
		res.CPUQuota = int64(float64(DefaultCPUPeriod) * l.CPUCount)
	}

	if l.GPUCount > 0 {
		req := container.DeviceRequest{
			Capabilities: [][]string{{"gpu"}},
		}
		if len(l.GPUDevices) > 0 {
			// The daemon rejects Count together with DeviceIDs.
			req.DeviceIDs = append([]string(nil), l.GPUDevices...)
		} else {
			req.Count = l.GPUCount
		}
		res.DeviceRequests = []container.DeviceRequest{req}
	}

	return res, nil
}
