package dockerx

import "encoding/json"

// ResourceLimits is the client-supplied bound for a launched container.
type ResourceLimits struct {
	CPUCount   float64  `json:"cpu_count"`
	Memory     string   `json:"memory"`
	GPUCount   int      `json:"gpu_count"`
	GPUDevices []string `json:"gpu_devices,omitempty"`
}

// Container describes a container in run and list results
type Container struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Status         string          `json:"status"`
	Image          string          `json:"image"`
	ResourceLimits *ResourceLimits `json:"resource_limits,omitempty"`
}

// RunResult is emitted as container_result
type RunResult struct {
	Success   bool       `json:"success"`
	Container *Container `json:"container,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// ListResult is emitted as container_list
type ListResult struct {
	Success    bool        `json:"success"`
	Containers []Container `json:"containers"`
	Error      string      `json:"error,omitempty"`
}

// MarshalJSON always writes a containers array on success and omits it on failure.
func (r ListResult) MarshalJSON() ([]byte, error) {
	if !r.Success {
		return json.Marshal(struct {
			Success bool   `json:"success"`
			Error   string `json:"error"`
		}{Error: r.Error})
	}
	containers := r.Containers
	if containers == nil {
		containers = []Container{}
	}
	return json.Marshal(struct {
		Success    bool        `json:"success"`
		Containers []Container `json:"containers"`
	}{Success: true, Containers: containers})
}

// StopResult is emitted as container_stop_result
type StopResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
