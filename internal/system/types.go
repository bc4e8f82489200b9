package system

// SystemInfo represents the static machine facts sent once per connection
type SystemInfo struct {
	OS      string    `json:"OS"`
	CPU     string    `json:"CPU"`
	Cores   int       `json:"Cores"`
	Threads int       `json:"Threads"`
	RAM     float64   `json:"RAM"` // GiB, two decimals
	GPU     []GPUInfo `json:"GPU,omitempty"`
}

// GPUInfo represents one enumerated GPU
type GPUInfo struct {
	Name   string  `json:"Name"`
	Memory float64 `json:"Memory"` // MiB as reported by the driver
}

// UsageSnapshot represents one utilization sample. All values are percentages in [0,100].
type UsageSnapshot struct {
	CPU       float64 `json:"CPU_Usage"`
	Memory    float64 `json:"Memory_Usage"`
	Disk      float64 `json:"Disk_Usage"`
	GPU       float64 `json:"GPU_Usage"`
	GPUMemory float64 `json:"GPU_Memory_Usage"`
}
