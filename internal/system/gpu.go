package system

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// RunFunc runs an external command and returns its stdout.
// A non-zero exit must be reported as an error.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// ErrMalformedGPUOutput is returned when the query tool output has no usable data row.
var ErrMalformedGPUOutput = errors.New("malformed GPU query output")

// GPUQuery talks to an nvidia-smi compatible command line tool.
type GPUQuery struct {
	Command string
	Run     RunFunc
}

// NewGPUQuery returns a query that executes command on the host.
func NewGPUQuery(command string) *GPUQuery {
	return &GPUQuery{Command: command, Run: execRun}
}

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Utilization returns utilization.gpu and utilization.memory of the first GPU.
// Each value that is not a plain integer percentage reads as 0; the error only
// reports why nothing could be read at all.
func (q *GPUQuery) Utilization(ctx context.Context) (float64, float64, error) {
	if q == nil || q.Command == "" {
		return 0, 0, errors.New("no GPU query command configured")
	}

	out, err := q.Run(ctx, q.Command, "--query-gpu=utilization.gpu,utilization.memory", "--format=csv")
	if err != nil {
		return 0, 0, fmt.Errorf("failed to query GPU utilization: %w", err)
	}

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) < 2 {
		return 0, 0, ErrMalformedGPUOutput
	}
	values := strings.Split(lines[1], ",")
	if len(values) < 2 {
		return 0, 0, ErrMalformedGPUOutput
	}

	return parsePercent(values[0]), parsePercent(values[1]), nil
}

// parsePercent accepts "37 %", "37%" or "37". Anything else, including
// "[N/A]" and fractional values, is 0.
func parsePercent(field string) float64 {
	s := strings.TrimSpace(strings.ReplaceAll(field, "%", ""))
	if s == "" {
		return 0
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// Inventory enumerates GPU names and total memory in MiB.
func (q *GPUQuery) Inventory(ctx context.Context) ([]GPUInfo, error) {
	if q == nil || q.Command == "" {
		return nil, errors.New("no GPU query command configured")
	}

	out, err := q.Run(ctx, q.Command, "--query-gpu=name,memory.total", "--format=csv,noheader,nounits")
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate GPUs: %w", err)
	}

	var gpus []GPUInfo
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		idx := strings.LastIndex(line, ",")
		if idx <= 0 {
			continue
		}
		name := strings.TrimSpace(line[:idx])
		memory, err := strconv.ParseFloat(strings.TrimSpace(line[idx+1:]), 64)
		if name == "" || err != nil {
			continue
		}
		gpus = append(gpus, GPUInfo{Name: name, Memory: memory})
	}
	return gpus, nil
}
