package web

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"rentalagent/internal/system"
)

type emitted struct {
	event   string
	payload any
	at      time.Time
}

// recordingClient stands in for a socket and records every emit.
type recordingClient struct {
	id     string
	mu     sync.Mutex
	events []emitted
}

func newRecordingClient(id string) *recordingClient {
	return &recordingClient{id: id}
}

func (c *recordingClient) ID() string { return c.id }

func (c *recordingClient) Emit(event string, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, emitted{event: event, payload: payload, at: time.Now()})
}

func (c *recordingClient) snapshot() []emitted {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]emitted(nil), c.events...)
}

func (c *recordingClient) count(event string) int {
	n := 0
	for _, e := range c.snapshot() {
		if e.event == event {
			n++
		}
	}
	return n
}

type staticProbe struct {
	calls atomic.Int32
}

func (p *staticProbe) OS(context.Context) (string, error) {
	p.calls.Add(1)
	return "Linux 6.8.0", nil
}

func (p *staticProbe) CPUModel(context.Context) (string, error) { return "Intel Xeon", nil }

func (p *staticProbe) CPUCounts(context.Context) (int, int, error) { return 4, 8, nil }

func (p *staticProbe) TotalMemory(context.Context) (uint64, error) { return 32 << 30, nil }

func (p *staticProbe) GPUs(context.Context) ([]system.GPUInfo, error) { return nil, nil }

type fakeSampler struct {
	calls atomic.Int32
	err   error
	panic bool
}

func (s *fakeSampler) Sample(context.Context) (system.UsageSnapshot, error) {
	n := s.calls.Add(1)
	if s.panic {
		panic("probe exploded")
	}
	if s.err != nil {
		return system.UsageSnapshot{}, s.err
	}
	return system.UsageSnapshot{CPU: float64(n), Memory: 50, Disk: 60}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
