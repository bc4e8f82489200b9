package web

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zishang520/socket.io/servers/socket/v3"

	"rentalagent/internal/metrics"
	"rentalagent/internal/netx"
	"rentalagent/internal/system"
)

// Events sent by the dashboard service.
const (
	EventSystemInfo        = "system_info"
	EventUsageStats        = "usage_stats"
	EventRequestSystemInfo = "request_system_info"
)

// Client is one connected socket as seen by the services.
type Client interface {
	ID() string
	Emit(event string, payload any)
}

// UsageSampler returns a fresh utilization sample.
type UsageSampler interface {
	Sample(ctx context.Context) (system.UsageSnapshot, error)
}

// DashboardOptions holds the stream timing.
type DashboardOptions struct {
	StartupDelay time.Duration // before the first system_info
	Interval     time.Duration // between usage_stats
}

// Dashboard pushes system_info once and usage_stats periodically to each connected client.
type Dashboard struct {
	info    *system.InfoCache
	sampler UsageSampler
	clients *ClientSet
	opts    DashboardOptions
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewDashboard(info *system.InfoCache, sampler UsageSampler, opts DashboardOptions, m *metrics.Metrics, logger *slog.Logger) *Dashboard {
	return &Dashboard{
		info:    info,
		sampler: sampler,
		clients: NewClientSet(),
		opts:    opts,
		metrics: m,
		logger:  logger,
	}
}

// Register binds the dashboard to a namespace. ctx bounds every stream.
func (d *Dashboard) Register(ctx context.Context, ns *netx.Namespace) {
	ns.OnConnect(func(client *socket.Socket) {
		d.Connect(ctx, netx.Client{Socket: client})
	})
	ns.AddEvent(EventRequestSystemInfo, func(client *socket.Socket, data ...any) {
		d.SendSystemInfo(ctx, netx.Client{Socket: client})
	})
	ns.AddEvent("disconnect", func(client *socket.Socket, reason ...any) {
		d.Disconnect(string(client.Id()), fmt.Sprint(reason...))
	})
}

// Connect registers the client and starts its stream.
func (d *Dashboard) Connect(ctx context.Context, client Client) {
	streamCtx, cancel := context.WithCancel(ctx)
	d.clients.Add(client.ID(), cancel)
	d.metrics.SetConnected(d.clients.Len())
	d.logger.Info("Client connected", slog.String("client_id", client.ID()))

	go d.stream(streamCtx, client)
}

// Disconnect removes the client; its stream exits before sending anything else.
func (d *Dashboard) Disconnect(id, reason string) {
	if !d.clients.Remove(id) {
		return
	}
	d.metrics.SetConnected(d.clients.Len())
	d.logger.Info("Client disconnected", slog.String("client_id", id), slog.String("reason", reason))
}

// SendSystemInfo answers an explicit request_system_info.
func (d *Dashboard) SendSystemInfo(ctx context.Context, client Client) {
	d.emit(client, EventSystemInfo, d.info.Get(ctx))
	d.logger.Debug("Sent system info by request", slog.String("client_id", client.ID()))
}

// Connected returns the number of live clients.
func (d *Dashboard) Connected() int {
	return d.clients.Len()
}

// Close ends every stream.
func (d *Dashboard) Close() {
	d.clients.Close()
	d.metrics.SetConnected(0)
}

// stream is the per-connection loop. Liveness is checked immediately before
// every send; any failure ends the loop without notifying the client.
func (d *Dashboard) stream(ctx context.Context, client Client) {
	id := client.ID()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Telemetry stream crashed", slog.String("client_id", id), slog.Any("panic", r))
		}
	}()

	if !sleep(ctx, d.opts.StartupDelay) {
		return
	}
	info := d.info.Get(ctx)
	if !d.clients.IfLive(id, func() { d.emit(client, EventSystemInfo, info) }) {
		return
	}
	d.logger.Debug("Sent system info", slog.String("client_id", id))

	for {
		usage, err := d.sampler.Sample(ctx)
		if err != nil {
			if ctx.Err() == nil {
				d.logger.Error("Error sending updates", slog.String("client_id", id), slog.Any("error", err))
			}
			return
		}
		if !d.clients.IfLive(id, func() { d.emit(client, EventUsageStats, usage) }) {
			return
		}
		if !sleep(ctx, d.opts.Interval) {
			return
		}
	}
}

func (d *Dashboard) emit(client Client, event string, payload any) {
	client.Emit(event, payload)
	d.metrics.Emitted(event)
}

// sleep waits for dur and reports false if ctx ended first.
func sleep(ctx context.Context, dur time.Duration) bool {
	if dur <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(dur)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
