package web

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cast"
	"github.com/zishang520/socket.io/servers/socket/v3"

	"rentalagent/internal/dockerx"
	"rentalagent/internal/metrics"
	"rentalagent/internal/netx"
)

// Container events, client requests first.
const (
	EventRunContainer        = "run_container"
	EventListContainers      = "list_containers"
	EventStopContainer       = "stop_container_request"
	EventContainerResult     = "container_result"
	EventContainerList       = "container_list"
	EventContainerStopResult = "container_stop_result"
)

// ContainerController is implemented by *dockerx.Controller.
type ContainerController interface {
	Run(ctx context.Context, image string, limits dockerx.ResourceLimits, name string) dockerx.RunResult
	List(ctx context.Context) dockerx.ListResult
	Stop(ctx context.Context, id string) dockerx.StopResult
}

// Containers answers container requests synchronously on the requesting socket.
// Operations carry no timeout of their own; they end with ctx.
type Containers struct {
	ctrl    ContainerController
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewContainers(ctrl ContainerController, m *metrics.Metrics, logger *slog.Logger) *Containers {
	return &Containers{ctrl: ctrl, metrics: m, logger: logger}
}

// Register binds the container events to a namespace.
func (c *Containers) Register(ctx context.Context, ns *netx.Namespace) {
	ns.AddEvent(EventRunContainer, func(client *socket.Socket, data ...any) {
		c.HandleRun(ctx, netx.Client{Socket: client}, data...)
	})
	ns.AddEvent(EventListContainers, func(client *socket.Socket, data ...any) {
		c.HandleList(ctx, netx.Client{Socket: client})
	})
	ns.AddEvent(EventStopContainer, func(client *socket.Socket, data ...any) {
		c.HandleStop(ctx, netx.Client{Socket: client}, data...)
	})
}

// HandleRun handles {image, resource_limits, container_name}.
func (c *Containers) HandleRun(ctx context.Context, client Client, data ...any) {
	req := payload(data)
	image := cast.ToString(req["image"])
	name := cast.ToString(req["container_name"])
	limits := resourceLimits(req["resource_limits"])

	c.logger.Info("Received container run request",
		slog.String("client_id", client.ID()),
		slog.String("image", image),
		slog.String("container_name", name),
	)

	begin := time.Now()
	result := c.ctrl.Run(ctx, image, limits, name)
	c.metrics.ContainerOp("run", result.Success, begin)

	client.Emit(EventContainerResult, result)
	c.metrics.Emitted(EventContainerResult)
}

// HandleList takes no payload.
func (c *Containers) HandleList(ctx context.Context, client Client) {
	begin := time.Now()
	result := c.ctrl.List(ctx)
	c.metrics.ContainerOp("list", result.Success, begin)

	client.Emit(EventContainerList, result)
	c.metrics.Emitted(EventContainerList)
}

// HandleStop handles {container_id}, which may also be a container name.
func (c *Containers) HandleStop(ctx context.Context, client Client, data ...any) {
	id := cast.ToString(payload(data)["container_id"])

	c.logger.Info("Received container stop request",
		slog.String("client_id", client.ID()),
		slog.String("container_id", id),
	)

	begin := time.Now()
	result := c.ctrl.Stop(ctx, id)
	c.metrics.ContainerOp("stop", result.Success, begin)

	client.Emit(EventContainerStopResult, result)
	c.metrics.Emitted(EventContainerStopResult)
}

// payload extracts the first event argument as a map. Some clients wrap it in
// an extra array layer.
func payload(data []any) map[string]any {
	if len(data) == 0 {
		return map[string]any{}
	}
	if m, err := cast.ToStringMapE(data[0]); err == nil {
		return m
	}
	if arr, ok := data[0].([]any); ok && len(arr) > 0 {
		if m, err := cast.ToStringMapE(arr[0]); err == nil {
			return m
		}
	}
	return map[string]any{}
}

// resourceLimits reads limits leniently: form inputs arrive as strings.
func resourceLimits(v any) dockerx.ResourceLimits {
	raw := cast.ToStringMap(v)
	limits := dockerx.ResourceLimits{
		CPUCount: cast.ToFloat64(raw["cpu_count"]),
		Memory:   cast.ToString(raw["memory"]),
		GPUCount: cast.ToInt(raw["gpu_count"]),
	}
	if devices := cast.ToStringSlice(raw["gpu_devices"]); len(devices) > 0 {
		limits.GPUDevices = devices
	}
	return limits
}
