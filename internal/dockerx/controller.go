package dockerx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"rentalagent/internal/system"
)

// Runtime is the subset of the docker API client the controller uses.
// *client.Client satisfies it.
type Runtime interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ImageInspect(ctx context.Context, imageID string, inspectOpts ...client.ImageInspectOption) (image.InspectResponse, error)
}

// NewClient connects to the docker daemon. An empty host uses the DOCKER_* environment.
func NewClient(host string) (*client.Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return cli, nil
}

// Controller runs, lists and stops containers. Every method reports failure
// inside its result; none of them returns an error to the caller.
type Controller struct {
	runtime Runtime
	logger  *slog.Logger
}

func NewController(runtime Runtime, logger *slog.Logger) *Controller {
	return &Controller{runtime: runtime, logger: logger}
}

// Run creates and starts a detached container with a TTY and open stdin.
// An image that is not present locally is pulled once before giving up.
func (c *Controller) Run(ctx context.Context, img string, limits ResourceLimits, name string) RunResult {
	if img == "" {
		return RunResult{Error: "Image name is required"}
	}

	resources, err := limits.Resources()
	if err != nil {
		return c.runFailure(img, fmt.Sprintf("Error running container: %v", err))
	}

	config := &container.Config{
		Image:     img,
		Tty:       true,
		OpenStdin: true,
	}
	hostConfig := &container.HostConfig{Resources: resources}

	created, err := c.runtime.ContainerCreate(ctx, config, hostConfig, nil, nil, name)
	if err != nil && cerrdefs.IsNotFound(err) {
		c.logger.Info("Image not present, pulling", slog.String("image", img))
		if pullErr := c.pull(ctx, img); pullErr != nil {
			if cerrdefs.IsNotFound(pullErr) {
				return c.runFailure(img, fmt.Sprintf("Docker image not found: %s", img))
			}
			return c.runFailure(img, describeRunError(pullErr))
		}
		created, err = c.runtime.ContainerCreate(ctx, config, hostConfig, nil, nil, name)
	}
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return c.runFailure(img, fmt.Sprintf("Docker image not found: %s", img))
		}
		return c.runFailure(img, describeRunError(err))
	}

	if err := c.runtime.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return c.runFailure(img, describeRunError(err))
	}

	desc := Container{
		ID:             created.ID,
		Name:           name,
		Status:         "created",
		Image:          img,
		ResourceLimits: &limits,
	}
	if inspect, err := c.runtime.ContainerInspect(ctx, created.ID); err != nil {
		c.logger.Warn("Failed to inspect started container", slog.String("id", created.ID), slog.Any("error", err))
	} else if inspect.ContainerJSONBase != nil {
		desc.Name = strings.TrimPrefix(inspect.Name, "/")
		if inspect.State != nil {
			desc.Status = inspect.State.Status
		}
	}

	c.logger.Info("Container started",
		slog.String("name", desc.Name),
		slog.String("id", desc.ID),
		slog.String("image", img),
		slog.Float64("cpu_count", limits.CPUCount),
		slog.String("memory", system.ProperUnit(uint64(resources.Memory))),
		slog.Int("gpu_count", limits.GPUCount),
	)
	return RunResult{Success: true, Container: &desc}
}

func (c *Controller) pull(ctx context.Context, img string) error {
	rc, err := c.runtime.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return err
	}
	defer rc.Close()
	// The pull only completes once the progress stream is drained.
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("failed to read pull progress: %w", err)
	}
	return nil
}

func (c *Controller) runFailure(img, msg string) RunResult {
	c.logger.Error("Failed to run container", slog.String("image", img), slog.String("error", msg))
	return RunResult{Error: msg}
}

func describeRunError(err error) string {
	if client.IsErrConnectionFailed(err) {
		return fmt.Sprintf("Error running container: %v", err)
	}
	return fmt.Sprintf("Docker API error: %v", err)
}

// List reports running containers only.
func (c *Controller) List(ctx context.Context) ListResult {
	summaries, err := c.runtime.ContainerList(ctx, container.ListOptions{})
	if err != nil {
		msg := fmt.Sprintf("Error listing containers: %v", err)
		c.logger.Error("Failed to list containers", slog.Any("error", err))
		return ListResult{Error: msg}
	}

	containers := make([]Container, 0, len(summaries))
	for _, s := range summaries {
		var name string
		if len(s.Names) > 0 {
			name = strings.TrimPrefix(s.Names[0], "/")
		}
		containers = append(containers, Container{
			ID:     s.ID,
			Name:   name,
			Status: s.State,
			Image:  c.imageTag(ctx, s.ImageID),
		})
	}
	return ListResult{Success: true, Containers: containers}
}

// imageTag returns the first tag of the image or "none" when it has none.
func (c *Controller) imageTag(ctx context.Context, imageID string) string {
	if imageID == "" {
		return "none"
	}
	inspect, err := c.runtime.ImageInspect(ctx, imageID)
	if err != nil {
		c.logger.Debug("Failed to inspect image", slog.String("image_id", imageID), slog.Any("error", err))
		return "none"
	}
	if len(inspect.RepoTags) == 0 {
		return "none"
	}
	return inspect.RepoTags[0]
}

// Stop gracefully stops the container with the given id or name.
func (c *Controller) Stop(ctx context.Context, id string) StopResult {
	if id == "" {
		return StopResult{Error: "Container ID is required"}
	}

	if err := c.runtime.ContainerStop(ctx, id, container.StopOptions{}); err != nil {
		if cerrdefs.IsNotFound(err) {
			return StopResult{Error: fmt.Sprintf("Container %s not found", id)}
		}
		msg := fmt.Sprintf("Error stopping container: %v", err)
		c.logger.Error("Failed to stop container", slog.String("id", id), slog.Any("error", err))
		return StopResult{Error: msg}
	}

	c.logger.Info("Container stopped", slog.String("id", id))
	return StopResult{Success: true, Message: fmt.Sprintf("Container %s stopped", id)}
}
