package dockerx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// fakeRuntime is an in-memory docker daemon.
type fakeRuntime struct {
	mu sync.Mutex

	images     map[string][]string // image id -> repo tags
	remote     map[string]bool     // pullable references
	containers map[string]*fakeContainer

	createErr error
	listErr   error
	stopErr   error

	lastHostConfig *container.HostConfig
	lastConfig     *container.Config
	pulls          []string
	nextID         int
}

type fakeContainer struct {
	id, name, imageID string
	running           bool
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		images:     map[string][]string{},
		remote:     map[string]bool{},
		containers: map[string]*fakeContainer{},
	}
}

func (f *fakeRuntime) imageID(ref string) (string, bool) {
	for id, tags := range f.images {
		for _, tag := range tags {
			if tag == ref || strings.TrimSuffix(tag, ":latest") == ref {
				return id, true
			}
		}
	}
	return "", false
}

func (f *fakeRuntime) ContainerCreate(_ context.Context, config *container.Config, hostConfig *container.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, name string) (container.CreateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastConfig = config
	f.lastHostConfig = hostConfig
	if f.createErr != nil {
		return container.CreateResponse{}, f.createErr
	}
	imageID, ok := f.imageID(config.Image)
	if !ok {
		return container.CreateResponse{}, fmt.Errorf("No such image: %s: %w", config.Image, cerrdefs.ErrNotFound)
	}
	f.nextID++
	id := fmt.Sprintf("c0ffee%04d", f.nextID)
	if name == "" {
		name = fmt.Sprintf("auto_%d", f.nextID)
	}
	f.containers[id] = &fakeContainer{id: id, name: name, imageID: imageID}
	return container.CreateResponse{ID: id}, nil
}

func (f *fakeRuntime) ContainerStart(_ context.Context, id string, _ container.StartOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[id]
	if !ok {
		return fmt.Errorf("No such container: %s: %w", id, cerrdefs.ErrNotFound)
	}
	c.running = true
	return nil
}

func (f *fakeRuntime) ContainerInspect(_ context.Context, id string) (container.InspectResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[id]
	if !ok {
		return container.InspectResponse{}, fmt.Errorf("No such container: %s: %w", id, cerrdefs.ErrNotFound)
	}
	status := "exited"
	if c.running {
		status = "running"
	}
	return container.InspectResponse{
		ContainerJSONBase: &container.ContainerJSONBase{
			ID:    c.id,
			Name:  "/" + c.name,
			State: &container.State{Status: status},
		},
	}, nil
}

func (f *fakeRuntime) ContainerList(_ context.Context, options container.ListOptions) ([]container.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []container.Summary
	for _, c := range f.containers {
		if !c.running && !options.All {
			continue
		}
		state := "exited"
		if c.running {
			state = "running"
		}
		out = append(out, container.Summary{
			ID:      c.id,
			Names:   []string{"/" + c.name},
			ImageID: c.imageID,
			State:   state,
		})
	}
	return out, nil
}

func (f *fakeRuntime) ContainerStop(_ context.Context, ref string, _ container.StopOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopErr != nil {
		return f.stopErr
	}
	for _, c := range f.containers {
		if c.id == ref || c.name == ref {
			c.running = false
			return nil
		}
	}
	return fmt.Errorf("No such container: %s: %w", ref, cerrdefs.ErrNotFound)
}

func (f *fakeRuntime) ImagePull(_ context.Context, ref string, _ image.PullOptions) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulls = append(f.pulls, ref)
	if !f.remote[ref] {
		return nil, fmt.Errorf("pull access denied for %s: %w", ref, cerrdefs.ErrNotFound)
	}
	f.images["sha256:"+ref] = []string{ref + ":latest"}
	return io.NopCloser(strings.NewReader(`{"status":"Downloaded newer image"}`)), nil
}

func (f *fakeRuntime) ImageInspect(_ context.Context, imageID string, _ ...client.ImageInspectOption) (image.InspectResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tags, ok := f.images[imageID]
	if !ok {
		return image.InspectResponse{}, errors.New("no such image")
	}
	return image.InspectResponse{ID: imageID, RepoTags: tags}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
