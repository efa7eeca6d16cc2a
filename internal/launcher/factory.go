package launcher

import (
	"context"
	"sync"

	dockerruntime "elamid/internal/runtime"
	"elamid/pkg/runtime"
)

// RuntimeFactory connects to a container engine.
type RuntimeFactory func(ctx context.Context) (runtime.ContainerRuntime, error)

// DockerRuntimeFactory connects to Docker with the given endpoint options.
func DockerRuntimeFactory(opts dockerruntime.Options) RuntimeFactory {
	return func(ctx context.Context) (runtime.ContainerRuntime, error) {
		rt, err := dockerruntime.NewDockerRuntime(ctx, opts)
		if err != nil {
			return nil, err
		}
		return rt, nil
	}
}

// StaticRuntime always returns rt.
func StaticRuntime(rt runtime.ContainerRuntime) RuntimeFactory {
	return func(context.Context) (runtime.ContainerRuntime, error) {
		return rt, nil
	}
}

// cachedRuntime connects on first use and keeps the client once it works.
// A failed connection is retried by the next caller.
type cachedRuntime struct {
	mu      sync.Mutex
	factory RuntimeFactory
	rt      runtime.ContainerRuntime
}

func (c *cachedRuntime) get(ctx context.Context) (runtime.ContainerRuntime, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rt != nil {
		return c.rt, nil
	}
	rt, err := c.factory(ctx)
	if err != nil {
		return nil, err
	}
	c.rt = rt
	return rt, nil
}

// close releases the cached client when it holds resources.
func (c *cachedRuntime) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	closer, ok := c.rt.(interface{ Close() error })
	c.rt = nil
	if !ok {
		return nil
	}
	return closer.Close()
}
