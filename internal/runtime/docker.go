package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/samber/oops"

	"elamid/pkg/runtime"
)

// Options selects the Docker engine endpoint.
type Options struct {
	// Host is a Docker endpoint such as unix:///var/run/docker.sock. When
	// empty, DOCKER_HOST and the well-known socket paths are tried in turn.
	Host string
	// APIVersion pins the API version; empty means negotiate.
	APIVersion string
}

// DockerRuntime implements the ContainerRuntime interface using Docker client.
type DockerRuntime struct {
	client *client.Client
}

// NewDockerRuntime connects to the Docker engine and verifies it answers a ping.
func NewDockerRuntime(ctx context.Context, opts Options) (*DockerRuntime, error) {
	dockerClient, err := newClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	if _, err := dockerClient.Ping(ctx); err != nil {
		dockerClient.Close()
		return nil, fmt.Errorf("failed to connect to Docker daemon: %w", err)
	}

	slog.Info("Connected to Docker daemon", "host", dockerClient.DaemonHost())

	return &DockerRuntime{
		client: dockerClient,
	}, nil
}

// newClient builds the engine client without contacting the daemon.
func newClient(opts Options) (*client.Client, error) {
	clientOpts := []client.Opt{client.FromEnv}
	if host := resolveHost(opts.Host); host != "" {
		clientOpts = append(clientOpts, client.WithHost(host))
	}
	if opts.APIVersion != "" {
		clientOpts = append(clientOpts, client.WithVersion(opts.APIVersion))
	} else {
		clientOpts = append(clientOpts, client.WithAPIVersionNegotiation())
	}
	return client.NewClientWithOpts(clientOpts...)
}

// Close releases the underlying client connection.
func (d *DockerRuntime) Close() error {
	return d.client.Close()
}

// resolveHost picks the engine endpoint. An explicit host wins, then
// DOCKER_HOST (left to client.FromEnv), then the first socket found on disk.
func resolveHost(host string) string {
	if host != "" {
		return host
	}
	if os.Getenv("DOCKER_HOST") != "" {
		return ""
	}
	for _, path := range getDockerSocketPaths() {
		if _, err := os.Stat(path); err == nil {
			return "unix://" + path
		}
	}
	return ""
}

// getDockerSocketPaths lists the socket locations used by rootful, rootless
// and desktop Docker installs, most common first.
func getDockerSocketPaths() []string {
	paths := []string{"/var/run/docker.sock"}
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		paths = append(paths, filepath.Join(runtimeDir, "docker.sock"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".docker", "run", "docker.sock"),
			filepath.Join(home, ".colima", "default", "docker.sock"),
		)
	}
	return paths
}

// GetImage resolves a local image reference without pulling.
func (d *DockerRuntime) GetImage(ctx context.Context, ref string) (*runtime.Image, error) {
	inspect, _, err := d.client.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		return nil, clientError("inspect image", err, "image", ref)
	}
	return &runtime.Image{ID: inspect.ID, Tags: inspect.RepoTags}, nil
}

// GetContainer looks a container up by name or ID.
func (d *DockerRuntime) GetContainer(ctx context.Context, name string) (*runtime.Container, error) {
	inspect, err := d.client.ContainerInspect(ctx, name)
	if err != nil {
		return nil, clientError("inspect container", err, "container", name)
	}

	c := &runtime.Container{ID: inspect.ID, Name: inspect.Name}
	if inspect.Config != nil {
		c.Image = inspect.Config.Image
	}
	if inspect.State != nil {
		c.Status = inspect.State.Status
	}
	return c, nil
}

// StopContainer sends SIGTERM and waits up to timeout before the engine kills it.
func (d *DockerRuntime) StopContainer(ctx context.Context, id string, timeout time.Duration) error {
	seconds := stopSeconds(timeout)
	slog.Info("Stopping container", "container", id, "timeout", timeout)

	if err := d.client.ContainerStop(ctx, id, container.StopOptions{Timeout: &seconds}); err != nil {
		return clientError("stop container", err, "container", id)
	}
	return nil
}

// stopSeconds converts a grace period to the engine's whole seconds,
// rounding up so a short timeout never becomes an immediate kill.
func stopSeconds(timeout time.Duration) int {
	return int(math.Ceil(timeout.Seconds()))
}

// RemoveContainer deletes a container, killing it first when force is set.
func (d *DockerRuntime) RemoveContainer(ctx context.Context, id string, force bool) error {
	err := d.client.ContainerRemove(ctx, id, container.RemoveOptions{Force: force})
	if errdefs.IsConflict(err) {
		// An auto-remove container that was just stopped is already being
		// removed by the engine.
		err = d.waitRemoved(ctx, id)
	}
	if err != nil {
		return clientError("remove container", err, "container", id)
	}
	slog.Info("Container removed", "container", id)
	return nil
}

func (d *DockerRuntime) waitRemoved(ctx context.Context, id string) error {
	statusCh, errCh := d.client.ContainerWait(ctx, id, container.WaitConditionRemoved)
	select {
	case <-statusCh:
		return nil
	case err := <-errCh:
		if errdefs.IsNotFound(err) {
			return nil
		}
		return err
	}
}

// RunContainer creates and starts a detached container and returns its ID.
// Output goes to the engine's log driver; nothing is streamed back.
func (d *DockerRuntime) RunContainer(ctx context.Context, opts runtime.RunOptions) (string, error) {
	slog.Info("Running container", "name", opts.Name, "image", opts.Image, "command", opts.Command)

	var mounts []mount.Mount
	for hostPath, containerPath := range opts.VolumeMounts {
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   hostPath,
			Target:   containerPath,
			ReadOnly: false,
		})
	}

	var envVars []string
	for key, value := range opts.EnvVars {
		envVars = append(envVars, fmt.Sprintf("%s=%s", key, value))
	}

	containerConfig := &container.Config{
		Image:        opts.Image,
		Cmd:          opts.Command,
		Env:          envVars,
		WorkingDir:   opts.WorkingDirectory,
		Labels:       opts.Labels,
		AttachStdout: true,
		AttachStderr: true,
	}

	hostConfig := &container.HostConfig{
		Mounts:      mounts,
		NetworkMode: container.NetworkMode(opts.NetworkMode),
		AutoRemove:  opts.AutoRemove,
	}

	resp, err := d.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, opts.Name)
	if err != nil {
		return "", clientError("create container", err, "name", opts.Name, "image", opts.Image)
	}

	if err := d.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// Leave the name free for the next attempt.
		if removeErr := d.client.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true}); removeErr != nil {
			slog.Error("Failed to remove container after start failure", "containerID", resp.ID, "error", removeErr)
		}
		return "", clientError("start container", err, "name", opts.Name, "containerID", resp.ID)
	}

	slog.Info("Container started", "name", opts.Name, "containerID", resp.ID)
	return resp.ID, nil
}

func clientError(op string, err error, kv ...any) error {
	return &runtime.ClientError{
		Op:       op,
		NotFound: errdefs.IsNotFound(err),
		Err:      oops.With(kv...).Wrap(err),
	}
}
