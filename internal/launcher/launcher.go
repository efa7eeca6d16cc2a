package launcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"elamid/internal/config"
	elamiderrors "elamid/internal/errors"
	"elamid/pkg/request"
	"elamid/pkg/runtime"
)

const (
	// DefaultContainerName is the reserved name of the managed container slot.
	DefaultContainerName = "myelaai"

	// DefaultStopTimeout is the grace period between SIGTERM and SIGKILL.
	DefaultStopTimeout = 10 * time.Second
)

// Options configures a Launcher.
type Options struct {
	ContainerName string
	NetworkMode   string
	StopTimeout   time.Duration
	// Serialize makes concurrent launches take turns on the container slot.
	Serialize bool
}

// OptionsFromConfig reads launcher options out of the daemon configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ContainerName: cfg.Container.Name,
		NetworkMode:   cfg.Container.Network,
		StopTimeout:   cfg.Container.StopTimeout,
		Serialize:     cfg.Launcher.Serialize,
	}
}

func (o Options) withDefaults() Options {
	if o.ContainerName == "" {
		o.ContainerName = DefaultContainerName
	}
	if o.NetworkMode == "" {
		o.NetworkMode = "host"
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = DefaultStopTimeout
	}
	return o
}

// Result describes a container that was started.
type Result struct {
	RunID         string
	ContainerID   string
	ContainerName string
}

// Launcher replaces the container in the reserved slot with a fresh one
// built from a RunRequest.
type Launcher struct {
	runtime *cachedRuntime
	opts    Options
	locks   *slotLocks
}

// New creates a Launcher. The runtime is connected lazily on the first
// launch so that an unreachable engine is reported per request.
func New(factory RuntimeFactory, opts Options) *Launcher {
	return &Launcher{
		runtime: &cachedRuntime{factory: factory},
		opts:    opts.withDefaults(),
		locks:   newSlotLocks(),
	}
}

// Close releases the runtime client, if one was connected.
func (l *Launcher) Close() error {
	return l.runtime.close()
}

// Launch resolves the image, clears the reserved slot and starts a new
// detached container. It returns once the container is started; the
// container's completion is never observed.
func (l *Launcher) Launch(ctx context.Context, req *request.RunRequest) (*Result, error) {
	runID := uuid.New().String()
	logger := slog.With("runId", runID, "image", req.Image, "operation", req.Operation, "container", l.opts.ContainerName)

	spec, err := BuildSpec(req, l.opts, runID)
	if err != nil {
		return nil, err
	}

	logger.Info("Launching assessment container", "profile", Profile(req.Operation), "command", spec.Command)

	rt, err := l.runtime.get(ctx)
	if err != nil {
		return nil, elamiderrors.NewClientError(
			"Unable to create elamid client",
			"The container engine could not be reached",
			"Check that the Docker daemon is running and its socket is accessible",
			err,
		)
	}

	if _, err := rt.GetImage(ctx, req.Image); err != nil {
		if runtime.IsNotFound(err) {
			return nil, elamiderrors.NewImageNotFoundError(
				fmt.Sprintf("Unable to find image %s", req.Image),
				"The image is not present in the local image store",
				"Load or pull the image on this host before launching",
				err,
			)
		}
		return nil, elamiderrors.NewRuntimeError(
			fmt.Sprintf("Unable to inspect image %s", req.Image),
			"",
			"Check the Docker daemon logs",
			err,
		)
	}

	if l.opts.Serialize {
		unlock := l.locks.lock(l.opts.ContainerName)
		defer unlock()
	}

	if err := l.clearSlot(ctx, rt, logger); err != nil {
		return nil, err
	}

	containerID, err := rt.RunContainer(ctx, spec)
	if err != nil {
		return nil, elamiderrors.NewStartError(
			fmt.Sprintf("Unable to run container %s for image %s with command: %s",
				l.opts.ContainerName, req.Image, strings.Join(spec.Command, " ")),
			"",
			"",
			err,
		)
	}

	logger.Info("Assessment container started", "containerID", containerID)
	return &Result{
		RunID:         runID,
		ContainerID:   containerID,
		ContainerName: l.opts.ContainerName,
	}, nil
}

// clearSlot stops and removes whatever currently holds the reserved name.
// An empty slot is the normal first-run case.
func (l *Launcher) clearSlot(ctx context.Context, rt runtime.ContainerRuntime, logger *slog.Logger) error {
	name := l.opts.ContainerName

	existing, err := rt.GetContainer(ctx, name)
	if err != nil {
		if runtime.IsNotFound(err) {
			logger.Debug("Container slot is empty")
			return nil
		}
		return elamiderrors.NewRuntimeError(
			fmt.Sprintf("Unable to look up container %s", name),
			"",
			"Check that the Docker daemon is healthy",
			err,
		)
	}

	if existing.Running() {
		logger.Info("Stopping container", "containerID", existing.ID, "timeout", l.opts.StopTimeout)
		if err := rt.StopContainer(ctx, existing.ID, l.opts.StopTimeout); err != nil && !runtime.IsNotFound(err) {
			return elamiderrors.NewRuntimeError(
				fmt.Sprintf("Unable to stop container %s", name),
				"The previous assessment did not stop within the grace period",
				fmt.Sprintf("Stop or remove %s manually, then retry", name),
				err,
			)
		}
	}

	// Auto-removed containers may already be gone after the stop.
	if err := rt.RemoveContainer(ctx, existing.ID, true); err != nil && !runtime.IsNotFound(err) {
		return elamiderrors.NewRuntimeError(
			fmt.Sprintf("Unable to remove container %s", name),
			"",
			fmt.Sprintf("Remove %s manually, then retry", name),
			err,
		)
	}

	logger.Info("Container removed successfully", "containerID", existing.ID, "previousStatus", existing.Status)
	return nil
}
