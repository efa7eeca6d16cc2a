// Located in pkg/runtime/runtime.go
package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is matched (via errors.Is) by any runtime error caused by a
// missing image or container.
var ErrNotFound = errors.New("not found")

// RunOptions defines the parameters for running a detached container.
type RunOptions struct {
	Name             string
	Image            string
	Command          []string
	VolumeMounts     map[string]string
	EnvVars          map[string]string
	Labels           map[string]string
	WorkingDirectory string
	NetworkMode      string
	AutoRemove       bool
}

// Container is the slice of container state the launcher cares about.
type Container struct {
	ID     string
	Name   string
	Image  string
	Status string
}

// Running reports whether the engine considers the container running.
func (c *Container) Running() bool {
	return c.Status == "running"
}

// Image describes a resolved local image.
type Image struct {
	ID   string
	Tags []string
}

// ContainerRuntime defines the contract for container operations.
type ContainerRuntime interface {
	GetImage(ctx context.Context, ref string) (*Image, error)
	GetContainer(ctx context.Context, name string) (*Container, error)
	StopContainer(ctx context.Context, id string, timeout time.Duration) error
	RemoveContainer(ctx context.Context, id string, force bool) error
	RunContainer(ctx context.Context, opts RunOptions) (string, error)
}

// ClientError is returned by runtime implementations for any failure reported
// by the engine client.
type ClientError struct {
	Op       string
	NotFound bool
	Err      error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNotFound) match not-found client errors.
func (e *ClientError) Is(target error) bool {
	return target == ErrNotFound && e.NotFound
}

// IsNotFound reports whether err is a not-found runtime error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
