package launcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elamid/pkg/runtime"
)

// fakeEngine is an in-memory engine that, like Docker, refuses to create a
// second container under a name that is taken.
type fakeEngine struct {
	mu         sync.Mutex
	containers map[string]*runtime.Container
	nextID     int
	// lookups, when set, holds every GetContainer caller until all expected
	// callers have looked at the slot.
	lookups *sync.WaitGroup
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{containers: make(map[string]*runtime.Container)}
}

func (f *fakeEngine) GetImage(ctx context.Context, ref string) (*runtime.Image, error) {
	return &runtime.Image{ID: "sha256:" + ref}, nil
}

func (f *fakeEngine) GetContainer(ctx context.Context, name string) (*runtime.Container, error) {
	f.mu.Lock()
	c, ok := f.containers[name]
	var snapshot runtime.Container
	if ok {
		snapshot = *c
	}
	f.mu.Unlock()

	if f.lookups != nil {
		f.lookups.Done()
		f.lookups.Wait()
	}
	time.Sleep(time.Millisecond)

	if !ok {
		return nil, notFound("inspect container")
	}
	return &snapshot, nil
}

func (f *fakeEngine) StopContainer(ctx context.Context, id string, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.containers {
		if c.ID == id {
			c.Status = "exited"
			return nil
		}
	}
	return notFound("stop container")
}

func (f *fakeEngine) RemoveContainer(ctx context.Context, id string, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name, c := range f.containers {
		if c.ID == id {
			delete(f.containers, name)
			return nil
		}
	}
	return notFound("remove container")
}

func (f *fakeEngine) RunContainer(ctx context.Context, opts runtime.RunOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, taken := f.containers[opts.Name]; taken {
		return "", &runtime.ClientError{
			Op:  "create container",
			Err: fmt.Errorf("Conflict. The container name %q is already in use", "/"+opts.Name),
		}
	}
	f.nextID++
	id := fmt.Sprintf("c%d", f.nextID)
	f.containers[opts.Name] = &runtime.Container{ID: id, Name: opts.Name, Image: opts.Image, Status: "running"}
	return id, nil
}

func (f *fakeEngine) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.containers)
}

func launchConcurrently(l *Launcher, n int) []error {
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.Launch(context.Background(), testRequest())
		}(i)
	}
	wg.Wait()
	return errs
}

// Serialized launches take turns on the slot, so each one replaces the
// previous container and none hits a name collision.
func TestLauncher_ConcurrentLaunchesAreSerialized(t *testing.T) {
	engine := newFakeEngine()
	l := New(StaticRuntime(engine), Options{Serialize: true})

	errs := launchConcurrently(l, 8)

	for i, err := range errs {
		assert.NoError(t, err, "launch %d", i)
	}
	assert.Equal(t, 1, engine.count())
}

// Without serialization two launches can both see an empty slot and race
// to create the container; the loser gets a name collision.
func TestLauncher_UnserializedLaunchesCanCollide(t *testing.T) {
	engine := newFakeEngine()
	engine.lookups = &sync.WaitGroup{}
	engine.lookups.Add(2)
	l := New(StaticRuntime(engine), Options{Serialize: false})

	errs := launchConcurrently(l, 2)

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
			var clientErr *runtime.ClientError
			require.True(t, errors.As(err, &clientErr))
			assert.Contains(t, err.Error(), "already in use")
		}
	}
	assert.Equal(t, 1, failures)
	assert.Equal(t, 1, engine.count())
}

func TestSlotLocks_SeparateNamesDoNotBlock(t *testing.T) {
	locks := newSlotLocks()
	unlockA := locks.lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := locks.lock("b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different slot blocked")
	}
}
