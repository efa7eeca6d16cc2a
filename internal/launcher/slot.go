package launcher

import "sync"

// slotLocks hands out one mutex per reserved container name.
type slotLocks struct {
	mu    sync.Mutex
	slots map[string]*sync.Mutex
}

func newSlotLocks() *slotLocks {
	return &slotLocks{slots: make(map[string]*sync.Mutex)}
}

// lock blocks until the named slot is free and returns its release func.
func (s *slotLocks) lock(name string) func() {
	s.mu.Lock()
	m, ok := s.slots[name]
	if !ok {
		m = &sync.Mutex{}
		s.slots[name] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}
