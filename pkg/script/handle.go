package script

import (
	"sync"

	"github.com/leapstack-labs/dashql/pkg/core"
)

// Handle owns a pipeline result. Reading a released handle fails with
// core.ErrNullPointer.
type Handle[T any] struct {
	mu       sync.RWMutex
	value    T
	released bool
}

func newHandle[T any](v T) *Handle[T] {
	return &Handle[T]{value: v}
}

// Read returns the value held by the handle.
func (h *Handle[T]) Read() (T, error) {
	var zero T
	if h == nil {
		return zero, core.ErrNullPointer
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.released {
		return zero, core.ErrNullPointer
	}
	return h.value, nil
}

// Release drops the value. Releasing twice is a no-op.
func (h *Handle[T]) Release() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	var zero T
	h.value = zero
	h.released = true
}

// Released reports whether Release was called.
func (h *Handle[T]) Released() bool {
	if h == nil {
		return true
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.released
}
