// Package registry guarantees at most one live runner per task. Registering a
// runner for a task cancels whatever runner held the slot before it.
package registry

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Handle is the cancellation side of one runner.
type Handle struct {
	cancel context.CancelFunc
}

// Registry maps task keys to the cancel handle of their active runner.
type Registry struct {
	mu      sync.Mutex
	handles map[string]*Handle
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{handles: make(map[string]*Handle)}
}

// Register derives a cancellable context for a new runner and installs its
// handle. Any previous handle for the key is cancelled first.
func (r *Registry) Register(ctx context.Context, key string) (context.Context, *Handle) {
	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel}

	r.mu.Lock()
	prev := r.handles[key]
	r.handles[key] = h
	r.mu.Unlock()

	if prev != nil {
		log.Info().Str("task", key).Msg("replacing active runner")
		prev.cancel()
	}
	return runCtx, h
}

// Cancel aborts the active runner for a key, if any. Idempotent: cancelling a
// missing or already-cancelled key is a no-op.
func (r *Registry) Cancel(key string) bool {
	r.mu.Lock()
	h, ok := r.handles[key]
	delete(r.handles, key)
	r.mu.Unlock()

	if !ok {
		return false
	}
	h.cancel()
	return true
}

// Clear removes a handle after its runner finished, but only if the slot still
// belongs to that handle; a newer runner's registration is left alone.
func (r *Registry) Clear(key string, h *Handle) {
	r.mu.Lock()
	if r.handles[key] == h {
		delete(r.handles, key)
	}
	r.mu.Unlock()
	// Release the derived context even on a clean finish.
	h.cancel()
}

// Active reports whether a runner currently holds the key.
func (r *Registry) Active(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.handles[key]
	return ok
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
